package app

import (
	"bitwise74/course-archive/internal/model"
	"bitwise74/course-archive/pkg/fingerprint"
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestID"`
}

type courseResources struct {
	CourseID string `json:"course_id"`
	Total    int    `json:"total"`
	Sections []struct {
		Type      string           `json:"type"`
		Resources []model.Resource `json:"resources"`
	} `json:"sections"`
}

// upload relays data and returns the catalog body pointing at it
func (e *testEnv) upload(course string, data []byte) map[string]any {
	e.t.Helper()

	f := validForm(data)
	f.CourseID = course

	w := e.relay(relaySecret, f)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	res := decode[relayResponse](e.t, w)

	return map[string]any{
		"course_id": course,
		"year":      "2023-24",
		"semester":  1,
		"prof":      "Dr. Sharma",
		"type":      model.TypeLectureSlides,
		"filename":  "Lecture 1.pdf",
		"hf_path":   res.HFPath,
		"file_hash": res.SHA256,
	}
}

func TestCreateResource(t *testing.T) {
	e := newEnv(t)
	body := e.upload("CS F111", pdf("intro"))

	// Uploader fields in the body are ignored
	body["uploader_email"] = "mallory@bits-pilani.ac.in"
	body["uploader_name"] = "Mallory"

	w := e.api(http.MethodPost, "/api/resources", alice, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	r := decode[model.Resource](t, w)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, alice.Email, r.UploaderEmail)
	assert.Equal(t, alice.Name, r.UploaderName)
	assert.Equal(t, "CS F111", r.CourseID)
	assert.Equal(t, body["hf_path"], r.StoragePath)
	assert.False(t, r.Hidden)
	assert.Zero(t, r.Upvotes)

	w = e.api(http.MethodGet, "/api/resources/exists?hash="+r.Fingerprint, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[map[string]bool](t, w)["exists"])

	w = e.api(http.MethodGet, "/api/courses/CS%20F111/resources", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[courseResources](t, w)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Sections, 1)
	assert.Equal(t, model.TypeLectureSlides, list.Sections[0].Type)
}

func TestCreateResourceAnonymous(t *testing.T) {
	e := newEnv(t)
	body := e.upload("CS F111", pdf("intro"))

	w := e.api(http.MethodPost, "/api/resources", nil, body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.api(http.MethodGet, "/api/resources/exists?hash="+body["file_hash"].(string), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateResourceDuplicate(t *testing.T) {
	e := newEnv(t)
	body := e.upload("CS F111", pdf("same bytes"))

	w := e.api(http.MethodPost, "/api/resources", alice, body)
	require.Equal(t, http.StatusCreated, w.Code)

	// Different course, same content
	again := e.upload("MATH F112", pdf("same bytes"))
	w = e.api(http.MethodPost, "/api/resources", bob, again)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "This file has already been uploaded", decode[errorBody](t, w).Error)

	// Upper case hash is the same fingerprint
	body["file_hash"] = strings.ToUpper(body["file_hash"].(string))
	w = e.api(http.MethodPost, "/api/resources", bob, body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateResourceValidation(t *testing.T) {
	e := newEnv(t)
	base := e.upload("CS F111", pdf("x"))

	with := func(k string, v any) map[string]any {
		b := make(map[string]any, len(base))
		for key, val := range base {
			b[key] = val
		}
		b[k] = v
		return b
	}

	cases := []struct {
		name string
		body map[string]any
		msg  string
	}{
		{"no course", with("course_id", ""), "Invalid request body"},
		{"course with slash", with("course_id", "CS/F111"), "Invalid request body"},
		{"semester zero", with("semester", 0), "Invalid request body"},
		{"other without text", with("type", model.TypeOther), "Please specify the resource type."},
		{"short hash", with("file_hash", "abc"), "Invalid file hash"},
		{"escaping path", with("hf_path", "../secrets.pdf"), "Invalid path"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.api(http.MethodPost, "/api/resources", alice, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.msg, decode[errorBody](t, w).Error)
		})
	}

	other := with("type", model.TypeOther)
	other["other_type"] = "Handwritten notes"
	w := e.api(http.MethodPost, "/api/resources", alice, other)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Handwritten notes", decode[model.Resource](t, w).Type)
}

func TestDeleteResource(t *testing.T) {
	e := newEnv(t)
	body := e.upload("CS F111", pdf("to be removed"))

	w := e.api(http.MethodPost, "/api/resources", alice, body)
	require.Equal(t, http.StatusCreated, w.Code)
	r := decode[model.Resource](t, w)

	w = e.api(http.MethodDelete, "/api/resources/"+r.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.api(http.MethodDelete, "/api/resources/"+r.ID, moderator, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.api(http.MethodDelete, "/api/resources/"+r.ID, alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.api(http.MethodDelete, "/api/resources/"+r.ID, alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.api(http.MethodGet, "/api/courses/CS%20F111/resources", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[courseResources](t, w).Total)

	// The stored file outlives its catalog row
	w = e.api(http.MethodGet, "/api/files?path="+url.QueryEscape(r.StoragePath), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pdf("to be removed"), w.Body.Bytes())

	// And the content can be catalogued again
	w = e.api(http.MethodGet, "/api/resources/exists?hash="+r.Fingerprint, bob, nil)
	assert.False(t, decode[map[string]bool](t, w)["exists"])
}

func TestForeignDomainToken(t *testing.T) {
	e := newEnv(t)

	w := e.api(http.MethodGet, "/api/courses", outsider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.api(http.MethodPost, "/api/resources", outsider, e.upload("CS F111", pdf("x")))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Browsers get sent back to the login page instead
	req := navigate("/api/courses")
	req.Header.Set("Authorization", "Bearer "+e.token(outsider))
	w = e.do(req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?error=domain", w.Header().Get("Location"))

	w = e.do(navigate("/api/courses"))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestVisibility(t *testing.T) {
	e := newEnv(t)

	w := e.api(http.MethodPost, "/api/resources", alice, e.upload("CS F111", pdf("x")))
	require.Equal(t, http.StatusCreated, w.Code)
	r := decode[model.Resource](t, w)

	w = e.api(http.MethodPatch, "/api/resources/"+r.ID+"/visibility", alice, map[string]bool{"hidden": true})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.api(http.MethodPatch, "/api/resources/"+r.ID+"/visibility", moderator, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.api(http.MethodPatch, "/api/resources/"+r.ID+"/visibility", moderator, map[string]bool{"hidden": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["is_hidden"])

	w = e.api(http.MethodGet, "/api/courses/CS%20F111/resources", alice, nil)
	assert.Zero(t, decode[courseResources](t, w).Total)

	// A hidden row no longer blocks the same content
	w = e.api(http.MethodGet, "/api/resources/exists?hash="+r.Fingerprint, bob, nil)
	assert.False(t, decode[map[string]bool](t, w)["exists"])

	w = e.api(http.MethodPatch, "/api/resources/missing/visibility", moderator, map[string]bool{"hidden": false})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpvoteOnce(t *testing.T) {
	e := newEnv(t)

	w := e.api(http.MethodPost, "/api/resources", alice, e.upload("CS F111", pdf("x")))
	require.Equal(t, http.StatusCreated, w.Code)
	r := decode[model.Resource](t, w)

	w = e.api(http.MethodPost, "/api/resources/"+r.ID+"/upvote", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["upvotes"])

	w = e.api(http.MethodPost, "/api/resources/"+r.ID+"/upvote", bob, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.api(http.MethodPost, "/api/resources/"+r.ID+"/upvote", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["upvotes"])

	w = e.api(http.MethodPost, "/api/resources/"+r.ID+"/report", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["upvotes"])

	w = e.api(http.MethodPost, "/api/resources/nope/upvote", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCourses(t *testing.T) {
	e := newEnv(t)

	w := e.api(http.MethodPut, "/api/courses/cs%20f111", alice, map[string]string{"name": "Computer Programming"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	for id, name := range map[string]string{
		"cs f111":   "Computer Programming",
		"MATH F112": "Mathematics II",
	} {
		w = e.api(http.MethodPut, "/api/courses/"+url.PathEscape(id), moderator, map[string]string{"name": name})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	for _, text := range []string{"a", "b"} {
		w = e.api(http.MethodPost, "/api/resources", alice, e.upload("MATH F112", pdf(text)))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = e.api(http.MethodGet, "/api/courses", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)

	courses := decode[[]model.CourseSummary](t, w)
	require.Len(t, courses, 2)
	assert.Equal(t, model.CourseSummary{ID: "MATH F112", Name: "Mathematics II", Count: 2}, courses[0])
	assert.Equal(t, model.CourseSummary{ID: "CS F111", Name: "Computer Programming", Count: 0}, courses[1])

	w = e.api(http.MethodGet, "/api/courses?query=programming", bob, nil)
	courses = decode[[]model.CourseSummary](t, w)
	require.Len(t, courses, 1)
	assert.Equal(t, "CS F111", courses[0].ID)
}

func TestUploadedFingerprintMatchesContent(t *testing.T) {
	e := newEnv(t)
	data := pdf("fingerprinted")

	want, err := fingerprint.Sum(bytes.NewReader(data))
	require.NoError(t, err)

	body := e.upload("CS F111", data)
	assert.Equal(t, want, body["file_hash"])
}

func navigate(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	return req
}
