package app

import (
	"bitwise74/course-archive/internal/service"
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relayResponse struct {
	HFPath  string `json:"hf_path"`
	Path    string `json:"path"`
	SHA256  string `json:"sha256"`
	Size    int64  `json:"size"`
	Existed bool   `json:"existed"`
	Error   string `json:"error"`
}

func validForm(data []byte) relayForm {
	return relayForm{
		CourseID: "cs f111",
		Year:     "2023-24",
		Semester: "1",
		Filename: "Lecture 1.pdf",
		Data:     data,
	}
}

func TestRelayStores(t *testing.T) {
	e := newEnv(t)
	data := pdf("lecture one")

	w := e.relay(relaySecret, validForm(data))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[relayResponse](t, w)
	assert.Equal(t, res.HFPath, res.Path)
	assert.True(t, strings.HasPrefix(res.HFPath, "CS_F111/2023-24/sem1/"), res.HFPath)
	assert.True(t, strings.HasSuffix(res.HFPath, "/Lecture 1.pdf"), res.HFPath)
	assert.Len(t, res.SHA256, 64)
	assert.Equal(t, int64(len(data)), res.Size)
	assert.False(t, res.Existed)

	got, ct, err := e.mem.Get(res.HFPath)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "application/pdf", ct)

	// Same bytes again
	w = e.relay(relaySecret, validForm(data))
	require.Equal(t, http.StatusOK, w.Code)
	again := decode[relayResponse](t, w)
	assert.True(t, again.Existed)
	assert.Equal(t, res.HFPath, again.HFPath)
	assert.Equal(t, 1, e.mem.Len())
}

func TestRelaySecret(t *testing.T) {
	e := newEnv(t)

	for _, secret := range []string{"", "wrong", strings.ToUpper(relaySecret)} {
		w := e.relay(secret, validForm(pdf("x")))
		assert.Equal(t, http.StatusUnauthorized, w.Code, secret)
	}

	assert.Zero(t, e.mem.Len())
}

func TestRelayRejects(t *testing.T) {
	e := newEnv(t)

	noFile := validForm(nil)
	noFile.Filename = ""
	w := e.relay(relaySecret, noFile)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	noCourse := validForm(pdf("x"))
	noCourse.CourseID = " "
	w = e.relay(relaySecret, noCourse)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	badSemester := validForm(pdf("x"))
	badSemester.Semester = "first"
	w = e.relay(relaySecret, badSemester)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	text := validForm([]byte("just some plain text"))
	text.Filename = "notes.txt"
	w = e.relay(relaySecret, text)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	big := validForm(pdf(strings.Repeat("a", 1<<20)))
	w = e.relay(relaySecret, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	huge := validForm(pdf(strings.Repeat("a", 3<<20)))
	w = e.relay(relaySecret, huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	assert.Zero(t, e.mem.Len())
}

func TestRelayTruncatedBody(t *testing.T) {
	e := newEnv(t)

	body := "--b\r\nContent-Disposition: form-data; name=\"course_id\"\r\n\r\nCS F111\r\n" +
		"--b\r\nContent-Disposition: form-data; name=\"file\"; filename=\"a.pdf\"\r\nContent-Type: application/pdf\r\n\r\n%PDF-1.4 half of the fi"
	req := httptest.NewRequest(http.MethodPost, "/api/relay", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	req.Header.Set("secret", relaySecret)

	w := e.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, e.mem.Len(), "a cut off upload is never stored")
}

func TestRelayStoreFailure(t *testing.T) {
	e := newEnv(t)
	e.d.Uploader = service.NewUploader(failingStore{e.mem})
	e.rebuild()

	w := e.relay(relaySecret, validForm(pdf("x")))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	res := decode[relayResponse](t, w)
	assert.Equal(t, "Upload to storage failed", res.Error)
	assert.NotContains(t, w.Body.String(), "disk full")
}

func TestRelayDelete(t *testing.T) {
	e := newEnv(t)

	w := e.relay(relaySecret, validForm(pdf("x")))
	require.Equal(t, http.StatusOK, w.Code)
	path := decode[relayResponse](t, w).HFPath

	req := httptest.NewRequest(http.MethodDelete, "/api/relay?path="+strings.ReplaceAll(path, " ", "%20"), nil)
	w = e.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, e.mem.Len())

	req = httptest.NewRequest(http.MethodDelete, "/api/relay?path=../x", nil)
	req.Header.Set("secret", relaySecret)
	w = e.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/relay?path="+strings.ReplaceAll(path, " ", "%20"), nil)
	req.Header.Set("secret", relaySecret)
	w = e.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, e.mem.Len())
}

func TestRelayControlCharacterName(t *testing.T) {
	e := newEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("course_id", "CS F111")
	mw.WriteField("year", "2023")
	mw.WriteField("semester", "1")

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename*=UTF-8''a%00b%01.pdf`)
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	part.Write(pdf("control characters"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/relay", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("secret", relaySecret)

	w := e.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[relayResponse](t, w)
	assert.True(t, strings.HasSuffix(res.HFPath, "/ab.pdf"), res.HFPath)

	// The key handed out is one the other routes accept
	w = e.api(http.MethodGet, "/api/files?path="+url.QueryEscape(res.HFPath), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	del := httptest.NewRequest(http.MethodDelete, "/api/relay?path="+url.QueryEscape(res.HFPath), nil)
	del.Header.Set("secret", relaySecret)
	w = e.do(del)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, e.mem.Len())
}

func TestRelayDeleteKeepsReferencedFile(t *testing.T) {
	e := newEnv(t)

	body := e.upload("CS F111", pdf("listed"))
	w := e.api(http.MethodPost, "/api/resources", alice, body)
	require.Equal(t, http.StatusCreated, w.Code)

	del := httptest.NewRequest(http.MethodDelete, "/api/relay?path="+url.QueryEscape(body["hf_path"].(string)), nil)
	del.Header.Set("secret", relaySecret)
	w = e.do(del)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, e.mem.Len())

	// Still downloadable
	w = e.api(http.MethodGet, "/api/files?path="+url.QueryEscape(body["hf_path"].(string)), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
