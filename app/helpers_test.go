package app

import (
	"bitwise74/course-archive/config"
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/internal/catalog"
	"bitwise74/course-archive/internal/model"
	"bitwise74/course-archive/internal/service"
	"bitwise74/course-archive/internal/session"
	"bitwise74/course-archive/internal/storage"
	"bitwise74/course-archive/internal/testutil"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	relaySecret   = "relay-secret"
	upstreamToken = "hf_token"
	datasetPrefix = "/datasets/archive/resolve/main/"
)

var (
	alice     = &model.Identity{Email: "alice@pilani.bits-pilani.ac.in", Name: "Alice Rao"}
	bob       = &model.Identity{Email: "bob@goa.bits-pilani.ac.in", Name: "Bob"}
	moderator = &model.Identity{Email: "mod@bits-pilani.ac.in", Name: "Mod"}
	outsider  = &model.Identity{Email: "eve@gmail.com", Name: "Eve"}
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeProvider logs in whoever is mapped to the code
type fakeProvider struct {
	users map[string]*model.Identity
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.example/auth?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*model.Identity, error) {
	id, ok := p.users[code]
	if !ok {
		return nil, errors.New("bad code")
	}

	return id, nil
}

type upstreamCall struct {
	Method, Path, Auth, UserAgent string
}

type testEnv struct {
	t        *testing.T
	d        *internal.Deps
	mem      *storage.MemoryStore
	router   *gin.Engine
	sessions *session.Manager
	upstream *httptest.Server

	mu    sync.Mutex
	calls []upstreamCall
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()

	e := &testEnv{t: t, mem: storage.NewMemory()}

	// Plays the private object store: needs the token, leaks provider headers
	e.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.calls = append(e.calls, upstreamCall{r.Method, r.URL.Path, r.Header.Get("Authorization"), r.Header.Get("User-Agent")})
		e.mu.Unlock()

		signed := r.URL.Query().Get("X-Amz-Signature") == "signed"
		if !signed && r.Header.Get("Authorization") != "Bearer "+upstreamToken {
			http.Error(w, "Invalid credentials in Authorization header", http.StatusUnauthorized)
			return
		}

		key, ok := strings.CutPrefix(r.URL.Path, datasetPrefix)
		if !ok {
			http.Error(w, "Repository not found", http.StatusNotFound)
			return
		}

		data, ct, err := e.mem.Get(key)
		if err != nil {
			http.Error(w, "Entry not found: "+key, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", ct)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("ETag", `"abc"`)
		w.Header().Set("X-Linked-Etag", `"sha256-of-lfs-object"`)
		w.Header().Set("X-Linked-Size", strconv.Itoa(len(data)))
		w.Header().Set("X-Amz-Storage-Class", "INTELLIGENT_TIERING")
		w.Header().Set("X-Repo-Commit", "deadbeef")
		w.Header().Set("Set-Cookie", "provider=1")
		w.Write(data)
	}))
	t.Cleanup(e.upstream.Close)

	cfg := &config.Config{
		App:      config.AppConfig{Env: "test", LogLevel: "debug"},
		Host:     config.HostConfig{Port: 8080, CORS: []string{"http://localhost:3000"}},
		Database: config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
		Session:  config.SessionConfig{Secret: "session-secret", TTL: time.Hour, CookieName: "auth_token"},
		Auth: config.AuthConfig{
			Domain:     "bits-pilani.ac.in",
			LoginURL:   "/login",
			Moderators: []string{moderator.Email},
		},
		Storage: config.StorageConfig{Type: "memory"},
		Upstream: config.UpstreamConfig{
			BaseURL:   e.upstream.URL + strings.TrimSuffix(datasetPrefix, "/"),
			Token:     upstreamToken,
			UserAgent: "Course-Archiver-Bot",
			Timeout:   5 * time.Second,
		},
		Relay: config.RelayConfig{Secret: relaySecret},
		Upload: config.UploadConfig{
			MaxSize:      1 << 20,
			AllowedTypes: []string{"application/pdf", "application/zip"},
		},
	}

	conn := testutil.DB(t)
	e.sessions = session.NewManager(cfg.Session, false)
	e.d = &internal.Deps{
		Config:   cfg,
		DB:       conn,
		Catalog:  catalog.New(conn),
		Store:    e.mem,
		Uploader: service.NewUploader(e.mem),
		Sessions: e.sessions,
		Provider: &fakeProvider{users: map[string]*model.Identity{
			"alice-code": alice,
			"eve-code":   outsider,
		}},
		Upstream: &http.Client{Timeout: 5 * time.Second},
	}

	t.Cleanup(e.d.Close)

	e.rebuild()
	return e
}

// rebuild recreates the router after deps were swapped
func (e *testEnv) rebuild() {
	r, err := NewRouter(e.d)
	require.NoError(e.t, err)
	e.router = r
}

func (e *testEnv) upstreamCalls() []upstreamCall {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]upstreamCall(nil), e.calls...)
}

func (e *testEnv) token(id *model.Identity) string {
	tok, err := e.sessions.Issue(id)
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// api sends a JSON request as who (nil for anonymous)
func (e *testEnv) api(method, target string, who *model.Identity, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(who))
	}

	return e.do(req)
}

type relayForm struct {
	CourseID, Year, Semester string
	Filename                 string
	Data                     []byte
}

func (e *testEnv) relay(secret string, f relayForm) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	mw.WriteField("course_id", f.CourseID)
	mw.WriteField("year", f.Year)
	mw.WriteField("semester", f.Semester)

	if f.Filename != "" {
		part, err := mw.CreateFormFile("file", f.Filename)
		require.NoError(e.t, err)
		part.Write(f.Data)
	}
	require.NoError(e.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/relay", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if secret != "" {
		req.Header.Set("secret", secret)
	}

	return e.do(req)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func pdf(text string) []byte {
	return []byte("%PDF-1.4\n" + text + "\n%%EOF\n")
}

// presignStore hands out urls of the fake upstream the way S3 would
type presignStore struct {
	*storage.MemoryStore
	base string

	mu      sync.Mutex
	methods []string
}

func (p *presignStore) PresignRead(_ context.Context, method, key string, ttl time.Duration) (string, error) {
	p.mu.Lock()
	p.methods = append(p.methods, method)
	p.mu.Unlock()

	return p.base + datasetPrefix + (&url.URL{Path: key}).EscapedPath() + "?X-Amz-Expires=" + strconv.Itoa(int(ttl.Seconds())) + "&X-Amz-Signature=signed", nil
}

type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) Put(context.Context, string, io.Reader, int64, string) error {
	return errors.New("disk full")
}
