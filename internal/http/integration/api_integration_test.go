package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rcalder/taskhub/internal/config"
	"github.com/rcalder/taskhub/internal/domain/task"
	httpx "github.com/rcalder/taskhub/internal/http"
	"github.com/rcalder/taskhub/internal/observability"
	"github.com/rcalder/taskhub/internal/repo/memory"
	"github.com/rcalder/taskhub/internal/session"
)

// These tests exercise the whole HTTP surface against the in-memory
// stores, so they run without postgres or redis.

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := config.Config{
		Env:        "test",
		SessionTTL: time.Hour,
		CacheTTL:   time.Minute,
	}

	registry := prometheus.NewRegistry()
	prom := observability.NewProm(registry)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	okPing := func(ctx context.Context) error { return nil }

	return httpx.NewRouterWithStores(
		log,
		cfg,
		prom,
		registry,
		memory.NewUsersRepo(),
		memory.NewTasksRepo(),
		session.NewMemoryStore(cfg.SessionTTL),
		okPing,
		okPing,
	)
}

func doJSON(r *gin.Engine, method, target, token, body string) *httptest.ResponseRecorder {
	var req *http.Request

	if body != "" {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func register(t *testing.T, r *gin.Engine, username string) {
	t.Helper()

	body := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"hunter2!"}`, username, username)

	w := doJSON(r, http.MethodPost, "/api/register", "", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: got status %d, body=%s", username, w.Code, w.Body.String())
	}
}

func login(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()

	body := fmt.Sprintf(`{"username":%q,"password":"hunter2!"}`, username)

	w := doJSON(r, http.MethodPost, "/api/login", "", body)

	if w.Code != http.StatusOK {
		t.Fatalf("login %s: got status %d, body=%s", username, w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login %s: bad body: %v", username, err)
	}
	if resp.Token == "" {
		t.Fatalf("login %s: empty token", username)
	}

	return resp.Token
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/api/health", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}

	if resp["status"] != "healthy" || resp["database"] != "connected" {
		t.Fatalf("unexpected health payload: %v", resp)
	}
}

func TestRegisterLoginVerifyLogoutFlow(t *testing.T) {
	r := newTestRouter(t)

	register(t, r, "alice")

	// duplicate registration is rejected
	w := doJSON(r, http.MethodPost, "/api/register", "",
		`{"username":"alice","email":"other@example.com","password":"hunter2!"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: got status %d, body=%s", w.Code, w.Body.String())
	}

	// wrong password is a 401, not a 404
	w = doJSON(r, http.MethodPost, "/api/login", "", `{"username":"alice","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: got status %d", w.Code)
	}

	token := login(t, r, "alice")

	w = doJSON(r, http.MethodGet, "/api/verify", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("verify: got status %d, body=%s", w.Code, w.Body.String())
	}

	var verify struct {
		Valid  bool   `json:"valid"`
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &verify); err != nil {
		t.Fatalf("verify: bad body: %v", err)
	}
	if !verify.Valid || verify.UserID == "" {
		t.Fatalf("verify: unexpected payload %+v", verify)
	}

	w = doJSON(r, http.MethodPost, "/api/logout", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("logout: got status %d, body=%s", w.Code, w.Body.String())
	}

	// the token is dead after logout
	w = doJSON(r, http.MethodGet, "/api/verify", token, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("verify after logout: got status %d", w.Code)
	}
}

func TestSecondLoginEvictsFirstSession(t *testing.T) {
	r := newTestRouter(t)

	register(t, r, "bob")

	first := login(t, r, "bob")
	second := login(t, r, "bob")

	if first == second {
		t.Fatalf("expected distinct tokens per login")
	}

	w := doJSON(r, http.MethodGet, "/api/verify", first, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("first token should be evicted, got status %d", w.Code)
	}

	w = doJSON(r, http.MethodGet, "/api/verify", second, "")
	if w.Code != http.StatusOK {
		t.Fatalf("second token should be live, got status %d", w.Code)
	}
}

func TestTaskCRUDFlow(t *testing.T) {
	r := newTestRouter(t)

	register(t, r, "carol")
	token := login(t, r, "carol")

	// empty list is a bare array
	w := doJSON(r, http.MethodGet, "/api/tasks", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: got status %d, body=%s", w.Code, w.Body.String())
	}
	if w.Body.String() == "null" {
		t.Fatalf("empty list must serialize as [], got null")
	}

	// create with defaults
	w = doJSON(r, http.MethodPost, "/api/tasks", token, `{"title":"first"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got status %d, body=%s", w.Code, w.Body.String())
	}

	var created task.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("create: bad body: %v", err)
	}
	if created.ID == "" || created.Category != "general" || created.Completed {
		t.Fatalf("create: unexpected defaults %+v", created)
	}

	// missing title
	w = doJSON(r, http.MethodPost, "/api/tasks", token, `{"description":"no title"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("create without title: got status %d", w.Code)
	}

	// a second task lists before the first
	w = doJSON(r, http.MethodPost, "/api/tasks", token, `{"title":"second","due_date":"2026-09-01","due_time":"09:00"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create second: got status %d, body=%s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/api/tasks", token, "")
	var listed []task.Task
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("list: bad body: %v", err)
	}
	if len(listed) != 2 || listed[0].Title != "second" || listed[1].Title != "first" {
		t.Fatalf("list: want newest first, got %+v", listed)
	}

	// partial update flips only the named field
	w = doJSON(r, http.MethodPut, "/api/tasks/"+created.ID, token, `{"completed":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: got status %d, body=%s", w.Code, w.Body.String())
	}

	var updated task.Task
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("update: bad body: %v", err)
	}
	if !updated.Completed || updated.Title != "first" {
		t.Fatalf("update: unexpected result %+v", updated)
	}

	// malformed id is a 400, unknown id a 404
	w = doJSON(r, http.MethodPut, "/api/tasks/not-a-uuid", token, `{"completed":true}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("update bad id: got status %d", w.Code)
	}

	w = doJSON(r, http.MethodPut, "/api/tasks/7f8c9f5e-0000-4000-8000-000000000000", token, `{"completed":true}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("update unknown id: got status %d", w.Code)
	}

	// delete, then deleting again is a 404
	w = doJSON(r, http.MethodDelete, "/api/tasks/"+created.ID, token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: got status %d, body=%s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodDelete, "/api/tasks/"+created.ID, token, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete twice: got status %d", w.Code)
	}
}

func TestTasksAreScopedToOwner(t *testing.T) {
	r := newTestRouter(t)

	register(t, r, "dave")
	register(t, r, "erin")

	daveTok := login(t, r, "dave")
	erinTok := login(t, r, "erin")

	w := doJSON(r, http.MethodPost, "/api/tasks", daveTok, `{"title":"daves secret"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got status %d", w.Code)
	}

	var created task.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("create: bad body: %v", err)
	}

	// erin cannot see, modify or delete dave's task
	w = doJSON(r, http.MethodGet, "/api/tasks", erinTok, "")
	var erinTasks []task.Task
	if err := json.Unmarshal(w.Body.Bytes(), &erinTasks); err != nil {
		t.Fatalf("list: bad body: %v", err)
	}
	if len(erinTasks) != 0 {
		t.Fatalf("erin sees %d foreign tasks", len(erinTasks))
	}

	w = doJSON(r, http.MethodPut, "/api/tasks/"+created.ID, erinTok, `{"title":"hijacked"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign update: got status %d, want 404", w.Code)
	}

	w = doJSON(r, http.MethodDelete, "/api/tasks/"+created.ID, erinTok, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign delete: got status %d, want 404", w.Code)
	}

	// dave still owns it untouched
	w = doJSON(r, http.MethodGet, "/api/tasks", daveTok, "")
	var daveTasks []task.Task
	if err := json.Unmarshal(w.Body.Bytes(), &daveTasks); err != nil {
		t.Fatalf("list: bad body: %v", err)
	}
	if len(daveTasks) != 1 || daveTasks[0].Title != "daves secret" {
		t.Fatalf("dave's task changed: %+v", daveTasks)
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	r := newTestRouter(t)

	routes := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/verify"},
		{http.MethodPost, "/api/logout"},
		{http.MethodGet, "/api/tasks"},
		{http.MethodPost, "/api/tasks"},
		{http.MethodPut, "/api/tasks/some-id"},
		{http.MethodDelete, "/api/tasks/some-id"},
	}

	for _, rt := range routes {
		w := doJSON(r, rt.method, rt.target, "", "")

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: got status %d, want 401", rt.method, rt.target, w.Code)
		}
	}
}

func TestTaskListConditionalGet(t *testing.T) {
	r := newTestRouter(t)

	register(t, r, "frank")
	token := login(t, r, "frank")

	doJSON(r, http.MethodPost, "/api/tasks", token, `{"title":"stable"}`)

	w := doJSON(r, http.MethodGet, "/api/tasks", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: got status %d", w.Code)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("list response missing ETag header")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("If-None-Match", etag)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Fatalf("conditional list: got status %d, want 304", rec.Code)
	}
}

func TestNonJSONBodyRejected(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/register",
		bytes.NewBufferString("username=alice&password=pw"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("got status %d, want 415", w.Code)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	r := newTestRouter(t)

	doJSON(r, http.MethodGet, "/api/health", "", "")

	w := doJSON(r, http.MethodGet, "/metrics", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("metrics: got status %d", w.Code)
	}

	if !bytes.Contains(w.Body.Bytes(), []byte("taskhub_http_requests_total")) {
		t.Fatalf("metrics output missing request counter")
	}
}
