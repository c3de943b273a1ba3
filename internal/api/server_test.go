package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/chat"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/session"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/testutil"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/tools"
)

// stubAgent implements Agent with a canned response.
type stubAgent struct {
	resp      *chat.Response
	err       error
	panicking bool

	lastSessionID uuid.UUID
	lastQuery     string
}

func (a *stubAgent) Answer(ctx context.Context, sessionID uuid.UUID, query string) (*chat.Response, error) {
	if a.panicking {
		panic("agent exploded")
	}
	a.lastSessionID = sessionID
	a.lastQuery = query
	return a.resp, a.err
}

// stubCatalog implements Catalog.
type stubCatalog struct {
	count  int
	titles []string
	err    error
}

func (c *stubCatalog) CourseCount(ctx context.Context) (int, error) {
	return c.count, c.err
}

func (c *stubCatalog) CourseTitles(ctx context.Context) ([]string, error) {
	return c.titles, c.err
}

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = testutil.DiscardLogger()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewStore(2)
	}
	if cfg.Agent == nil {
		cfg.Agent = &stubAgent{resp: &chat.Response{Answer: "ok"}}
	}
	if cfg.Catalog == nil {
		cfg.Catalog = &stubCatalog{}
	}
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

func postQuery(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestQueryCreatesSession(t *testing.T) {
	agent := &stubAgent{resp: &chat.Response{
		Answer:  "MCP is a protocol.",
		Sources: []tools.Source{{Text: "MCP Course - Lesson 1", Link: "https://example.com/l1"}},
	}}
	srv := newTestServer(t, ServerConfig{Agent: agent})

	rec := postQuery(t, srv, `{"query":"What is MCP?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if resp.Answer != "MCP is a protocol." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Link != "https://example.com/l1" {
		t.Errorf("sources = %+v", resp.Sources)
	}
	if _, err := uuid.Parse(resp.SessionID); err != nil {
		t.Errorf("session_id %q is not a UUID: %v", resp.SessionID, err)
	}
	if agent.lastQuery != "What is MCP?" {
		t.Errorf("agent received query %q", agent.lastQuery)
	}
}

func TestQueryReusesSession(t *testing.T) {
	agent := &stubAgent{resp: &chat.Response{Answer: "ok"}}
	sessions := session.NewStore(2)
	srv := newTestServer(t, ServerConfig{Agent: agent, Sessions: sessions})

	id := sessions.Create()
	rec := postQuery(t, srv, `{"query":"follow-up","session_id":"`+id.String()+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessionID != id.String() {
		t.Errorf("session_id = %q, want %q", resp.SessionID, id)
	}
	if agent.lastSessionID != id {
		t.Errorf("agent received session %v, want %v", agent.lastSessionID, id)
	}
}

func TestQueryEmptySourcesIsArray(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Agent: &stubAgent{resp: &chat.Response{Answer: "ok"}}})

	rec := postQuery(t, srv, `{"query":"q"}`)
	if !strings.Contains(rec.Body.String(), `"sources":[]`) {
		t.Errorf("nil sources not serialized as []: %s", rec.Body.String())
	}
}

func TestQueryValidation(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing query", `{}`},
		{"blank query", `{"query":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := postQuery(t, srv, tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestQueryAgentError(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Agent: &stubAgent{err: errors.New("boom")}})

	rec := postQuery(t, srv, `{"query":"q"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestQueryAgentPanicRecovered(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Agent: &stubAgent{panicking: true}})

	rec := postQuery(t, srv, `{"query":"q"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 from recovery middleware", rec.Code)
	}
}

func TestCourses(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Catalog: &stubCatalog{
		count:  2,
		titles: []string{"Course A", "Course B"},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp coursesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalCourses != 2 || len(resp.CourseTitles) != 2 {
		t.Errorf("response = %+v", resp)
	}
}

func TestCoursesEmptyCatalog(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Catalog: &stubCatalog{}})

	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"course_titles":[]`) {
		t.Errorf("nil titles not serialized as []: %s", rec.Body.String())
	}
}

func TestCoursesCatalogError(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Catalog: &stubCatalog{err: errors.New("db down")}})

	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health body = %s", rec.Body.String())
	}
}

func TestReadyWithoutPool(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, ServerConfig{RateBurst: 2})

	var last int
	for range 5 {
		rec := postQuery(t, srv, `{"query":"q"}`)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status after burst = %d, want 429", last)
	}
}

func TestRateLimitSkipsHealth(t *testing.T) {
	srv := newTestServer(t, ServerConfig{RateBurst: 1})

	// Exhaust the API budget, then verify probes still pass.
	postQuery(t, srv, `{"query":"q"}`)
	postQuery(t, srv, `{"query":"q"}`)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d after rate limit exhausted", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, ServerConfig{CORSOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestCORSUnknownOrigin(t *testing.T) {
	srv := newTestServer(t, ServerConfig{CORSOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin leaked to unknown origin: %q", got)
	}
}

func TestNewServerValidation(t *testing.T) {
	logger := testutil.DiscardLogger()
	sessions := session.NewStore(2)
	agent := &stubAgent{resp: &chat.Response{Answer: "ok"}}
	catalog := &stubCatalog{}

	tests := []struct {
		name string
		cfg  ServerConfig
	}{
		{"missing agent", ServerConfig{Logger: logger, Sessions: sessions, Catalog: catalog}},
		{"missing sessions", ServerConfig{Logger: logger, Agent: agent, Catalog: catalog}},
		{"missing catalog", ServerConfig{Logger: logger, Agent: agent, Sessions: sessions}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewServer(tt.cfg); err == nil {
				t.Error("NewServer() succeeded, want error")
			}
		})
	}
}
