package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"numa/internal/app"
	"numa/internal/config"
	"numa/internal/domain"
	"numa/internal/engine"
	"numa/internal/engine/auth"
	"numa/internal/mockbackend"
	"numa/internal/view"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Store  *mockbackend.Store
	client *http.Client
}

func (s *testServer) Client() *http.Client { return s.client }

type serverOptions struct {
	auth       AuthConfig
	backendURL string
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	store := mockbackend.NewStore()
	store.Seed()
	backend := httptest.NewServer(mockbackend.Handler(store, nil))
	t.Cleanup(backend.Close)

	cfg := config.Default()
	cfg.Backend.BaseURL = backend.URL + "/api"
	if opts.backendURL != "" {
		cfg.Backend.BaseURL = opts.backendURL
	}
	journal, err := app.OpenJournal(context.Background(), t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	e := engine.New(cfg, journal, logger)
	e.Metrics = engine.NewMetrics(reg)
	handler, err := New(Config{Engine: e, BasePath: "/v1/console", Auth: opts.auth, Gatherer: reg, Logger: logger})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{URL: srv.URL, Store: store, client: srv.Client()}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env.Error.Code
}

func asUser(id string) map[string]string {
	return map[string]string{"X-User-Id": id}
}

func TestRequirementWorkflowOverHTTP(t *testing.T) {
	srv := newTestServer(t, serverOptions{auth: AuthConfig{AllowLegacyUserHeader: true}})
	base := srv.URL + "/v1/console"
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, base+"/requirements/1/confirm", nil, asUser("1"))
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "not_permitted_in_current_status" {
		t.Fatalf("confirm pending: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/requirements/1/assign", map[string]any{"assigned_to": ""}, asUser("1"))
	if res.StatusCode != http.StatusUnprocessableEntity || errorCode(t, data) != "missing_required_field" {
		t.Fatalf("assign without user: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/requirements/1/assign", map[string]any{"assigned_to": "2"}, asUser("1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assign status %d: %s", res.StatusCode, string(data))
	}
	var req domain.Requirement
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("unmarshal requirement: %v", err)
	}
	if req.Status != domain.RequirementClarifying {
		t.Fatalf("status=%s", req.Status)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/requirements/1", nil, asUser("2"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("detail status %d: %s", res.StatusCode, string(data))
	}
	var detail view.RequirementDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if detail.Assignee.Label != "2: bob" || len(detail.Actions) != 2 || !detail.Questions.IsOwner {
		t.Fatalf("unexpected detail %+v", detail)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/requirements/1/clarify", nil, asUser("2"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("clarify status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/requirements/1/confirm", nil, asUser("2"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("confirm status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/journal?limit=2", nil, asUser("2"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("journal status %d: %s", res.StatusCode, string(data))
	}
	var page JournalPage
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal journal: %v", err)
	}
	if len(page.Items) != 2 || page.NextCursor == "" || page.Items[0].Type != "requirement.confirm" {
		t.Fatalf("unexpected journal page %+v", page)
	}
	if page.Items[0].RequestID == "" {
		t.Fatalf("journal entry missing request id")
	}
}

func TestQuestionEndpoints(t *testing.T) {
	srv := newTestServer(t, serverOptions{auth: AuthConfig{AllowLegacyUserHeader: true}})
	base := srv.URL + "/v1/console"
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, base+"/questions/requirement/2", map[string]any{"content": "Which rounding?"}, asUser("1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ask status %d: %s", res.StatusCode, string(data))
	}
	var q domain.Question
	if err := json.Unmarshal(data, &q); err != nil {
		t.Fatalf("unmarshal question: %v", err)
	}
	id := q.ID

	res, data = doJSON(t, client, http.MethodPost, base+"/questions/requirement/"+itoa(id)+"/clarify", nil, asUser("2"))
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "not_yet_answered" {
		t.Fatalf("clarify open: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/questions/requirement/"+itoa(id)+"/answer", map[string]any{"answer": "half-even"}, asUser("1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("answer status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/questions/requirement/"+itoa(id)+"/clarify", nil, asUser("1"))
	if res.StatusCode != http.StatusForbidden || errorCode(t, data) != "not_owner" {
		t.Fatalf("clarify by non-owner: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/questions/requirement/"+itoa(id)+"/clarify", nil, asUser("2"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("clarify status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/questions/requirement/2", nil, asUser("2"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("panel status %d: %s", res.StatusCode, string(data))
	}
	if !strings.Contains(string(data), `"clarified":1`) {
		t.Fatalf("unexpected panel %s", string(data))
	}
}

func TestBackendErrorsPassThrough(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/console/requirements/999", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	if !strings.Contains(string(data), "Requirement not found") {
		t.Fatalf("missing backend detail: %s", string(data))
	}

	down := newTestServer(t, serverOptions{backendURL: "http://127.0.0.1:1/api"})
	res, data = doJSON(t, down.Client(), http.MethodGet, down.URL+"/v1/console/home", nil, nil)
	if res.StatusCode != http.StatusBadGateway || errorCode(t, data) != "backend_unreachable" {
		t.Fatalf("unreachable backend: %d %s", res.StatusCode, string(data))
	}
}

func TestAnonymousMutationRejected(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/console/requirements/1/assign", map[string]any{"assigned_to": "2"}, nil)
	if res.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(string(data), "acting_user_id") {
		t.Fatalf("anonymous assign: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/console/requirements/1/assign", map[string]any{"assigned_to": "2"}, asUser("1"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("legacy header must be ignored when disabled: %d %s", res.StatusCode, string(data))
	}
}

func TestJWTAuth(t *testing.T) {
	srv := newTestServer(t, serverOptions{auth: AuthConfig{JWTSecret: testSecret}})
	base := srv.URL + "/v1/console"
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, base+"/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health must stay open, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, base+"/home", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, base+"/home", nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}

	res, data := doJSON(t, client, http.MethodPost, base+"/auth/dev/token", map[string]any{"user_id": 2, "name": "bob"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("token status %d: %s", res.StatusCode, string(data))
	}
	var tok DevTokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	headers := map[string]string{"Authorization": "Bearer " + tok.Token}
	res, data = doJSON(t, client, http.MethodGet, base+"/me", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me SessionResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.UserID != 2 || me.Source != auth.SourceJWT {
		t.Fatalf("unexpected session %+v", me)
	}

	expired, err := auth.IssueToken(testSecret, 2, "bob", time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	res, _ = doJSON(t, client, http.MethodGet, base+"/me", nil, map[string]string{"Authorization": "Bearer " + expired})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired token accepted: %d", res.StatusCode)
	}
}

func TestFallbackSession(t *testing.T) {
	srv := newTestServer(t, serverOptions{auth: AuthConfig{Fallback: auth.Session{UserID: 1, Source: auth.SourceConfig}}})
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/console/me", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), `"user_id":1`) {
		t.Fatalf("fallback session: %d %s", res.StatusCode, string(data))
	}
}

func TestMetricsAndOpenAPI(t *testing.T) {
	srv := newTestServer(t, serverOptions{auth: AuthConfig{AllowLegacyUserHeader: true}})
	client := srv.Client()
	doJSON(t, client, http.MethodPost, srv.URL+"/v1/console/requirements/1/confirm", nil, asUser("1"))

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/metrics", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", res.StatusCode)
	}
	if !strings.Contains(string(data), `numa_console_actions_total{outcome="rejected",type="requirement.confirm"} 1`) {
		t.Fatalf("action counter missing:\n%s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/console/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
	var spec map[string]any
	if err := json.Unmarshal(data, &spec); err != nil {
		t.Fatalf("unmarshal openapi: %v", err)
	}
	paths, _ := spec["paths"].(map[string]any)
	if _, ok := paths["/v1/console/requirements/{id}/assign"]; !ok {
		t.Fatalf("assign operation missing from spec")
	}
}

func TestDocsAndOpenAPIServedConcurrently(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+DocsPath, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("docs status %d", res.StatusCode)
	}
	if !strings.Contains(string(data), "/v1/console/openapi.json") {
		t.Fatalf("docs page does not point at the spec:\n%s", string(data))
	}

	var wg sync.WaitGroup
	bodies := make([][]byte, 8)
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := client.Get(srv.URL + "/v1/console/openapi.json")
			if err != nil {
				t.Errorf("get openapi: %v", err)
				return
			}
			defer res.Body.Close()
			if res.StatusCode != http.StatusOK {
				t.Errorf("openapi status %d", res.StatusCode)
			}
			bodies[i], _ = io.ReadAll(res.Body)
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(bodies); i++ {
		if !bytes.Equal(bodies[0], bodies[i]) {
			t.Fatalf("openapi document %d differs from the first", i)
		}
	}
	if len(bodies[0]) == 0 {
		t.Fatalf("empty openapi document")
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
