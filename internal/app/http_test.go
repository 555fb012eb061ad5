package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sebdah/goldie/v2"

	"ecocivic/api/internal/kv"
)

type unreachableBackend struct {
	*kv.Memory
}

func (unreachableBackend) Ping(context.Context) error {
	return errors.New("connection refused")
}

func newTestServer(t *testing.T, env *testEnv) *HTTPServer {
	t.Helper()
	server := NewHTTPServer(env.service, env.accounts, env.sessions, "*")
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var payload map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("parse response for %s %s: %v body=%s", method, path, err, rr.Body.String())
		}
	}
	return rr, payload
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, newTestEnv(t))
	rr, payload := doJSON(t, server.Handler(), http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK || payload["ok"] != true {
		t.Fatalf("expected ok health, got %d %v", rr.Code, payload)
	}
}

func TestReadyEndpoint(t *testing.T) {
	server := newTestServer(t, newTestEnv(t))
	rr, payload := doJSON(t, server.Handler(), http.MethodGet, "/api/ready", "")
	if rr.Code != http.StatusOK || payload["status"] != "ready" {
		t.Fatalf("expected ready, got %d %v", rr.Code, payload)
	}
}

func TestReadyEndpointStorageDown(t *testing.T) {
	env := newTestEnvWithBackend(t, unreachableBackend{Memory: kv.NewMemory()})
	server := newTestServer(t, env)

	rr, payload := doJSON(t, server.Handler(), http.MethodGet, "/api/ready", "")
	if rr.Code != http.StatusServiceUnavailable || payload["ok"] != false {
		t.Fatalf("expected 503, got %d %v", rr.Code, payload)
	}
	checks, _ := payload["checks"].(map[string]any)
	storage, _ := checks["storage"].(map[string]any)
	if storage["error"] != "connection refused" {
		t.Fatalf("expected storage error in checks, got %v", checks)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	server := newTestServer(t, newTestEnv(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/trees", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" || rr.Header().Get("X-Request-ID") != "req-42" {
		t.Fatalf("unexpected headers %v", rr.Header())
	}
}

func TestSessionFlowOverHTTP(t *testing.T) {
	server := newTestServer(t, newTestEnv(t))
	h := server.Handler()

	rr, payload := doJSON(t, h, http.MethodGet, "/api/auth/me", "")
	if rr.Code != http.StatusOK || payload["authenticated"] != false {
		t.Fatalf("expected signed-out session, got %d %v", rr.Code, payload)
	}

	rr, payload = doJSON(t, h, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"pw","location":"Pune"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", rr.Code, payload)
	}
	user, _ := payload["user"].(map[string]any)
	if user["role"] != "admin" || user["location"] != "Pune" {
		t.Fatalf("unexpected user %v", user)
	}

	rr, payload = doJSON(t, h, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"other"}`)
	if rr.Code != http.StatusConflict || payload["code"] != "DUPLICATE_USERNAME" {
		t.Fatalf("expected duplicate username, got %d %v", rr.Code, payload)
	}

	rr, _ = doJSON(t, h, http.MethodPost, "/api/auth/logout", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected logout 200, got %d", rr.Code)
	}

	rr, payload = doJSON(t, h, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized || payload["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("expected invalid credentials, got %d %v", rr.Code, payload)
	}

	rr, _ = doJSON(t, h, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"pw"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected login 200, got %d", rr.Code)
	}
	_, payload = doJSON(t, h, http.MethodGet, "/api/auth/me", "")
	if payload["authenticated"] != true {
		t.Fatalf("expected signed-in session, got %v", payload)
	}
}

func TestAddTreeWithoutSessionIsUnauthenticated(t *testing.T) {
	server := newTestServer(t, newTestEnv(t))
	rr, payload := doJSON(t, server.Handler(), http.MethodPost, "/api/trees", `{"type":"mango","location":"Park"}`)
	if rr.Code != http.StatusUnauthorized || payload["code"] != "UNAUTHENTICATED" {
		t.Fatalf("expected 401, got %d %v", rr.Code, payload)
	}
}

func TestInvalidBody(t *testing.T) {
	server := newTestServer(t, newTestEnv(t))
	rr, payload := doJSON(t, server.Handler(), http.MethodPost, "/api/auth/register", `{"username":`)
	if rr.Code != http.StatusBadRequest || payload["code"] != "INVALID_BODY" {
		t.Fatalf("expected 400, got %d %v", rr.Code, payload)
	}
}

func TestTreeLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	server := newTestServer(t, env)
	h := server.Handler()

	doJSON(t, h, http.MethodPost, "/api/auth/register", `{"username":"bob","password":"pw"}`)
	rr, payload := doJSON(t, h, http.MethodPost, "/api/trees", `{"type":"mango","location":"Park","photoUrl":"data:image/png;base64,aGVsbG8="}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", rr.Code, payload)
	}
	tree, _ := payload["tree"].(map[string]any)
	treeID, _ := tree["id"].(string)

	rr, payload = doJSON(t, h, http.MethodPost, "/api/trees/"+treeID+"/updates", `{"notes":"sprouted"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", rr.Code, payload)
	}
	updated, _ := payload["tree"].(map[string]any)
	if updated["status"] != "growing" {
		t.Fatalf("expected growing, got %v", updated)
	}

	rr, payload = doJSON(t, h, http.MethodPut, "/api/trees/"+treeID+"/status", `{"status":"planted"}`)
	if rr.Code != http.StatusConflict || payload["code"] != "INVALID_TRANSITION" {
		t.Fatalf("expected invalid transition, got %d %v", rr.Code, payload)
	}

	rr, payload = doJSON(t, h, http.MethodGet, "/api/trees/"+treeID+"/updates", "")
	updates, _ := payload["updates"].([]any)
	if rr.Code != http.StatusOK || len(updates) != 1 {
		t.Fatalf("expected one update, got %d %v", rr.Code, payload)
	}

	rr, payload = doJSON(t, h, http.MethodGet, "/api/trees/missing", "")
	if rr.Code != http.StatusNotFound || payload["error"] != "tree not found" {
		t.Fatalf("expected 404, got %d %v", rr.Code, payload)
	}
}

func TestRoleGating(t *testing.T) {
	env := newTestEnv(t)
	server := newTestServer(t, env)
	h := server.Handler()

	doJSON(t, h, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"pw"}`)
	doJSON(t, h, http.MethodPost, "/api/auth/register", `{"username":"bob","password":"pw"}`)
	_, payload := doJSON(t, h, http.MethodPost, "/api/issues", `{"category":"floodedRoad","description":"water","location":"Bridge"}`)
	issue, _ := payload["issue"].(map[string]any)
	issueID, _ := issue["id"].(string)

	rr, _ := doJSON(t, h, http.MethodPut, "/api/issues/"+issueID+"/status", `{"status":"resolved"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected bob to be forbidden, got %d", rr.Code)
	}
	rr, _ = doJSON(t, h, http.MethodGet, "/api/users", "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected bob to be forbidden from users, got %d", rr.Code)
	}

	doJSON(t, h, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"pw"}`)
	rr, payload = doJSON(t, h, http.MethodPut, "/api/issues/"+issueID+"/status", `{"status":"resolved"}`)
	updated, _ := payload["issue"].(map[string]any)
	if rr.Code != http.StatusOK || updated["status"] != "resolved" {
		t.Fatalf("expected admin to resolve, got %d %v", rr.Code, payload)
	}

	rr, payload = doJSON(t, h, http.MethodGet, "/api/users", "")
	users, _ := payload["users"].([]any)
	if rr.Code != http.StatusOK || len(users) != 2 {
		t.Fatalf("expected two users, got %d %v", rr.Code, payload)
	}

	doJSON(t, h, http.MethodPost, "/api/auth/logout", "")
	rr, payload = doJSON(t, h, http.MethodGet, "/api/users", "")
	if rr.Code != http.StatusUnauthorized || payload["code"] != "UNAUTHENTICATED" {
		t.Fatalf("expected 401 when signed out, got %d %v", rr.Code, payload)
	}
}

func TestLeaderboardPayload(t *testing.T) {
	env := newTestEnv(t)
	server := newTestServer(t, env)
	h := server.Handler()

	doJSON(t, h, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"pw","location":"Pune"}`)
	doJSON(t, h, http.MethodPost, "/api/auth/register", `{"username":"bob","password":"pw"}`)
	_, payload := doJSON(t, h, http.MethodPost, "/api/trees", `{"type":"neem","location":"School"}`)
	tree, _ := payload["tree"].(map[string]any)
	treeID, _ := tree["id"].(string)
	doJSON(t, h, http.MethodPost, "/api/trees/"+treeID+"/updates", `{}`)
	doJSON(t, h, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"pw"}`)
	doJSON(t, h, http.MethodPost, "/api/issues", `{"category":"garbageOverflow","description":"bins full","location":"Market"}`)
	doJSON(t, h, http.MethodPost, "/api/auth/register", `{"username":"carol","password":"pw","location":"Mumbai"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "leaderboard", rr.Body.Bytes())
}
