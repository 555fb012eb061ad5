package app

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"ecocivic/api/internal/badge"
	"ecocivic/api/internal/identity"
	"ecocivic/api/internal/rbac"
	"ecocivic/api/internal/session"
	"ecocivic/api/internal/store"
)

// HTTPServer exposes the services to a single device. Requests under /api
// are handled one at a time since the services take no locks of their own.
type HTTPServer struct {
	service    *Service
	accounts   *identity.Service
	sessions   *session.Context
	corsOrigin string
	logger     *slog.Logger

	router   *mux.Router
	hub      *hub
	upgrader websocket.Upgrader

	mu          sync.Mutex
	unsubscribe func()
	closeOnce   sync.Once
}

func NewHTTPServer(service *Service, accounts *identity.Service, sessions *session.Context, corsOrigin string) *HTTPServer {
	s := &HTTPServer{
		service:    service,
		accounts:   accounts,
		sessions:   sessions,
		corsOrigin: corsOrigin,
		logger:     service.logger,
		router:     mux.NewRouter(),
		hub:        newHub(service.logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: allowOrigin(corsOrigin),
		},
	}
	s.setupRoutes()

	events, unsubscribe := sessions.Subscribe(16)
	s.unsubscribe = unsubscribe
	go s.hub.run()
	go s.hub.forwardSessions(events)
	return s
}

// Close stops the websocket hub and drops every connected client.
func (s *HTTPServer) Close() {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		s.hub.stop()
	})
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(s.router)
}

func (s *HTTPServer) setupRoutes() {
	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc("/api/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.serialize)

	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)

	api.HandleFunc("/trees", s.handleListTrees).Methods(http.MethodGet)
	api.HandleFunc("/trees", s.handleAddTree).Methods(http.MethodPost)
	api.HandleFunc("/trees/{id}", s.handleGetTree).Methods(http.MethodGet)
	api.HandleFunc("/trees/{id}/status", s.handleUpdateTreeStatus).Methods(http.MethodPut)
	api.HandleFunc("/trees/{id}/updates", s.handleListTreeUpdates).Methods(http.MethodGet)
	api.HandleFunc("/trees/{id}/updates", s.handleAddTreeUpdate).Methods(http.MethodPost)

	api.HandleFunc("/issues", s.handleListIssues).Methods(http.MethodGet)
	api.HandleFunc("/issues", s.handleReportIssue).Methods(http.MethodPost)
	api.HandleFunc("/issues/{id}", s.handleGetIssue).Methods(http.MethodGet)
	api.HandleFunc("/issues/{id}/status", s.handleUpdateIssueStatus).Methods(http.MethodPut)

	api.HandleFunc("/challenges", s.handleListChallenges).Methods(http.MethodGet)
	api.HandleFunc("/challenges/{id}/join", s.handleJoinChallenge).Methods(http.MethodPost)

	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	api.HandleFunc("/badges", s.handleBadges).Methods(http.MethodGet)

	api.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/role", s.handleSetRole).Methods(http.MethodPut)

	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
}

func (s *HTTPServer) serialize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"storage": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["storage"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// Session

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body identity.RegisterInput
	if !s.decode(w, r, &body) {
		return
	}
	user, err := s.accounts.Register(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.broadcastLeaderboard(r.Context())
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	user, err := s.accounts.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Logout(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.accounts.CurrentUser(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": user})
}

// Trees

func (s *HTTPServer) handleListTrees(w http.ResponseWriter, r *http.Request) {
	trees, err := s.service.GetTrees(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trees": trees})
}

func (s *HTTPServer) handleAddTree(w http.ResponseWriter, r *http.Request) {
	var body AddTreeInput
	if !s.decode(w, r, &body) {
		return
	}
	tree, err := s.service.AddTree(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.broadcastLeaderboard(r.Context())
	writeJSON(w, http.StatusCreated, map[string]any{"tree": tree})
}

func (s *HTTPServer) handleGetTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.service.GetTree(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tree": tree})
}

func (s *HTTPServer) handleUpdateTreeStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r, rbac.ActionContribute)
	if !ok {
		return
	}
	treeID := mux.Vars(r)["id"]
	var body struct {
		Status store.TreeStatus `json:"status"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	tree, err := s.service.GetTree(r.Context(), treeID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tree.UserID != user.ID && !rbac.Can(rbac.Normalize(string(user.Role)), rbac.ActionModerate) {
		s.forbid(w, r, user, "update_tree_status")
		return
	}
	if err := s.service.UpdateTreeStatus(r.Context(), treeID, body.Status); err != nil {
		s.fail(w, r, err)
		return
	}
	tree, err = s.service.GetTree(r.Context(), treeID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tree": tree})
}

func (s *HTTPServer) handleListTreeUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := s.service.GetTreeUpdates(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": updates})
}

func (s *HTTPServer) handleAddTreeUpdate(w http.ResponseWriter, r *http.Request) {
	var body AddTreeUpdateInput
	if !s.decode(w, r, &body) {
		return
	}
	body.TreeID = mux.Vars(r)["id"]
	update, err := s.service.AddTreeUpdate(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tree, err := s.service.GetTree(r.Context(), body.TreeID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.broadcastLeaderboard(r.Context())
	writeJSON(w, http.StatusCreated, map[string]any{"update": update, "tree": tree})
}

// Issues

func (s *HTTPServer) handleListIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.service.GetIssues(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

func (s *HTTPServer) handleReportIssue(w http.ResponseWriter, r *http.Request) {
	var body ReportIssueInput
	if !s.decode(w, r, &body) {
		return
	}
	issue, err := s.service.ReportIssue(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.broadcastLeaderboard(r.Context())
	writeJSON(w, http.StatusCreated, map[string]any{"issue": issue})
}

func (s *HTTPServer) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.service.GetIssue(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issue": issue})
}

func (s *HTTPServer) handleUpdateIssueStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, rbac.ActionModerate); !ok {
		return
	}
	issueID := mux.Vars(r)["id"]
	var body struct {
		Status store.IssueStatus `json:"status"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.service.UpdateIssueStatus(r.Context(), issueID, body.Status); err != nil {
		s.fail(w, r, err)
		return
	}
	issue, err := s.service.GetIssue(r.Context(), issueID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issue": issue})
}

// Challenges and leaderboard

func (s *HTTPServer) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := s.service.GetChallenges(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"challenges": challenges})
}

func (s *HTTPServer) handleJoinChallenge(w http.ResponseWriter, r *http.Request) {
	if err := s.service.JoinChallenge(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.GetLeaderboard(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

func (s *HTTPServer) handleBadges(w http.ResponseWriter, r *http.Request) {
	catalog := make([]map[string]any, 0, len(badge.All()))
	for _, b := range badge.All() {
		info := b.Info()
		catalog = append(catalog, map[string]any{"id": b, "icon": info.Icon, "name": info.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": catalog})
}

// Users

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, rbac.ActionManageUsers); !ok {
		return
	}
	users, err := s.accounts.ListUsers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *HTTPServer) handleSetRole(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, rbac.ActionManageUsers); !ok {
		return
	}
	userID := mux.Vars(r)["id"]
	var body struct {
		Role store.Role `json:"role"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.accounts.SetRole(r.Context(), userID, body.Role); err != nil {
		s.fail(w, r, err)
		return
	}
	user, err := s.accounts.GetUser(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// authorize resolves the signed-in user and checks the role allows action.
// A signed-out caller gets 401, a signed-in one without the role gets 403.
func (s *HTTPServer) authorize(w http.ResponseWriter, r *http.Request, action rbac.Action) (store.User, bool) {
	user, err := s.accounts.RequireUser(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return store.User{}, false
	}
	if !rbac.Can(rbac.Normalize(string(user.Role)), action) {
		s.forbid(w, r, user, string(action))
		return store.User{}, false
	}
	return user, true
}

// forbid writes a 403 Forbidden response and logs the denial
func (s *HTTPServer) forbid(w http.ResponseWriter, r *http.Request, user store.User, action string) {
	s.logger.Warn("access denied",
		"request_id", requestIDFrom(r.Context()),
		"user_id", user.ID,
		"role", user.Role,
		"action", action,
	)
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", requestIDFrom(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func (s *HTTPServer) broadcastLeaderboard(ctx context.Context) {
	entries, err := s.service.GetLeaderboard(ctx)
	if err != nil {
		s.logger.Error("load leaderboard for broadcast", "error", err)
		return
	}
	s.hub.publish("leaderboard-update", map[string]any{"leaderboard": entries})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writeJSON(writer, http.StatusNoContent, map[string]any{})
		} else {
			next.ServeHTTP(writer, r)
		}

		s.logger.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// allowOrigin admits websocket handshakes from the configured CORS origin.
// A wildcard admits every origin; clients that send no Origin are not browsers.
func allowOrigin(corsOrigin string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return corsOrigin == "*" || origin == "" || origin == corsOrigin
	}
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}
