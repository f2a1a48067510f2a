package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rahul/workbench/internal/agent"
	"github.com/rahul/workbench/internal/observability"
	"github.com/rahul/workbench/internal/tools"
	"github.com/rahul/workbench/pkg/config"
	"golang.org/x/time/rate"
)

const maxBodySize = 10 << 20 // 10 MB

// Server is the HTTP surface of the workbench.
type Server struct {
	Manager   *agent.Manager
	Auth      config.AuthConfig
	Workspace *tools.Workspace
	Logger    *observability.Logger
	Status    *observability.SystemStatus
	limiter   *userLimiter
}

func NewServer(manager *agent.Manager, cfg *config.Config, logger *observability.Logger) *Server {
	return &Server{
		Manager:   manager,
		Auth:      cfg.Auth,
		Workspace: tools.NewWorkspace(cfg.App.Workspace),
		Logger:    logger,
		Status:    observability.Global(),
		limiter:   newUserLimiter(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst),
	}
}

// Handler returns the routed handler wrapped in the middleware chain:
// recovery → access log → body size → auth → rate limit → mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /integrations", s.handleIntegrations)
	mux.HandleFunc("POST /run-plan", s.handleRunPlan)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /plans", s.handleListPlans)
	mux.HandleFunc("POST /plans/preview", s.handlePreview)
	mux.HandleFunc("GET /plans/{id}", s.handleGetPlan)
	mux.HandleFunc("POST /plans/{id}/review", s.handleReview)
	mux.HandleFunc("POST /plans/{id}/rollback", s.handleRollback)
	mux.HandleFunc("POST /plans/{id}/continue", s.handleContinue)

	var h http.Handler = mux
	h = s.rateLimitMiddleware(h)
	h = s.authMiddleware(h)
	h = bodySizeMiddleware(h)
	h = s.accessLogMiddleware(h)
	return recoveryMiddleware(h)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("http server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// --- Middleware ---

type ctxKey struct{}

func userFrom(r *http.Request) agent.User {
	u, _ := r.Context().Value(ctxKey{}).(agent.User)
	return u
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		ident, known := s.Auth.Tokens[strings.TrimSpace(token)]
		if !ok || !known || ident.Username == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user := agent.User{Username: ident.Username, Role: ident.Role}
		if rec, ok := w.(*statusRecorder); ok {
			rec.user = user.Username
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r)
		if user.Username != "" && s.limiter != nil && !s.limiter.get(user.Username).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	user   string
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.Logger.LogHTTP(rec.user, r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				log.Printf("http handler panic on %s: %v\n%s", r.URL.Path, rv, buf[:n])
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func bodySizeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// userLimiter keeps one token bucket per username.
type userLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newUserLimiter(limit rate.Limit, burst int) *userLimiter {
	return &userLimiter{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (u *userLimiter) get(username string) *rate.Limiter {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.limiters[username]
	if !ok {
		l = rate.NewLimiter(u.limit, u.burst)
		u.limiters[username] = l
	}
	return l
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.Status
	if status == nil {
		status = observability.Global()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"system": status.Snapshot(),
	})
}

func (s *Server) handleIntegrations(w http.ResponseWriter, r *http.Request) {
	tool, ok := s.Manager.Registry.Get(tools.ToolListIntegration)
	if !ok {
		writeError(w, http.StatusNotFound, "integration listing not available")
		return
	}
	res, err := tool.Execute(r.Context(), tools.Input{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list integrations")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRunPlan(w http.ResponseWriter, r *http.Request) {
	var req agent.Request
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.Manager.RunPlan(r.Context(), req, userFrom(r))
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req agent.Request
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.Manager.Preview(req, userFrom(r)))
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	states, err := s.Manager.ListPlans(r.Context(), userFrom(r))
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	st, err := s.Manager.GetPlan(r.Context(), r.PathValue("id"), userFrom(r))
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Approved bool   `json:"approved"`
		Reason   string `json:"reason"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	d := agent.Decision{Approved: body.Approved, Reason: body.Reason}
	res, err := s.Manager.Review(r.Context(), r.PathValue("id"), userFrom(r), d)
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Step *int `json:"step"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Step == nil {
		writeError(w, http.StatusBadRequest, "step is required")
		return
	}
	res, err := s.Manager.Rollback(r.Context(), r.PathValue("id"), userFrom(r), *body.Step)
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	res, err := s.Manager.Continue(r.Context(), r.PathValue("id"), userFrom(r))
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxBodySize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	rel, n, err := s.Workspace.Save("uploads", header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"filename":  header.Filename,
		"file_path": rel,
		"size":      n,
	})
}

// --- Helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// writeAgentError maps manager errors to HTTP statuses. Anything that is not
// a known client error is a failed run and gets a generic message.
func (s *Server) writeAgentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agent.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "plan not found")
	case errors.Is(err, agent.ErrReviewerNotAllowed):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, agent.ErrUnresolvedTools), errors.Is(err, agent.ErrInvalidRollback):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, agent.ErrNotAwaitingReview), errors.Is(err, agent.ErrNotRolledBack):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "plan execution failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
