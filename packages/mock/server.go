// Package mock provides a stand-in for the demo users REST API so the
// pipeline can be exercised without network access.
package mock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Server is the mock users API
type Server struct {
	router  *Router
	port    int
	delay   time.Duration
	verbose bool
	logger  *slog.Logger

	mu     sync.RWMutex
	users  []User
	tokens map[string]bool
}

// Option is a functional option for Server
type Option func(*Server)

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithVerbose enables verbose logging
func WithVerbose(verbose bool) Option {
	return func(s *Server) {
		s.verbose = verbose
	}
}

// WithLogger sets the logger used for startup and per-request lines.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new mock server
func NewServer(opts ...Option) *Server {
	s := &Server{
		router: NewRouter(),
		port:   3000,
		logger: slog.Default().With("subsystem", "mock"),
		users:  seedUsers(),
		tokens: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Handle(http.MethodGet, "/api/users", s.listUsers)
	s.router.Handle(http.MethodPost, "/api/users", s.createUser)
	s.router.Handle(http.MethodGet, "/api/users/{{id}}", s.getUser)
	s.router.Handle(http.MethodPut, "/api/users/{{id}}", s.updateUser)
	s.router.Handle(http.MethodPatch, "/api/users/{{id}}", s.updateUser)
	s.router.Handle(http.MethodDelete, "/api/users/{{id}}", s.deleteUser)
	s.router.Handle(http.MethodPost, "/api/login", s.login)
	s.router.Handle(http.MethodGet, "/api/protected", s.protected)
}

// Routes returns all registered routes
func (s *Server) Routes() []*Route {
	return s.router.Routes()
}

// Handler returns the server's routes as an http.Handler.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

// Start starts the mock server
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext starts the server with context for graceful shutdown
func (s *Server) StartWithContext(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("mock server starting", "addr", ln.Addr().String(), "routes", len(s.router.Routes()))
	if s.verbose {
		for _, route := range s.router.Routes() {
			s.logger.Info("route", "method", route.Method, "path", route.Pattern)
		}
	}

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	delay := s.delay
	if raw := r.URL.Query().Get("delay"); raw != "" {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs > 0 {
			delay = time.Duration(secs * float64(time.Second))
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("X-Request-Id", uuid.NewString())

	route, params, allowed := s.router.Match(r.Method, r.URL.Path)
	if route == nil {
		status := http.StatusNotFound
		if len(allowed) > 0 {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
			status = http.StatusMethodNotAllowed
		}
		writeJSON(w, status, map[string]any{})
		s.logRequest(r, status, start)
		return
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	route.Handler(rec, r, params)
	s.logRequest(r, rec.status, start)
}

func (s *Server) logRequest(r *http.Request, status int, start time.Time) {
	if !s.verbose {
		return
	}
	s.logger.Info("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration", time.Since(start),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
