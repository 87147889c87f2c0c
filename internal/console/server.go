// Package console serves the admin HTTP API: worker lifecycle control, the
// audit collector endpoint workers forward to, and log queries.
package console

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/xdg/telecommand/internal/clog"
	"github.com/xdg/telecommand/internal/collector"
	"github.com/xdg/telecommand/internal/supervisor"
)

// Roles a bearer token can carry.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// Controller runs the worker. *supervisor.Supervisor implements it.
type Controller interface {
	Start() supervisor.Result
	Stop() supervisor.Result
	Restart() supervisor.Result
	Status() supervisor.Result
}

// LogStore persists forwarded audit records. *collector.Store implements it.
type LogStore interface {
	Insert(ctx context.Context, l collector.Log) (int64, error)
	List(ctx context.Context, page int) (collector.Page, error)
	Get(ctx context.Context, id int64) (collector.Log, error)
	Stats(ctx context.Context) (collector.Stats, error)
	Principals(ctx context.Context) ([]collector.Principal, error)
}

type identity struct {
	Name string
	Role string
}

// Server is the console HTTP API.
type Server struct {
	// Addr is the address to listen on.
	Addr string

	// CollectorToken, when set, must accompany POST /api/log as a bearer token.
	CollectorToken string

	worker Controller
	logs   LogStore
	tokens map[string]identity

	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
	running  bool
}

// NewServer returns a Server for addr. Grant tokens before calling Start.
func NewServer(addr string, worker Controller, logs LogStore) *Server {
	return &Server{
		Addr:   addr,
		worker: worker,
		logs:   logs,
		tokens: make(map[string]identity),
	}
}

// Grant allows token to act as name with role.
func (s *Server) Grant(token, name, role string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if role != RoleAdmin && role != RoleViewer {
		return fmt.Errorf("unknown role %q", role)
	}
	s.tokens[token] = identity{Name: name, Role: role}
	return nil
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/healthz", s.handleHealth)

	router.GET("/api/worker/status", s.require(RoleViewer, s.handleWorkerStatus))
	router.POST("/api/worker/start", s.require(RoleAdmin, s.handleWorkerAction(Controller.Start)))
	router.POST("/api/worker/stop", s.require(RoleAdmin, s.handleWorkerAction(Controller.Stop)))
	router.POST("/api/worker/restart", s.require(RoleAdmin, s.handleWorkerAction(Controller.Restart)))

	router.POST("/api/log", s.handleIngest)
	router.GET("/api/logs", s.require(RoleViewer, s.handleListLogs))
	router.GET("/api/logs/:id", s.require(RoleViewer, s.handleGetLog))
	router.GET("/api/stats", s.require(RoleViewer, s.handleStats))
	router.GET("/api/principals", s.require(RoleViewer, s.handlePrincipals))

	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		clog.Error("console: panic serving %s %s: %v", r.Method, r.URL.Path, v)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
	return router
}

// Start begins accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("console already running")
	}

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		ErrorLog:          log.New(clog.Writer(clog.LevelWarn), "", 0),
	}
	s.running = true

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			clog.Error("console: serve: %v", err)
		}
	}()

	clog.Info("console: listening on %s", listener.Addr())
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	return s.server.Shutdown(ctx)
}

// ListenAddr returns the bound address, or "" before Start.
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
