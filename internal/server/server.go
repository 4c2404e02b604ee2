// Package server is the plantlog HTTP front end: the route table, the form
// schemas and the handlers that turn requests into store calls and rendered
// pages.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/plantlog/internal/logging"
	"github.com/conneroisu/plantlog/internal/middleware"
	"github.com/conneroisu/plantlog/internal/renderer"
	"github.com/conneroisu/plantlog/internal/store"
	"github.com/conneroisu/plantlog/internal/websocket"
)

// Options carries the dependencies a Server is built from.
type Options struct {
	// Addr is the host:port to listen on.
	Addr     string
	Store    store.Store
	Renderer *renderer.Renderer
	Logger   logging.Logger
	// Hub enables the /ws live-reload endpoint when set.
	Hub *websocket.Hub
}

// Server serves the plant pages. Handlers share no mutable state; the store,
// renderer and logger are injected at construction.
type Server struct {
	addr     string
	store    store.Store
	renderer *renderer.Renderer
	hub      *websocket.Hub
	logger   logging.Logger
	handler  http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	closed     bool
	ready      chan struct{}
	readyOnce  sync.Once
}

// New validates opts and builds the route table.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if opts.Renderer == nil {
		return nil, errors.New("server: renderer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &Server{
		addr:     opts.Addr,
		store:    opts.Store,
		renderer: opts.Renderer,
		hub:      opts.Hub,
		logger:   logger.WithComponent("server"),
		ready:    make(chan struct{}),
	}
	s.handler = middleware.NewChain(
		middleware.RequestID(),
		middleware.AccessLog(logger),
		middleware.Recover(logger),
	).Then(s.routes())
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleListPlants)
	mux.HandleFunc("GET /about", s.handleAbout)
	mux.HandleFunc("GET /create", s.handleCreateForm)
	mux.HandleFunc("POST /create", s.handleCreatePlant)
	mux.HandleFunc("GET /plant/{plant_id}", s.handlePlantDetail)
	mux.HandleFunc("POST /harvest/{plant_id}", s.handleLogHarvest)
	mux.HandleFunc("GET /edit/{plant_id}", s.handleEditForm)
	mux.HandleFunc("POST /edit/{plant_id}", s.handleEditPlant)
	mux.HandleFunc("POST /delete/{plant_id}", s.handleDeletePlant)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(renderer.StaticFS())))
	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}
	mux.HandleFunc("/", s.handleNotFound)

	return mux
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until Shutdown. It
// returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ln.Close()
	}
	s.httpServer = srv
	s.listener = ln
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	s.logger.Info(ctx, "listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Ready is closed once Start is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address once Start is listening, or the configured
// address before that.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown stops accepting connections, disconnects live-reload clients and
// waits for in-flight requests until ctx expires. A Start that has not
// begun listening yet returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}

	s.mu.Lock()
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info(ctx, "shutting down")
	return srv.Shutdown(ctx)
}
