package web

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cjeanneret/iriscam/internal/debug"
	"github.com/cjeanneret/iriscam/internal/events"
	"github.com/cjeanneret/iriscam/internal/metrics"
)

// Server wraps the HTTP server and handlers. It is a registry transport:
// attach the registry to it before serving.
type Server struct {
	addr           string
	handlers       *Handlers
	allowedOrigins []string
}

// NewServer creates a server for addr. An empty allowedOrigins permits any
// origin.
func NewServer(addr string, handlers *Handlers, allowedOrigins []string) *Server {
	return &Server{
		addr:           addr,
		handlers:       handlers,
		allowedOrigins: allowedOrigins,
	}
}

// StaticFS returns the embedded page assets.
func StaticFS() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("web: static assets missing: " + err.Error())
	}
	return sub
}

// SetStreamHandler registers a channel with the HTTP handlers.
func (s *Server) SetStreamHandler(channel string, h events.StreamHandler) error {
	return s.handlers.SetStreamHandler(channel, h)
}

// Router returns an http.Handler with all routes registered.
func (s *Server) Router() http.Handler {
	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(metrics.Middleware)

	r.Get("/", s.handlers.ServeIndex)
	r.Get("/lenses", s.handlers.HandleLenses)
	r.Post("/shoot", s.handlers.HandleShoot)
	r.Post("/session/{action}", s.handlers.HandleSession)
	r.Get("/events/{channel}", s.handlers.HandleEvents)
	r.Get("/events/{channel}/ws", s.handlers.HandleEventsWS)
	r.Get("/status/stream", s.handlers.HandleStatusStream)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
		// Streams end when ctx does, so Shutdown is not held open by them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
