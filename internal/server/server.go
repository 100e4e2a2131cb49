// Package server serves a directory over HTTP with permissive CORS headers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/f4ah6o/devserve-go/internal/config"
	"golang.org/x/net/netutil"
)

// ErrServerStopped is returned by Serve once the server has already run.
// A Server goes from running to stopped exactly once.
var ErrServerStopped = errors.New("server already stopped")

// Server is a static file server for one root directory.
type Server struct {
	cfg     config.Config
	logger  *log.Logger
	handler http.Handler

	mu   sync.Mutex
	used bool
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets where request lines and server errors are logged.
// The default is the standard logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Server for cfg. cfg is expected to be resolved already.
func New(cfg config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	fs := http.FileServer(http.Dir(cfg.Root))
	s.handler = s.logRequests(CORS(allowMethods(fs)))
	return s
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listen binds the configured address.
func Listen(cfg config.Config) (net.Listener, error) {
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}
	return ln, nil
}

// ListenAndServe binds the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := Listen(s.cfg)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then stops accepting,
// closes ln and waits for in-flight requests. It returns nil after a clean
// shutdown. Serve takes ownership of ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.used {
		s.mu.Unlock()
		ln.Close()
		return ErrServerStopped
	}
	s.used = true
	s.mu.Unlock()

	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}

	srv := &http.Server{
		Handler:  s.handler,
		ErrorLog: s.logger,
	}
	// With a single connection slot, an idle keep-alive connection would
	// hold the slot and starve every other client.
	if s.cfg.MaxConns == 1 {
		srv.SetKeepAlivesEnabled(false)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx := context.Background()
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		s.logger.Printf("%s %q %d", host, r.Method+" "+r.URL.RequestURI()+" "+r.Proto, rec.status)
	})
}
