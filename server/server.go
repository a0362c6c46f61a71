package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/net/netutil"

	"github.com/kbukum/streamkit/delivery"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/resilience"
	"github.com/kbukum/streamkit/server/endpoint"
	"github.com/kbukum/streamkit/server/middleware"
)

// Server is an HTTP server backed by Gin that delivers streaming routes
// through a delivery.Controller. HTTP/2 cleartext is accepted alongside
// HTTP/1.1.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	mux        *http.ServeMux
	handler    http.Handler
	controller *delivery.Controller
	streams    *resilience.Bulkhead
	config     Config
	log        *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server. cfg is used as given; call ApplyDefaults first.
// A nil controller gets one with default settings.
func New(cfg Config, controller *delivery.Controller, log *logger.Logger) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("server")
	if controller == nil {
		controller = delivery.New(delivery.Config{}, delivery.WithLogger(log))
	}

	engine := gin.New()
	mux := http.NewServeMux()
	mux.Handle("/", engine)

	s := &Server{
		engine:     engine,
		mux:        mux,
		handler:    mux,
		controller: controller,
		config:     cfg,
		log:        log,
	}
	if cfg.MaxStreams > 0 {
		s.streams = resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "stream limiter",
			MaxConcurrent: cfg.MaxStreams,
			MaxWait:       cfg.StreamWaitTimeout,
			OnReject: func(name string, err error) {
				log.Warn("Stream rejected", map[string]interface{}{
					"limiter":         name,
					logger.FieldError: err.Error(),
				})
			},
		})
	}

	h2s := &http2.Server{
		IdleTimeout: cfg.IdleTimeout,
	}
	if cfg.MaxStreams > 0 {
		h2s.MaxConcurrentStreams = uint32(cfg.MaxStreams)
	}
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           h2c.NewHandler(http.HandlerFunc(s.serveHTTP), h2s),
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Handler returns the root handler including middleware and h2c support.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// GinEngine returns the underlying Gin engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Controller returns the delivery controller used by streaming routes.
func (s *Server) Controller() *delivery.Controller {
	return s.controller
}

// Streams returns the bulkhead limiting concurrent streams, or nil when unlimited.
func (s *Server) Streams() *resilience.Bulkhead {
	return s.streams
}

// Handle mounts an http.Handler beside Gin on the root mux.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	s.log.Debug("Handler mounted", map[string]interface{}{
		"pattern": pattern,
	})
}

// Use wraps the root handler with extra middleware, outermost last.
func (s *Server) Use(mw ...middleware.Middleware) {
	s.handler = middleware.Chain(mw...)(s.handler)
}

// ApplyMiddleware installs the standard middleware stack: recovery,
// request ID, CORS, body size limit and request logging.
func (s *Server) ApplyMiddleware() {
	s.Use(
		middleware.Recovery(s.log),
		middleware.RequestID(),
		middleware.CORS(s.config.CORS),
		middleware.BodySizeLimit(s.config.MaxBodySize),
		middleware.RequestLogger(s.log),
	)
}

// RegisterDefaultEndpoints registers /health, /live, /ready, /version and /metrics.
// A nil metrics handler serves runtime statistics instead of Prometheus.
func (s *Server) RegisterDefaultEndpoints(serviceName string, checker endpoint.HealthChecker, metrics http.Handler) {
	s.engine.GET("/health", endpoint.Health(serviceName, checker))
	s.engine.GET("/live", endpoint.Liveness(serviceName))
	s.engine.GET("/ready", endpoint.Readiness(serviceName, checker))
	s.engine.GET("/version", endpoint.Version(serviceName))
	s.engine.GET("/metrics", endpoint.Metrics(metrics))
}

// OnShutdown registers fn to run when Stop begins. Use it to complete
// long-lived streams so graceful shutdown does not wait on them.
func (s *Server) OnShutdown(fn func()) {
	s.httpServer.RegisterOnShutdown(fn)
}

// Start binds the port and begins serving. It returns once the listener is
// bound; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("Starting HTTP server", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	if s.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConnections)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.log.Error("Server error", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
	}()

	s.log.Info("HTTP server started", map[string]interface{}{
		"addr":            ln.Addr().String(),
		"max_connections": s.config.MaxConnections,
		"max_streams":     s.config.MaxStreams,
	})
	return nil
}

// Stop shuts the server down gracefully. Connections still busy when
// ShutdownTimeout elapses are closed.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("Graceful shutdown incomplete, closing connections", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		if cerr := s.httpServer.Close(); cerr != nil {
			return fmt.Errorf("server close error: %w", cerr)
		}
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.log.Info("HTTP server shut down successfully")
	return nil
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Listening reports whether Start has bound the listener.
func (s *Server) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}
