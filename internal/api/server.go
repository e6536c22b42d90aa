package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oremus-labs/ol-game-console/internal/handlers"
	"github.com/oremus-labs/ol-game-console/internal/logutil"
)

// Options configures the HTTP server wiring.
type Options struct {
	APIToken string
	Logger   *logutil.Logger
}

// Server wraps the Gin engine and associated configuration.
type Server struct {
	engine *gin.Engine
}

// NewServer constructs a Server with all HTTP routes configured.
func NewServer(handler *handlers.Handler, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logutil.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestIDMiddleware(), metricsMiddleware(), requestLogger(opts.Logger))

	engine.GET("/healthz", handler.Health)
	engine.GET("/openapi", handler.OpenAPI)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := engine.Group("/")
	protected.Use(authMiddleware(opts.APIToken))
	protected.GET("/stream", handler.StreamEvents)
	protected.POST("/events", handler.Publish)

	return &Server{engine: engine}
}

// Engine exposes the underlying Gin engine for advanced use (testing, etc.).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start launches the HTTP server on the provided address. Stream responses
// are long-lived, so there is no write timeout.
func (s *Server) Start(addr string, logger *logutil.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("relay server stopped", err, map[string]interface{}{"addr": addr})
		}
	}()
	return srv
}
