package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oremus-labs/ol-game-console/internal/logutil"
)

const (
	requestIDKey      = "requestID"
	maxRequestIDBytes = 128
)

// quietPaths are health and scrape endpoints whose successful requests are not logged.
var quietPaths = map[string]bool{"/healthz": true, "/metrics": true}

func requestLogger(logger *logutil.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		if quietPaths[path] && status < http.StatusBadRequest {
			return
		}
		requestID, _ := c.Get(requestIDKey)
		logger.Info("request", map[string]interface{}{
			"method":     c.Request.Method,
			"path":       path,
			"status":     status,
			"duration":   time.Since(start).String(),
			"request_id": requestID,
			"client":     c.ClientIP(),
		})
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" || len(id) > maxRequestIDBytes {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// metricsMiddleware counts every request. Stream responses stay open for the
// life of the client, so only finite requests feed the latency histogram.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		if c.Writer.Header().Get("Content-Type") == "text/event-stream" {
			return
		}
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// authMiddleware accepts the token as a bearer header, an X-API-Key header
// or, for EventSource clients that cannot set headers, a token query value.
func authMiddleware(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return func(c *gin.Context) {
		presented := c.GetHeader("Authorization")
		if strings.HasPrefix(presented, "Bearer ") {
			presented = strings.TrimSpace(strings.TrimPrefix(presented, "Bearer "))
		}
		if presented == "" {
			presented = c.GetHeader("X-API-Key")
		}
		if presented == "" {
			presented = c.Query("token")
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
