// Package handlers implements the relay's HTTP endpoints.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oremus-labs/ol-game-console/internal/events"
	"github.com/oremus-labs/ol-game-console/internal/logutil"
	"github.com/oremus-labs/ol-game-console/internal/metrics"
	"github.com/oremus-labs/ol-game-console/internal/openapi"
	"github.com/oremus-labs/ol-game-console/internal/queue"
	"github.com/oremus-labs/ol-game-console/internal/stream"
)

const maxEnvelopeBytes = 1 << 20

// Options tune the stream endpoint.
type Options struct {
	Heartbeat   time.Duration
	ReplayLimit int64
	Version     string
	// Ping reports backend health; nil means the relay runs in memory.
	Ping func(ctx context.Context) error
}

// Handler serves the relay API.
type Handler struct {
	bus    *events.Bus
	log    queue.Log
	logger *logutil.Logger
	opts   Options
}

// New creates a new Handler instance.
func New(bus *events.Bus, log queue.Log, logger *logutil.Logger, opts Options) *Handler {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	if opts.ReplayLimit <= 0 {
		opts.ReplayLimit = 1000
	}
	if logger == nil {
		logger = logutil.Default()
	}
	return &Handler{bus: bus, log: log, logger: logger, opts: opts}
}

// Health reports liveness and, with Redis configured, backend reachability.
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{"status": "ok", "subscribers": h.bus.Subscribers()}
	if h.opts.Version != "" {
		body["version"] = h.opts.Version
	}
	if h.opts.Ping == nil {
		body["backend"] = "memory"
		c.JSON(http.StatusOK, body)
		return
	}
	body["backend"] = "redis"
	if err := h.opts.Ping(c.Request.Context()); err != nil {
		body["status"] = "degraded"
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// OpenAPI serves the relay API document, as YAML with ?format=yaml.
func (h *Handler) OpenAPI(c *gin.Context) {
	if c.Query("format") == "yaml" {
		c.Data(http.StatusOK, "application/yaml", openapi.YAML())
		return
	}
	doc, err := openapi.JSON()
	if err != nil {
		h.logger.Error("failed to render openapi document", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render document"})
		return
	}
	c.Data(http.StatusOK, "application/json", doc)
}

// Publish accepts one envelope and fans it out to every stream client.
// Deployment envelopes are logged first so reconnecting clients can replay
// them.
func (h *Handler) Publish(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEnvelopeBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	if len(raw) > maxEnvelopeBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "envelope too large"})
		return
	}

	env, err := stream.DecodeEnvelope(raw)
	if err != nil {
		respondInvalid(c, err)
		return
	}
	if err := validateContent(env); err != nil {
		respondInvalid(c, err)
		return
	}

	// Frames travel as single SSE data lines.
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		respondInvalid(c, err)
		return
	}

	evt := events.Event{Category: env.Category.String(), Data: compact.String()}
	if env.Category == stream.CategoryDeployment {
		id, err := h.log.Append(c.Request.Context(), evt.Data)
		if err != nil {
			h.logger.Error("failed to append to event log", err, nil)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record event"})
			return
		}
		evt.ID = id
	}
	if err := h.bus.Publish(c.Request.Context(), evt); err != nil {
		h.logger.Error("failed to publish event", err, map[string]interface{}{"category": evt.Category})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish event"})
		return
	}
	metrics.ObservePublish(evt.Category)

	resp := gin.H{"category": evt.Category}
	if evt.ID != "" {
		resp["id"] = evt.ID
	}
	c.JSON(http.StatusAccepted, resp)
}

func respondInvalid(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var schemaErr *stream.SchemaError
	if errors.As(err, &schemaErr) {
		body["violations"] = schemaErr.Violations
	}
	c.JSON(http.StatusBadRequest, body)
}

// validateContent applies the sub-event schema of the envelope's category.
// Deployment content is free text.
func validateContent(env stream.Envelope) error {
	var err error
	switch env.Category {
	case stream.CategoryServer:
		_, err = stream.ParseServerEvent(env.Content)
	case stream.CategoryInstance:
		_, err = stream.ParseInstanceEvent(env.Content)
	case stream.CategoryError:
		_, err = stream.ParseErrorEvent(env.Content)
	case stream.CategorySync:
		_, err = stream.ParseSyncEvent(env.Content)
	}
	if err != nil {
		return fmt.Errorf("%s content: %w", env.Category, err)
	}
	return nil
}

// StreamEvents serves the live SSE feed. Deployment frames logged after the
// client's Last-Event-Id are replayed before live frames; live frames the
// replay already covered are skipped.
func (h *Handler) StreamEvents(c *gin.Context) {
	ctx := c.Request.Context()
	lastID := c.GetHeader("Last-Event-Id")
	if lastID == "" {
		lastID = c.Query("lastEventId")
	}

	// Subscribe before reading the log so nothing falls between the two.
	sub, unsubscribe := h.bus.Subscribe(ctx)
	defer unsubscribe()

	clientID := uuid.NewString()
	metrics.RelayClientConnected(1)
	defer metrics.RelayClientConnected(-1)
	h.logger.Info("stream client connected", map[string]interface{}{
		"client":      clientID,
		"lastEventId": lastID,
	})
	defer h.logger.Info("stream client disconnected", map[string]interface{}{"client": clientID})

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	replayedTo := ""
	if lastID != "" {
		entries, err := h.log.After(ctx, lastID, h.opts.ReplayLimit)
		if err != nil {
			h.logger.Warn("skipping replay", map[string]interface{}{
				"client":      clientID,
				"lastEventId": lastID,
				"error":       err.Error(),
			})
		}
		for _, entry := range entries {
			if !writeFrame(c, entry.ID, entry.Data) {
				return
			}
			replayedTo = entry.ID
		}
		metrics.ObserveReplay(len(entries))
	}

	heartbeat := time.NewTicker(h.opts.Heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(c.Writer, ": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if evt.ID != "" && replayedTo != "" && !queue.After(evt.ID, replayedTo) {
				continue
			}
			if !writeFrame(c, evt.ID, evt.Data) {
				return
			}
		}
	}
}

func writeFrame(c *gin.Context, id, data string) bool {
	var buf bytes.Buffer
	if id != "" {
		fmt.Fprintf(&buf, "id: %s\n", id)
	}
	fmt.Fprintf(&buf, "data: %s\n\n", data)
	if _, err := c.Writer.Write(buf.Bytes()); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}
