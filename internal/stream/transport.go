package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// StatusError reports a non-2xx response to the stream request.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET stream failed: %s", e.Status)
}

// Permanent reports whether retrying cannot succeed with the same token.
func (e *StatusError) Permanent() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

var errStreamEnded = errors.New("stream ended by server")

// droppedError marks a failure that happened after the connection was open.
type droppedError struct {
	err error
}

func (e *droppedError) Error() string { return e.err.Error() }
func (e *droppedError) Unwrap() error { return e.err }

// transport maintains one SSE connection and reconnects it with capped
// exponential backoff.
type transport struct {
	client     *http.Client
	url        string
	token      string
	maxDelay   time.Duration
	maxRetries uint64

	cursor  func() string
	onOpen  func()
	onFrame func(Frame)
	onDrop  func(err error)

	mu        sync.Mutex
	baseDelay time.Duration
}

func (t *transport) base() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baseDelay
}

func (t *transport) setBase(d time.Duration) {
	t.mu.Lock()
	t.baseDelay = d
	t.mu.Unlock()
}

// retryDelay converts a server retry hint in milliseconds to a delay within
// [1ms, maxDelay].
func (t *transport) retryDelay(ms int) time.Duration {
	limit := t.maxDelay
	if limit <= 0 {
		limit = defaultMaxDelay
	}
	if ms < 1 {
		ms = 1
	}
	if int64(ms) >= int64(limit/time.Millisecond) {
		return limit
	}
	return time.Duration(ms) * time.Millisecond
}

func (t *transport) backoff() retry.Backoff {
	b := retry.WithCappedDuration(t.maxDelay, retry.NewExponential(t.base()))
	if t.maxRetries > 0 {
		b = retry.WithMaxRetries(t.maxRetries, b)
	}
	return b
}

// run blocks until ctx is cancelled or the give-up policy triggers.
func (t *transport) run(ctx context.Context) error {
	for {
		err := retry.Do(ctx, t.backoff(), func(ctx context.Context) error {
			opened, err := t.connect(ctx)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.Permanent() {
				return err
			}
			t.onDrop(err)
			if opened {
				return &droppedError{err: err}
			}
			return retry.RetryableError(err)
		})

		var dropped *droppedError
		if !errors.As(err, &dropped) {
			return err
		}
		// The connection was healthy; wait one base delay and start a fresh schedule.
		timer := time.NewTimer(t.base())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *transport) connect(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Last-Event-Id", t.cursor())

	resp, err := t.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	t.onOpen()
	err = readFrames(resp.Body, func(f Frame) {
		if f.Retry > 0 {
			t.setBase(t.retryDelay(f.Retry))
		}
		if strings.TrimSpace(f.Data) == "" {
			return
		}
		t.onFrame(f)
	})
	if err == nil {
		err = errStreamEnded
	}
	return true, err
}

// readFrames parses server-sent events from r and calls fn for each one.
// It returns nil when r reaches EOF.
func readFrames(r io.Reader, fn func(Frame)) error {
	reader := bufio.NewReader(r)
	var (
		frame     Frame
		dataLines []string
		hasData   bool
	)

	dispatch := func() {
		if hasData || frame.Retry > 0 {
			frame.Data = strings.Join(dataLines, "\n")
			fn(frame)
		}
		frame = Frame{}
		dataLines = dataLines[:0]
		hasData = false
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// An unterminated event at EOF is discarded.
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			dispatch()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := line, ""
		if idx := strings.IndexByte(line, ':'); idx >= 0 {
			field, value = line[:idx], strings.TrimPrefix(line[idx+1:], " ")
		}
		switch field {
		case "event":
			frame.Event = value
		case "id":
			frame.ID = value
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "retry":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				frame.Retry = n
			}
		}
	}
}
