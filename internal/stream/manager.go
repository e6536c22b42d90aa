package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oremus-labs/ol-game-console/internal/logutil"
	"github.com/oremus-labs/ol-game-console/internal/metrics"
)

var (
	// ErrAlreadyListening is returned by Listen while a channel is running.
	ErrAlreadyListening = errors.New("stream: already listening")
	// ErrAborted is returned by Listen after Abort.
	ErrAborted = errors.New("stream: aborted")
	// ErrClosed is returned by Listen once the channel has stopped; a
	// Manager runs one channel in its lifetime.
	ErrClosed = errors.New("stream: closed")
)

const (
	defaultPath      = "/stream"
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 30 * time.Second
)

// Options configures a Manager.
type Options struct {
	BaseURL    string
	Path       string
	HTTPClient *http.Client
	Cursor     CursorStore
	Notifier   Notifier
	Logger     *logutil.Logger

	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries uint64 // zero retries forever

	OnStateChange func(ConnState)
}

// Manager owns one live event channel and routes its frames to the
// registered hooks.
type Manager struct {
	opts     Options
	cursor   CursorStore
	notifier Notifier
	logger   *logutil.Logger

	mu        sync.Mutex
	hooks     registry
	buffer    replayBuffer
	state     ConnState
	listening bool
	aborted   bool
	cancel    context.CancelFunc

	cursorMu    sync.Mutex
	lastEventID string

	// deliverMu orders deployment replay against live delivery.
	deliverMu sync.Mutex

	abortOnce sync.Once
	done      chan struct{}
}

// New builds a Manager and loads the persisted cursor.
func New(opts Options) *Manager {
	if opts.Path == "" {
		opts.Path = defaultPath
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	m := &Manager{
		opts:     opts,
		cursor:   opts.Cursor,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		state:    StateIdle,
		done:     make(chan struct{}),
	}
	if m.cursor == nil {
		m.cursor = NewMemoryCursor("")
	}
	if m.notifier == nil {
		m.notifier = discardNotifier{}
	}
	if m.logger == nil {
		m.logger = logutil.Default()
	}
	id, err := m.cursor.Cursor()
	if err != nil {
		m.logger.Error("failed to load stream cursor", err, nil)
	}
	m.lastEventID = id
	return m
}

// Listen opens the channel and returns immediately; frames are processed on
// a background goroutine until ctx is cancelled, Abort is called, or the
// connection gives up. An empty token is a logged no-op.
func (m *Manager) Listen(ctx context.Context, token string) error {
	if token == "" {
		m.logger.Warn("token not provided, skip listening", nil)
		return nil
	}

	m.mu.Lock()
	if m.aborted {
		m.mu.Unlock()
		return ErrAborted
	}
	if m.listening {
		m.mu.Unlock()
		select {
		case <-m.done:
			return ErrClosed
		default:
			return ErrAlreadyListening
		}
	}
	m.listening = true
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	t := &transport{
		client:     m.opts.HTTPClient,
		url:        strings.TrimRight(m.opts.BaseURL, "/") + m.opts.Path,
		token:      token,
		maxDelay:   m.opts.MaxDelay,
		maxRetries: m.opts.MaxRetries,
		baseDelay:  m.opts.BaseDelay,
		cursor:     m.LastEventID,
		onOpen:     m.handleOpen,
		onFrame:    m.handleFrame,
		onDrop:     m.handleDrop,
	}

	m.setState(StateConnecting)
	go func() {
		defer close(m.done)
		defer cancel()
		err := t.run(runCtx)
		if runCtx.Err() != nil {
			m.setState(StateClosed)
			m.logger.Info("stream closed", nil)
			return
		}
		m.setState(StateFailed)
		m.logger.Error("stream gave up", err, map[string]interface{}{"url": t.url})
		m.notifier.Notify(Notification{
			Level:      LevelError,
			Message:    "Live updates stopped: " + err.Error(),
			Persistent: true,
		})
	}()
	return nil
}

// Abort closes the channel. It is safe to call more than once and before
// Listen.
func (m *Manager) Abort() {
	m.abortOnce.Do(func() {
		m.mu.Lock()
		m.aborted = true
		cancel := m.cancel
		m.mu.Unlock()
		if cancel != nil {
			cancel()
			return
		}
		m.setState(StateClosed)
		close(m.done)
	})
}

// Done is closed once the channel has stopped.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// State returns the current connection state.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s ConnState) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	m.mu.Unlock()

	metrics.SetStreamState(string(s), allStates)
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(s)
	}
}

// SetInstanceHook replaces the instance subscriber. A nil fn clears it.
func (m *Manager) SetInstanceHook(fn func(InstanceEvent)) {
	m.mu.Lock()
	m.hooks.instance = fn
	m.mu.Unlock()
}

// SetServerHook replaces the server subscriber. A nil fn clears it.
func (m *Manager) SetServerHook(fn func(ServerEvent)) {
	m.mu.Lock()
	m.hooks.server = fn
	m.mu.Unlock()
}

// SetDeploymentHook replaces the deployment subscriber. With replay set, fn
// first receives every buffered line in order; live lines reach fn only
// after the replay. It must not be called with replay from inside a hook.
func (m *Manager) SetDeploymentHook(fn func(string), replay bool) {
	if fn == nil || !replay {
		m.mu.Lock()
		m.hooks.deployment = fn
		m.mu.Unlock()
		return
	}

	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	lines := m.buffer.snapshot()
	m.mu.Unlock()
	for _, line := range lines {
		line := line
		m.invoke(OnDeployment, func() { fn(line) })
	}

	m.mu.Lock()
	m.hooks.deployment = fn
	m.mu.Unlock()
}

// RemoveHook clears the named subscriber slot.
func (m *Manager) RemoveHook(name HookName) {
	m.mu.Lock()
	ok := m.hooks.remove(name)
	m.mu.Unlock()
	if !ok {
		m.logger.Warn("unknown hook", map[string]interface{}{"hook": string(name)})
	}
}

// LastEventID returns the cursor sent on the next connect.
func (m *Manager) LastEventID() string {
	m.cursorMu.Lock()
	defer m.cursorMu.Unlock()
	return m.lastEventID
}

// ClearLastEventID forgets the cursor in memory and in storage.
func (m *Manager) ClearLastEventID() {
	m.cursorMu.Lock()
	defer m.cursorMu.Unlock()
	m.lastEventID = ""
	if err := m.cursor.ClearCursor(); err != nil {
		m.logger.Error("failed to clear stream cursor", err, nil)
	}
}

func (m *Manager) setLastEventID(id string) {
	m.cursorMu.Lock()
	defer m.cursorMu.Unlock()
	m.lastEventID = id
	if err := m.cursor.SetCursor(id); err != nil {
		m.logger.Error("failed to persist stream cursor", err, map[string]interface{}{"id": id})
	}
}

// DeploymentBuffer returns a copy of the buffered deployment lines.
func (m *Manager) DeploymentBuffer() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffer.snapshot()
}

// ClearDeploymentBuffer empties the deployment buffer. The cursor is kept.
func (m *Manager) ClearDeploymentBuffer() {
	m.mu.Lock()
	m.buffer.clear()
	m.mu.Unlock()
}

func (m *Manager) handleOpen() {
	m.setState(StateOpen)
	m.logger.Info("stream opened", map[string]interface{}{"last_event_id": m.LastEventID()})
}

func (m *Manager) handleDrop(err error) {
	metrics.ObserveReconnect()
	m.setState(StateReconnecting)
	if errors.Is(err, errStreamEnded) {
		m.logger.Info("stream closed by server, reconnecting", nil)
		return
	}
	m.logger.Warn("stream error, reconnecting", map[string]interface{}{"error": err.Error()})
	m.notifier.Notify(Notification{Level: LevelError, Message: "Live updates interrupted: " + err.Error()})
}

// handleFrame decodes one frame and routes it by category. Failures are
// logged and the frame is dropped.
func (m *Manager) handleFrame(f Frame) {
	env, err := DecodeEnvelope([]byte(f.Data))
	if err != nil {
		m.drop("unknown", "cannot parse incoming stream data", err, f.Data)
		return
	}
	category := env.Category.String()

	switch env.Category {
	case CategoryDeployment:
		m.deliverDeployment(f.ID, env.Content)

	case CategoryServer:
		evt, err := ParseServerEvent(env.Content)
		if err != nil {
			m.drop(category, "invalid server event", err, env.Content)
			return
		}
		m.mu.Lock()
		hook := m.hooks.server
		m.mu.Unlock()
		if hook == nil {
			metrics.ObserveFrame(category, "unhandled")
			return
		}
		m.invoke(OnServer, func() { hook(evt) })
		metrics.ObserveFrame(category, "delivered")

	case CategoryInstance:
		evt, err := ParseInstanceEvent(env.Content)
		if err != nil {
			m.drop(category, "invalid instance event", err, env.Content)
			return
		}
		m.mu.Lock()
		hook := m.hooks.instance
		m.mu.Unlock()
		if hook == nil {
			metrics.ObserveFrame(category, "unhandled")
			return
		}
		m.invoke(OnInstance, func() { hook(evt) })
		metrics.ObserveFrame(category, "delivered")

	case CategoryError:
		evt, err := ParseErrorEvent(env.Content)
		if err != nil {
			m.drop(category, "invalid error event", err, env.Content)
			return
		}
		m.notifier.Notify(Notification{Level: LevelError, Message: evt.Details})
		metrics.ObserveFrame(category, "delivered")

	case CategorySync:
		evt, err := ParseSyncEvent(env.Content)
		if err != nil {
			m.drop(category, "invalid sync event", err, env.Content)
			return
		}
		switch evt.SyncType {
		case SyncClearLastEventID:
			m.ClearLastEventID()
		}
		metrics.ObserveFrame(category, "delivered")
	}
}

func (m *Manager) deliverDeployment(id, line string) {
	m.deliverMu.Lock()
	m.mu.Lock()
	m.buffer.append(line)
	hook := m.hooks.deployment
	m.mu.Unlock()
	if hook != nil {
		m.invoke(OnDeployment, func() { hook(line) })
	}
	m.deliverMu.Unlock()

	if id != "" {
		m.setLastEventID(id)
	}
	metrics.ObserveFrame(CategoryDeployment.String(), "delivered")
}

func (m *Manager) drop(category, msg string, err error, payload string) {
	metrics.ObserveFrame(category, "dropped")
	m.logger.Warn(msg, map[string]interface{}{
		"category": category,
		"error":    err.Error(),
		"payload":  payload,
	})
}

// invoke runs a subscriber and contains its panics so one bad hook cannot
// stop the channel.
func (m *Manager) invoke(name HookName, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("stream hook panicked", map[string]interface{}{
				"hook":  string(name),
				"panic": fmt.Sprint(r),
			})
		}
	}()
	fn()
}
