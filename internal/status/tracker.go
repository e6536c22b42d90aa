package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oremus-labs/ol-game-console/internal/consoleapi"
	"github.com/oremus-labs/ol-game-console/internal/logutil"
	"github.com/oremus-labs/ol-game-console/internal/stream"
)

// Fetcher loads console state from the REST backend.
type Fetcher interface {
	ActiveOrLatestInstance(ctx context.Context) (*consoleapi.Instance, error)
	InstanceStatus(ctx context.Context) (consoleapi.InstanceStatus, error)
	ActiveDeploymentTaskStatus(ctx context.Context) (consoleapi.TaskStatus, error)
	ServerInfo(ctx context.Context) (*consoleapi.ServerInfo, error)
}

// Snapshot is the console's view of the instance and game server.
type Snapshot struct {
	Instance         *consoleapi.Instance      `json:"instance,omitempty"`
	InstanceStatus   consoleapi.InstanceStatus `json:"instanceStatus"`
	DeploymentStatus consoleapi.TaskStatus     `json:"deploymentStatus,omitempty"`
	Server           *consoleapi.ServerInfo    `json:"server,omitempty"`
	OnlineCount      int                       `json:"onlineCount"`
	OnlinePlayers    []string                  `json:"onlinePlayers"`
	DeployOutput     string                    `json:"deployOutput,omitempty"`
	DeployLatest     string                    `json:"deployLatest,omitempty"`
	UpdatedAt        time.Time                 `json:"updatedAt"`
}

// ServerRunning reports whether the game server is up.
func (s Snapshot) ServerRunning() bool {
	return s.Server != nil && s.Server.Running
}

// DeployedInstanceRunning reports whether a live, deployed instance is running.
func (s Snapshot) DeployedInstanceRunning() bool {
	return s.InstanceStatus == consoleapi.InstanceRunning && s.Instance.Active() && s.Instance.Deployed
}

// Options configures a Tracker.
type Options struct {
	Fetcher  Fetcher
	Notifier stream.Notifier
	Logger   *logutil.Logger
	OnChange func(Snapshot)
}

// Tracker folds stream events and REST lookups into a Snapshot.
type Tracker struct {
	fetcher  Fetcher
	notifier stream.Notifier
	logger   *logutil.Logger
	onChange func(Snapshot)

	mu   sync.RWMutex
	snap Snapshot

	attachMu sync.Mutex
	manager  *stream.Manager
	cancel   context.CancelFunc
	ctx      context.Context
	wg       sync.WaitGroup
}

// New returns a Tracker seeded with initial.
func New(opts Options, initial Snapshot) *Tracker {
	t := &Tracker{
		fetcher:  opts.Fetcher,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		onChange: opts.OnChange,
		ctx:      context.Background(),
	}
	if t.notifier == nil {
		t.notifier = stream.NotifierFunc(func(stream.Notification) {})
	}
	if t.logger == nil {
		t.logger = logutil.Default()
	}
	if !initial.ServerRunning() {
		initial.OnlineCount = 0
		initial.OnlinePlayers = nil
	} else if initial.OnlineCount == 0 {
		initial.OnlineCount = initial.Server.OnlineCount()
		initial.OnlinePlayers = append([]string(nil), initial.Server.OnlinePlayers...)
	}
	t.snap = initial
	return t
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	out := t.snap
	if t.snap.Instance != nil {
		inst := *t.snap.Instance
		out.Instance = &inst
	}
	if t.snap.Server != nil {
		info := *t.snap.Server
		info.OnlinePlayers = append([]string(nil), t.snap.Server.OnlinePlayers...)
		out.Server = &info
	}
	out.OnlinePlayers = append([]string{}, t.snap.OnlinePlayers...)
	return out
}

// update applies fn under the lock and publishes the result.
func (t *Tracker) update(fn func(s *Snapshot)) {
	t.mu.Lock()
	fn(&t.snap)
	t.snap.UpdatedAt = time.Now().UTC()
	snapshot := t.snapshotLocked()
	t.mu.Unlock()
	if t.onChange != nil {
		t.onChange(snapshot)
	}
}

// Attach subscribes the tracker to every hook of m. Buffered deployment
// output is replayed when replay is set.
func (t *Tracker) Attach(ctx context.Context, m *stream.Manager, replay bool) {
	t.attachMu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	t.manager = m
	t.ctx = runCtx
	t.cancel = cancel
	t.attachMu.Unlock()

	m.SetInstanceHook(t.HandleInstance)
	m.SetServerHook(t.HandleServer)
	m.SetDeploymentHook(t.HandleDeployment, replay)
}

// Detach removes the tracker's hooks and waits for pending lookups.
func (t *Tracker) Detach() {
	t.attachMu.Lock()
	m, cancel := t.manager, t.cancel
	t.manager, t.cancel = nil, nil
	t.attachMu.Unlock()

	if m != nil {
		m.RemoveHook(stream.OnInstance)
		m.RemoveHook(stream.OnServer)
		m.RemoveHook(stream.OnDeployment)
	}
	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
}

// Wait blocks until background lookups started by events have finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) clearCursor() {
	t.attachMu.Lock()
	m := t.manager
	t.attachMu.Unlock()
	if m != nil {
		m.ClearLastEventID()
	}
}

func (t *Tracker) background(name string, fn func(ctx context.Context) error) {
	if t.fetcher == nil {
		return
	}
	t.attachMu.Lock()
	ctx := t.ctx
	t.attachMu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Warn("background refresh failed", map[string]interface{}{
				"lookup": name,
				"error":  err.Error(),
			})
		}
	}()
}

// Refresh reloads instance, instance status, deployment status and server
// info from the backend. Failed lookups clear the corresponding field.
func (t *Tracker) Refresh(ctx context.Context) error {
	if t.fetcher == nil {
		return errors.New("status: no fetcher configured")
	}
	inst, instErr := t.fetcher.ActiveOrLatestInstance(ctx)
	instStatus, statusErr := t.fetcher.InstanceStatus(ctx)
	taskStatus, taskErr := t.fetcher.ActiveDeploymentTaskStatus(ctx)
	info, infoErr := t.fetcher.ServerInfo(ctx)

	t.update(func(s *Snapshot) {
		s.Instance = inst
		s.InstanceStatus = instStatus
		s.DeploymentStatus = taskStatus
		s.Server = info
		applyServerInfo(s, info)
	})

	var errs []error
	for _, lookup := range []struct {
		name string
		err  error
	}{
		{"instance", instErr},
		{"instance status", statusErr},
		{"deployment status", taskErr},
		{"server info", infoErr},
	} {
		if lookup.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", lookup.name, lookup.err))
		}
	}
	return errors.Join(errs...)
}

func applyServerInfo(s *Snapshot, info *consoleapi.ServerInfo) {
	if info == nil || !info.Running {
		s.OnlineCount = 0
		s.OnlinePlayers = nil
		return
	}
	s.OnlineCount = info.OnlineCount()
	s.OnlinePlayers = append([]string(nil), info.OnlinePlayers...)
}

// HandleInstance applies one instance lifecycle event.
func (t *Tracker) HandleInstance(evt stream.InstanceEvent) {
	switch evt.Type {
	case stream.InstanceActiveStatusUpdate:
		value, ok := t.text(string(evt.Type), evt.Text)
		if !ok {
			return
		}
		t.update(func(s *Snapshot) { s.InstanceStatus = consoleapi.InstanceStatus(value) })

	case stream.InstanceActiveIPUpdate:
		ip, ok := t.text(string(evt.Type), evt.Text)
		if !ok {
			return
		}
		t.update(func(s *Snapshot) {
			if s.Instance != nil {
				s.Instance.IP = &ip
			}
		})

	case stream.InstanceDeploymentTaskStatusUpdate:
		value, ok := t.text(string(evt.Type), evt.Text)
		if !ok {
			return
		}
		status := consoleapi.TaskStatus(value)
		t.update(func(s *Snapshot) {
			s.DeploymentStatus = status
			if status == consoleapi.TaskSuccess && s.Instance != nil {
				s.Instance.Deployed = true
			}
		})
		if status != consoleapi.TaskRunning {
			t.clearCursor()
		}
		if status == consoleapi.TaskSuccess {
			t.notifier.Notify(stream.Notification{Level: stream.LevelSuccess, Message: "Instance deployed"})
		}

	case stream.InstanceCreated:
		var inst consoleapi.Instance
		if err := evt.Decode(&inst); err != nil {
			t.warnDecode(string(evt.Type), err)
			return
		}
		t.update(func(s *Snapshot) { s.Instance = &inst })

	case stream.InstanceNotify:
		value, ok := t.text(string(evt.Type), evt.Text)
		if !ok {
			return
		}
		switch value {
		case "instance_deleted":
			t.clearCursor()
			t.background("instance", func(ctx context.Context) error {
				inst, err := t.fetcher.ActiveOrLatestInstance(ctx)
				if err != nil {
					return err
				}
				t.update(func(s *Snapshot) { s.Instance = inst })
				return nil
			})
		default:
			t.logger.Info("unhandled instance notification", map[string]interface{}{"data": value})
		}

	case stream.InstanceCreateAndDeployFailed:
		value, ok := t.text(string(evt.Type), evt.Text)
		if !ok {
			return
		}
		t.notifier.Notify(stream.Notification{Level: stream.LevelError, Message: "Create and deploy failed: " + value})

	case stream.InstanceCreateAndDeployStep:
		value, ok := t.text(string(evt.Type), evt.Text)
		if !ok {
			return
		}
		t.notifier.Notify(stream.Notification{Level: stream.LevelInfo, Message: "Status update: " + value})
	}
}

// HandleServer applies one game-server presence event.
func (t *Tracker) HandleServer(evt stream.ServerEvent) {
	switch evt.Type {
	case stream.ServerNotify:
		value, ok := t.text(string(evt.Type), evt.Text)
		if !ok {
			return
		}
		switch value {
		case "running":
			t.update(func(s *Snapshot) {
				if s.Server == nil {
					s.Server = &consoleapi.ServerInfo{}
				}
				s.Server.Running = true
			})
			t.notifier.Notify(stream.Notification{Level: stream.LevelSuccess, Message: "Server started"})
			t.background("server info", func(ctx context.Context) error {
				info, err := t.fetcher.ServerInfo(ctx)
				if err != nil {
					return err
				}
				t.update(func(s *Snapshot) {
					s.Server = info
					applyServerInfo(s, info)
				})
				return nil
			})
		case "closed":
			t.update(func(s *Snapshot) {
				if s.Server == nil {
					s.Server = &consoleapi.ServerInfo{}
				}
				s.Server.Running = false
				s.Server.Data = nil
				s.Server.OnlinePlayers = nil
				s.OnlineCount = 0
				s.OnlinePlayers = nil
			})
			t.notifier.Notify(stream.Notification{Level: stream.LevelInfo, Message: "Server stopped"})
		}

	case stream.ServerOnlineCountUpdate:
		n, err := evt.Int()
		if err != nil {
			t.warnDecode(string(evt.Type), err)
			return
		}
		t.update(func(s *Snapshot) { s.OnlineCount = n })

	case stream.ServerOnlinePlayersUpdate:
		players, err := evt.Players()
		if err != nil {
			t.logger.Warn("invalid online player update data", map[string]interface{}{
				"error": err.Error(),
				"data":  string(evt.Data),
			})
			return
		}
		t.update(func(s *Snapshot) { s.OnlinePlayers = players })
	}
}

// HandleDeployment appends one line of deployment output.
func (t *Tracker) HandleDeployment(line string) {
	t.update(func(s *Snapshot) {
		s.DeployOutput += line
		s.DeployLatest = line
	})
}

func (t *Tracker) text(kind string, read func() (string, error)) (string, bool) {
	value, err := read()
	if err != nil {
		t.warnDecode(kind, err)
		return "", false
	}
	return value, true
}

func (t *Tracker) warnDecode(kind string, err error) {
	t.logger.Warn("unexpected event data", map[string]interface{}{
		"type":  kind,
		"error": err.Error(),
	})
}
