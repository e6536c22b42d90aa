package status

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/oremus-labs/ol-game-console/internal/consoleapi"
	"github.com/oremus-labs/ol-game-console/internal/logutil"
	"github.com/oremus-labs/ol-game-console/internal/stream"
)

type fakeFetcher struct {
	mu       sync.Mutex
	instance *consoleapi.Instance
	status   consoleapi.InstanceStatus
	task     consoleapi.TaskStatus
	info     *consoleapi.ServerInfo
	infoErr  error
	calls    []string
}

func (f *fakeFetcher) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeFetcher) ActiveOrLatestInstance(context.Context) (*consoleapi.Instance, error) {
	f.record("instance")
	return f.instance, nil
}

func (f *fakeFetcher) InstanceStatus(context.Context) (consoleapi.InstanceStatus, error) {
	f.record("status")
	return f.status, nil
}

func (f *fakeFetcher) ActiveDeploymentTaskStatus(context.Context) (consoleapi.TaskStatus, error) {
	f.record("task")
	return f.task, nil
}

func (f *fakeFetcher) ServerInfo(context.Context) (*consoleapi.ServerInfo, error) {
	f.record("server")
	return f.info, f.infoErr
}

type notifications struct {
	mu    sync.Mutex
	items []stream.Notification
}

func (n *notifications) Notify(item stream.Notification) {
	n.mu.Lock()
	n.items = append(n.items, item)
	n.mu.Unlock()
}

func (n *notifications) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.items))
	for _, item := range n.items {
		out = append(out, string(item.Level)+": "+item.Message)
	}
	return out
}

func instanceEvent(t *testing.T, kind stream.InstanceEventType, data interface{}) stream.InstanceEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return stream.InstanceEvent{Type: kind, Data: raw}
}

func serverEvent(t *testing.T, kind stream.ServerEventType, data interface{}) stream.ServerEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return stream.ServerEvent{Type: kind, Data: raw}
}

func newTracker(t *testing.T, fetcher Fetcher, initial Snapshot) (*Tracker, *notifications, *bytes.Buffer) {
	t.Helper()
	n := &notifications{}
	var logs bytes.Buffer
	tr := New(Options{Fetcher: fetcher, Notifier: n, Logger: logutil.New(&logs)}, initial)
	return tr, n, &logs
}

func TestInstanceEvents(t *testing.T) {
	t.Parallel()

	tr, n, _ := newTracker(t, &fakeFetcher{}, Snapshot{})

	tr.HandleInstance(instanceEvent(t, stream.InstanceActiveIPUpdate, "1.2.3.4"))
	if tr.Snapshot().Instance != nil {
		t.Fatalf("ip update without an instance must be ignored")
	}

	tr.HandleInstance(instanceEvent(t, stream.InstanceCreated, map[string]interface{}{"instanceId": "i-9", "deletedAt": nil}))
	tr.HandleInstance(instanceEvent(t, stream.InstanceActiveIPUpdate, "1.2.3.4"))
	tr.HandleInstance(instanceEvent(t, stream.InstanceActiveStatusUpdate, "Running"))
	tr.HandleInstance(instanceEvent(t, stream.InstanceCreateAndDeployStep, "creating"))
	tr.HandleInstance(instanceEvent(t, stream.InstanceCreateAndDeployFailed, "no stock"))

	snap := tr.Snapshot()
	if snap.Instance == nil || snap.Instance.InstanceID != "i-9" {
		t.Fatalf("unexpected instance: %+v", snap.Instance)
	}
	if snap.Instance.IP == nil || *snap.Instance.IP != "1.2.3.4" {
		t.Fatalf("unexpected ip: %v", snap.Instance.IP)
	}
	if snap.InstanceStatus != consoleapi.InstanceRunning {
		t.Fatalf("unexpected status %q", snap.InstanceStatus)
	}
	if snap.DeployedInstanceRunning() {
		t.Fatalf("instance is not deployed yet")
	}
	want := []string{"info: Status update: creating", "error: Create and deploy failed: no stock"}
	if diff := cmp.Diff(want, n.messages()); diff != "" {
		t.Fatalf("unexpected notifications (-want +got):\n%s", diff)
	}
}

func TestDeploymentStatusClearsCursor(t *testing.T) {
	t.Parallel()

	m := stream.New(stream.Options{Cursor: stream.NewMemoryCursor("8"), Logger: logutil.New(&bytes.Buffer{})})
	tr, n, _ := newTracker(t, &fakeFetcher{}, Snapshot{Instance: &consoleapi.Instance{InstanceID: "i-1"}})
	tr.Attach(context.Background(), m, true)
	defer tr.Detach()

	tr.HandleInstance(instanceEvent(t, stream.InstanceDeploymentTaskStatusUpdate, "running"))
	if m.LastEventID() != "8" {
		t.Fatalf("running must keep the cursor, got %q", m.LastEventID())
	}

	tr.HandleInstance(instanceEvent(t, stream.InstanceDeploymentTaskStatusUpdate, "success"))
	if m.LastEventID() != "" {
		t.Fatalf("expected cleared cursor, got %q", m.LastEventID())
	}
	snap := tr.Snapshot()
	if snap.DeploymentStatus != consoleapi.TaskSuccess || !snap.Instance.Deployed {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if diff := cmp.Diff([]string{"success: Instance deployed"}, n.messages()); diff != "" {
		t.Fatalf("unexpected notifications (-want +got):\n%s", diff)
	}
}

func TestInstanceDeletedRefetches(t *testing.T) {
	t.Parallel()

	deleted := "2024-05-01T00:00:00Z"
	fetcher := &fakeFetcher{instance: &consoleapi.Instance{InstanceID: "i-1", DeletedAt: &deleted}}
	m := stream.New(stream.Options{Cursor: stream.NewMemoryCursor("3"), Logger: logutil.New(&bytes.Buffer{})})
	tr, _, _ := newTracker(t, fetcher, Snapshot{Instance: &consoleapi.Instance{InstanceID: "i-1"}})
	tr.Attach(context.Background(), m, false)

	tr.HandleInstance(instanceEvent(t, stream.InstanceNotify, "instance_deleted"))
	tr.Wait()

	if m.LastEventID() != "" {
		t.Fatalf("expected cleared cursor")
	}
	if snap := tr.Snapshot(); snap.Instance.Active() {
		t.Fatalf("expected deleted instance, got %+v", snap.Instance)
	}
	tr.Detach()
}

func TestServerEvents(t *testing.T) {
	t.Parallel()

	info := &consoleapi.ServerInfo{Running: true, OnlinePlayers: []string{"alex"}}
	info.Data = &consoleapi.ServerStatus{}
	info.Data.Players.Online = 1
	fetcher := &fakeFetcher{info: info}
	tr, n, logs := newTracker(t, fetcher, Snapshot{})

	tr.HandleServer(serverEvent(t, stream.ServerNotify, "running"))
	tr.Wait()
	snap := tr.Snapshot()
	if !snap.ServerRunning() || snap.OnlineCount != 1 {
		t.Fatalf("expected running server with one player, got %+v", snap)
	}

	tr.HandleServer(serverEvent(t, stream.ServerOnlineCountUpdate, 2))
	tr.HandleServer(serverEvent(t, stream.ServerOnlinePlayersUpdate, `["alex","steve"]`))
	snap = tr.Snapshot()
	if snap.OnlineCount != 2 {
		t.Fatalf("expected count 2, got %d", snap.OnlineCount)
	}
	if diff := cmp.Diff([]string{"alex", "steve"}, snap.OnlinePlayers); diff != "" {
		t.Fatalf("unexpected players (-want +got):\n%s", diff)
	}

	tr.HandleServer(serverEvent(t, stream.ServerOnlinePlayersUpdate, `{"oops":1}`))
	if diff := cmp.Diff([]string{"alex", "steve"}, tr.Snapshot().OnlinePlayers); diff != "" {
		t.Fatalf("malformed update must not change players (-want +got):\n%s", diff)
	}
	if !strings.Contains(logs.String(), "invalid online player update data") {
		t.Fatalf("expected warning, got %s", logs.String())
	}

	tr.HandleServer(serverEvent(t, stream.ServerNotify, "closed"))
	snap = tr.Snapshot()
	if snap.ServerRunning() || snap.OnlineCount != 0 || len(snap.OnlinePlayers) != 0 {
		t.Fatalf("expected stopped server, got %+v", snap)
	}
	want := []string{"success: Server started", "info: Server stopped"}
	if diff := cmp.Diff(want, n.messages()); diff != "" {
		t.Fatalf("unexpected notifications (-want +got):\n%s", diff)
	}
}

func TestDeploymentOutput(t *testing.T) {
	t.Parallel()

	var changes int
	tr := New(Options{OnChange: func(Snapshot) { changes++ }}, Snapshot{})
	tr.HandleDeployment("pulling\n")
	tr.HandleDeployment("starting\n")

	snap := tr.Snapshot()
	if snap.DeployOutput != "pulling\nstarting\n" || snap.DeployLatest != "starting\n" {
		t.Fatalf("unexpected output %q / %q", snap.DeployOutput, snap.DeployLatest)
	}
	if changes != 2 {
		t.Fatalf("expected 2 change callbacks, got %d", changes)
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		instance: &consoleapi.Instance{InstanceID: "i-2", Deployed: true},
		status:   consoleapi.InstanceRunning,
		task:     consoleapi.TaskFailed,
		infoErr:  errors.New("backend down"),
	}
	tr, _, _ := newTracker(t, fetcher, Snapshot{OnlineCount: 4})

	err := tr.Refresh(context.Background())
	if err == nil || !strings.Contains(err.Error(), "server info: backend down") {
		t.Fatalf("expected server info error, got %v", err)
	}
	snap := tr.Snapshot()
	if !snap.DeployedInstanceRunning() {
		t.Fatalf("expected deployed running instance, got %+v", snap)
	}
	if snap.DeploymentStatus != consoleapi.TaskFailed || snap.Server != nil || snap.OnlineCount != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestInitialSnapshotUsesServerInfo(t *testing.T) {
	t.Parallel()

	info := &consoleapi.ServerInfo{Running: true, OnlinePlayers: []string{"a", "b", "c"}}
	info.Data = &consoleapi.ServerStatus{}
	info.Data.Players.Online = 3
	tr := New(Options{}, Snapshot{Server: info})

	snap := tr.Snapshot()
	if snap.OnlineCount != 3 || len(snap.OnlinePlayers) != 3 {
		t.Fatalf("unexpected initial presence: %+v", snap)
	}
}
