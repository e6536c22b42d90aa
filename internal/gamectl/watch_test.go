package gamectl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oremus-labs/ol-game-console/internal/consoleapi"
	"github.com/oremus-labs/ol-game-console/internal/status"
	"github.com/oremus-labs/ol-game-console/internal/store"
	"github.com/oremus-labs/ol-game-console/internal/stream"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type memoryHistory struct {
	mu      sync.Mutex
	entries []store.HistoryEntry
}

func (h *memoryHistory) AppendHistory(entry *store.HistoryEntry) error {
	h.mu.Lock()
	h.entries = append(h.entries, *entry)
	h.mu.Unlock()
	return nil
}

func (h *memoryHistory) has(category, event string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.entries {
		if e.Category == category && e.Event == event {
			return true
		}
	}
	return false
}

func envelope(t *testing.T, category stream.Category, content interface{}) string {
	t.Helper()
	text, ok := content.(string)
	if !ok {
		raw, err := json.Marshal(content)
		if err != nil {
			t.Fatalf("marshal content: %v", err)
		}
		text = string(raw)
	}
	raw, err := json.Marshal(stream.Envelope{Category: category, Content: text})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return string(raw)
}

func writeSSE(w http.ResponseWriter, id, data string) {
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	w.(http.Flusher).Flush()
}

func writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

// consoleBackend serves the REST lookups used by the tracker and hands the
// stream endpoint to streamFn.
func consoleBackend(t *testing.T, streamFn http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/instance", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, map[string]interface{}{"instanceId": "i-1", "deletedAt": nil, "deployed": false})
	})
	mux.HandleFunc("/instance/status", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, "Running")
	})
	mux.HandleFunc("/task", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, map[string]interface{}{"id": "t-1", "status": "running"})
	})
	mux.HandleFunc("/server/info", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, map[string]interface{}{"running": false})
	})
	mux.HandleFunc("/stream", streamFn)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func waitForOutput(t *testing.T, out *lockedBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output:\n%s", want, out.String())
}

func TestRunWatchFollowsDeployment(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		cursor string
		auth   string
	)
	pulling := envelope(t, stream.CategoryDeployment, "pulling image\n")
	ready := envelope(t, stream.CategoryDeployment, "server ready\n")
	deployed := envelope(t, stream.CategoryInstance, map[string]string{
		"type": "deployment_task_status_update",
		"data": "success",
	})
	srv := consoleBackend(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		cursor = r.Header.Get("Last-Event-Id")
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		writeSSE(w, "6", pulling)
		writeSSE(w, "7", ready)
		writeSSE(w, "", deployed)
		<-r.Context().Done()
	})
	client, err := consoleapi.New(consoleapi.Config{BaseURL: srv.URL, Token: "tok"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out := &lockedBuffer{}
	history := &memoryHistory{}
	cur := stream.NewMemoryCursor("5")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- runWatch(ctx, watchOptions{
			Client:  client,
			Token:   "tok",
			Cursor:  cur,
			History: history,
			Out:     out,
			Replay:  true,
		})
	}()

	waitForOutput(t, out, "[success] Instance deployed")
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("runWatch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("runWatch did not return after cancel")
	}

	text := out.String()
	for _, want := range []string{
		"-- stream connecting",
		"-- stream open",
		"pulling image\nserver ready\n",
		"deployment=success",
		"-- stream closed",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
	mu.Lock()
	if cursor != "5" || auth != "Bearer tok" {
		t.Fatalf("unexpected request headers cursor=%q auth=%q", cursor, auth)
	}
	mu.Unlock()
	if id, _ := cur.Cursor(); id != "" {
		t.Fatalf("finished deployment must clear the cursor, got %q", id)
	}
	if !history.has("notification", "success") || !history.has("connection", "open") || !history.has("status", "changed") {
		t.Fatalf("history incomplete: %+v", history.entries)
	}
}

func TestRunWatchUnauthorized(t *testing.T) {
	t.Parallel()

	srv := consoleBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client, err := consoleapi.New(consoleapi.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out := &lockedBuffer{}
	err = runWatch(context.Background(), watchOptions{Client: client, Token: "expired", Out: out})
	if !errors.Is(err, errStreamFailed) {
		t.Fatalf("expected stream failure, got %v", err)
	}
	if !strings.Contains(out.String(), "[error] Live updates stopped") {
		t.Fatalf("expected persistent error in output:\n%s", out.String())
	}
}

func TestRunWatchRequiresToken(t *testing.T) {
	t.Parallel()

	client, err := consoleapi.New(consoleapi.Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := runWatch(context.Background(), watchOptions{Client: client}); err == nil || !strings.Contains(err.Error(), "gamectl login") {
		t.Fatalf("expected login hint, got %v", err)
	}
}

func TestPrinterSkipsStaleSnapshots(t *testing.T) {
	t.Parallel()

	out := &lockedBuffer{}
	p := newWatchPrinter(out, nil, nil, true)
	now := time.Now()

	p.snapshot(snapshotAt(now, "line one\n", consoleapi.InstanceRunning))
	p.snapshot(snapshotAt(now.Add(-time.Second), "", consoleapi.InstanceStopped))
	p.snapshot(snapshotAt(now.Add(time.Second), "line one\nline two\n", consoleapi.InstanceRunning))

	text := out.String()
	if strings.Count(text, "line one") != 1 || !strings.Contains(text, "line two") {
		t.Fatalf("deployment output printed incorrectly:\n%s", text)
	}
	if strings.Contains(text, "Stopped") {
		t.Fatalf("stale snapshot was printed:\n%s", text)
	}
	if strings.Count(text, "== instance=") != 1 {
		t.Fatalf("expected one summary line:\n%s", text)
	}
}

func snapshotAt(at time.Time, output string, st consoleapi.InstanceStatus) status.Snapshot {
	return status.Snapshot{InstanceStatus: st, DeployOutput: output, UpdatedAt: at}
}
