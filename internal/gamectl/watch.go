package gamectl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/oremus-labs/ol-game-console/internal/consoleapi"
	"github.com/oremus-labs/ol-game-console/internal/logutil"
	"github.com/oremus-labs/ol-game-console/internal/status"
	"github.com/oremus-labs/ol-game-console/internal/store"
	"github.com/oremus-labs/ol-game-console/internal/stream"
)

// errStreamFailed is returned by runWatch when the stream gave up.
var errStreamFailed = errors.New("live updates stopped")

type historyWriter interface {
	AppendHistory(entry *store.HistoryEntry) error
}

type watchOptions struct {
	Client     *consoleapi.Client
	Token      string
	StreamPath string
	HTTPClient *http.Client
	Cursor     stream.CursorStore
	History    historyWriter
	Out        io.Writer
	Logger     *logutil.Logger
	Replay     bool
	MaxRetries uint64
	ShowDiff   bool
}

// runWatch follows the live stream until ctx is cancelled or the stream
// gives up, printing deployment output and state changes to opts.Out.
func runWatch(ctx context.Context, opts watchOptions) error {
	if opts.Token == "" {
		return errors.New("not logged in; run 'gamectl login' first")
	}
	if opts.Logger == nil {
		opts.Logger = logutil.New(io.Discard)
	}
	p := newWatchPrinter(opts.Out, opts.History, opts.Logger, opts.ShowDiff)

	tracker := status.New(status.Options{
		Fetcher:  opts.Client,
		Notifier: p,
		Logger:   opts.Logger,
		OnChange: p.snapshot,
	}, status.Snapshot{})
	if err := tracker.Refresh(ctx); err != nil {
		opts.Logger.Warn("initial status refresh incomplete", map[string]interface{}{"error": err.Error()})
	}

	m := stream.New(stream.Options{
		BaseURL:       opts.Client.BaseURL(),
		Path:          opts.StreamPath,
		HTTPClient:    opts.HTTPClient,
		Cursor:        opts.Cursor,
		Notifier:      p,
		Logger:        opts.Logger,
		MaxRetries:    opts.MaxRetries,
		OnStateChange: p.state,
	})
	tracker.Attach(ctx, m, opts.Replay)
	defer tracker.Detach()

	if err := m.Listen(ctx, opts.Token); err != nil {
		return err
	}
	<-m.Done()
	if m.State() == stream.StateFailed {
		return errStreamFailed
	}
	return nil
}

// watchPrinter renders tracker snapshots and notifications as terminal
// lines and mirrors them into the local history.
type watchPrinter struct {
	mu       sync.Mutex
	out      io.Writer
	history  historyWriter
	logger   *logutil.Logger
	showDiff bool

	last    *status.Snapshot
	printed int
}

func newWatchPrinter(out io.Writer, history historyWriter, logger *logutil.Logger, showDiff bool) *watchPrinter {
	if out == nil {
		out = io.Discard
	}
	return &watchPrinter{out: out, history: history, logger: logger, showDiff: showDiff}
}

var summaryFields = cmpopts.IgnoreFields(status.Snapshot{}, "UpdatedAt", "DeployOutput", "DeployLatest")

func (p *watchPrinter) Notify(n stream.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[%s] %s\n", n.Level, n.Message)
	p.record("notification", string(n.Level), n.Message, map[string]interface{}{"persistent": n.Persistent})
}

func (p *watchPrinter) state(s stream.ConnState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "-- stream %s\n", s)
	p.record("connection", string(s), "", nil)
}

func (p *watchPrinter) snapshot(s status.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != nil && s.UpdatedAt.Before(p.last.UpdatedAt) {
		return
	}
	if len(s.DeployOutput) > p.printed {
		io.WriteString(p.out, s.DeployOutput[p.printed:])
		p.printed = len(s.DeployOutput)
	}
	var prev status.Snapshot
	if p.last != nil {
		prev = *p.last
	}
	diff := cmp.Diff(prev, s, summaryFields, cmpopts.EquateEmpty())
	p.last = &s
	if diff == "" {
		return
	}
	line := summarize(s)
	fmt.Fprintf(p.out, "== %s\n", line)
	if p.showDiff {
		fmt.Fprintln(p.out, strings.TrimRight(diff, "\n"))
	}
	p.record("status", "changed", line, nil)
}

// record appends to the history; failures are logged and otherwise ignored.
func (p *watchPrinter) record(category, event, detail string, metadata map[string]interface{}) {
	if p.history == nil {
		return
	}
	entry := &store.HistoryEntry{Category: category, Event: event, Detail: detail, Metadata: metadata}
	if err := p.history.AppendHistory(entry); err != nil {
		p.logger.Error("failed to record history", err, map[string]interface{}{"category": category})
	}
}

func summarize(s status.Snapshot) string {
	instance := "none"
	if s.Instance != nil {
		instance = s.Instance.InstanceID
		if !s.Instance.Active() {
			instance += " (deleted)"
		}
	}
	server := "stopped"
	if s.ServerRunning() {
		server = "running"
	}
	return fmt.Sprintf("instance=%s status=%s deployment=%s server=%s players=%d",
		instance, orDash(string(s.InstanceStatus)), orDash(string(s.DeploymentStatus)), server, s.OnlineCount)
}
