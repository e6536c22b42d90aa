package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/oremus-labs/ol-game-console/internal/stream"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"), "sqlite")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestStoreCursorLifecycle(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	id, err := s.Cursor()
	if err != nil || id != "" {
		t.Fatalf("expected empty cursor, got %q (%v)", id, err)
	}
	if err := s.SetCursor("17"); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}
	if err := s.SetCursor("18"); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}
	if id, _ := s.Cursor(); id != "18" {
		t.Fatalf("expected cursor 18, got %q", id)
	}
	if raw, _ := s.Get(stream.CursorKey); raw != "18" {
		t.Fatalf("expected cursor under %s, got %q", stream.CursorKey, raw)
	}
	if err := s.ClearCursor(); err != nil {
		t.Fatalf("ClearCursor: %v", err)
	}
	if id, _ := s.Cursor(); id != "" {
		t.Fatalf("expected cleared cursor, got %q", id)
	}
	if err := s.ClearCursor(); err != nil {
		t.Fatalf("clearing twice should succeed: %v", err)
	}
}

func TestCursorSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "state.db")
	s, err := Open(path, "sqlite")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetCursor("99"); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}
	_ = s.Close()

	reopened, err := Open(path, "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		_ = reopened.Close()
	})
	m := stream.New(stream.Options{Cursor: reopened})
	if m.LastEventID() != "99" {
		t.Fatalf("expected manager to resume from 99, got %q", m.LastEventID())
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	t.Parallel()

	if _, err := Open("", "sqlite"); err == nil {
		t.Fatalf("expected empty DSN to fail")
	}
	if _, err := Open(filepath.Join(t.TempDir(), "x.db"), "postgres"); err == nil {
		t.Fatalf("expected unsupported driver to fail")
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	entries := []*HistoryEntry{
		{Category: "instance", Event: "active_status_update", Detail: "active"},
		{Category: "server", Event: "online_count_update", Metadata: map[string]interface{}{"count": 3}},
		{Category: "instance", Event: "active_ip_update", Detail: "1.2.3.4"},
	}
	for _, e := range entries {
		if err := s.AppendHistory(e); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}
	if err := s.AppendHistory(&HistoryEntry{Event: "x"}); err == nil {
		t.Fatalf("expected missing category to fail")
	}

	all, err := s.ListHistory("", 0)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(all) != 3 || all[0].Event != "active_ip_update" {
		t.Fatalf("unexpected history order: %+v", all)
	}
	if all[1].Metadata["count"] != float64(3) {
		t.Fatalf("metadata not decoded: %+v", all[1].Metadata)
	}

	instance, err := s.ListHistory("instance", 1)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(instance) != 1 || instance[0].Detail != "1.2.3.4" {
		t.Fatalf("unexpected filtered history: %+v", instance)
	}

	removed, err := s.PruneHistory(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PruneHistory: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
}
