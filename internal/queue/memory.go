package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryLog is a process-local Log used when Redis is not configured.
type MemoryLog struct {
	mu      sync.Mutex
	entries []memoryEntry
	last    ID
	maxLen  int
	now     func() time.Time
}

type memoryEntry struct {
	id   ID
	data string
}

var _ Log = (*MemoryLog)(nil)

// NewMemoryLog returns an empty log keeping at most maxLen entries when
// maxLen is positive.
func NewMemoryLog(maxLen int) *MemoryLog {
	return &MemoryLog{maxLen: maxLen, now: time.Now}
}

// Append assigns a Redis-style id that is strictly increasing even when
// the clock stalls or steps back.
func (l *MemoryLog) Append(_ context.Context, data string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ms := uint64(l.now().UnixMilli())
	id := ID{Millis: ms}
	if ms <= l.last.Millis {
		id = ID{Millis: l.last.Millis, Seq: l.last.Seq + 1}
	}
	l.last = id
	l.entries = append(l.entries, memoryEntry{id: id, data: data})
	if l.maxLen > 0 && len(l.entries) > l.maxLen {
		l.entries = append([]memoryEntry(nil), l.entries[len(l.entries)-l.maxLen:]...)
	}
	return id.String(), nil
}

func (l *MemoryLog) After(_ context.Context, id string, limit int64) ([]Entry, error) {
	var from ID
	if id != "" {
		parsed, err := ParseID(id)
		if err != nil {
			return nil, err
		}
		from = parsed
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if id != "" && !from.Less(e.id) {
			continue
		}
		out = append(out, Entry{ID: e.id.String(), Data: e.data})
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (l *MemoryLog) Trim(_ context.Context, before time.Time) (int64, error) {
	cutoff := uint64(before.UnixMilli())
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.entries[:0]
	var removed int64
	for _, e := range l.entries {
		if e.id.Millis < cutoff {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return removed, nil
}
