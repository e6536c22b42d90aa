package stream

import "sync"

// CursorKey is the storage key of the last processed event id.
const CursorKey = "last-event-id"

// CursorStore persists the identifier of the last processed frame.
type CursorStore interface {
	Cursor() (string, error)
	SetCursor(id string) error
	ClearCursor() error
}

// MemoryCursor is a process-local CursorStore.
type MemoryCursor struct {
	mu sync.Mutex
	id string
}

// NewMemoryCursor returns a MemoryCursor seeded with id.
func NewMemoryCursor(id string) *MemoryCursor {
	return &MemoryCursor{id: id}
}

func (c *MemoryCursor) Cursor() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id, nil
}

func (c *MemoryCursor) SetCursor(id string) error {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
	return nil
}

func (c *MemoryCursor) ClearCursor() error {
	return c.SetCursor("")
}

// replayBuffer holds deployment output seen since the manager was created.
type replayBuffer struct {
	lines []string
}

func (b *replayBuffer) append(line string) {
	b.lines = append(b.lines, line)
}

func (b *replayBuffer) clear() {
	b.lines = nil
}

func (b *replayBuffer) snapshot() []string {
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}
