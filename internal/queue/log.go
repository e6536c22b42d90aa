// Package queue keeps the relay's replayable log of deployment frames.
package queue

import (
	"context"
	"time"
)

// Entry is one logged frame.
type Entry struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// Log stores frames so reconnecting clients can catch up.
type Log interface {
	// Append stores data and returns the identifier assigned to it.
	Append(ctx context.Context, data string) (string, error)
	// After returns up to limit entries logged strictly after id, oldest
	// first.
	After(ctx context.Context, id string, limit int64) ([]Entry, error)
	// Trim removes entries logged before the cutoff.
	Trim(ctx context.Context, before time.Time) (int64, error)
}
