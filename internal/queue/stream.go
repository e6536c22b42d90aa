package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const trimBatch = 500

// StreamLog is a Log backed by a Redis Stream.
type StreamLog struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

var _ Log = (*StreamLog)(nil)

// NewStreamLog returns a log writing to stream. A positive maxLen caps the
// stream length approximately on every append.
func NewStreamLog(client redis.UniversalClient, stream string, maxLen int64) *StreamLog {
	if stream == "" {
		stream = "game-console:deployment-log"
	}
	return &StreamLog{client: client, stream: stream, maxLen: maxLen}
}

// Append pushes data onto the stream.
func (l *StreamLog) Append(ctx context.Context, data string) (string, error) {
	if l == nil || l.client == nil {
		return "", fmt.Errorf("event log not configured")
	}
	args := &redis.XAddArgs{
		Stream: l.stream,
		ID:     "*",
		Values: map[string]interface{}{"data": data},
	}
	if l.maxLen > 0 {
		args.MaxLen = l.maxLen
		args.Approx = true
	}
	return l.client.XAdd(ctx, args).Result()
}

// After reads entries following id. The start of XRANGE is inclusive, so
// the entry equal to id is skipped here.
func (l *StreamLog) After(ctx context.Context, id string, limit int64) ([]Entry, error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("event log not configured")
	}
	start := "-"
	if id != "" {
		parsed, err := ParseID(id)
		if err != nil {
			return nil, err
		}
		start = parsed.String()
	}
	count := limit
	if count > 0 && id != "" {
		count++
	}
	var (
		msgs []redis.XMessage
		err  error
	)
	if count > 0 {
		msgs, err = l.client.XRangeN(ctx, l.stream, start, "+", count).Result()
	} else {
		msgs, err = l.client.XRange(ctx, l.stream, start, "+").Result()
	}
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	entries := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		if id != "" && !After(msg.ID, id) {
			continue
		}
		raw, ok := msg.Values["data"]
		if !ok {
			continue
		}
		data, ok := raw.(string)
		if !ok {
			continue
		}
		entries = append(entries, Entry{ID: msg.ID, Data: data})
		if limit > 0 && int64(len(entries)) == limit {
			break
		}
	}
	return entries, nil
}

// Trim deletes entries older than before in batches.
func (l *StreamLog) Trim(ctx context.Context, before time.Time) (int64, error) {
	if l == nil || l.client == nil {
		return 0, fmt.Errorf("event log not configured")
	}
	cutoff := before.UnixMilli() - 1
	if cutoff < 0 {
		return 0, nil
	}
	end := strconv.FormatInt(cutoff, 10)
	var removed int64
	for {
		msgs, err := l.client.XRangeN(ctx, l.stream, "-", end, trimBatch).Result()
		if err != nil {
			return removed, err
		}
		if len(msgs) == 0 {
			return removed, nil
		}
		ids := make([]string, 0, len(msgs))
		for _, msg := range msgs {
			ids = append(ids, msg.ID)
		}
		n, err := l.client.XDel(ctx, l.stream, ids...).Result()
		removed += n
		if err != nil {
			return removed, err
		}
		if len(msgs) < trimBatch {
			return removed, nil
		}
	}
}
