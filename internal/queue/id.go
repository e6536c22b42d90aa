package queue

import (
	"fmt"
	"strconv"
	"strings"
)

// ID is a parsed log entry identifier of the form "<millis>-<seq>", the
// format Redis Streams assigns.
type ID struct {
	Millis uint64
	Seq    uint64
}

func (id ID) String() string {
	return fmt.Sprintf("%d-%d", id.Millis, id.Seq)
}

// Less reports whether id sorts before other.
func (id ID) Less(other ID) bool {
	if id.Millis != other.Millis {
		return id.Millis < other.Millis
	}
	return id.Seq < other.Seq
}

// ParseID parses a log entry identifier. A bare millisecond value is
// accepted with sequence zero.
func ParseID(raw string) (ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ID{}, fmt.Errorf("empty event id")
	}
	msPart, seqPart, hasSeq := strings.Cut(raw, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("invalid event id %q", raw)
	}
	var seq uint64
	if hasSeq {
		seq, err = strconv.ParseUint(seqPart, 10, 64)
		if err != nil {
			return ID{}, fmt.Errorf("invalid event id %q", raw)
		}
	}
	return ID{Millis: ms, Seq: seq}, nil
}

// After reports whether a is strictly later than b. Unparseable ids are
// never later.
func After(a, b string) bool {
	ida, err := ParseID(a)
	if err != nil {
		return false
	}
	idb, err := ParseID(b)
	if err != nil {
		return true
	}
	return idb.Less(ida)
}
