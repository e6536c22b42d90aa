package stream

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Category is the top-level discriminant of an envelope.
type Category int

const (
	CategoryDeployment Category = 0
	CategoryServer     Category = 1
	CategoryInstance   Category = 2
	CategoryError      Category = 3
	CategorySync       Category = 4
)

// Categories lists every known category in wire order.
var Categories = []Category{CategoryDeployment, CategoryServer, CategoryInstance, CategoryError, CategorySync}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c >= CategoryDeployment && c <= CategorySync
}

func (c Category) String() string {
	switch c {
	case CategoryDeployment:
		return "deployment"
	case CategoryServer:
		return "server"
	case CategoryInstance:
		return "instance"
	case CategoryError:
		return "error"
	case CategorySync:
		return "sync"
	default:
		return "category(" + strconv.Itoa(int(c)) + ")"
	}
}

// Envelope is the outer wire wrapper of every stream frame.
type Envelope struct {
	Category Category `json:"type"`
	IsError  bool     `json:"is_error"`
	Content  string   `json:"content"`
}

// DecodeEnvelope validates raw against the envelope schema and decodes it.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	if err := validate(envelopeSchema, raw); err != nil {
		return Envelope{}, fmt.Errorf("envelope: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("envelope: %w", err)
	}
	if !env.Category.Valid() {
		return Envelope{}, fmt.Errorf("envelope: unknown category %d", env.Category)
	}
	return env, nil
}

// Frame is one dispatched server-sent event.
type Frame struct {
	ID    string
	Event string
	Data  string
	Retry int
}
