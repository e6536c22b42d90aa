package logutil

import (
	"encoding/json"
	"io"
	"log"
	"time"
)

// Logger writes JSON lines through a standard library logger.
type Logger struct {
	out *log.Logger
}

// New returns a Logger writing to w. A nil writer uses the standard logger.
func New(w io.Writer) *Logger {
	if w == nil {
		return &Logger{out: log.Default()}
	}
	return &Logger{out: log.New(w, "", 0)}
}

var std = New(nil)

// Default returns the process-wide logger.
func Default() *Logger {
	return std
}

// Info logs a structured info message.
func Info(msg string, fields map[string]interface{}) {
	std.Info(msg, fields)
}

// Warn logs a structured warning.
func Warn(msg string, fields map[string]interface{}) {
	std.Warn(msg, fields)
}

// Error logs a structured error message including the error string.
func Error(msg string, err error, fields map[string]interface{}) {
	std.Error(msg, err, fields)
}

// Info logs a structured info message.
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.logJSON("info", msg, fields)
}

// Warn logs a structured warning.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.logJSON("warn", msg, fields)
}

// Error logs a structured error message including the error string.
func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	entry := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		entry[k] = v
	}
	if err != nil {
		entry["error"] = err.Error()
	}
	l.logJSON("error", msg, entry)
}

func (l *Logger) logJSON(level, msg string, fields map[string]interface{}) {
	out := log.Default()
	if l != nil && l.out != nil {
		out = l.out
	}
	entry := map[string]interface{}{
		"level":     level,
		"message":   msg,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range fields {
		entry[k] = v
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		out.Printf("%s: %+v", msg, fields)
		return
	}
	out.Printf("%s", payload)
}
