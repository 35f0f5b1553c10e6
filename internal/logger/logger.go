package logger

import (
	"fmt"
	"strings"
)

// Logger interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err is shorthand for an "error" field.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// DefaultLogger renders "LEVEL: msg | k=v ..." into a Sink.
type DefaultLogger struct {
	sink  *Sink
	debug bool
}

// New returns a logger writing to sink. Debug lines are dropped unless
// debug is set.
func New(sink *Sink, debug bool) *DefaultLogger {
	if sink == nil {
		sink = Discard()
	}
	return &DefaultLogger{sink: sink, debug: debug}
}

func (l *DefaultLogger) Debug(msg string, fields ...Field) {
	if l.debug {
		l.log("DEBUG", msg, fields...)
	}
}

func (l *DefaultLogger) Info(msg string, fields ...Field) {
	l.log("INFO", msg, fields...)
}

func (l *DefaultLogger) Warn(msg string, fields ...Field) {
	l.log("WARN", msg, fields...)
}

func (l *DefaultLogger) Error(msg string, fields ...Field) {
	l.log("ERROR", msg, fields...)
}

func (l *DefaultLogger) log(level, msg string, fields ...Field) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(": ")
	b.WriteString(msg)

	if len(fields) > 0 {
		b.WriteString(" |")
		for _, f := range fields {
			fmt.Fprintf(&b, " %s=%v", f.Key, sanitizeValue(f.Value))
		}
	}

	l.sink.Println(b.String())
}

// Peer-supplied strings can be long and contain control bytes.
func sanitizeValue(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if len(s) > 100 {
		s = s[:100] + "...[truncated]"
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '?'
		}
		return r
	}, s)
}

// NullLogger discards all logs (for testing)
type NullLogger struct{}

func (NullLogger) Debug(msg string, fields ...Field) {}
func (NullLogger) Info(msg string, fields ...Field)  {}
func (NullLogger) Warn(msg string, fields ...Field)  {}
func (NullLogger) Error(msg string, fields ...Field) {}
