package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// StdoutLogger is a tiny, structured logger used in development and tests.
// It prints one JSON object per line and carries persistent fields from With().
type StdoutLogger struct {
	mu     *sync.Mutex
	out    io.Writer
	fields []Field
}

// NewStdoutLogger creates a StdoutLogger. component is optional and becomes
// a persistent field.
func NewStdoutLogger(component string) *StdoutLogger {
	return NewWriterLogger(os.Stdout, component)
}

// NewWriterLogger is NewStdoutLogger writing to w.
func NewWriterLogger(w io.Writer, component string) *StdoutLogger {
	l := &StdoutLogger{mu: &sync.Mutex{}, out: w}
	if component != "" {
		l.fields = []Field{Component(component)}
	}
	return l
}

func (s *StdoutLogger) log(level string, msg string, fields ...Field) {
	m := make(map[string]any, len(s.fields)+len(fields)+3)
	for _, f := range s.fields {
		m[f.Key] = f.Value
	}
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	m["level"] = level
	m["msg"] = msg
	m["time"] = time.Now().UTC().Format(time.RFC3339)

	enc, err := json.Marshal(m)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		fmt.Fprintf(s.out, "%s %s %v\n", level, msg, m)
		return
	}
	fmt.Fprintln(s.out, string(enc))
}

func (s *StdoutLogger) Debug(msg string, fields ...Field) { s.log("debug", msg, fields...) }

func (s *StdoutLogger) Info(msg string, fields ...Field) { s.log("info", msg, fields...) }

func (s *StdoutLogger) Warn(msg string, fields ...Field) { s.log("warn", msg, fields...) }

func (s *StdoutLogger) Error(msg string, fields ...Field) { s.log("error", msg, fields...) }

func (s *StdoutLogger) With(fields ...Field) Logger {
	child := &StdoutLogger{mu: s.mu, out: s.out}
	child.fields = append(append(make([]Field, 0, len(s.fields)+len(fields)), s.fields...), fields...)
	return child
}
