package observe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"sync"
	"time"
)

// LogLevel orders execution records by severity.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// ParseLogLevel maps a policy or config level name to a LogLevel. Unknown
// names are info.
func ParseLogLevel(s string) LogLevel {
	for l, name := range levelNames {
		if name == s {
			return LogLevel(l)
		}
	}
	return LevelInfo
}

func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelError {
		return "info"
	}
	return levelNames[l]
}

var redacted = func() map[string]bool {
	m := make(map[string]bool, len(RedactedFields))
	for _, k := range RedactedFields {
		m[k] = true
	}
	return m
}()

// structuredLogger writes one JSON object per execution record. Loggers
// derived with WithOperation share the writer and its lock, so lines from
// concurrent operations never interleave.
type structuredLogger struct {
	level  LogLevel
	writer io.Writer
	mu     *sync.Mutex
	scope  map[string]any // operation fields stamped on every line
	now    func() time.Time
}

// NewLogger returns a JSON record logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter returns a JSON record logger writing to w.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return &structuredLogger{
		level:  ParseLogLevel(level),
		writer: w,
		mu:     &sync.Mutex{},
		scope:  map[string]any{},
		now:    time.Now,
	}
}

func (l *structuredLogger) WithOperation(meta OperationMeta) Logger {
	scope := maps.Clone(l.scope)
	scope["operation.id"] = meta.ID
	if meta.Component != "" {
		scope["operation.component"] = meta.Component
	}
	if meta.Method != "" {
		scope["operation.method"] = meta.Method
	}

	derived := *l
	derived.scope = scope
	return &derived
}

func (l *structuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.write(LevelInfo, msg, fields)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.write(LevelWarn, msg, fields)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.write(LevelError, msg, fields)
}

func (l *structuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.write(LevelDebug, msg, fields)
}

func (l *structuredLogger) write(level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	line := make(map[string]any, len(l.scope)+len(fields)+3)
	maps.Copy(line, l.scope)
	for _, f := range fields {
		if redacted[f.Key] {
			line[f.Key] = "[REDACTED]"
			continue
		}
		line[f.Key] = f.Value
	}
	line["timestamp"] = l.now().UTC().Format(time.RFC3339Nano)
	line["level"] = level.String()
	line["msg"] = msg

	data, err := json.Marshal(line)
	if err != nil {
		data = marshalLossy(line)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.writer.Write(data)
}

// marshalLossy keeps a record whose field values JSON cannot encode by
// rendering those values with %v.
func marshalLossy(line map[string]any) []byte {
	for k, v := range line {
		if _, err := json.Marshal(v); err != nil {
			line[k] = fmt.Sprintf("%v", v)
		}
	}
	data, err := json.Marshal(line)
	if err != nil {
		return []byte(`{"level":"error","msg":"unencodable execution record"}`)
	}
	return data
}

var _ Logger = (*structuredLogger)(nil)
