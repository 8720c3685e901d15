package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Outcomes.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeError   = "ERROR"
)

// Entry is a single audit record.
type Entry struct {
	Timestamp     time.Time              `json:"ts"`
	Action        string                 `json:"action"`
	Outcome       string                 `json:"outcome"`
	Code          string                 `json:"code"`
	LatencyMs     int64                  `json:"latencyMs"`
	CorrelationID string                 `json:"correlationId,omitempty"`
	Params        map[string]interface{} `json:"params"`
}

// CodeFunc maps an operation error to a result code.
type CodeFunc func(err error) string

// Logger writes audit entries.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      io.Writer
	closer   io.Closer
	code     CodeFunc
}

// NewLogger writes dir/audit.jsonl, rotating once it reaches maxSizeMB.
func NewLogger(dir string, maxSizeMB int, code CodeFunc) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	path := filepath.Join(dir, "audit.jsonl")
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
	}
	l := NewWriterLogger(lj, code)
	l.filePath = path
	l.closer = lj
	return l, nil
}

// NewWriterLogger writes entries to w.
func NewWriterLogger(w io.Writer, code CodeFunc) *Logger {
	if code == nil {
		code = defaultCode
	}
	return &Logger{out: w, code: code}
}

// Discard returns a logger that drops every entry.
func Discard() *Logger {
	return NewWriterLogger(io.Discard, nil)
}

func defaultCode(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	return OutcomeError
}

// GetFilePath returns the active audit file, or "" for writer loggers.
func (l *Logger) GetFilePath() string {
	return l.filePath
}

// LogAction records action with its outcome and latency.
func (l *Logger) LogAction(ctx context.Context, action string, params map[string]interface{}, err error, latency time.Duration) {
	if params == nil {
		params = map[string]interface{}{}
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
		params["error"] = err.Error()
	}
	l.writeEntry(Entry{
		Timestamp:     time.Now().UTC(),
		Action:        action,
		Outcome:       outcome,
		Code:          l.code(err),
		LatencyMs:     latency.Milliseconds(),
		CorrelationID: CorrelationID(ctx),
		Params:        params,
	})
}

func (l *Logger) writeEntry(entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

type correlationKey struct{}

// WithCorrelationID returns ctx carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id carried by ctx, or "".
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
