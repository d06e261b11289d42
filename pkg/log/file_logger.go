package log

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends protocol events to a CBOR trace file. It is safe
// for concurrent use; capture failures never propagate into the driver,
// they only increment the dropped counter.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool

	dropped atomic.Uint64
}

// NewFileLogger opens (or creates) the trace file at path and appends
// to it, so interrupted capture sessions can be resumed.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		file:    f,
		encoder: NewEncoder(f),
	}, nil
}

// Log appends one event to the trace. Events arriving after Close, or
// failing to encode, are counted as dropped rather than reported.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		l.dropped.Add(1)
		return
	}
	if err := l.encoder.Encode(event); err != nil {
		l.dropped.Add(1)
	}
}

// Dropped returns how many events were lost to a closed file or encode
// failures.
func (l *FileLogger) Dropped() uint64 {
	return l.dropped.Load()
}

// Close flushes and closes the trace file. Idempotent.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)
