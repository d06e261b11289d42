package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/openfreebuds/freebuds-go/pkg/log"
)

// MaxLogFrameDataSize is the maximum frame size included verbatim in
// protocol log events; larger frames are truncated in the capture.
const MaxLogFrameDataSize = 1024

// SocketTransport runs the SPP framing protocol over any byte stream,
// typically the RFCOMM file descriptor obtained from BlueZ. It owns a
// reader goroutine that deframes the stream into the Packets channel.
type SocketTransport struct {
	conn   io.ReadWriteCloser
	connID string
	addr   string

	writeMu sync.Mutex
	packets chan []byte
	started atomic.Bool

	closeOnce sync.Once
	closeErr  error

	// logger is set at construction and never mutated; the read loop
	// accesses it without synchronization.
	logger log.Logger
}

// NewSocketTransport wraps an established byte-stream connection.
// addr is the peer's Bluetooth address and logger optionally captures
// protocol events; both may be left empty/nil. The reader goroutine
// starts immediately, so the logger must be supplied here rather than
// attached later.
// The returned transport is live; call Close to stop it.
func NewSocketTransport(conn io.ReadWriteCloser, addr string, logger log.Logger) *SocketTransport {
	t := &SocketTransport{
		conn:    conn,
		connID:  uuid.NewString(),
		addr:    addr,
		logger:  logger,
		packets: make(chan []byte, 16),
	}
	t.started.Store(true)
	go t.readLoop()
	return t
}

// ConnectionID returns the transport's unique connection id.
func (t *SocketTransport) ConnectionID() string {
	return t.connID
}

// Send writes one complete frame. Concurrent callers are serialized.
func (t *SocketTransport) Send(data []byte) error {
	if !t.started.Load() {
		return ErrClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.conn.Write(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	t.logFrame(data, log.DirectionOut)
	return nil
}

// Packets returns the stream of complete received PDUs.
func (t *SocketTransport) Packets() <-chan []byte {
	return t.packets
}

// Started reports whether the transport is live.
func (t *SocketTransport) Started() bool {
	return t.started.Load()
}

// Close shuts the transport down. The packet channel is closed once the
// reader goroutine observes the closed connection.
func (t *SocketTransport) Close() error {
	t.closeOnce.Do(func() {
		t.started.Store(false)
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// readLoop deframes the stream until the connection ends.
func (t *SocketTransport) readLoop() {
	defer close(t.packets)
	defer t.started.Store(false)

	deframer := NewDeframer(t.conn)
	for {
		frame, err := deframer.ReadPDU()
		if err != nil {
			if !errors.Is(err, io.EOF) && t.started.Load() {
				t.logError(err)
			}
			// Any read error ends the connection: either the peer went
			// away or the stream lost frame sync.
			_ = t.Close()
			return
		}
		t.logFrame(frame, log.DirectionIn)
		t.packets <- frame
	}
}

func (t *SocketTransport) logFrame(data []byte, direction log.Direction) {
	if t.logger == nil {
		return
	}
	frameData := data
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}
	t.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: t.connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		DeviceAddr:   t.addr,
		Frame: &log.FrameEvent{
			Size:      len(data),
			Data:      frameData,
			Truncated: truncated,
		},
	})
}

func (t *SocketTransport) logError(err error) {
	if t.logger == nil {
		return
	}
	t.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: t.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		DeviceAddr:   t.addr,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: "read loop",
		},
	})
}

// Compile-time interface satisfaction check.
var _ Transport = (*SocketTransport)(nil)
