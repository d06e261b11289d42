package transport

import (
	"errors"
)

// Transport errors.
var (
	// ErrClosed indicates the transport has been closed.
	ErrClosed = errors.New("transport closed")

	// ErrFrameTooLarge indicates a frame exceeded the size limit.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrFrameTruncated indicates the stream ended mid-frame.
	ErrFrameTruncated = errors.New("frame truncated")

	// ErrBadMagic indicates the stream is not aligned on a frame
	// boundary. The link carries no resynchronization marker beyond the
	// magic byte, so this is fatal for the connection.
	ErrBadMagic = errors.New("stream out of frame sync")
)

// Transport is the byte transport the driver exchanges PDUs over.
// Implementations serialize concurrent Send calls internally.
type Transport interface {
	// Send writes one complete encoded frame to the device.
	Send(data []byte) error

	// Packets returns the stream of complete received PDUs. The channel
	// is closed when the transport stops; no partial frames are ever
	// delivered.
	Packets() <-chan []byte

	// Started reports whether the transport is live. Periodic handlers
	// use this to decide between retrying a failed update and giving up.
	Started() bool

	// Close shuts the transport down and closes the packet channel.
	// Close is idempotent.
	Close() error
}
