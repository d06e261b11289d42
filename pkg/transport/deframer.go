package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/openfreebuds/freebuds-go/pkg/spp"
)

// Deframing constants.
const (
	// headerSize covers magic, length field and reserved byte.
	headerSize = spp.HeaderSize

	// DefaultMaxFrameSize is the default maximum accepted frame size.
	// Device frames are tiny; anything near this indicates a desynced
	// stream.
	DefaultMaxFrameSize = 4096
)

// Deframer reads complete PDUs from a raw byte stream. A PDU starts with
// the magic byte, declares its own length in the header, and ends with
// the checksum trailer; Deframer returns the whole frame, checksum
// included, leaving validation to the codec.
type Deframer struct {
	r            io.Reader
	maxFrameSize int
	headerBuf    [headerSize]byte
}

// NewDeframer creates a deframer over r.
func NewDeframer(r io.Reader) *Deframer {
	return &Deframer{r: r, maxFrameSize: DefaultMaxFrameSize}
}

// SetMaxFrameSize updates the maximum accepted frame size.
func (d *Deframer) SetMaxFrameSize(size int) {
	d.maxFrameSize = size
}

// ReadPDU reads the next complete frame.
func (d *Deframer) ReadPDU() ([]byte, error) {
	if _, err := io.ReadFull(d.r, d.headerBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	if d.headerBuf[0] != spp.FrameMagic {
		return nil, fmt.Errorf("%w: leading byte 0x%02X", ErrBadMagic, d.headerBuf[0])
	}

	declared := int(binary.BigEndian.Uint16(d.headerBuf[1:3]))
	// declared counts the reserved byte plus the body; the trailer adds
	// the checksum.
	total := headerSize + declared - 1 + spp.ChecksumSize
	if total > d.maxFrameSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, total, d.maxFrameSize)
	}
	if total < spp.MinFrameSize {
		return nil, fmt.Errorf("%w: declared length %d", ErrFrameTruncated, declared)
	}

	frame := make([]byte, total)
	copy(frame, d.headerBuf[:])
	if _, err := io.ReadFull(d.r, frame[headerSize:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}
	return frame, nil
}
