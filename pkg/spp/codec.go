package spp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Framing constants.
const (
	// FrameMagic is the first byte of every frame.
	FrameMagic byte = 0x5A

	// HeaderSize covers magic, length field and reserved byte.
	HeaderSize = 4

	// ChecksumSize is the size of the CRC trailer.
	ChecksumSize = 2

	// MinFrameSize is the smallest valid frame: header, command, checksum.
	MinFrameSize = HeaderSize + 2 + ChecksumSize

	// MaxParameterSize is the largest payload a single parameter can
	// carry, bounded by its one-byte length field.
	MaxParameterSize = 255

	// MaxBodySize is the largest body (command plus parameters) a frame
	// can declare, bounded by the uint16 length field which counts the
	// reserved byte as well.
	MaxBodySize = 0xFFFF - 1
)

// Decode failure causes. Decode errors always wrap one of these inside a
// *FrameError; use errors.Is to branch on the cause.
var (
	ErrBadMagic         = errors.New("bad frame magic")
	ErrFrameTruncated   = errors.New("frame truncated")
	ErrLengthMismatch   = errors.New("frame length mismatch")
	ErrBadChecksum      = errors.New("bad frame checksum")
	ErrReservedByte     = errors.New("reserved byte not zero")
	ErrInvalidCommand   = errors.New("command outside supported range")
	ErrEmptyParameters  = errors.New("parameter list is empty")
	ErrDuplicateParam   = errors.New("duplicate parameter id")
	ErrParameterTooLong = errors.New("parameter payload too long")
	ErrBodyTooLong      = errors.New("frame body exceeds length field")
)

// FrameError describes a frame that could not be decoded. It is always
// local to the codec boundary: callers receive it as a typed failure and
// decide whether to log, count or drop.
type FrameError struct {
	Cause  error
	Detail string
}

// Error implements the error interface.
func (e *FrameError) Error() string {
	if e.Detail == "" {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s: %s", e.Cause, e.Detail)
}

// Unwrap returns the cause sentinel.
func (e *FrameError) Unwrap() error {
	return e.Cause
}

func frameErrorf(cause error, format string, args ...any) error {
	return &FrameError{Cause: cause, Detail: fmt.Sprintf(format, args...)}
}

// NewReadRequest builds a packet asking the device to report the named
// parameters for a command. The parameter set must be non-empty and free
// of duplicates; each parameter is encoded with an empty payload.
func NewReadRequest(cmd Command, paramIDs []uint8) (*Packet, error) {
	if len(paramIDs) == 0 {
		return nil, ErrEmptyParameters
	}
	params := make(map[uint8][]byte, len(paramIDs))
	for _, id := range paramIDs {
		if _, dup := params[id]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateParam, id)
		}
		params[id] = []byte{}
	}
	return NewPacket(cmd, params), nil
}

// Encode serializes a packet into a complete wire frame.
func Encode(p *Packet) ([]byte, error) {
	if p.Command.Service() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCommand, p.Command)
	}

	// body = command bytes + TLV parameters, in ascending parameter order
	// so encoding is deterministic.
	body := make([]byte, 0, 2+len(p.Parameters)*3)
	body = append(body, p.Command.Service(), p.Command.ID())
	for _, id := range p.ParameterIDs() {
		data := p.Parameters[id]
		if len(data) > MaxParameterSize {
			return nil, fmt.Errorf("%w: id %d has %d bytes", ErrParameterTooLong, id, len(data))
		}
		body = append(body, id, byte(len(data)))
		body = append(body, data...)
	}
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLong, len(body))
	}

	frame := make([]byte, 0, HeaderSize+len(body)+ChecksumSize)
	frame = append(frame, FrameMagic)
	frame = binary.BigEndian.AppendUint16(frame, uint16(len(body)+1))
	frame = append(frame, 0x00)
	frame = append(frame, body...)
	frame = binary.BigEndian.AppendUint16(frame, crc16(frame))
	return frame, nil
}

// Decode parses one complete, already-delimited frame into a Packet.
// It fails with a *FrameError when the byte length is inconsistent with
// the declared length, the checksum is invalid, or the command id is
// outside the supported range. Decoding has no side effects.
func Decode(data []byte) (*Packet, error) {
	if len(data) < MinFrameSize {
		return nil, frameErrorf(ErrFrameTruncated, "%d bytes", len(data))
	}
	if data[0] != FrameMagic {
		return nil, frameErrorf(ErrBadMagic, "0x%02X", data[0])
	}

	declared := int(binary.BigEndian.Uint16(data[1:3]))
	if len(data) != declared+HeaderSize-1+ChecksumSize {
		return nil, frameErrorf(ErrLengthMismatch, "declared %d, frame %d bytes", declared, len(data))
	}
	if data[3] != 0x00 {
		return nil, frameErrorf(ErrReservedByte, "0x%02X", data[3])
	}

	sum := binary.BigEndian.Uint16(data[len(data)-ChecksumSize:])
	if want := crc16(data[:len(data)-ChecksumSize]); sum != want {
		return nil, frameErrorf(ErrBadChecksum, "got 0x%04X, want 0x%04X", sum, want)
	}

	body := data[HeaderSize : len(data)-ChecksumSize]
	cmd := Command(binary.BigEndian.Uint16(body[:2]))
	if cmd.Service() == 0 {
		return nil, frameErrorf(ErrInvalidCommand, "%s", cmd)
	}

	params := make(map[uint8][]byte)
	rest := body[2:]
	for len(rest) > 0 {
		if len(rest) < 2 {
			return nil, frameErrorf(ErrLengthMismatch, "dangling parameter header")
		}
		id, size := rest[0], int(rest[1])
		if len(rest) < 2+size {
			return nil, frameErrorf(ErrLengthMismatch, "parameter %d declares %d bytes, %d remain", id, size, len(rest)-2)
		}
		// Last occurrence wins, matching observed device behaviour for
		// repeated parameter ids.
		params[id] = append([]byte(nil), rest[2:2+size]...)
		rest = rest[2+size:]
	}

	return &Packet{Command: cmd, Parameters: params}, nil
}
