package spp

import (
	"fmt"
	"sort"
)

// Command identifies the semantic operation of a packet. The high byte is
// the service the command belongs to, the low byte the operation within it.
type Command uint16

// Known commands. Devices may emit commands outside this list; the
// dispatcher treats those as routable-but-unclaimed rather than errors.
const (
	// CmdBatteryRead requests the current battery levels.
	CmdBatteryRead Command = 0x0108

	// CmdBatteryNotify is sent unsolicited by the device when battery
	// state changes (e.g. an earbud is placed into the case).
	CmdBatteryNotify Command = 0x0127

	// CmdNoiseRead requests the current noise-control mode.
	CmdNoiseRead Command = 0x2B2A

	// CmdNoiseSet changes the noise-control mode.
	CmdNoiseSet Command = 0x2B04

	// CmdNoiseNotify is sent unsolicited when the noise-control mode
	// changes on the device side (e.g. via touch gesture).
	CmdNoiseNotify Command = 0x2B03
)

// Service returns the service byte of the command.
func (c Command) Service() byte {
	return byte(c >> 8)
}

// ID returns the operation byte of the command.
func (c Command) ID() byte {
	return byte(c)
}

// String returns the command in wire notation, e.g. "0x2B2A".
func (c Command) String() string {
	return fmt.Sprintf("0x%04X", uint16(c))
}

// Packet is one decoded PDU: a command plus its parameter map.
// Parameter IDs that the sender did not care about are simply absent.
// A decoded Packet is immutable by convention; use Clone before mutating.
type Packet struct {
	Command    Command
	Parameters map[uint8][]byte
}

// NewPacket creates a packet with the given command and parameters.
// The parameter map is used as-is, not copied.
func NewPacket(cmd Command, params map[uint8][]byte) *Packet {
	if params == nil {
		params = make(map[uint8][]byte)
	}
	return &Packet{Command: cmd, Parameters: params}
}

// Has reports whether the parameter ID is present.
func (p *Packet) Has(id uint8) bool {
	_, ok := p.Parameters[id]
	return ok
}

// Param returns the payload for the parameter ID.
func (p *Packet) Param(id uint8) ([]byte, bool) {
	data, ok := p.Parameters[id]
	return data, ok
}

// ParameterIDs returns the present parameter IDs in ascending order.
func (p *Packet) ParameterIDs() []uint8 {
	ids := make([]uint8, 0, len(p.Parameters))
	for id := range p.Parameters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone creates a deep copy of the packet.
func (p *Packet) Clone() *Packet {
	params := make(map[uint8][]byte, len(p.Parameters))
	for id, data := range p.Parameters {
		params[id] = append([]byte(nil), data...)
	}
	return &Packet{Command: p.Command, Parameters: params}
}

// String returns a compact human-readable form for logging.
func (p *Packet) String() string {
	return fmt.Sprintf("%s params=%v", p.Command, p.ParameterIDs())
}
