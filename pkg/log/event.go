package log

import (
	"time"
)

// Event represents a protocol event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the transport connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// DeviceAddr is the Bluetooth address of the peer, if known.
	DeviceAddr string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"7,keyasint,omitempty"`  // Transport layer
	Packet      *PacketEvent      `cbor:"8,keyasint,omitempty"`  // Codec layer (decoded)
	StateChange *StateChangeEvent `cbor:"9,keyasint,omitempty"`  // Driver lifecycle
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates data received from the device.
	DirectionIn Direction = 0
	// DirectionOut indicates data sent to the device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the SPP byte-stream layer (raw frames).
	LayerTransport Layer = 0
	// LayerCodec is the packet encode/decode layer.
	LayerCodec Layer = 1
	// LayerDriver is the driver/handler layer.
	LayerDriver Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerCodec:
		return "CODEC"
	case LayerDriver:
		return "DRIVER"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol frame or packet.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a raw frame at the transport layer.
type FrameEvent struct {
	// Size is the full frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the frame content, possibly truncated.
	Data []byte `cbor:"2,keyasint"`

	// Truncated indicates Data was cut to the capture limit.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// PacketEvent captures a decoded packet at the codec layer.
type PacketEvent struct {
	// Command is the packet's command identifier.
	Command uint16 `cbor:"1,keyasint"`

	// ParameterIDs lists the parameter ids present in the packet.
	ParameterIDs []uint8 `cbor:"2,keyasint,omitempty"`

	// Correlated indicates the packet resolved a pending request
	// rather than arriving unsolicited.
	Correlated bool `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures a driver lifecycle transition.
type StateChangeEvent struct {
	OldState string `cbor:"1,keyasint"`
	NewState string `cbor:"2,keyasint"`
	Reason   string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
	Context string `cbor:"3,keyasint,omitempty"`
}
