package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Trace files are append-only streams of back-to-back CBOR maps, one per
// Event. Encoding is canonical so identical events always produce
// identical bytes; decoding is tolerant so captures from older builds
// with extra fields still replay.
var (
	traceEnc cbor.EncMode
	traceDec cbor.DecMode
)

func init() {
	var err error
	traceEnc, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace encoder mode: %v", err))
	}

	traceDec, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("trace decoder mode: %v", err))
	}
}

// EncodeEvent serializes one event to its canonical trace bytes.
func EncodeEvent(event Event) ([]byte, error) {
	return traceEnc.Marshal(event)
}

// DecodeEvent parses one event from trace bytes.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := traceDec.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder creates a streaming event encoder writing to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return traceEnc.NewEncoder(w)
}

// NewDecoder creates a streaming event decoder reading from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return traceDec.NewDecoder(r)
}
