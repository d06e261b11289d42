package property

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode produces canonical CBOR so two equal values always encode to
// the same bytes regardless of map iteration order.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}
}

// Equal compares two property values by their canonical CBOR encoding.
// Values that cannot be encoded compare unequal, which errs on the side
// of emitting a change event.
func Equal(a, b any) bool {
	dataA, errA := encMode.Marshal(a)
	dataB, errB := encMode.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(dataA, dataB)
}
