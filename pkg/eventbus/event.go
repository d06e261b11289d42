package eventbus

// Kind is the enumerated tag of an event.
type Kind uint8

const (
	// KindPropertyChanged signals that a property store namespace changed.
	// Args[0] is the namespace name.
	KindPropertyChanged Kind = iota + 1

	// KindStateChanged signals a driver lifecycle transition.
	// Args[0] is the new state's string form.
	KindStateChanged
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPropertyChanged:
		return "PROPERTY_CHANGED"
	case KindStateChanged:
		return "STATE_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// Event is an immutable value object broadcast to subscribers.
// It must not reference mutable driver state after emission.
type Event struct {
	Kind Kind
	Args []any
}
