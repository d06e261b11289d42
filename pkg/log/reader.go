package log

import (
	"errors"
	"io"
	"os"
)

// Reader reads protocol events back from a CBOR capture stream.
type Reader struct {
	decoder interface{ Decode(any) error }
	closer  io.Closer
}

// NewReader creates a Reader over an arbitrary CBOR event stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{decoder: NewDecoder(r)}
}

// OpenFile opens a capture file written by FileLogger.
func OpenFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{decoder: NewDecoder(f), closer: f}, nil
}

// Next returns the next event in the stream.
// It returns io.EOF when the stream is exhausted.
func (r *Reader) Next() (Event, error) {
	var event Event
	if err := r.decoder.Decode(&event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// ReadAll reads every remaining event in the stream.
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}

// Close closes the underlying file, if the Reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
