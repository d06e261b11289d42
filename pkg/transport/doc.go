// Package transport carries raw protocol frames between the driver and
// the earbuds over an SPP (RFCOMM) byte stream.
//
// The Transport interface is what the driver consumes: a serialized send
// path, a channel of complete received PDUs, and a liveness flag that
// periodic handlers consult to tell transient failures from a dead link.
// Deframer locates PDU boundaries in the byte stream; the codec in
// package spp never sees a partial frame.
//
// Dial connects to a device through BlueZ's Profile1 API and wraps the
// resulting RFCOMM file descriptor in a SocketTransport. Tests use
// SocketTransport directly over an in-memory pipe.
package transport
