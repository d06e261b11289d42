// Package interaction correlates outgoing requests with incoming response
// packets over the shared transport.
//
// The protocol carries no sequence numbers: a response echoes the command
// id of the request it answers. Pending requests are therefore keyed by
// command id, with a FIFO waiter list per key so concurrent requests for
// the same command each resume exactly once, oldest first. Resuming the
// wrong caller would be silent state corruption; the per-key queue is
// what rules it out.
//
// Inbound packets that match no pending request are not errors - the
// device pushes unsolicited notifications over the same channel - and are
// handed to the notification callback, which the driver points at the
// command dispatcher.
package interaction
