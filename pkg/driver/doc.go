// Package driver assembles the full device session: transport read loop,
// request correlation, handler dispatch, property store and event bus.
// Consumers interact with a Driver; everything below it is plumbing.
package driver
