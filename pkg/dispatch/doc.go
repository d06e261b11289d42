// Package dispatch owns the handler registry and routes every decoded
// inbound packet to the handler claiming its command id.
//
// Each command id belongs to exactly one handler; registering a second
// handler for a claimed command is a configuration error surfaced at
// Register time. A packet whose command nobody claims is logged and
// dropped - firmware variants emit commands this driver has never heard
// of, and that must never crash it.
package dispatch
