// Package property implements the namespaced key/value store the driver
// publishes decoded device state into.
//
// Handlers write with Put (single key) or Merge (shallow merge of several
// keys into a namespace); merge semantics mean a handler reporting only a
// subset of fields never erases previously known fields. A write that
// reproduces the existing value is a no-op for notification purposes: the
// change callback fires only when the resulting value actually differs.
//
// Reads never block and never fail on missing keys; consumers (a GUI, a
// CLI) only ever read through Get/Namespace/Snapshot and observe changes
// through the event bus the driver wires the store to.
package property
