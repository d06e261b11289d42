// Package handler contains the per-feature protocol handlers: each one
// claims a set of command ids, decodes their parameter maps, and
// publishes the result into the property store.
//
// Battery is the stateful exemplar: it bootstraps with a correlated read
// on init, applies unsolicited notify packets, and optionally polls the
// device on a fixed interval through a task.Runner it owns and fully
// stops during Cleanup. NoiseControl follows the same shape without a
// background task and adds a write path for changing the mode.
package handler
