// Package log provides structured capture of protocol events for the
// earbuds driver: raw frames crossing the transport, decoded packets,
// driver state changes and decode errors.
//
// Applications implement the Logger interface (or use FileLogger,
// SlogAdapter, MultiLogger) and attach it to the transport and driver.
// FileLogger writes events as a CBOR stream, suitable for validating the
// codec against captured device traffic; Reader reads such captures back.
//
// Operational logging (what a human reads while the driver runs) is
// separate and uses log/slog throughout the module.
package log
