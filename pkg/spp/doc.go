// Package spp implements the vendor binary packet format spoken over the
// Serial Port Profile channel of FreeBuds-class earbuds.
//
// A packet carries a 16-bit command identifier and a map of small integer
// parameter IDs to raw byte payloads. On the wire a packet is framed as:
//
//	offset 0    magic byte 0x5A
//	offset 1-2  big-endian body length (command bytes + parameters + 1)
//	offset 3    reserved, always 0x00
//	offset 4-5  command identifier (service byte, command byte)
//	offset 6..  parameters as [id, length, data...] triples
//	trailer     CRC16-CCITT (XMODEM) over everything before it
//
// Encoding and decoding are pure: no I/O, no shared state. Locating frame
// boundaries in the raw byte stream is the transport's job (see package
// transport); this package always receives and produces complete frames.
package spp
