// Package dsdl implements the bit-level serialization used by the remote I/O
// payloads.
//
// Bit offsets count from the least significant bit of the first byte. A field
// is stored least significant bit first, so an 8-bit field at offset 0 is the
// first byte as-is and a 16-bit field at offset 0 is little-endian.
//
// All functions are pure: they only touch the buffer passed in.
package dsdl
