package tunnel

import "errors"

var (
	// ErrPacketTooLong indicates a packet above the connection limit.
	ErrPacketTooLong = errors.New("packet too long")
	// ErrNotReady indicates the link is not synchronized.
	ErrNotReady = errors.New("link not ready")
	// ErrLinkClosed is returned after the link stopped.
	ErrLinkClosed = errors.New("link closed")
	// ErrBadFrame indicates a packet not holding a CAN frame.
	ErrBadFrame = errors.New("malformed frame packet")
)
