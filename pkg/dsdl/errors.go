package dsdl

import "errors"

var (
	// ErrTruncatedPayload indicates fewer bits remain in the payload than
	// the field being decoded declares.
	ErrTruncatedPayload = errors.New("truncated payload")
	// ErrBadWidth indicates a field width outside 1..64.
	ErrBadWidth = errors.New("bad field width")
)
