package oaep

import "errors"

var (
	// ErrInvalidParam is returned for an unresolved hash selector, a missing
	// input or output buffer, or a buffer of the wrong size.
	ErrInvalidParam = errors.New("oaep: invalid parameter")

	// ErrInvalidMessageLength is returned when a message to encode exceeds the
	// hash-dependent bound, or a decoded message does not fit that bound or
	// the caller's output buffer.
	ErrInvalidMessageLength = errors.New("oaep: invalid message length")

	// ErrByteMismatch is returned when the leading byte of a padded block is
	// not 0x00.
	ErrByteMismatch = errors.New("oaep: leading byte mismatch")

	// ErrDataCompare is returned when the recovered label hash differs from
	// the hash of the supplied label.
	ErrDataCompare = errors.New("oaep: label hash mismatch")

	// ErrDBMismatch is returned when the padding string is not all zeros or
	// the 0x01 separator is missing.
	ErrDBMismatch = errors.New("oaep: malformed data block")

	// ErrEntropy is returned when the seed could not be drawn.
	ErrEntropy = errors.New("oaep: seed generation failed")
)
