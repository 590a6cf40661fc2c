package rsawrap

import (
	"errors"
	"fmt"

	"github.com/vaultsandbox/rsawrap/engine"
	"github.com/vaultsandbox/rsawrap/internal/oaep"
	"github.com/vaultsandbox/rsawrap/keys"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrInvalidParam is returned for a missing or wrongly sized buffer or an
	// unknown hash selector.
	ErrInvalidParam = oaep.ErrInvalidParam

	// ErrInvalidMessageLength is returned when a plaintext is longer than
	// MaxMessageLen for the selected hash.
	ErrInvalidMessageLength = oaep.ErrInvalidMessageLength

	// ErrByteMismatch, ErrDataCompare and ErrDBMismatch identify the decode
	// check that rejected a block. Decrypt only exposes them when diagnostics
	// are enabled.
	ErrByteMismatch = oaep.ErrByteMismatch
	ErrDataCompare  = oaep.ErrDataCompare
	ErrDBMismatch   = oaep.ErrDBMismatch

	// ErrEntropy is returned when no seed could be drawn.
	ErrEntropy = oaep.ErrEntropy

	// ErrExponentInvalidParam is returned when an exponentiation operand is
	// missing or out of range.
	ErrExponentInvalidParam = engine.ErrExponentInvalidParam

	// ErrEngineHeld is returned when the engine refuses to compute.
	ErrEngineHeld = engine.ErrEngineHeld

	// ErrFaultDetected is returned when a redundant check disagrees or the
	// private-key result fails verification.
	ErrFaultDetected = engine.ErrFaultDetected

	// ErrKeyZeroized is returned once the key provider has been scrubbed.
	ErrKeyZeroized = keys.ErrKeyZeroized

	// ErrNoPrivateKey is returned by Decrypt on a public-only provider.
	ErrNoPrivateKey = keys.ErrNoPrivateKey

	// ErrDecryptionFailed is returned when a ciphertext does not decode to a
	// valid OAEP block.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// RSAWrapError is implemented by all typed errors of this package.
type RSAWrapError interface {
	error
	RSAWrapError() // marker method
}

// DecryptionError reports a ciphertext that failed OAEP decoding. The
// individual padding checks are indistinguishable unless the Wrapper was
// built with WithDiagnostics(true), in which case Err holds the cause.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decryption failed: %v", e.Err)
	}
	return "decryption failed"
}

// Unwrap returns the underlying error.
func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *DecryptionError) Is(target error) bool {
	return target == ErrDecryptionFailed
}

// RSAWrapError implements the RSAWrapError interface.
func (e *DecryptionError) RSAWrapError() {}

// OperationError wraps a failure of Encrypt or Decrypt with the stage that
// produced it.
type OperationError struct {
	Op    string // "encrypt", "decrypt"
	Stage string // "key", "encode", "exponentiation", "decode"
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// RSAWrapError implements the RSAWrapError interface.
func (e *OperationError) RSAWrapError() {}

// isPaddingError reports whether err came from a decode-side padding check.
func isPaddingError(err error) bool {
	return errors.Is(err, oaep.ErrByteMismatch) ||
		errors.Is(err, oaep.ErrDataCompare) ||
		errors.Is(err, oaep.ErrDBMismatch) ||
		errors.Is(err, oaep.ErrInvalidMessageLength)
}

// wrapDecodeError collapses padding failures into a DecryptionError so
// callers cannot tell which check rejected the block.
func wrapDecodeError(err error, diagnostics bool) error {
	if err == nil {
		return nil
	}
	if isPaddingError(err) {
		if diagnostics {
			return &DecryptionError{Err: err}
		}
		return &DecryptionError{}
	}
	return &OperationError{Op: "decrypt", Stage: "decode", Err: err}
}
