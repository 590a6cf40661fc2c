// Package fault holds the glitch countermeasures used around
// security-sensitive decisions.
//
// A single corrupted comparison (voltage or clock glitch, laser fault) must not
// be enough to turn a rejection into an acceptance. Every decision that gates
// control flow is therefore computed along two independent paths and accepted
// only when both agree. The duplication is the countermeasure: do not fold
// the two evaluations into one.
package fault

import (
	"crypto/subtle"
	"errors"
	"sync/atomic"
)

// ErrFaultDetected is returned when two evaluations of the same decision
// disagree.
var ErrFaultDetected = errors.New("fault detected: redundant checks disagree")

// Status is a success flag kept in an atomic so the compiler cannot cache it
// in a register across the redundant reads.
type Status struct {
	v atomic.Uint32
}

const (
	statusFailure uint32 = 0x5A5A5A5A
	statusSuccess uint32 = 0xA5A5A5A5
)

// NewStatus returns a Status initialised to failure.
func NewStatus() *Status {
	s := &Status{}
	s.v.Store(statusFailure)
	return s
}

// Set records ok. Anything other than the success pattern reads as failure.
func (s *Status) Set(ok bool) {
	if ok {
		s.v.Store(statusSuccess)
		return
	}
	s.v.Store(statusFailure)
}

// OK reads the flag twice and reports success only when both reads carry the
// success pattern.
func (s *Status) OK() bool {
	first := s.v.Load()
	second := s.v.Load()
	return first == statusSuccess && second == statusSuccess
}

// Confirm evaluates a decision along two independent paths.
// It returns (true, nil) only if both paths return true and (false, nil) if
// both return false. Disagreement returns ErrFaultDetected.
func Confirm(primary, secondary func() bool) (bool, error) {
	a := primary()
	b := secondary()
	if a != b {
		return false, ErrFaultDetected
	}
	// Re-read a through a different comparison so a skipped branch above is
	// caught here.
	if (a && !b) || (!a && b) {
		return false, ErrFaultDetected
	}
	return a, nil
}

// Equal reports whether a and b hold the same bytes. The comparison runs in
// constant time with respect to the contents and is evaluated twice: once
// with subtle.ConstantTimeCompare and once by OR-accumulating the XOR of every
// byte pair. Disagreement returns ErrFaultDetected.
func Equal(a, b []byte) (bool, error) {
	return Confirm(
		func() bool { return subtle.ConstantTimeCompare(a, b) == 1 },
		func() bool { return accumulateDiff(a, b) == 0 },
	)
}

func accumulateDiff(a, b []byte) byte {
	if len(a) != len(b) {
		return 1
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff
}
