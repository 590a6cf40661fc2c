// Package secmem scrubs sensitive buffers once an operation no longer needs
// them.
//
// The Go runtime may have copied a slice before it is scrubbed, so this
// narrows the window in which secrets sit in memory rather than guaranteeing
// erasure.
package secmem

import "crypto/subtle"

// Zero overwrites b with zeros. The copy goes through
// subtle.ConstantTimeCopy so the store is not elided as dead.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}

// ZeroAll zeros every buffer in bufs.
func ZeroAll(bufs ...[]byte) {
	for _, b := range bufs {
		Zero(b)
	}
}

// IsZero reports whether every byte of b is zero without branching on the
// contents.
func IsZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return subtle.ConstantTimeByteEq(acc, 0) == 1
}

// Reverse reverses b in place. The exponentiation engine produces its result
// least-significant byte first; the codec consumes it most-significant first.
func Reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
