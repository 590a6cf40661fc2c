// Package mgf1 implements the MGF1 mask generation function from PKCS #1 v2.2
// (RFC 8017, Appendix B.2.1).
package mgf1

import (
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/vaultsandbox/rsawrap/internal/digest"
)

// Mask fills out with MGF1(seed, len(out)) computed with h.
//
// The mask is the concatenation of Hash(seed || C) for the 4-byte big-endian
// counter C = 0, 1, 2, ..., truncated to len(out).
func Mask(out []byte, h hash.Hash, seed []byte) {
	clear(out)
	XOR(out, h, seed)
}

// XOR XORs MGF1(seed, len(out)) into out in place.
func XOR(out []byte, h hash.Hash, seed []byte) {
	var counter [4]byte
	var block []byte

	h.Reset()
	done := 0
	for c := uint32(0); done < len(out); c++ {
		binary.BigEndian.PutUint32(counter[:], c)
		h.Write(seed)
		h.Write(counter[:])
		block = h.Sum(block[:0])
		h.Reset()

		done += xorBytes(out[done:], block)
	}
	clear(block)
}

// Generate returns an outLen-byte mask for seed using the hash selected by sel.
// The only failure is an unresolved selector. The codec already holds a
// resolved hash and masks in place with XOR; Generate is the allocating form
// for callers that only have a selector.
func Generate(p digest.Provider, sel digest.Selector, seed []byte, outLen int) ([]byte, error) {
	d, err := p.Lookup(sel)
	if err != nil {
		return nil, fmt.Errorf("mgf1: %w", err)
	}
	out := make([]byte, outLen)
	Mask(out, d.New(), seed)
	return out, nil
}

func xorBytes(dst, src []byte) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] ^= src[i]
	}
	return n
}
