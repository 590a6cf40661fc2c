package digest

import (
	"hash"

	"github.com/cloudflare/circl/xof"
)

// fixedXOF adapts an extendable-output function to hash.Hash by squeezing a
// fixed number of bytes from a clone of the absorbing state.
type fixedXOF struct {
	id        xof.ID
	state     xof.XOF
	size      int
	blockSize int
}

var _ hash.Hash = (*fixedXOF)(nil)

func newFixedXOF(id xof.ID, size, blockSize int) *fixedXOF {
	return &fixedXOF{id: id, state: id.New(), size: size, blockSize: blockSize}
}

func (f *fixedXOF) Write(p []byte) (int, error) {
	return f.state.Write(p)
}

// Sum appends the digest to b without changing the absorbing state.
func (f *fixedXOF) Sum(b []byte) []byte {
	out := make([]byte, f.size)
	// Reading from an XOF never fails.
	_, _ = f.state.Clone().Read(out)
	return append(b, out...)
}

func (f *fixedXOF) Reset() {
	f.state.Reset()
}

func (f *fixedXOF) Size() int { return f.size }

func (f *fixedXOF) BlockSize() int { return f.blockSize }
