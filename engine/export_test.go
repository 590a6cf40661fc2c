package engine

import "math/big"

// SetCorruptForTesting installs a hook that tampers with the CRT result before
// it is verified, standing in for an injected fault.
func (s *Software) SetCorruptForTesting(f func(*big.Int)) {
	s.corrupt = f
}
