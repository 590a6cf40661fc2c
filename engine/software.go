package engine

import (
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/vaultsandbox/rsawrap/internal/fault"
	"github.com/vaultsandbox/rsawrap/internal/secmem"
)

// Software is an Engine backed by math/big. It models the accelerator's
// reset line and output byte order so the Exponentiator protocol can be
// exercised without hardware. It is not constant time.
type Software struct {
	held     atomic.Bool
	releases atomic.Int64
	holds    atomic.Int64

	// corrupt, when set, is applied to the CRT result before verification.
	corrupt func(*big.Int)
}

var _ Engine = (*Software)(nil)

// NewSoftware returns a Software engine in its held state.
func NewSoftware() *Software {
	s := &Software{}
	s.held.Store(true)
	return s
}

// Release takes the engine out of reset.
func (s *Software) Release() {
	s.releases.Add(1)
	s.held.Store(false)
}

// Hold puts the engine back into reset.
func (s *Software) Hold() {
	s.holds.Add(1)
	s.held.Store(true)
}

// Held reports whether the engine is in reset.
func (s *Software) Held() bool {
	return s.held.Load()
}

// Cycles returns how many times the engine has been released and held.
func (s *Software) Cycles() (releases, holds int64) {
	return s.releases.Load(), s.holds.Load()
}

// Exp computes Base^Exponent mod Modulus, big-endian. When P and Q are given
// their product must equal the modulus. When Pub is given the result is
// raised to Pub and compared with Base, which verifies a private-exponent
// operation.
func (s *Software) Exp(op *PlainOperands) ([]byte, error) {
	if s.Held() {
		return nil, ErrEngineHeld
	}
	size := op.BitLen / 8

	n := new(big.Int).SetBytes(op.Modulus)
	if n.Sign() == 0 || len(n.Bytes()) > size {
		return nil, fmt.Errorf("%w: modulus does not fit %d bits", ErrExponentInvalidParam, op.BitLen)
	}
	if op.P != nil && op.Q != nil {
		pq := new(big.Int).Mul(new(big.Int).SetBytes(op.P), new(big.Int).SetBytes(op.Q))
		if pq.Cmp(n) != 0 {
			return nil, fmt.Errorf("%w: P*Q does not match the modulus", ErrFaultDetected)
		}
	}

	base := new(big.Int).SetBytes(op.Base)
	if base.Cmp(n) >= 0 {
		return nil, fmt.Errorf("%w: base out of range", ErrExponentInvalidParam)
	}

	r := new(big.Int).Exp(base, new(big.Int).SetBytes(op.Exponent), n)
	if op.Pub != nil {
		if err := verify(r, base, op.Pub, n, size); err != nil {
			return nil, err
		}
	}
	return r.FillBytes(make([]byte, size)), nil
}

// ExpCRT computes the private-key exponentiation by the Chinese Remainder
// Theorem (Garner's recombination):
//
//	m1 = c^dP mod p
//	m2 = c^dQ mod q
//	h  = qInv * (m1 - m2) mod p
//	m  = m2 + h*q
//
// The result is returned least-significant byte first.
func (s *Software) ExpCRT(op *CRTOperands) ([]byte, error) {
	if s.Held() {
		return nil, ErrEngineHeld
	}
	size := op.BitLen / 8

	p := new(big.Int).SetBytes(op.P)
	q := new(big.Int).SetBytes(op.Q)
	if p.Sign() == 0 || q.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero prime factor", ErrExponentInvalidParam)
	}

	var n *big.Int
	if op.Modulus != nil {
		n = new(big.Int).SetBytes(op.Modulus)
	} else {
		n = new(big.Int).Mul(p, q)
	}
	if len(n.Bytes()) > size {
		return nil, fmt.Errorf("%w: modulus does not fit %d bits", ErrExponentInvalidParam, op.BitLen)
	}

	c := new(big.Int).SetBytes(op.Base)
	if c.Cmp(n) >= 0 {
		return nil, fmt.Errorf("%w: base out of range", ErrExponentInvalidParam)
	}

	m1 := new(big.Int).Exp(c, new(big.Int).SetBytes(op.DP), p)
	m2 := new(big.Int).Exp(c, new(big.Int).SetBytes(op.DQ), q)
	h := new(big.Int).Sub(m1, m2)
	h.Mul(h, new(big.Int).SetBytes(op.QInv))
	h.Mod(h, p)
	m := new(big.Int).Mul(h, q)
	m.Add(m, m2)

	if s.corrupt != nil {
		s.corrupt(m)
	}

	if op.Pub != nil {
		if err := verify(m, c, op.Pub, n, size); err != nil {
			return nil, err
		}
	}

	out := m.FillBytes(make([]byte, size))
	secmem.Reverse(out)
	return out, nil
}

// verify checks r^pub mod n == want, comparing twice.
func verify(r, want *big.Int, pub []byte, n *big.Int, size int) error {
	if r.Cmp(n) >= 0 {
		return fmt.Errorf("%w: result out of range", ErrFaultDetected)
	}
	check := new(big.Int).Exp(r, new(big.Int).SetBytes(pub), n)
	ok, err := fault.Equal(check.FillBytes(make([]byte, size)), want.FillBytes(make([]byte, size)))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: public exponent check failed", ErrFaultDetected)
	}
	return nil
}
