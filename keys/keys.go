// Package keys supplies RSA key material to the wrapper.
//
// All values are unsigned big-endian byte strings of fixed width: the modulus
// is ModulusLen bytes and every CRT component is ModulusLen/2 bytes. A
// [Provider] hands out copies, so callers may scrub what they receive without
// affecting the provider.
package keys

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/vaultsandbox/rsawrap/internal/secmem"
)

var (
	// ErrInvalidKey is returned when key material has the wrong shape.
	ErrInvalidKey = errors.New("keys: invalid key material")

	// ErrKeyZeroized is returned by a provider whose material has been scrubbed.
	ErrKeyZeroized = errors.New("keys: key material zeroized")

	// ErrNoPrivateKey is returned by a public-only provider.
	ErrNoPrivateKey = errors.New("keys: no private key")

	// ErrUnsupportedKey is returned for PEM blocks that do not hold an RSA key.
	ErrUnsupportedKey = errors.New("keys: unsupported key type")
)

// Supported modulus lengths in bytes.
const (
	ModulusLen2048 = 256
	ModulusLen3072 = 384
	ModulusLen4096 = 512
)

// PublicKey is the public half: the modulus and the public exponent.
type PublicKey struct {
	Modulus  []byte
	Exponent []byte
}

// PrivateKey holds the CRT form of the private key. PublicExponent and
// Modulus are optional; when present the exponentiator uses them to check
// its result.
type PrivateKey struct {
	P    []byte
	Q    []byte
	DP   []byte
	DQ   []byte
	QInv []byte

	PublicExponent []byte
	Modulus        []byte
}

// Provider supplies key material.
type Provider interface {
	// ModulusLen returns the modulus size in bytes.
	ModulusLen() int
	PublicKey() (*PublicKey, error)
	PrivateKey() (*PrivateKey, error)
}

// Static is a Provider over key material held in memory. It is safe for
// concurrent use.
type Static struct {
	mu         sync.RWMutex
	modulusLen int
	pub        *PublicKey
	priv       *PrivateKey
	zeroized   bool
}

var _ Provider = (*Static)(nil)

// NewStatic validates and copies pub and priv. priv may be nil for a
// public-only provider that can encrypt but not decrypt.
func NewStatic(pub *PublicKey, priv *PrivateKey) (*Static, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: public key is required", ErrInvalidKey)
	}
	modLen := len(pub.Modulus)
	if err := validate(modLen, pub, priv); err != nil {
		return nil, err
	}

	s := &Static{
		modulusLen: modLen,
		pub:        pub.clone(),
	}
	if priv != nil {
		s.priv = priv.clone()
	}
	return s, nil
}

func validate(modLen int, pub *PublicKey, priv *PrivateKey) error {
	var result *multierror.Error

	switch modLen {
	case ModulusLen2048, ModulusLen3072, ModulusLen4096:
		if pub.Modulus[0] == 0 {
			result = multierror.Append(result, fmt.Errorf("%w: modulus has a leading zero byte", ErrInvalidKey))
		}
		if pub.Modulus[modLen-1]&1 == 0 {
			result = multierror.Append(result, fmt.Errorf("%w: modulus is even", ErrInvalidKey))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("%w: modulus is %d bytes, want 256, 384 or 512", ErrInvalidKey, modLen))
	}
	if isZero(pub.Exponent) {
		result = multierror.Append(result, fmt.Errorf("%w: public exponent cannot be empty", ErrInvalidKey))
	}

	if priv != nil {
		half := modLen / 2
		for _, f := range []struct {
			name string
			v    []byte
		}{
			{"P", priv.P},
			{"Q", priv.Q},
			{"DP", priv.DP},
			{"DQ", priv.DQ},
			{"QInv", priv.QInv},
		} {
			if len(f.v) != half {
				result = multierror.Append(result, fmt.Errorf("%w: %s is %d bytes, want %d", ErrInvalidKey, f.name, len(f.v), half))
			}
		}
		if priv.Modulus != nil && len(priv.Modulus) != modLen {
			result = multierror.Append(result, fmt.Errorf("%w: private modulus is %d bytes, want %d", ErrInvalidKey, len(priv.Modulus), modLen))
		}
	}

	return result.ErrorOrNil()
}

// ModulusLen returns the modulus size in bytes.
func (s *Static) ModulusLen() int {
	return s.modulusLen
}

// PublicKey returns a copy of the public key.
func (s *Static) PublicKey() (*PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.zeroized {
		return nil, ErrKeyZeroized
	}
	return s.pub.clone(), nil
}

// PrivateKey returns a copy of the private key.
func (s *Static) PrivateKey() (*PrivateKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.zeroized {
		return nil, ErrKeyZeroized
	}
	if s.priv == nil {
		return nil, ErrNoPrivateKey
	}
	return s.priv.clone(), nil
}

// HasPrivateKey reports whether the provider can decrypt.
func (s *Static) HasPrivateKey() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.priv != nil && !s.zeroized
}

// Zeroize scrubs all key material. Every later accessor call fails with
// ErrKeyZeroized.
func (s *Static) Zeroize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	secmem.ZeroAll(s.pub.Modulus, s.pub.Exponent)
	if s.priv != nil {
		s.priv.Zeroize()
	}
	s.zeroized = true
}

// Zeroize scrubs every component of k.
func (k *PrivateKey) Zeroize() {
	if k == nil {
		return
	}
	secmem.ZeroAll(k.P, k.Q, k.DP, k.DQ, k.QInv, k.PublicExponent, k.Modulus)
}

func (k *PublicKey) clone() *PublicKey {
	return &PublicKey{
		Modulus:  clone(k.Modulus),
		Exponent: clone(k.Exponent),
	}
}

func (k *PrivateKey) clone() *PrivateKey {
	return &PrivateKey{
		P:              clone(k.P),
		Q:              clone(k.Q),
		DP:             clone(k.DP),
		DQ:             clone(k.DQ),
		QInv:           clone(k.QInv),
		PublicExponent: clone(k.PublicExponent),
		Modulus:        clone(k.Modulus),
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func isZero(b []byte) bool {
	return len(b) == 0 || secmem.IsZero(b)
}
