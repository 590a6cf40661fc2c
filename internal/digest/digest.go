// Package digest provides the hash algorithm table used by the OAEP codec and
// the mask generator. Hash lengths differ per selector and drive the padding
// arithmetic, so callers resolve a [Descriptor] per operation instead of
// assuming a fixed digest size.
package digest

import (
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/cloudflare/circl/xof"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Selector identifies a hash algorithm in the table.
type Selector uint8

const (
	// SHA256 is SHA2-256 (32-byte digest).
	SHA256 Selector = iota + 1
	// SHA384 is SHA2-384 (48-byte digest).
	SHA384
	// SHA512 is SHA2-512 (64-byte digest).
	SHA512
	// SHA3_256 is SHA3-256 (32-byte digest).
	SHA3_256
	// SHA3_384 is SHA3-384 (48-byte digest). It is the reference hash the
	// message-length bound is expressed against.
	SHA3_384
	// SHA3_512 is SHA3-512 (64-byte digest).
	SHA3_512
	// SHAKE256 is SHAKE256 truncated to a fixed 64-byte output.
	SHAKE256
	// BLAKE2b512 is unkeyed BLAKE2b with a 64-byte digest.
	BLAKE2b512
)

// Reference is the hash whose length sizes the codec's reference bound.
const Reference = SHA3_384

// ReferenceSize is the digest length of [Reference] in bytes.
const ReferenceSize = 48

// MaxSize is the largest digest length of any selector in the table.
const MaxSize = 64

// ErrUnknownSelector is returned when a selector is not in the table.
var ErrUnknownSelector = errors.New("unknown hash selector")

// Descriptor describes one entry of the hash table.
type Descriptor struct {
	selector Selector
	name     string
	size     int
	newHash  func() hash.Hash
}

// Selector returns the table key of the descriptor.
func (d *Descriptor) Selector() Selector { return d.selector }

// Name returns the canonical algorithm name, e.g. "SHA3-384".
func (d *Descriptor) Name() string { return d.name }

// Size returns the digest length in bytes.
func (d *Descriptor) Size() int { return d.size }

// New returns a fresh hash instance.
func (d *Descriptor) New() hash.Hash { return d.newHash() }

// Sum hashes the concatenation of parts into out, which must hold Size bytes.
// A call with no parts (or only empty parts) hashes the empty string.
func (d *Descriptor) Sum(out []byte, parts ...[]byte) error {
	if len(out) < d.size {
		return fmt.Errorf("digest output buffer too small: got %d, want %d", len(out), d.size)
	}
	h := d.newHash()
	for _, p := range parts {
		h.Write(p)
	}
	h.Sum(out[:0])
	return nil
}

// Provider resolves selectors to descriptors.
type Provider interface {
	Lookup(sel Selector) (*Descriptor, error)
}

type table map[Selector]*Descriptor

var defaultTable = table{
	SHA256:     {SHA256, "SHA2-256", sha256.Size, sha256.New},
	SHA384:     {SHA384, "SHA2-384", sha512.Size384, sha512.New384},
	SHA512:     {SHA512, "SHA2-512", sha512.Size, sha512.New},
	SHA3_256:   {SHA3_256, "SHA3-256", 32, func() hash.Hash { return sha3.New256() }},
	SHA3_384:   {SHA3_384, "SHA3-384", ReferenceSize, func() hash.Hash { return sha3.New384() }},
	SHA3_512:   {SHA3_512, "SHA3-512", 64, func() hash.Hash { return sha3.New512() }},
	SHAKE256:   {SHAKE256, "SHAKE256", 64, func() hash.Hash { return newFixedXOF(xof.SHAKE256, 64, 136) }},
	BLAKE2b512: {BLAKE2b512, "BLAKE2b-512", blake2b.Size, newBLAKE2b512},
}

func (t table) Lookup(sel Selector) (*Descriptor, error) {
	d, ok := t[sel]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSelector, sel)
	}
	return d, nil
}

// Default returns the built-in hash table.
func Default() Provider {
	return defaultTable
}

// Lookup resolves sel against the built-in table.
func Lookup(sel Selector) (*Descriptor, error) {
	return defaultTable.Lookup(sel)
}

// Selectors returns every selector in the built-in table in ascending order.
func Selectors() []Selector {
	return []Selector{SHA256, SHA384, SHA512, SHA3_256, SHA3_384, SHA3_512, SHAKE256, BLAKE2b512}
}

// String returns the canonical name of the selector.
func (s Selector) String() string {
	if d, ok := defaultTable[s]; ok {
		return d.name
	}
	return fmt.Sprintf("Selector(%d)", uint8(s))
}

// ParseSelector maps a case-insensitive algorithm name ("sha3-384",
// "SHA2-256", "sha256", "blake2b-512", ...) to its selector.
func ParseSelector(name string) (Selector, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-"))
	for _, sel := range Selectors() {
		d := defaultTable[sel]
		if norm == strings.ToUpper(d.name) || norm == strings.ReplaceAll(strings.ToUpper(d.name), "2-", "") {
			return sel, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSelector, name)
}

// newBLAKE2b512 panics only on an invalid key, and the key is always nil.
func newBLAKE2b512() hash.Hash {
	h, err := blake2b.New512(nil)
	if err != nil {
		panic(err)
	}
	return h
}
