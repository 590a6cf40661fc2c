// Package oaep implements the EME-OAEP encoding from PKCS #1 v2.2
// (RFC 8017, Section 7.1) over fixed-size, modulus-length blocks:
//
//	EM = 0x00 || maskedSeed || maskedDB
//	DB = lHash || PS || 0x01 || M
//
// The hash is chosen per operation, so every length below is derived from the
// selected digest at call time.
package oaep

import (
	"crypto/subtle"
	"fmt"

	"github.com/vaultsandbox/rsawrap/internal/digest"
	"github.com/vaultsandbox/rsawrap/internal/entropy"
	"github.com/vaultsandbox/rsawrap/internal/fault"
	"github.com/vaultsandbox/rsawrap/internal/mgf1"
	"github.com/vaultsandbox/rsawrap/internal/secmem"
)

// MinModulusLen is the smallest block size for which every hash in the table
// leaves room for a message.
const MinModulusLen = 2*digest.MaxSize + 2

// Params carries the inputs and outputs of one encode or decode call.
type Params struct {
	// Hash selects the digest used for the label hash and MGF1.
	Hash digest.Selector
	// Label is the optional label. nil and empty both hash the empty string.
	Label []byte
	// Input is the message on encode and the padded block on decode.
	Input []byte
	// Output receives the padded block on encode and the message on decode.
	Output []byte
	// OutputSize is the number of bytes written to Output.
	OutputSize int
}

// Codec encodes and decodes OAEP blocks of a fixed modulus length.
type Codec struct {
	modulusLen int
	hashes     digest.Provider
	random     entropy.Source
}

// NewCodec returns a codec for modulusLen-byte blocks. hashes and random fall
// back to the built-in table and crypto/rand when nil.
func NewCodec(modulusLen int, hashes digest.Provider, random entropy.Source) (*Codec, error) {
	if modulusLen < MinModulusLen {
		return nil, fmt.Errorf("%w: modulus length %d below minimum %d", ErrInvalidParam, modulusLen, MinModulusLen)
	}
	if hashes == nil {
		hashes = digest.Default()
	}
	if random == nil {
		random = entropy.Default()
	}
	return &Codec{modulusLen: modulusLen, hashes: hashes, random: random}, nil
}

// ModulusLen returns the block size in bytes.
func (c *Codec) ModulusLen() int {
	return c.modulusLen
}

// MaxMessageLen returns the longest message Encode accepts for sel, which is
// ModulusLen - 2*HashLen - 2.
func (c *Codec) MaxMessageLen(sel digest.Selector) (int, error) {
	d, err := c.hashes.Lookup(sel)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	return c.maxMessageLen(d.Size()), nil
}

// maxMessageLen expresses the bound relative to the reference hash: the
// reference bound shrinks by twice the length difference for longer hashes
// and grows by it for shorter ones.
func (c *Codec) maxMessageLen(hashLen int) int {
	refMax := c.modulusLen - 2*digest.ReferenceSize - 2
	if hashLen > digest.ReferenceSize {
		diff := hashLen - digest.ReferenceSize
		return refMax - 2*diff
	}
	diff := digest.ReferenceSize - hashLen
	return refMax + 2*diff
}

// Encode pads p.Input into p.Output[:ModulusLen] and sets p.OutputSize.
// The input buffer is never modified. On error nothing is written to Output.
func (c *Codec) Encode(p *Params) error {
	if p == nil {
		return ErrInvalidParam
	}
	p.OutputSize = 0

	d, err := c.hashes.Lookup(p.Hash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	if p.Input == nil || p.Output == nil {
		return fmt.Errorf("%w: missing input or output buffer", ErrInvalidParam)
	}
	if len(p.Output) < c.modulusLen {
		return fmt.Errorf("%w: output buffer %d bytes, need %d", ErrInvalidParam, len(p.Output), c.modulusLen)
	}

	hLen := d.Size()
	maxLen := c.maxMessageLen(hLen)
	if maxLen < 0 || len(p.Input) > maxLen {
		return fmt.Errorf("%w: %d bytes, maximum %d for %s", ErrInvalidMessageLength, len(p.Input), max(maxLen, 0), d.Name())
	}

	dbLen := c.modulusLen - hLen - 1
	seed := make([]byte, hLen)
	db := make([]byte, dbLen)
	defer secmem.ZeroAll(seed, db)

	if err := d.Sum(db[:hLen], p.Label); err != nil {
		return err
	}

	psLen := maxLen - len(p.Input)
	db[hLen+psLen] = 0x01
	copy(db[hLen+psLen+1:], p.Input)

	if err := c.random.GetRandom(seed); err != nil {
		return fmt.Errorf("%w: %v", ErrEntropy, err)
	}

	h := d.New()
	mgf1.XOR(db, h, seed)
	mgf1.XOR(seed, h, db)

	out := p.Output[:c.modulusLen]
	out[0] = 0x00
	copy(out[1:], seed)
	copy(out[1+hLen:], db)
	p.OutputSize = c.modulusLen
	return nil
}

// Decode recovers the message from the padded block in p.Input, writes it to
// p.Output and sets p.OutputSize. On error p.OutputSize is zero and Output
// must not be trusted.
func (c *Codec) Decode(p *Params) error {
	if p == nil {
		return ErrInvalidParam
	}
	p.OutputSize = 0

	d, err := c.hashes.Lookup(p.Hash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	if p.Input == nil || p.Output == nil {
		return fmt.Errorf("%w: missing input or output buffer", ErrInvalidParam)
	}
	if len(p.Input) != c.modulusLen {
		return fmt.Errorf("%w: block %d bytes, want %d", ErrInvalidParam, len(p.Input), c.modulusLen)
	}

	em := p.Input
	leadOK, err := fault.Confirm(
		func() bool { return em[0] == 0x00 },
		func() bool { return subtle.ConstantTimeByteEq(em[0], 0x00) == 1 },
	)
	if err != nil {
		return err
	}
	if !leadOK {
		return ErrByteMismatch
	}

	hLen := d.Size()
	dbLen := c.modulusLen - hLen - 1
	lHash := make([]byte, hLen)
	seed := make([]byte, hLen)
	db := make([]byte, dbLen)
	defer secmem.ZeroAll(lHash, seed, db)

	if err := d.Sum(lHash, p.Label); err != nil {
		return err
	}

	copy(seed, em[1:1+hLen])
	copy(db, em[1+hLen:])

	h := d.New()
	mgf1.XOR(seed, h, db)
	mgf1.XOR(db, h, seed)

	labelOK, err := fault.Equal(db[:hLen], lHash)
	if err != nil {
		return err
	}
	if !labelOK {
		return ErrDataCompare
	}

	index, structOK, err := scanSeparator(db[hLen:])
	if err != nil {
		return err
	}
	if !structOK {
		return ErrDBMismatch
	}

	msg := db[hLen+index+1:]
	if len(msg) > c.modulusLen-2*hLen-2 {
		return fmt.Errorf("%w: recovered %d bytes", ErrInvalidMessageLength, len(msg))
	}
	if len(p.Output) < len(msg) {
		return fmt.Errorf("%w: output buffer %d bytes, message %d", ErrInvalidMessageLength, len(p.Output), len(msg))
	}

	copy(p.Output, msg)
	p.OutputSize = len(msg)
	return nil
}

// scanSeparator locates the 0x01 separator in rest = PS || 0x01 || M.
//
// The loop visits every byte and never exits early, so its timing depends on
// neither the PS length nor on where a bad byte sits. Any non-zero byte
// before the separator sets a single violation flag that is only inspected
// after the loop.
func scanSeparator(rest []byte) (index int, ok bool, err error) {
	lookingForIndex := 1
	invalid := 0
	for i := range rest {
		equals0 := subtle.ConstantTimeByteEq(rest[i], 0x00)
		equals1 := subtle.ConstantTimeByteEq(rest[i], 0x01)
		index = subtle.ConstantTimeSelect(lookingForIndex&equals1, i, index)
		lookingForIndex = subtle.ConstantTimeSelect(equals1, 0, lookingForIndex)
		invalid = subtle.ConstantTimeSelect(lookingForIndex&^equals0, 1, invalid)
	}

	ok, err = fault.Confirm(
		func() bool { return invalid == 0 && lookingForIndex == 0 },
		func() bool { return (invalid|lookingForIndex) == 0 && len(rest) > 0 && rest[index] == 0x01 },
	)
	return index, ok, err
}
