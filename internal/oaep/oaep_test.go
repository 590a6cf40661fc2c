package oaep

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"math/big"
	"sync"
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/vaultsandbox/rsawrap/internal/digest"
	"github.com/vaultsandbox/rsawrap/internal/entropy"
	"github.com/vaultsandbox/rsawrap/internal/mgf1"
)

const testModulusLen = 256

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, testModulusLen*8)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

func newCodec(t *testing.T, random entropy.Source) *Codec {
	t.Helper()
	c, err := NewCodec(testModulusLen, nil, random)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return c
}

func encode(t *testing.T, c *Codec, sel digest.Selector, msg, label []byte) []byte {
	t.Helper()
	p := &Params{Hash: sel, Label: label, Input: msg, Output: make([]byte, c.ModulusLen())}
	if err := c.Encode(p); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if p.OutputSize != c.ModulusLen() {
		t.Fatalf("OutputSize = %d, want %d", p.OutputSize, c.ModulusLen())
	}
	return p.Output
}

func decode(c *Codec, sel digest.Selector, block, label []byte) ([]byte, error) {
	p := &Params{Hash: sel, Label: label, Input: block, Output: make([]byte, c.ModulusLen())}
	if err := c.Decode(p); err != nil {
		return nil, err
	}
	return p.Output[:p.OutputSize], nil
}

// maskBlock builds EM = 0x00 || maskedSeed || maskedDB from a raw DB so tests
// can hand-craft malformed padding.
func maskBlock(sel digest.Selector, seed, db []byte) []byte {
	d, _ := digest.Lookup(sel)
	h := d.New()
	s := append([]byte{}, seed...)
	b := append([]byte{}, db...)
	mgf1.XOR(b, h, s)
	mgf1.XOR(s, h, b)
	return append(append([]byte{0x00}, s...), b...)
}

func TestNewCodec_RejectsSmallModulus(t *testing.T) {
	t.Parallel()
	if _, err := NewCodec(MinModulusLen-1, nil, nil); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("error = %v, want ErrInvalidParam", err)
	}
	if _, err := NewCodec(MinModulusLen, nil, nil); err != nil {
		t.Errorf("NewCodec(MinModulusLen) error = %v", err)
	}
}

func TestMaxMessageLen(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)
	for _, sel := range digest.Selectors() {
		d, _ := digest.Lookup(sel)
		got, err := c.MaxMessageLen(sel)
		if err != nil {
			t.Fatal(err)
		}
		if want := testModulusLen - 2*d.Size() - 2; got != want {
			t.Errorf("%s: MaxMessageLen = %d, want %d", sel, got, want)
		}
	}

	if _, err := c.MaxMessageLen(0); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("MaxMessageLen(0) error = %v, want ErrInvalidParam", err)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)

	for _, sel := range digest.Selectors() {
		maxLen, _ := c.MaxMessageLen(sel)
		for _, label := range [][]byte{nil, []byte("device-attestation-key")} {
			for _, n := range []int{0, 1, 16, maxLen - 1, maxLen} {
				msg := bytes.Repeat([]byte{0xC3}, n)
				block := encode(t, c, sel, msg, label)

				got, err := decode(c, sel, block, label)
				if err != nil {
					t.Fatalf("%s label=%q len=%d: Decode() error = %v", sel, label, n, err)
				}
				if !bytes.Equal(got, msg) {
					t.Fatalf("%s label=%q len=%d: got %x, want %x", sel, label, n, got, msg)
				}
			}
		}
	}
}

func TestEncode_FixedSeedVector(t *testing.T) {
	t.Parallel()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	c := newCodec(t, entropy.Fixed(seed))

	want, _ := hex.DecodeString("003e019161cc3412f0973edf292b3e935bfcfe21a7f13fe8e71a6b20504d64a67f35fdbe8df9f6f67220cf724a6f3e9021fac7bb17ee15396a79ecdc0e66322d7b04a6950a06d3e3308ad7d3606ef810eb124e3943404ca746a12c51c7bf7768390f8d842ac9cb62349779a7537a78327d545aaeb33b2d42c7d1dc3680a4b23628627e9db8ad47bfe76dbe653d03d2c0a35999ed28a5023924150d72508668d2442f95db4b0a7de880458b19966f21918f9644106e8d2eb4aff23845703cd214920c1c9b0bc4358902b823c7675320d59ded234f308b9dfa5f8d844d1978330c669fa873071768cf46b419ad2867bb6313c02b610cdff309d27e7bea7d49fc19")

	got := encode(t, c, digest.SHA256, []byte("wrapped-aes-key"), []byte("boot"))
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() =\n%x\nwant\n%x", got, want)
	}

	again := encode(t, c, digest.SHA256, []byte("wrapped-aes-key"), []byte("boot"))
	if !bytes.Equal(again, want) {
		t.Error("fixed seed did not reproduce the block")
	}
}

func TestEncode_FixedSeedVectorSHA3EmptyMessage(t *testing.T) {
	t.Parallel()
	seed := make([]byte, 48)
	for i := range seed {
		seed[i] = byte(100 + i)
	}
	c := newCodec(t, entropy.Fixed(seed))

	want, _ := hex.DecodeString("00701adb9b65e808923d25ce48629266545f38b9b2a196caae68f275c2cd5d8d74a26166da21c76f6447bdd0134712983c949321231161d1702f8dca0b3f4b619e722a36ba515609aae92cc585a15da4bba3e05199a54ac378bf650b62f0b26930060d1b0927237478a783f7688b57d9cfaf6acf424805e6f9d81a2e8fbfd1707a8ba81f9942ed35e65d9da742a5f0e2f9c937191b3ab0ec505b03efa052ca0150fa67802a58b34c51c1b7c11cdc58399904d5d0ba431f02cb4404750b0d6cb9b3aad9ffdcaa52722938a5a20ae7bdf7a0824f98e0137f2f7c1184a54ebaf3080e8e2016444e4046ffb641ff9bbd5b5d195643e9b2ad7840346311f69a1fe6cc")

	got := encode(t, c, digest.SHA3_384, []byte{}, nil)
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() =\n%x\nwant\n%x", got, want)
	}
}

func TestEncode_RandomSeedsDiffer(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)
	msg := []byte("same message")

	a := encode(t, c, digest.SHA256, msg, nil)
	b := encode(t, c, digest.SHA256, msg, nil)
	if bytes.Equal(a, b) {
		t.Error("two encodings with fresh seeds are identical")
	}
}

func TestEncode_DoesNotModifyInput(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)
	msg := []byte("do not touch")
	orig := append([]byte{}, msg...)

	encode(t, c, digest.SHA3_384, msg, []byte("label"))
	if !bytes.Equal(msg, orig) {
		t.Error("Encode modified the input buffer")
	}
}

func TestEncode_InPlaceOutput(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)
	buf := make([]byte, testModulusLen)
	copy(buf, "aliased")

	p := &Params{Hash: digest.SHA256, Input: buf[:7], Output: buf}
	if err := c.Encode(p); err != nil {
		t.Fatal(err)
	}
	got, err := decode(c, digest.SHA256, buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "aliased" {
		t.Errorf("got %q", got)
	}
}

func TestEncode_OversizedMessage(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)

	for _, sel := range digest.Selectors() {
		maxLen, _ := c.MaxMessageLen(sel)
		out := bytes.Repeat([]byte{0xAA}, testModulusLen)
		p := &Params{Hash: sel, Input: make([]byte, maxLen+1), Output: out}

		err := c.Encode(p)
		if !errors.Is(err, ErrInvalidMessageLength) {
			t.Fatalf("%s: error = %v, want ErrInvalidMessageLength", sel, err)
		}
		if !bytes.Equal(out, bytes.Repeat([]byte{0xAA}, testModulusLen)) {
			t.Errorf("%s: output written on failure", sel)
		}
		if p.OutputSize != 0 {
			t.Errorf("%s: OutputSize = %d on failure", sel, p.OutputSize)
		}
	}
}

func TestEncode_InvalidParams(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)
	out := make([]byte, testModulusLen)

	tests := []struct {
		name string
		p    *Params
	}{
		{"nil params", nil},
		{"unknown hash", &Params{Hash: 0, Input: []byte{}, Output: out}},
		{"nil input", &Params{Hash: digest.SHA256, Output: out}},
		{"nil output", &Params{Hash: digest.SHA256, Input: []byte{}}},
		{"short output", &Params{Hash: digest.SHA256, Input: []byte{}, Output: out[:testModulusLen-1]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Encode(tt.p); !errors.Is(err, ErrInvalidParam) {
				t.Errorf("Encode() error = %v, want ErrInvalidParam", err)
			}
		})
	}
}

func TestEncode_EntropyFailure(t *testing.T) {
	t.Parallel()
	failing := entropy.ReaderFunc(func([]byte) error { return errors.New("trng offline") })
	c := newCodec(t, failing)

	p := &Params{Hash: digest.SHA256, Input: []byte("x"), Output: make([]byte, testModulusLen)}
	if err := c.Encode(p); !errors.Is(err, ErrEntropy) {
		t.Errorf("error = %v, want ErrEntropy", err)
	}
}

func TestDecode_LeadingByteRejected(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)
	block := encode(t, c, digest.SHA256, []byte("secret"), nil)

	for b := 1; b < 256; b++ {
		bad := append([]byte{}, block...)
		bad[0] = byte(b)
		if _, err := decode(c, digest.SHA256, bad, nil); !errors.Is(err, ErrByteMismatch) {
			t.Fatalf("leading byte %#x: error = %v, want ErrByteMismatch", b, err)
		}
	}
}

func TestDecode_LabelMismatch(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)

	for _, sel := range digest.Selectors() {
		block := encode(t, c, sel, []byte("secret"), []byte("label-a"))
		if _, err := decode(c, sel, block, []byte("label-b")); !errors.Is(err, ErrDataCompare) {
			t.Errorf("%s: error = %v, want ErrDataCompare", sel, err)
		}
		if _, err := decode(c, sel, block, nil); !errors.Is(err, ErrDataCompare) {
			t.Errorf("%s: empty label error = %v, want ErrDataCompare", sel, err)
		}
	}
}

func TestDecode_WrongHash(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)
	block := encode(t, c, digest.SHA256, []byte("secret"), nil)
	if _, err := decode(c, digest.SHA3_256, block, nil); err == nil {
		t.Error("decode with a different hash succeeded")
	}
}

func TestDecode_MalformedDataBlock(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)
	sel := digest.SHA256
	hLen := sha256.Size
	dbLen := testModulusLen - hLen - 1
	lHash := sha256.Sum256(nil)
	seed := bytes.Repeat([]byte{0x5C}, hLen)

	validDB := func() []byte {
		db := make([]byte, dbLen)
		copy(db, lHash[:])
		db[dbLen-4] = 0x01
		copy(db[dbLen-3:], "msg")
		return db
	}

	// Sanity check the builder.
	if got, err := decode(c, sel, maskBlock(sel, seed, validDB()), nil); err != nil || string(got) != "msg" {
		t.Fatalf("hand-built block: got %q, err %v", got, err)
	}

	tests := []struct {
		name   string
		mutate func(db []byte)
	}{
		{"non-zero byte at start of PS", func(db []byte) { db[hLen] = 0x02 }},
		{"non-zero byte just before separator", func(db []byte) { db[dbLen-5] = 0x80 }},
		{"separator is 0x02", func(db []byte) { db[dbLen-4] = 0x02 }},
		{"no separator", func(db []byte) {
			for i := hLen; i < dbLen; i++ {
				db[i] = 0
			}
		}},
		{"PS byte 0x01 preceded by garbage", func(db []byte) { db[hLen+1] = 0xFF; db[hLen+2] = 0x01 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := validDB()
			tt.mutate(db)
			if _, err := decode(c, sel, maskBlock(sel, seed, db), nil); !errors.Is(err, ErrDBMismatch) {
				t.Errorf("error = %v, want ErrDBMismatch", err)
			}
		})
	}
}

func TestDecode_SeparatorRightAfterLabelHash(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)
	sel := digest.SHA256
	hLen := sha256.Size
	dbLen := testModulusLen - hLen - 1
	lHash := sha256.Sum256(nil)

	db := make([]byte, dbLen)
	copy(db, lHash[:])
	db[hLen] = 0x01
	for i := hLen + 1; i < dbLen; i++ {
		db[i] = byte(i)
	}

	got, err := decode(c, sel, maskBlock(sel, make([]byte, hLen), db), nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != testModulusLen-2*hLen-2 {
		t.Errorf("len = %d, want %d", len(got), testModulusLen-2*hLen-2)
	}
}

func TestDecode_OutputTooSmall(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)
	block := encode(t, c, digest.SHA256, []byte("0123456789"), nil)

	p := &Params{Hash: digest.SHA256, Input: block, Output: make([]byte, 4)}
	if err := c.Decode(p); !errors.Is(err, ErrInvalidMessageLength) {
		t.Errorf("error = %v, want ErrInvalidMessageLength", err)
	}
	if p.OutputSize != 0 {
		t.Errorf("OutputSize = %d on failure", p.OutputSize)
	}
}

func TestDecode_InvalidParams(t *testing.T) {
	t.Parallel()
	c := newCodec(t, nil)
	block := encode(t, c, digest.SHA256, []byte("x"), nil)
	out := make([]byte, testModulusLen)

	tests := []struct {
		name string
		p    *Params
	}{
		{"nil params", nil},
		{"unknown hash", &Params{Hash: 42, Input: block, Output: out}},
		{"nil input", &Params{Hash: digest.SHA256, Output: out}},
		{"nil output", &Params{Hash: digest.SHA256, Input: block}},
		{"short block", &Params{Hash: digest.SHA256, Input: block[1:], Output: out}},
		{"long block", &Params{Hash: digest.SHA256, Input: append(append([]byte{}, block...), 0), Output: out}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Decode(tt.p); !errors.Is(err, ErrInvalidParam) {
				t.Errorf("Decode() error = %v, want ErrInvalidParam", err)
			}
		})
	}
}

// The encoder must interoperate with the standard library's RSA-OAEP
// decryption in both directions.
func TestInterop_StandardLibrary(t *testing.T) {
	t.Parallel()
	key := rsaKey(t)
	c := newCodec(t, nil)

	cases := []struct {
		sel     digest.Selector
		newHash func() hash.Hash
	}{
		{digest.SHA256, sha256.New},
		{digest.SHA3_384, func() hash.Hash { return sha3.New384() }},
	}

	for _, tc := range cases {
		t.Run(tc.sel.String(), func(t *testing.T) {
			msg := []byte("0123456789abcdef0123456789abcdef")
			label := []byte("kek")

			// ours -> crypto/rsa
			block := encode(t, c, tc.sel, msg, label)
			m := new(big.Int).SetBytes(block)
			ct := new(big.Int).Exp(m, big.NewInt(int64(key.E)), key.N).FillBytes(make([]byte, testModulusLen))
			got, err := rsa.DecryptOAEP(tc.newHash(), nil, key, ct, label)
			if err != nil {
				t.Fatalf("rsa.DecryptOAEP() error = %v", err)
			}
			if !bytes.Equal(got, msg) {
				t.Errorf("rsa.DecryptOAEP() = %x, want %x", got, msg)
			}

			// crypto/rsa -> ours
			ct, err = rsa.EncryptOAEP(tc.newHash(), rand.Reader, &key.PublicKey, msg, label)
			if err != nil {
				t.Fatal(err)
			}
			em := new(big.Int).Exp(new(big.Int).SetBytes(ct), key.D, key.N).FillBytes(make([]byte, testModulusLen))
			got, err = decode(c, tc.sel, em, label)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !bytes.Equal(got, msg) {
				t.Errorf("Decode() = %x, want %x", got, msg)
			}
		})
	}
}

func TestEncode_MasksMatchGenerate(t *testing.T) {
	t.Parallel()
	seed := bytes.Repeat([]byte{0x5c}, digest.MaxSize)
	c := newCodec(t, entropy.Fixed(seed))
	msg := []byte("content-key")
	label := []byte("slot-3")

	for _, sel := range digest.Selectors() {
		t.Run(sel.String(), func(t *testing.T) {
			d, _ := digest.Lookup(sel)
			hLen := d.Size()
			block := encode(t, c, sel, msg, label)

			maskedSeed := block[1 : 1+hLen]
			maskedDB := block[1+hLen:]

			seedMask, err := mgf1.Generate(digest.Default(), sel, maskedDB, hLen)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			gotSeed := make([]byte, hLen)
			for i := range gotSeed {
				gotSeed[i] = maskedSeed[i] ^ seedMask[i]
			}
			if !bytes.Equal(gotSeed, seed[:hLen]) {
				t.Fatalf("recovered seed = %x, want %x", gotSeed, seed[:hLen])
			}

			dbMask, err := mgf1.Generate(digest.Default(), sel, gotSeed, len(maskedDB))
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			db := make([]byte, len(maskedDB))
			for i := range db {
				db[i] = maskedDB[i] ^ dbMask[i]
			}

			lHash := make([]byte, hLen)
			if err := d.Sum(lHash, label); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(db[:hLen], lHash) {
				t.Errorf("DB does not start with the label hash")
			}
			sep := len(db) - len(msg) - 1
			if db[sep] != 0x01 || !bytes.Equal(db[sep+1:], msg) {
				t.Errorf("DB tail = %x, want 01%x", db[sep:], msg)
			}
			for i := hLen; i < sep; i++ {
				if db[i] != 0 {
					t.Fatalf("PS byte %d = %#x, want 0", i, db[i])
				}
			}
		})
	}
}
