package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
)

// FromRSA builds a Static provider from a two-prime RSA key. The public
// exponent and modulus are included in the private key so decryption results
// are cross-checked.
func FromRSA(k *rsa.PrivateKey) (*Static, error) {
	if k == nil {
		return nil, fmt.Errorf("%w: nil RSA key", ErrInvalidKey)
	}
	if len(k.Primes) != 2 {
		return nil, fmt.Errorf("%w: %d primes, only two-prime keys are supported", ErrInvalidKey, len(k.Primes))
	}
	k.Precompute()

	modLen := (k.N.BitLen() + 7) / 8
	half := modLen / 2
	pub := publicFromRSA(&k.PublicKey, modLen)

	priv := &PrivateKey{
		PublicExponent: pub.Exponent,
		Modulus:        pub.Modulus,
	}
	for _, f := range []struct {
		dst *[]byte
		v   *big.Int
	}{
		{&priv.P, k.Primes[0]},
		{&priv.Q, k.Primes[1]},
		{&priv.DP, k.Precomputed.Dp},
		{&priv.DQ, k.Precomputed.Dq},
		{&priv.QInv, k.Precomputed.Qinv},
	} {
		b, err := fixedWidth(f.v, half)
		if err != nil {
			priv.Zeroize()
			return nil, err
		}
		*f.dst = b
	}

	s, err := NewStatic(pub, priv)
	priv.Zeroize()
	return s, err
}

// FromRSAPublic builds a public-only Static provider.
func FromRSAPublic(k *rsa.PublicKey) (*Static, error) {
	if k == nil || k.N == nil {
		return nil, fmt.Errorf("%w: nil RSA key", ErrInvalidKey)
	}
	return NewStatic(publicFromRSA(k, (k.N.BitLen()+7)/8), nil)
}

// ParsePEM reads the first RSA key in data. Private keys may be PKCS #1
// ("RSA PRIVATE KEY") or PKCS #8 ("PRIVATE KEY"); public keys PKCS #1
// ("RSA PUBLIC KEY") or PKIX ("PUBLIC KEY").
func ParsePEM(data []byte) (*Static, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("%w: no RSA key found in PEM data", ErrUnsupportedKey)
		}

		switch block.Type {
		case "RSA PRIVATE KEY":
			k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
			}
			return FromRSA(k)
		case "PRIVATE KEY":
			parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
			}
			k, ok := parsed.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, parsed)
			}
			return FromRSA(k)
		case "RSA PUBLIC KEY":
			k, err := x509.ParsePKCS1PublicKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
			}
			return FromRSAPublic(k)
		case "PUBLIC KEY":
			parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
			}
			k, ok := parsed.(*rsa.PublicKey)
			if !ok {
				return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, parsed)
			}
			return FromRSAPublic(k)
		}
	}
}

func publicFromRSA(k *rsa.PublicKey, modLen int) *PublicKey {
	return &PublicKey{
		Modulus:  k.N.FillBytes(make([]byte, modLen)),
		Exponent: big.NewInt(int64(k.E)).Bytes(),
	}
}

func fixedWidth(v *big.Int, size int) ([]byte, error) {
	if v == nil || v.Sign() < 0 || (v.BitLen()+7)/8 > size {
		return nil, fmt.Errorf("%w: CRT component does not fit %d bytes", ErrInvalidKey, size)
	}
	return v.FillBytes(make([]byte, size)), nil
}
