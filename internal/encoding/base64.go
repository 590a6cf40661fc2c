// Package encoding converts ciphertexts to and from text for transport.
package encoding

import (
	"encoding/base64"
	"strings"
)

// ToBase64URL encodes bytes to URL-safe base64 without padding.
func ToBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// FromBase64URL decodes URL-safe base64 without padding.
func FromBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// ciphertextEncodings lists the alphabets Decode accepts, most specific first.
// The unpadded URL form is what the CLI writes.
var ciphertextEncodings = []*base64.Encoding{
	base64.RawURLEncoding,
	base64.URLEncoding,
	base64.RawStdEncoding,
	base64.StdEncoding,
}

// Decode reads a ciphertext written by ToBase64URL or by another tool using
// the standard alphabet, padded or not. Surrounding whitespace is ignored.
// The error reported is the one from the standard padded alphabet.
func Decode(s string) ([]byte, error) {
	s = strings.TrimSpace(s)

	var err error
	for _, enc := range ciphertextEncodings {
		var data []byte
		if data, err = enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, err
}
