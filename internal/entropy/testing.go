package entropy

import "bytes"

// Fixed returns a Source that replays seed on every call, repeating it when a
// request is longer than seed. It exists for deterministic test vectors only:
// OAEP with a repeated seed is not semantically secure.
func Fixed(seed []byte) Source {
	s := append([]byte(nil), seed...)
	return ReaderFunc(func(buf []byte) error {
		if len(s) == 0 {
			clear(buf)
			return nil
		}
		copy(buf, bytes.Repeat(s, len(buf)/len(s)+1))
		return nil
	})
}
