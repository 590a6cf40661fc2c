// Package entropy supplies the random bytes used for OAEP seeds.
package entropy

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrShortRead is returned when the underlying reader stops before filling the
// buffer. It is treated as permanent and not retried.
var ErrShortRead = errors.New("entropy source returned too few bytes")

// DefaultRetries is the number of extra attempts after a failed read.
const DefaultRetries = 3

// DefaultRetryInterval is the pause between attempts.
const DefaultRetryInterval = 10 * time.Millisecond

// Source fills buffers with cryptographically secure random bytes.
type Source interface {
	GetRandom(buf []byte) error
}

// Reader is a Source backed by an io.Reader. Transient read errors (a
// hardware generator failing a health test, for example) are retried with a
// constant backoff.
type Reader struct {
	r        io.Reader
	retries  uint64
	interval time.Duration
}

// NewReader returns a Reader over r. A nil r selects crypto/rand.
func NewReader(r io.Reader, retries int, interval time.Duration) *Reader {
	if r == nil {
		r = rand.Reader
	}
	if retries < 0 {
		retries = 0
	}
	return &Reader{r: r, retries: uint64(retries), interval: interval}
}

// Default returns a crypto/rand backed Reader with the default retry policy.
func Default() *Reader {
	return NewReader(nil, DefaultRetries, DefaultRetryInterval)
}

// GetRandom fills buf completely or returns an error. On error buf holds no
// usable randomness and is zeroed.
func (s *Reader) GetRandom(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	op := func() error {
		n, err := io.ReadFull(s.r, buf)
		if err == nil {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return backoff.Permanent(fmt.Errorf("%w: got %d of %d", ErrShortRead, n, len(buf)))
		}
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.interval), s.retries)
	if err := backoff.Retry(op, policy); err != nil {
		clear(buf)
		return fmt.Errorf("read entropy: %w", err)
	}
	return nil
}

// ReaderFunc adapts a function to Source.
type ReaderFunc func(buf []byte) error

// GetRandom calls f(buf).
func (f ReaderFunc) GetRandom(buf []byte) error {
	return f(buf)
}
