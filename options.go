package rsawrap

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/vaultsandbox/rsawrap/engine"
	"github.com/vaultsandbox/rsawrap/internal/digest"
	"github.com/vaultsandbox/rsawrap/internal/entropy"
)

// Hash selects the digest used for the label hash and MGF1.
type Hash = digest.Selector

// Supported hashes.
const (
	HashSHA256     = digest.SHA256
	HashSHA384     = digest.SHA384
	HashSHA512     = digest.SHA512
	HashSHA3_256   = digest.SHA3_256
	HashSHA3_384   = digest.SHA3_384
	HashSHA3_512   = digest.SHA3_512
	HashSHAKE256   = digest.SHAKE256
	HashBLAKE2b512 = digest.BLAKE2b512
)

const defaultHash = HashSHA3_384

// DefaultModulusLen is the deployment modulus length in bytes (RSA-3072).
const DefaultModulusLen = 384

// ParseHash maps an algorithm name such as "sha3-384" or "SHA2-256" to a Hash.
func ParseHash(name string) (Hash, error) {
	return digest.ParseSelector(name)
}

// Hashes returns every supported hash.
func Hashes() []Hash {
	return digest.Selectors()
}

// wrapperConfig holds configuration for the Wrapper.
type wrapperConfig struct {
	hash           Hash
	modulusLen     int
	engine         engine.Engine
	random         io.Reader
	entropy        entropy.Source
	entropyRetries int
	logger         logrus.FieldLogger
	diagnostics    bool
}

// Option configures the Wrapper.
type Option func(*wrapperConfig)

// WithHash sets the hash used when OperationParams.Hash is zero and by Wrap
// and Unwrap. Default: SHA3-384.
func WithHash(h Hash) Option {
	return func(c *wrapperConfig) {
		c.hash = h
	}
}

// WithModulusLen pins the modulus length in bytes. New fails when the key
// provider disagrees. Default: taken from the key provider.
func WithModulusLen(n int) Option {
	return func(c *wrapperConfig) {
		c.modulusLen = n
	}
}

// WithEngine sets the exponentiation engine. Default: engine.Software.
func WithEngine(e engine.Engine) Option {
	return func(c *wrapperConfig) {
		c.engine = e
	}
}

// WithRandReader sets the reader OAEP seeds are drawn from.
// Default: crypto/rand.
func WithRandReader(r io.Reader) Option {
	return func(c *wrapperConfig) {
		c.random = r
	}
}

// WithEntropyRetries sets how many times a failed seed read is retried.
// Default: 3
func WithEntropyRetries(n int) Option {
	return func(c *wrapperConfig) {
		c.entropyRetries = n
	}
}

// WithLogger sets the logger. Key material, seeds, plaintexts and labels are
// never logged. Default: discard.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *wrapperConfig) {
		c.logger = l
	}
}

// WithDiagnostics makes Decrypt keep the padding check that failed reachable
// through errors.Unwrap and logs it at debug level. It turns decryption into
// a padding oracle and must stay off in production.
func WithDiagnostics(enabled bool) Option {
	return func(c *wrapperConfig) {
		c.diagnostics = enabled
	}
}
