package rsawrap

import "github.com/vaultsandbox/rsawrap/internal/entropy"

// withEntropySource replaces the seed source so tests get deterministic
// blocks.
func withEntropySource(s entropy.Source) Option {
	return func(c *wrapperConfig) {
		c.entropy = s
	}
}
