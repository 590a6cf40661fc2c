package rsawrap

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/vaultsandbox/rsawrap/engine"
	"github.com/vaultsandbox/rsawrap/internal/digest"
	"github.com/vaultsandbox/rsawrap/internal/entropy"
	"github.com/vaultsandbox/rsawrap/internal/fault"
	"github.com/vaultsandbox/rsawrap/internal/oaep"
	"github.com/vaultsandbox/rsawrap/internal/secmem"
	"github.com/vaultsandbox/rsawrap/keys"
)

// OperationParams carries the inputs and outputs of Encrypt and Decrypt.
//
// For Encrypt, Input is the plaintext and Output receives the ModulusLen-byte
// ciphertext. For Decrypt, Input is the ciphertext and Output receives the
// plaintext. OutputSize is set to the number of bytes written. A zero Hash
// selects the Wrapper's default.
type OperationParams = oaep.Params

// Wrapper encrypts and decrypts small secrets with RSA-OAEP. It is safe for
// concurrent use; exponentiations are serialized on the engine.
type Wrapper struct {
	keys        keys.Provider
	codec       *oaep.Codec
	exp         *engine.Exponentiator
	hash        Hash
	modulusLen  int
	diagnostics bool
	log         logrus.FieldLogger
}

// New creates a Wrapper over the key material supplied by kp.
func New(kp keys.Provider, opts ...Option) (*Wrapper, error) {
	if kp == nil {
		return nil, fmt.Errorf("%w: key provider is required", ErrInvalidParam)
	}

	cfg := &wrapperConfig{
		hash:           defaultHash,
		entropyRetries: entropy.DefaultRetries,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	modLen := kp.ModulusLen()
	if cfg.modulusLen != 0 && cfg.modulusLen != modLen {
		return nil, fmt.Errorf("%w: modulus length %d, key provides %d", ErrInvalidParam, cfg.modulusLen, modLen)
	}
	if _, err := digest.Lookup(cfg.hash); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}

	log := cfg.logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	src := cfg.entropy
	if src == nil {
		src = entropy.NewReader(cfg.random, cfg.entropyRetries, entropy.DefaultRetryInterval)
	}

	codec, err := oaep.NewCodec(modLen, digest.Default(), src)
	if err != nil {
		return nil, err
	}

	w := &Wrapper{
		keys:        kp,
		codec:       codec,
		exp:         engine.NewExponentiator(cfg.engine, engine.WithLogger(log)),
		hash:        cfg.hash,
		modulusLen:  modLen,
		diagnostics: cfg.diagnostics,
		log:         log,
	}
	w.log.WithFields(logrus.Fields{
		"modulus_bits": modLen * 8,
		"hash":         cfg.hash.String(),
	}).Debug("rsa wrapper ready")
	return w, nil
}

// ModulusLen returns the ciphertext size in bytes.
func (w *Wrapper) ModulusLen() int {
	return w.modulusLen
}

// MaxMessageLen returns the longest plaintext Encrypt accepts with h.
// A zero h selects the Wrapper's default hash.
func (w *Wrapper) MaxMessageLen(h Hash) (int, error) {
	return w.codec.MaxMessageLen(w.selector(h))
}

// Encrypt pads p.Input with OAEP and raises the block to the public exponent.
// On success p.Output[:ModulusLen] holds the big-endian ciphertext.
func (w *Wrapper) Encrypt(ctx context.Context, p *OperationParams) error {
	if p == nil {
		return ErrInvalidParam
	}
	p.OutputSize = 0
	if p.Output == nil || len(p.Output) < w.modulusLen {
		return fmt.Errorf("%w: output buffer must hold %d bytes", ErrInvalidParam, w.modulusLen)
	}

	pub, err := w.keys.PublicKey()
	if err != nil {
		return &OperationError{Op: "encrypt", Stage: "key", Err: err}
	}

	sel := w.selector(p.Hash)
	log := w.log.WithField("hash", sel.String())

	block := make([]byte, w.modulusLen)
	defer secmem.Zero(block)

	ep := &oaep.Params{Hash: sel, Label: p.Label, Input: p.Input, Output: block}
	if err := w.codec.Encode(ep); err != nil {
		log.WithError(err).Debug("oaep encode failed")
		return &OperationError{Op: "encrypt", Stage: "encode", Err: err}
	}

	ct, err := w.exp.ExpPlain(ctx, &engine.PlainOperands{
		Base:     block,
		Exponent: pub.Exponent,
		Modulus:  pub.Modulus,
		BitLen:   w.modulusLen * 8,
	})
	if err != nil {
		return &OperationError{Op: "encrypt", Stage: "exponentiation", Err: err}
	}

	copy(p.Output, ct)
	p.OutputSize = w.modulusLen
	log.Debug("encrypted")
	return nil
}

// Decrypt recovers the plaintext from the ciphertext in p.Input using the
// CRT private key. Every padding failure is reported as a *DecryptionError
// matching ErrDecryptionFailed; the failing check is only reachable with
// WithDiagnostics. On error p.Output is zeroed.
func (w *Wrapper) Decrypt(ctx context.Context, p *OperationParams) error {
	if p == nil {
		return ErrInvalidParam
	}
	p.OutputSize = 0
	if p.Output == nil || len(p.Input) != w.modulusLen {
		return fmt.Errorf("%w: ciphertext must be %d bytes", ErrInvalidParam, w.modulusLen)
	}

	priv, err := w.keys.PrivateKey()
	if err != nil {
		return &OperationError{Op: "decrypt", Stage: "key", Err: err}
	}
	defer priv.Zeroize()

	sel := w.selector(p.Hash)
	log := w.log.WithField("hash", sel.String())

	em, err := w.exp.ExpCRT(ctx, &engine.CRTOperands{
		Base:    p.Input,
		P:       priv.P,
		Q:       priv.Q,
		DP:      priv.DP,
		DQ:      priv.DQ,
		QInv:    priv.QInv,
		Pub:     priv.PublicExponent,
		Modulus: priv.Modulus,
		BitLen:  w.modulusLen * 8,
	})
	if err != nil {
		return &OperationError{Op: "decrypt", Stage: "exponentiation", Err: err}
	}
	defer secmem.Zero(em)
	secmem.Reverse(em)

	status := fault.NewStatus()
	dp := &oaep.Params{Hash: sel, Label: p.Label, Input: em, Output: p.Output}
	err = w.codec.Decode(dp)
	status.Set(err == nil)
	if err != nil || !status.OK() {
		secmem.Zero(p.Output)
		if w.diagnostics {
			log.WithError(err).Debug("oaep decode failed")
		}
		if err == nil {
			err = fault.ErrFaultDetected
		}
		return wrapDecodeError(err, w.diagnostics)
	}

	p.OutputSize = dp.OutputSize
	log.Debug("decrypted")
	return nil
}

// Wrap encrypts secret under label with the default hash and returns the
// ciphertext.
func (w *Wrapper) Wrap(ctx context.Context, secret, label []byte) ([]byte, error) {
	if secret == nil {
		secret = []byte{}
	}
	p := &OperationParams{
		Label:  label,
		Input:  secret,
		Output: make([]byte, w.modulusLen),
	}
	if err := w.Encrypt(ctx, p); err != nil {
		return nil, err
	}
	return p.Output[:p.OutputSize], nil
}

// Unwrap decrypts ciphertext under label with the default hash and returns
// the secret.
func (w *Wrapper) Unwrap(ctx context.Context, ciphertext, label []byte) ([]byte, error) {
	buf := make([]byte, w.modulusLen)
	p := &OperationParams{
		Label:  label,
		Input:  ciphertext,
		Output: buf,
	}
	if err := w.Decrypt(ctx, p); err != nil {
		return nil, err
	}
	secret := make([]byte, p.OutputSize)
	copy(secret, buf)
	secmem.Zero(buf)
	return secret, nil
}

func (w *Wrapper) selector(h Hash) Hash {
	if h == 0 {
		return w.hash
	}
	return h
}
