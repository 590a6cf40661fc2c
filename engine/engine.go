// Package engine wraps the modular exponentiation primitive used for RSA.
//
// The primitive itself is an [Engine]: a hardware accelerator, firmware
// routine or the [Software] backend shipped here for tests and hosts without
// an accelerator. [Exponentiator] brackets every call with the engine's
// release/hold protocol and serializes access, because the engine's reset line
// is global state.
//
// Byte order: every operand is big-endian. [Engine.ExpCRT] returns its result
// least-significant byte first, which is the accelerator's native word order;
// callers reverse the full modulus-length result before OAEP decoding.
// [Engine.Exp] returns big-endian.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vaultsandbox/rsawrap/internal/fault"
)

var (
	// ErrExponentInvalidParam is returned when a mandatory operand is missing.
	ErrExponentInvalidParam = errors.New("engine: missing exponentiation operand")

	// ErrEngineHeld is returned by an engine asked to compute while held in
	// reset.
	ErrEngineHeld = errors.New("engine: held in reset")

	// ErrFaultDetected is returned when the engine's result fails its
	// consistency check.
	ErrFaultDetected = fault.ErrFaultDetected
)

// PlainOperands are the inputs of r = Base^Exponent mod Modulus.
// P, Q, Pub and Totient are optional; an engine may use them for its own
// fault checks.
type PlainOperands struct {
	Base     []byte
	Exponent []byte
	Modulus  []byte
	P        []byte
	Q        []byte
	Pub      []byte
	Totient  []byte
	// BitLen is the modulus size in bits.
	BitLen int
}

// CRTOperands are the inputs of a private-key exponentiation via the Chinese
// Remainder Theorem. Pub is the public exponent, used only to verify the
// result; Modulus is computed from P and Q when nil.
type CRTOperands struct {
	Base    []byte
	P       []byte
	Q       []byte
	DP      []byte
	DQ      []byte
	QInv    []byte
	Pub     []byte
	Modulus []byte
	BitLen  int
}

// Engine is the exponentiation primitive.
//
// Release and Hold drive the engine's reset line. Exp and ExpCRT are only
// valid between a Release and the following Hold.
type Engine interface {
	Release()
	Hold()
	Exp(op *PlainOperands) ([]byte, error)
	ExpCRT(op *CRTOperands) ([]byte, error)
}

// Exponentiator owns an Engine and brackets every computation with
// Release/Hold. It is safe for concurrent use; calls are serialized.
type Exponentiator struct {
	mu     sync.Mutex
	engine Engine
	log    logrus.FieldLogger
}

// Option configures an Exponentiator.
type Option func(*Exponentiator)

// WithLogger sets the logger used for bracket tracing.
func WithLogger(l logrus.FieldLogger) Option {
	return func(x *Exponentiator) {
		if l != nil {
			x.log = l
		}
	}
}

// NewExponentiator returns an Exponentiator over e and puts e in its held
// state. A nil e selects the Software engine.
func NewExponentiator(e Engine, opts ...Option) *Exponentiator {
	if e == nil {
		e = NewSoftware()
	}
	x := &Exponentiator{engine: e, log: discardLogger()}
	for _, opt := range opts {
		opt(x)
	}
	e.Hold()
	return x
}

// ExpPlain computes op.Base^op.Exponent mod op.Modulus. The result is
// big-endian, op.BitLen/8 bytes.
func (x *Exponentiator) ExpPlain(ctx context.Context, op *PlainOperands) ([]byte, error) {
	if op == nil || op.Base == nil || op.Exponent == nil || op.Modulus == nil {
		return nil, ErrExponentInvalidParam
	}
	if op.BitLen <= 0 || op.BitLen%8 != 0 {
		return nil, fmt.Errorf("%w: bit length %d", ErrExponentInvalidParam, op.BitLen)
	}
	return x.bracket(ctx, "exp", func() ([]byte, error) {
		return x.engine.Exp(op)
	})
}

// ExpCRT computes the private-key exponentiation of op.Base with the CRT
// factors. The result is least-significant byte first.
func (x *Exponentiator) ExpCRT(ctx context.Context, op *CRTOperands) ([]byte, error) {
	if op == nil || op.Base == nil || op.P == nil || op.Q == nil ||
		op.DP == nil || op.DQ == nil || op.QInv == nil {
		return nil, ErrExponentInvalidParam
	}
	if op.BitLen <= 0 || op.BitLen%8 != 0 {
		return nil, fmt.Errorf("%w: bit length %d", ErrExponentInvalidParam, op.BitLen)
	}
	return x.bracket(ctx, "exp-crt", func() ([]byte, error) {
		return x.engine.ExpCRT(op)
	})
}

// bracket runs compute with exclusive ownership of the engine. The engine is
// put back on hold on every exit path, including a panic in compute. The
// context is consulted only before the engine is released.
func (x *Exponentiator) bracket(ctx context.Context, op string, compute func() ([]byte, error)) ([]byte, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	log := x.log.WithField("op", op)
	log.Debug("releasing exponentiation engine")
	x.engine.Release()
	defer func() {
		x.engine.Hold()
		log.Debug("exponentiation engine held")
	}()

	res, err := compute()
	if err != nil {
		log.WithError(err).Debug("exponentiation failed")
		return nil, err
	}
	return res, nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
