// Package rsawrap wraps and unwraps small secrets (content keys,
// personalization data) with RSA-OAEP as specified in PKCS #1 v2.2.
//
// Encryption pads the secret with OAEP and raises the block to the public
// exponent. Decryption uses the CRT form of the private key, verifies the
// result against the public exponent when the key carries it, and checks the
// padding with constant-flow, doubly evaluated comparisons.
//
// Basic usage:
//
//	kp, err := keys.ParsePEM(pemBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	w, err := rsawrap.New(kp, rsawrap.WithHash(rsawrap.HashSHA3_384))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ct, err := w.Wrap(ctx, contentKey, []byte("firmware-v2"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	key, err := w.Unwrap(ctx, ct, []byte("firmware-v2"))
//	if errors.Is(err, rsawrap.ErrDecryptionFailed) {
//	    // wrong key, wrong label or tampered ciphertext
//	}
//
// The exponentiation primitive is pluggable through WithEngine; the default
// is the math/big backed engine.Software.
package rsawrap
