package main

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vaultsandbox/rsawrap"
	"github.com/vaultsandbox/rsawrap/internal/encoding"
)

// ioFlags are the per-command input, output and label settings.
type ioFlags struct {
	in    string
	out   string
	label string
}

func (f *ioFlags) register(cmd *cobra.Command, inDesc, outDesc string) {
	cmd.Flags().StringVarP(&f.in, "in", "i", "", inDesc+" (default stdin)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", outDesc+" (default stdout)")
	cmd.Flags().StringVarP(&f.label, "label", "l", "", "OAEP label bound to the ciphertext")
}

func (f *ioFlags) labelBytes() []byte {
	if f.label == "" {
		return nil
	}
	return []byte(f.label)
}

func (a *app) readInput(path string) ([]byte, error) {
	if path == "" {
		data, err := io.ReadAll(a.io.Stdin)
		return data, errors.Wrap(err, "failed to read stdin")
	}
	data, err := os.ReadFile(path)
	return data, errors.Wrapf(err, "failed to read %s", path)
}

func (a *app) writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := a.io.Stdout.Write(data)
		return errors.Wrap(err, "failed to write stdout")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o600), "failed to write %s", path)
}

func (a *app) encryptCmd() *cobra.Command {
	var f ioFlags
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Wrap a secret; prints base64url ciphertext",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, kp, err := a.wrapper()
			if err != nil {
				return err
			}
			defer kp.Zeroize()

			secret, err := a.readInput(f.in)
			if err != nil {
				return err
			}

			ct, err := w.Wrap(cmd.Context(), secret, f.labelBytes())
			if err != nil {
				return err
			}
			return a.writeOutput(f.out, []byte(encoding.ToBase64URL(ct)+"\n"))
		},
	}
	f.register(cmd, "file holding the secret", "file receiving the ciphertext")
	return cmd
}

func (a *app) decryptCmd() *cobra.Command {
	var f ioFlags
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Unwrap a base64 ciphertext; prints the raw secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, kp, err := a.wrapper()
			if err != nil {
				return err
			}
			defer kp.Zeroize()

			text, err := a.readInput(f.in)
			if err != nil {
				return err
			}
			ct, err := encoding.Decode(string(text))
			if err != nil {
				return errors.Wrap(err, "ciphertext is not valid base64")
			}

			secret, err := w.Unwrap(cmd.Context(), ct, f.labelBytes())
			if err != nil {
				return err
			}
			return a.writeOutput(f.out, secret)
		},
	}
	f.register(cmd, "file holding the base64 ciphertext", "file receiving the secret")
	return cmd
}

func (a *app) selftestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Round-trip a random secret with every hash against the key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, kp, err := a.wrapper()
			if err != nil {
				return err
			}
			defer kp.Zeroize()

			out := cmd.OutOrStdout()
			var result *multierror.Error
			for _, h := range rsawrap.Hashes() {
				if err := a.roundTrip(cmd, w, h); err != nil {
					fmt.Fprintf(out, "%-12s FAIL\n", h)
					result = multierror.Append(result, fmt.Errorf("%s: %w", h, err))
					continue
				}
				fmt.Fprintf(out, "%-12s ok\n", h)
			}
			return result.ErrorOrNil()
		},
	}
}

func (a *app) roundTrip(cmd *cobra.Command, w *rsawrap.Wrapper, h rsawrap.Hash) error {
	n, err := w.MaxMessageLen(h)
	if err != nil {
		return err
	}
	if n > 32 {
		n = 32
	}
	secret := make([]byte, n)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	label := []byte("rsawrap-selftest")

	enc := &rsawrap.OperationParams{Hash: h, Label: label, Input: secret, Output: make([]byte, w.ModulusLen())}
	if err := w.Encrypt(cmd.Context(), enc); err != nil {
		return err
	}
	dec := &rsawrap.OperationParams{Hash: h, Label: label, Input: enc.Output, Output: make([]byte, w.ModulusLen())}
	if err := w.Decrypt(cmd.Context(), dec); err != nil {
		return err
	}
	if !bytes.Equal(dec.Output[:dec.OutputSize], secret) {
		return errors.New("recovered secret differs")
	}
	a.log.WithField("hash", h.String()).Debug("selftest round trip passed")
	return nil
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.cfg.Dump()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
}
