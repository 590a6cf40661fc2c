package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vaultsandbox/rsawrap"
	"github.com/vaultsandbox/rsawrap/internal/config"
	"github.com/vaultsandbox/rsawrap/keys"
)

const envPrefix = "RSAWRAP_"

// app carries the state shared by all subcommands of one invocation.
type app struct {
	io Config

	configFile string
	envFile    string
	flags      config.Config

	cfg config.Config
	log *logrus.Logger
}

func newRootCmd(streams Config) *cobra.Command {
	a := &app{io: streams}
	def := config.Default()

	root := &cobra.Command{
		Use:   "rsawrap",
		Short: "Wrap and unwrap small secrets with RSA-OAEP",
		Long: `rsawrap encrypts short secrets (content keys, personalization data)
under an RSA public key with OAEP padding and decrypts them with the
CRT form of the private key.

Every flag can also be set through an environment variable named
RSAWRAP_<FLAG>, for example RSAWRAP_KEY_FILE.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(streams.Stdin)
	root.SetOut(streams.Stdout)
	root.SetErr(streams.Stderr)

	fs := root.PersistentFlags()
	fs.StringVarP(&a.configFile, "config", "c", "", "YAML configuration file")
	fs.StringVar(&a.envFile, "env-file", "", "`.env` file to load before reading RSAWRAP_* variables (default ./.env if present)")
	fs.StringVarP(&a.flags.KeyFile, "key-file", "k", "", "PEM file holding the RSA key (PKCS #1 or PKCS #8)")
	fs.StringVar(&a.flags.Hash, "hash", def.Hash, "OAEP hash: "+hashNames())
	fs.IntVar(&a.flags.ModulusBits, "modulus-bits", def.ModulusBits, "expected key size in bits; 0 accepts any supported size")
	fs.BoolVar(&a.flags.Diagnostics, "diagnostics", false, "report which padding check failed (never use in production)")
	fs.StringVar(&a.flags.LogLevel, "log-level", def.LogLevel, "log level")
	fs.StringVar(&a.flags.LogFormat, "log-format", def.LogFormat, "log format: text or json")

	root.AddCommand(
		a.encryptCmd(),
		a.decryptCmd(),
		a.selftestCmd(),
		a.configCmd(),
	)
	return root
}

// setup merges defaults, the config file, environment variables and flags,
// in increasing order of precedence.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.envFile != "" {
		if err := config.LoadEnv(a.envFile); err != nil {
			return err
		}
	} else if err := config.LoadEnv(); err != nil {
		return err
	}

	fs := cmd.Flags()
	setFlagsFromEnv(envPrefix, fs)

	cfg := config.Default()
	if a.configFile != "" {
		var err error
		if cfg, err = config.Load(a.configFile); err != nil {
			return err
		}
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "key-file":
			cfg.KeyFile = a.flags.KeyFile
		case "hash":
			cfg.Hash = a.flags.Hash
		case "modulus-bits":
			cfg.ModulusBits = a.flags.ModulusBits
		case "diagnostics":
			cfg.Diagnostics = a.flags.Diagnostics
		case "log-level":
			cfg.LogLevel = a.flags.LogLevel
		case "log-format":
			cfg.LogFormat = a.flags.LogFormat
		}
	})

	log, err := cfg.Logger()
	if err != nil {
		return errors.Wrap(err, "invalid log-level")
	}
	log.SetOutput(a.io.Stderr)

	a.cfg = cfg
	a.log = log
	return nil
}

// wrapper validates the configuration and builds a Wrapper from the key file.
func (a *app) wrapper() (*rsawrap.Wrapper, *keys.Static, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(a.cfg.KeyFile)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read key file")
	}
	kp, err := keys.ParsePEM(data)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to load key from %s", a.cfg.KeyFile)
	}

	opts, err := a.cfg.Options(a.log)
	if err != nil {
		return nil, nil, err
	}
	w, err := rsawrap.New(kp, opts...)
	if err != nil {
		kp.Zeroize()
		return nil, nil, err
	}

	a.log.WithFields(logrus.Fields{
		"key_file":     a.cfg.KeyFile,
		"modulus_bits": w.ModulusLen() * 8,
		"private":      kp.HasPrivateKey(),
	}).Debug("key loaded")
	return w, kp, nil
}

func setFlagsFromEnv(prefix string, fs *pflag.FlagSet) {
	set := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) {
		set[f.Name] = true
	})
	fs.VisitAll(func(f *pflag.Flag) {
		// ignore flags set from the commandline
		if set[f.Name] {
			return
		}
		// remove trailing _ to reduce common errors with the prefix, i.e. people setting it to MY_PROG_
		cleanPrefix := strings.TrimSuffix(prefix, "_")
		name := fmt.Sprintf("%s_%s", cleanPrefix, strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_"))
		if e, ok := os.LookupEnv(name); ok {
			_ = fs.Set(f.Name, e)
		}
	})
}

func hashNames() string {
	var names []string
	for _, h := range rsawrap.Hashes() {
		names = append(names, strings.ToLower(h.String()))
	}
	return strings.Join(names, ", ")
}
