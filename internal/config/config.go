// Package config loads the rsawrap command configuration.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/vaultsandbox/rsawrap"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds the settings of one rsawrap invocation.
type Config struct {
	KeyFile     string `yaml:"key-file"`
	Hash        string `yaml:"hash"`
	ModulusBits int    `yaml:"modulus-bits"`
	Diagnostics bool   `yaml:"diagnostics"`
	LogLevel    string `yaml:"log-level"`
	LogFormat   string `yaml:"log-format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Hash:        rsawrap.HashSHA3_384.String(),
		ModulusBits: rsawrap.DefaultModulusLen * 8,
		LogLevel:    logrus.InfoLevel.String(),
		LogFormat:   FormatText,
	}
}

// Parse reads a YAML configuration. Unset fields keep their defaults.
// The key file is not required here; Validate checks it once flags have been
// applied.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to parse config")
	}
	return cfg, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), errors.Wrapf(err, "failed to read config file %q", path)
	}
	return Parse(data)
}

// LoadEnv loads environment variables from the given .env files. With no
// paths it loads ./.env if it exists. Variables already set in the process
// environment take precedence.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(paths...); err != nil {
		return errors.Wrap(err, "failed to load env file")
	}
	return nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.KeyFile == "" {
		result = multierror.Append(result, fmt.Errorf("key-file is required"))
	}

	if _, err := rsawrap.ParseHash(c.Hash); err != nil {
		result = multierror.Append(result, fmt.Errorf("hash: %v", err))
	}

	switch c.ModulusBits {
	case 0, 2048, 3072, 4096:
	default:
		result = multierror.Append(result, fmt.Errorf("modulus-bits must be 2048, 3072 or 4096, got %d", c.ModulusBits))
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, fmt.Errorf("log-level: %v", err))
	}

	if c.LogFormat != FormatText && c.LogFormat != FormatJSON {
		result = multierror.Append(result, fmt.Errorf("log-format must be %q or %q, got %q", FormatText, FormatJSON, c.LogFormat))
	}

	return result.ErrorOrNil()
}

// Options converts the configuration into wrapper options. The logger is
// passed in because it is built before the configuration is validated.
func (c *Config) Options(log logrus.FieldLogger) ([]rsawrap.Option, error) {
	h, err := rsawrap.ParseHash(c.Hash)
	if err != nil {
		return nil, err
	}
	opts := []rsawrap.Option{
		rsawrap.WithHash(h),
		rsawrap.WithDiagnostics(c.Diagnostics),
		rsawrap.WithLogger(log),
	}
	if c.ModulusBits != 0 {
		opts = append(opts, rsawrap.WithModulusLen(c.ModulusBits/8))
	}
	return opts, nil
}

// Logger builds a logrus logger from the level and format settings.
func (c *Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	if c.LogFormat == FormatJSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l, nil
}

// Dump generates a YAML string of the Config object
func (c *Config) Dump() (string, error) {
	d, err := yaml.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate YAML dump of config")
	}
	return string(d), nil
}
