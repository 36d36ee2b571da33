// Package config loads the cfo configuration: defaults, then TOML files,
// then a .env file and CFO_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration of cfo.
type Config struct {
	Database    DatabaseConfig    `toml:"database"`
	Ledger      LedgerConfig      `toml:"ledger"`
	Logging     LoggingConfig     `toml:"logging"`
	Credentials CredentialsConfig `toml:"credentials"`
	Display     DisplayConfig     `toml:"display"`
}

// DatabaseConfig locates the ledger database.
type DatabaseConfig struct {
	Path string `toml:"path" validate:"required"`
}

// LedgerConfig holds the engine settings.
type LedgerConfig struct {
	ReportingCurrency string `toml:"reporting_currency" validate:"required,alphanum,uppercase,min=2,max=10"`
	RatePrecision     int32  `toml:"rate_precision" validate:"min=1,max=18"`
}

type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=console json"`
}

// CredentialsConfig configures the secret vault and its session cache.
type CredentialsConfig struct {
	VaultPath     string `toml:"vault_path" validate:"required"`
	SecurityLevel string `toml:"security_level" validate:"oneof=standard biometric biometric-only"`
	SessionTTL    string `toml:"session_ttl" validate:"duration"` // e.g. "15m"; "0" disables the cache
}

// TTL returns the session cache lifetime.
func (c CredentialsConfig) TTL() time.Duration {
	d, _ := time.ParseDuration(c.SessionTTL)
	return d
}

type DisplayConfig struct {
	Color bool `toml:"color"`
}

// Dir returns the directory holding the configuration, the database and
// the vault by default.
func Dir() string {
	if dir := os.Getenv("CFO_HOME"); dir != "" {
		return dir
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "cryptofolio")
}

// DefaultPath is the configuration file read when none is given.
func DefaultPath() string { return filepath.Join(Dir(), "config.toml") }

// NewDefaultConfig returns the configuration used when nothing is set.
func NewDefaultConfig() *Config {
	dir := Dir()
	return &Config{
		Database: DatabaseConfig{Path: filepath.Join(dir, "ledger.db")},
		Ledger:   LedgerConfig{ReportingCurrency: "USD", RatePrecision: 10},
		Logging:  LoggingConfig{Level: "warn", Format: "console"},
		Credentials: CredentialsConfig{
			VaultPath:     filepath.Join(dir, "vault.json"),
			SecurityLevel: "standard",
			SessionTTL:    "15m",
		},
		Display: DisplayConfig{Color: true},
	}
}

// Load merges the files at paths over the defaults, later files winning.
// Missing files are skipped; unknown keys are an error. A .env file in the
// working directory is loaded into the environment, then CFO_* variables
// override the files.
func Load(paths ...string) (*Config, error) {
	config := NewDefaultConfig()
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := decode(config, path, data); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	config.Ledger.ReportingCurrency = strings.ToUpper(config.Ledger.ReportingCurrency)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func decode(config *Config, path string, data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(config); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config file %s: %s", path, strict.String())
		}
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(config *Config) error {
	strs := map[string]*string{
		"CFO_DATABASE_PATH":      &config.Database.Path,
		"CFO_REPORTING_CURRENCY": &config.Ledger.ReportingCurrency,
		"CFO_LOG_LEVEL":          &config.Logging.Level,
		"CFO_LOG_FORMAT":         &config.Logging.Format,
		"CFO_VAULT_PATH":         &config.Credentials.VaultPath,
		"CFO_SECURITY_LEVEL":     &config.Credentials.SecurityLevel,
		"CFO_SESSION_TTL":        &config.Credentials.SessionTTL,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	ints := map[string]*int32{
		"CFO_RATE_PRECISION": &config.Ledger.RatePrecision,
	}
	for name, dst := range ints {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.ParseInt(v, 10, 32)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = int32(n)
		}
	}
	if v := os.Getenv("CFO_COLOR"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CFO_COLOR: %w", err)
		}
		config.Display.Color = b
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	if err != nil {
		panic(fmt.Sprintf("config: cannot register the duration validation: %v", err))
	}
	return v
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %v fails %q", fe.Namespace(), fe.Value(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Encode writes c as TOML.
func (c *Config) Encode() ([]byte, error) { return toml.Marshal(c) }

// ErrUnknownKey is returned by Set for a key that is not a setting.
var ErrUnknownKey = errors.New("unknown setting")

type kind int

const (
	text kind = iota
	integer
	boolean
)

// settings are the keys accepted by Set, as section.name.
var settings = map[string]kind{
	"database.path":              text,
	"ledger.reporting_currency":  text,
	"ledger.rate_precision":      integer,
	"logging.level":              text,
	"logging.format":             text,
	"credentials.vault_path":     text,
	"credentials.security_level": text,
	"credentials.session_ttl":    text,
	"display.color":              boolean,
}

// Keys returns the keys accepted by Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Set writes key = value in the TOML file at path, keeping the other
// settings of the file. The file is created if needed. Nothing is written
// unless the resulting file loads over the defaults and validates.
func Set(path, key, value string) error {
	k, ok := settings[key]
	if !ok {
		return fmt.Errorf("%w %q, want one of %s", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}
	section, name, _ := strings.Cut(key, ".")

	var v any = value
	switch k {
	case integer:
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		v = n
	case boolean:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		v = b
	}

	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	table, ok := doc[section].(map[string]any)
	if !ok {
		table = map[string]any{}
		doc[section] = table
	}
	table[name] = v

	data, err = toml.Marshal(doc)
	if err != nil {
		return err
	}
	config := NewDefaultConfig()
	if err := decode(config, path, data); err != nil {
		return err
	}
	config.Ledger.ReportingCurrency = strings.ToUpper(config.Ledger.ReportingCurrency)
	if err := config.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
