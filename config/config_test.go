package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// isolate runs the test in an empty directory with CFO_HOME pointing to it.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CFO_HOME", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)
	c, err := Load(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ledger.db"), c.Database.Path)
	assert.Equal(t, "USD", c.Ledger.ReportingCurrency)
	assert.Equal(t, int32(10), c.Ledger.RatePrecision)
	assert.Equal(t, 15*time.Minute, c.Credentials.TTL())
	assert.Equal(t, filepath.Join(dir, "config.toml"), DefaultPath())
}

func TestLoad_FilesThenEnv(t *testing.T) {
	dir := isolate(t)
	base := writeFile(t, dir, "base.toml", `
[ledger]
reporting_currency = "eur"
rate_precision = 12

[logging]
level = "debug"
`)
	local := writeFile(t, dir, "local.toml", `
[display]
color = false

[credentials]
security_level = "biometric"
session_ttl = "1h"
`)
	writeFile(t, dir, ".env", "CFO_LOG_FORMAT=json\nCFO_RATE_PRECISION=8\n")
	t.Setenv("CFO_DATABASE_PATH", "/data/ledger.db")
	t.Setenv("CFO_RATE_PRECISION", "14") // the environment wins over .env
	t.Cleanup(func() { os.Unsetenv("CFO_LOG_FORMAT") })

	c, err := Load(base, local)
	require.NoError(t, err)
	assert.Equal(t, "EUR", c.Ledger.ReportingCurrency)
	assert.Equal(t, int32(14), c.Ledger.RatePrecision)
	assert.False(t, c.Display.Color)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, "json", c.Logging.Format)
	assert.Equal(t, "/data/ledger.db", c.Database.Path)
	assert.Equal(t, "biometric", c.Credentials.SecurityLevel)
	assert.Equal(t, time.Hour, c.Credentials.TTL())
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		env     map[string]string
		want    string
	}{
		{
			name:    "unknown key",
			content: "[ledger]\nreporting = \"USD\"\n",
			want:    "reporting",
		},
		{
			name:    "bad level",
			content: "[logging]\nlevel = \"verbose\"\n",
			want:    "Config.Logging.Level",
		},
		{
			name:    "bad security level",
			content: "[credentials]\nsecurity_level = \"touchid\"\n",
			want:    "Config.Credentials.SecurityLevel",
		},
		{
			name:    "bad duration",
			content: "[credentials]\nsession_ttl = \"soon\"\n",
			want:    "duration",
		},
		{
			name:    "guard digits are not a setting",
			content: "[ledger]\nguard_digits = 0\n",
			want:    "guard_digits",
		},
		{
			name:    "precision out of range",
			content: "[ledger]\nrate_precision = 30\n",
			want:    "Config.Ledger.RatePrecision",
		},
		{
			name:    "not toml",
			content: "[ledger\n",
			want:    "failed to parse",
		},
		{
			name: "bad env integer",
			env:  map[string]string{"CFO_RATE_PRECISION": "ten"},
			want: "CFO_RATE_PRECISION",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := isolate(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, dir, "config.toml", tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestEncode(t *testing.T) {
	isolate(t)
	data, err := NewDefaultConfig().Encode()
	require.NoError(t, err)
	assert.Regexp(t, `reporting_currency = .USD.`, string(data))
}

func TestSet(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "config.toml", "[logging]\nlevel = \"debug\"\n")

	require.NoError(t, Set(path, "ledger.reporting_currency", "eur"))
	require.NoError(t, Set(path, "ledger.rate_precision", "12"))
	require.NoError(t, Set(path, "display.color", "false"))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "EUR", c.Ledger.ReportingCurrency)
	assert.Equal(t, int32(12), c.Ledger.RatePrecision)
	assert.False(t, c.Display.Color)
	assert.Equal(t, "debug", c.Logging.Level, "other settings are kept")

	// a new file is created in a missing directory
	fresh := filepath.Join(dir, "sub", "config.toml")
	require.NoError(t, Set(fresh, "credentials.session_ttl", "1h"))
	c, err = Load(fresh)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, c.Credentials.TTL())
}

func TestSet_Errors(t *testing.T) {
	testCases := []struct {
		name, key, value string
		want             string
	}{
		{"unknown key", "ledger.guard_digits", "2", "unknown setting"},
		{"not an integer", "ledger.rate_precision", "ten", "ledger.rate_precision"},
		{"not a boolean", "display.color", "maybe", "display.color"},
		{"out of range", "ledger.rate_precision", "30", "Config.Ledger.RatePrecision"},
		{"invalid value", "logging.level", "verbose", "Config.Logging.Level"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := isolate(t)
			const content = "[logging]\nlevel = \"info\"\n"
			path := writeFile(t, dir, "config.toml", content)
			err := Set(path, tc.key, tc.value)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, content, string(data), "the file is left untouched")
		})
	}
	assert.ErrorIs(t, Set(filepath.Join(t.TempDir(), "c.toml"), "ledger.guard_digits", "1"), ErrUnknownKey)
}
