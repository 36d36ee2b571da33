package credentials

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrEmptySecret is returned by the readers when nothing but blanks was read.
var ErrEmptySecret = errors.New("empty secret")

// IsSecretKey reports whether a configuration key names a secret.
func IsSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range []string{"api_key", "api_secret", "secret", "password", "token"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// IsAPICredentialKey reports whether key names an exchange API credential.
func IsAPICredentialKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "api_key") || strings.Contains(k, "api_secret")
}

func trimmed(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptySecret
	}
	return s, nil
}

// ReadFrom reads a whole secret from r, typically a pipe on stdin.
func ReadFrom(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("could not read secret: %w", err)
	}
	return trimmed(string(b))
}

// ReadFile reads a secret from a file.
func ReadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read secret file: %w", err)
	}
	s, err := trimmed(string(b))
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ReadEnv reads a secret from an environment variable.
func ReadEnv(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	s, err := trimmed(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// Prompt asks for a secret on the terminal fd without echoing it.
func Prompt(fd int, w io.Writer, label string) (string, error) {
	if !term.IsTerminal(fd) {
		return "", errors.New("cannot prompt for a secret: input is not a terminal")
	}
	fmt.Fprintf(w, "Enter %s (hidden): ", label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("could not read secret: %w", err)
	}
	return trimmed(string(b))
}

// ReadStdin reads the secret from a pipe, or prompts when stdin is a
// terminal.
func ReadStdin(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		return Prompt(fd, os.Stderr, label)
	}
	return ReadFrom(os.Stdin)
}
