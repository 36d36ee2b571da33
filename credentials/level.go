// Package credentials keeps exchange API secrets out of the configuration
// file: an encrypted vault, secret readers and a session cache.
package credentials

import (
	"fmt"
	"strings"
)

// SecurityLevel tells how a secret must be unlocked before use.
type SecurityLevel int

const (
	// Standard secrets only need the vault passphrase.
	Standard SecurityLevel = iota
	// Biometric secrets ask the Authenticator when one is available.
	Biometric
	// BiometricOnly secrets cannot be read without the Authenticator.
	BiometricOnly
)

// ParseSecurityLevel accepts the configuration names and their touchid
// aliases.
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return Standard, nil
	case "biometric", "touchid", "touchid-protected":
		return Biometric, nil
	case "biometric-only", "touchid-only":
		return BiometricOnly, nil
	}
	return Standard, fmt.Errorf("unknown security level %q", s)
}

// String returns the configuration name of the level.
func (l SecurityLevel) String() string {
	switch l {
	case Biometric:
		return "biometric"
	case BiometricOnly:
		return "biometric-only"
	}
	return "standard"
}

// Display returns the level as shown to users.
func (l SecurityLevel) Display() string {
	switch l {
	case Biometric:
		return "Biometric Protected"
	case BiometricOnly:
		return "Biometric Only"
	}
	return "Standard"
}

// RequiresBiometric reports whether reading a secret involves the
// Authenticator.
func (l SecurityLevel) RequiresBiometric() bool { return l != Standard }

func (l SecurityLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *SecurityLevel) UnmarshalText(b []byte) error {
	v, err := ParseSecurityLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
