package credentials

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrWrongPassphrase is returned when the vault cannot be unlocked.
	ErrWrongPassphrase = errors.New("wrong vault passphrase")
	// ErrNoSecret is returned when a secret is not in the vault.
	ErrNoSecret = errors.New("secret not found")
	// ErrBiometricUnavailable is returned when a BiometricOnly secret is
	// read without an Authenticator.
	ErrBiometricUnavailable = errors.New("biometric authentication unavailable")
)

// Argon2id parameters.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	saltSize   = 16
)

// the verifier is the empty plaintext sealed under this name.
const verifierName = "\x00vault"

// Authenticator confirms the user's presence before a protected secret is
// read, e.g. with a fingerprint reader.
type Authenticator interface {
	Authenticate(ctx context.Context, reason string) error
}

// Entry describes a stored secret without revealing it.
type Entry struct {
	Name      string        `json:"-"`
	Level     SecurityLevel `json:"level"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type sealed struct {
	Entry
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

type vaultFile struct {
	Version  int               `json:"version"`
	Salt     []byte            `json:"salt"`
	Verifier sealed            `json:"verifier"`
	Secrets  map[string]sealed `json:"secrets"`
}

// Vault is a file of secrets encrypted with ChaCha20-Poly1305 under a key
// derived from a passphrase with Argon2id. Every change is written to disk
// at once, with 0600 permissions.
type Vault struct {
	mu   sync.Mutex
	path string
	file vaultFile
	aead aeadCipher
	auth Authenticator
	now  func() time.Time
}

type aeadCipher interface {
	NonceSize() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// OpenVault unlocks the vault at path, creating it when the file does not
// exist. auth may be nil.
func OpenVault(path string, passphrase []byte, auth Authenticator) (*Vault, error) {
	v := &Vault{path: path, auth: auth, now: time.Now}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		v.file = vaultFile{Version: 1, Secrets: make(map[string]sealed)}
		v.file.Salt = make([]byte, saltSize)
		if _, err := rand.Read(v.file.Salt); err != nil {
			return nil, fmt.Errorf("could not generate salt: %w", err)
		}
		if err := v.unlock(passphrase); err != nil {
			return nil, err
		}
		if v.file.Verifier, err = v.seal(verifierName, Entry{}, nil); err != nil {
			return nil, err
		}
		return v, v.save()
	case err != nil:
		return nil, fmt.Errorf("could not read vault: %w", err)
	}

	if err := json.Unmarshal(data, &v.file); err != nil {
		return nil, fmt.Errorf("invalid vault %s: %w", path, err)
	}
	if v.file.Secrets == nil {
		v.file.Secrets = make(map[string]sealed)
	}
	if err := v.unlock(passphrase); err != nil {
		return nil, err
	}
	if _, err := v.open(verifierName, v.file.Verifier); err != nil {
		return nil, ErrWrongPassphrase
	}
	return v, nil
}

func (v *Vault) unlock(passphrase []byte) error {
	if len(passphrase) == 0 {
		return fmt.Errorf("%w: empty passphrase", ErrWrongPassphrase)
	}
	key := argon2.IDKey(passphrase, v.file.Salt, kdfTime, kdfMemory, kdfThreads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("could not create cipher: %w", err)
	}
	v.aead = aead
	return nil
}

// additional data binds the ciphertext to its name and level.
func additionalData(name string, level SecurityLevel) []byte {
	return []byte(name + "\x00" + level.String())
}

func (v *Vault) seal(name string, e Entry, secret []byte) (sealed, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return sealed{}, fmt.Errorf("could not generate nonce: %w", err)
	}
	return sealed{
		Entry:      e,
		Nonce:      nonce,
		Ciphertext: v.aead.Seal(nil, nonce, secret, additionalData(name, e.Level)),
	}, nil
}

func (v *Vault) open(name string, s sealed) ([]byte, error) {
	return v.aead.Open(nil, s.Nonce, s.Ciphertext, additionalData(name, s.Level))
}

func (v *Vault) save() error {
	data, err := json.MarshalIndent(v.file, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return fmt.Errorf("could not create vault directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(v.path), ".vault-*")
	if err != nil {
		return fmt.Errorf("could not write vault: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write vault: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), v.path)
}

// Put stores secret under name with the given level, replacing any previous
// value.
func (v *Vault) Put(name, secret string, level SecurityLevel) error {
	if name == "" || name == verifierName {
		return fmt.Errorf("invalid secret name %q", name)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	s, err := v.seal(name, Entry{Level: level, UpdatedAt: v.now().UTC()}, []byte(secret))
	if err != nil {
		return err
	}
	v.file.Secrets[name] = s
	return v.save()
}

// Get returns the secret stored under name, asking the Authenticator first
// when the level requires it.
func (v *Vault) Get(ctx context.Context, name string) (string, error) {
	v.mu.Lock()
	s, ok := v.file.Secrets[name]
	v.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%q: %w", name, ErrNoSecret)
	}
	if err := v.authenticate(ctx, name, s.Level); err != nil {
		return "", err
	}
	plain, err := v.open(name, s)
	if err != nil {
		return "", fmt.Errorf("secret %q is corrupted: %w", name, err)
	}
	return string(plain), nil
}

func (v *Vault) authenticate(ctx context.Context, name string, level SecurityLevel) error {
	if !level.RequiresBiometric() {
		return nil
	}
	if v.auth == nil {
		if level == BiometricOnly {
			return fmt.Errorf("%q: %w", name, ErrBiometricUnavailable)
		}
		// the passphrase already unlocked the vault
		return nil
	}
	if err := v.auth.Authenticate(ctx, "read "+name); err != nil {
		return fmt.Errorf("authentication for %q failed: %w", name, err)
	}
	return nil
}

// Delete removes a secret.
func (v *Vault) Delete(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.file.Secrets[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrNoSecret)
	}
	delete(v.file.Secrets, name)
	return v.save()
}

// Exists reports whether name is in the vault.
func (v *Vault) Exists(name string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.file.Secrets[name]
	return ok
}

// Level returns the security level of a secret.
func (v *Vault) Level(name string) (SecurityLevel, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.file.Secrets[name]
	if !ok {
		return Standard, fmt.Errorf("%q: %w", name, ErrNoSecret)
	}
	return s.Level, nil
}

// SetLevel changes the security level of a secret. The secret is sealed
// again since its level is authenticated along with it.
func (v *Vault) SetLevel(ctx context.Context, name string, level SecurityLevel) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.file.Secrets[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrNoSecret)
	}
	// lowering a protected level needs the same proof as reading it
	if err := v.authenticate(ctx, name, s.Level); err != nil {
		return err
	}
	plain, err := v.open(name, s)
	if err != nil {
		return fmt.Errorf("secret %q is corrupted: %w", name, err)
	}
	ns, err := v.seal(name, Entry{Level: level, UpdatedAt: v.now().UTC()}, plain)
	if err != nil {
		return err
	}
	v.file.Secrets[name] = ns
	return v.save()
}

// List returns the entries sorted by name.
func (v *Vault) List() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	names := slices.Sorted(maps.Keys(v.file.Secrets))
	out := make([]Entry, 0, len(names))
	for _, n := range names {
		e := v.file.Secrets[n].Entry
		e.Name = n
		out = append(out, e)
	}
	return out
}
