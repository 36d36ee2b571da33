package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/etnz/cryptofolio/config"
	"github.com/etnz/cryptofolio/credentials"
	"github.com/google/subcommands"
)

// passphraseEnv holds the vault passphrase for non interactive use.
const passphraseEnv = "CFO_VAULT_PASSPHRASE"

type secretCmd struct {
	file  string
	env   string
	level string
}

func (*secretCmd) Name() string     { return "secret" }
func (*secretCmd) Synopsis() string { return "store exchange credentials in the encrypted vault" }
func (*secretCmd) Usage() string {
	return `cfo secret set [-file <path> | -env <var>] [-level <level>] <name>
cfo secret get <name>...
cfo secret delete <name>
cfo secret list
cfo secret level <name> <level>

  Secrets are encrypted with a key derived from the vault passphrase, read
  from $CFO_VAULT_PASSPHRASE or prompted for. A secret value is read from
  -file, -env, a pipe, or prompted for; it never appears on the command
  line. Levels are standard, biometric and biometric-only.
`
}

func (c *secretCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "Read the secret from this file")
	f.StringVar(&c.env, "env", "", "Read the secret from this environment variable")
	f.StringVar(&c.level, "level", "", "Security level of the secret (default from the configuration)")
}

func openVault(cfg *config.Config) (*credentials.Vault, error) {
	passphrase, err := credentials.ReadEnv(passphraseEnv)
	if err != nil {
		if passphrase, err = credentials.ReadStdin("vault passphrase"); err != nil {
			return nil, err
		}
	}
	// no biometric device is wired to the command line.
	return credentials.OpenVault(cfg.Credentials.VaultPath, []byte(passphrase), nil)
}

func (c *secretCmd) value() (string, error) {
	switch {
	case c.file != "":
		return credentials.ReadFile(c.file)
	case c.env != "":
		return credentials.ReadEnv(c.env)
	default:
		return credentials.ReadStdin("secret")
	}
}

func (c *secretCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) == 0 {
		return usage(f, "missing action")
	}
	action, args := args[0], args[1:]
	cfg, err := LoadConfig()
	if err != nil {
		return fail(err)
	}
	level := cfg.Credentials.SecurityLevel
	if c.level != "" {
		level = c.level
	}

	switch action {
	case "set":
		if len(args) != 1 {
			return usage(f, "secret set takes one name")
		}
		lvl, err := credentials.ParseSecurityLevel(level)
		if err != nil {
			return usage(f, "%v", err)
		}
		name := args[0]
		if !credentials.IsSecretKey(name) {
			fmt.Fprintf(stderr, "Warning: %q does not look like a secret name (api_key, api_secret, token, password).\n", name)
		}
		if credentials.IsAPICredentialKey(name) && !lvl.RequiresBiometric() {
			fmt.Fprintf(stderr, "Hint: API credentials can be protected with -level biometric.\n")
		}
		secret, err := c.value()
		if err != nil {
			return fail(err)
		}
		v, err := openVault(cfg)
		if err != nil {
			return fail(err)
		}
		if err := v.Put(name, secret, lvl); err != nil {
			return fail(err)
		}
		fmt.Fprintf(stdout, "Secret %s stored (%s).\n", name, lvl.Display())

	case "get":
		if len(args) == 0 {
			return usage(f, "secret get takes at least one name")
		}
		v, err := openVault(cfg)
		if err != nil {
			return fail(err)
		}
		session := credentials.NewSession(v, cfg.Credentials.TTL())
		defer session.Lock()
		for _, name := range args {
			secret, err := session.Get(ctx, name)
			if err != nil {
				return fail(fmt.Errorf("%s: %w", name, err))
			}
			fmt.Fprintln(stdout, secret)
		}

	case "delete":
		if len(args) != 1 {
			return usage(f, "secret delete takes one name")
		}
		v, err := openVault(cfg)
		if err != nil {
			return fail(err)
		}
		if err := v.Delete(args[0]); err != nil {
			return fail(err)
		}
		fmt.Fprintf(stdout, "Secret %s deleted.\n", args[0])

	case "list":
		v, err := openVault(cfg)
		if err != nil {
			return fail(err)
		}
		printMarkdown(secretsTable(v.List()), cfg.Display.Color)

	case "level":
		if len(args) != 2 {
			return usage(f, "secret level takes a name and a level")
		}
		lvl, err := credentials.ParseSecurityLevel(args[1])
		if err != nil {
			return usage(f, "%v", err)
		}
		v, err := openVault(cfg)
		if err != nil {
			return fail(err)
		}
		if err := v.SetLevel(ctx, args[0], lvl); err != nil {
			return fail(err)
		}
		fmt.Fprintf(stdout, "Secret %s is now %s.\n", args[0], lvl.Display())

	default:
		return usage(f, "unknown action %q", action)
	}
	return subcommands.ExitSuccess
}

func secretsTable(entries []credentials.Entry) string {
	if len(entries) == 0 {
		return "_No secrets._\n"
	}
	var b strings.Builder
	b.WriteString("| Name | Level | Updated |\n|:---|:---|:---|\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", e.Name, e.Level.Display(), e.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}
