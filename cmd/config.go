package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/etnz/cryptofolio/config"
	"github.com/google/subcommands"
)

type configCmd struct{}

func (*configCmd) Name() string     { return "config" }
func (*configCmd) Synopsis() string { return "show or change the configuration" }
func (*configCmd) Usage() string {
	return `cfo config show
cfo config set <key> <value>

  show prints the configuration in effect, after the files, .env and the
  CFO_* environment variables. set writes one key of the configuration
  file, given as section.name, e.g. ledger.reporting_currency. The file
  is left untouched when the new value is invalid.
`
}

func (*configCmd) SetFlags(f *flag.FlagSet) {}

// configPath is the configuration file read and written by cfo.
func configPath() string {
	if *configFile != "" {
		return *configFile
	}
	return config.DefaultPath()
}

func (*configCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) == 0 {
		return usage(f, "missing action")
	}
	switch action, args := args[0], args[1:]; action {
	case "show":
		if len(args) != 0 {
			return usage(f, "config show takes no argument")
		}
		cfg, err := LoadConfig()
		if err != nil {
			return fail(err)
		}
		data, err := cfg.Encode()
		if err != nil {
			return fail(err)
		}
		fmt.Fprintf(stdout, "# %s\n%s", configPath(), data)

	case "set":
		if len(args) != 2 {
			return usage(f, "config set takes a key and a value")
		}
		err := config.Set(configPath(), args[0], args[1])
		if errors.Is(err, config.ErrUnknownKey) {
			return usage(f, "%v", err)
		}
		if err != nil {
			return fail(err)
		}
		fmt.Fprintf(stdout, "Set %s = %s.\n", args[0], args[1])

	default:
		return usage(f, "unknown action %q", action)
	}
	return subcommands.ExitSuccess
}
