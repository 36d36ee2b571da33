// Command cfo tracks a crypto portfolio: a journal of transactions, the
// holdings with their cost basis, exchange rates and valuations.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"

	"github.com/etnz/cryptofolio/cmd"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	// Exits when invoked by the shell for completion, or to install it.
	completion(commander).Complete("cfo")

	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}

// actions are the positional verbs of the commands that take one.
var actions = map[string][]string{
	"rate":     {"set", "get", "history", "convert"},
	"currency": {"list", "add", "update", "enable", "disable"},
	"account":  {"list", "add", "show", "delete"},
	"category": {"list", "add"},
	"secret":   {"set", "get", "delete", "list", "level"},
	"config":   {"show", "set"},
}

// fileFlags take a path.
var fileFlags = map[string]bool{"config": true, "db": true, "prices": true, "save": true, "file": true, "o": true}

// completion describes the commands and their flags for shell completion.
func completion(commander *subcommands.Commander) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: flags(flag.CommandLine),
	}
	commander.VisitCommands(func(_ *subcommands.CommandGroup, c subcommands.Command) {
		fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.SetFlags(fs)
		sub := &complete.Command{Flags: flags(fs), Args: predict.Nothing}
		if verbs, ok := actions[c.Name()]; ok {
			sub.Args = predict.Set(verbs)
		}
		if c.Name() == "import" {
			sub.Args = predict.Files("*")
		}
		root.Sub[c.Name()] = sub
	})
	return root
}

func flags(fs *flag.FlagSet) map[string]complete.Predictor {
	out := map[string]complete.Predictor{}
	fs.VisitAll(func(f *flag.Flag) {
		switch {
		case fileFlags[f.Name]:
			out[f.Name] = predict.Files("*")
		case isBool(f):
			out[f.Name] = predict.Nothing
		default:
			out[f.Name] = predict.Something
		}
	})
	return out
}

func isBool(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}
