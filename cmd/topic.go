package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/etnz/cryptofolio/config"
	"github.com/etnz/cryptofolio/docs"
	"github.com/google/subcommands"
)

type topicCmd struct{}

func (*topicCmd) Name() string     { return "topic" }
func (*topicCmd) Synopsis() string { return "show documentation" }
func (*topicCmd) Usage() string {
	return `cfo topic [<topic>...]

  Shows the documentation of the given topics, '*' for all of them, or
  the list of topics.
`
}

func (*topicCmd) SetFlags(f *flag.FlagSet) {}

func (*topicCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	topics := f.Args()
	if len(topics) == 0 {
		topics = []string{"readme"}
	}
	doc, err := docs.GetTopics(topics...)
	if err != nil {
		all, _ := docs.GetAllTopics()
		return fail(fmt.Errorf("%w (topics: %s)", err, strings.Join(all, ", ")))
	}
	// a broken configuration must not hide the documentation.
	color := config.NewDefaultConfig().Display.Color
	if cfg, err := LoadConfig(); err == nil {
		color = cfg.Display.Color
	}
	printMarkdown(doc, color)
	return subcommands.ExitSuccess
}
