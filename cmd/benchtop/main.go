package main

import (
	"github.com/alecthomas/kong"

	"github.com/hperssn/benchtop/cmd/benchtop/commands"
)

var version = "dev"

func main() {
	var (
		cli    commands.CLI
		global commands.Global
	)
	ctx := kong.Parse(&cli,
		kong.Name("benchtop"),
		kong.Description("Checklist runner for the repair bench."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.Bind(&global),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
