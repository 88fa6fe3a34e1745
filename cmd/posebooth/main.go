package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// CLI is the root command line.
type CLI struct {
	Config  string `short:"c" help:"Configuration file path (optional)" type:"path"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Run         RunCmd         `cmd:"" default:"withargs" help:"Run the photo kiosk"`
	CheckConfig CheckConfigCmd `cmd:"" name:"check-config" help:"Load and validate the configuration, then print it"`
}

// AfterApply sets up logging once flags are parsed.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("posebooth"),
		kong.Description("Walk-up photo kiosk: stand in frame, show an OK sign, smile."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli); err != nil {
		slog.Error("command failed", "command", ctx.Command(), "error", err)
		os.Exit(1)
	}
}
