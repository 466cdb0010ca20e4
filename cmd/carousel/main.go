package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	carousel "github.com/menta2k/image-carousel"
	"github.com/menta2k/image-carousel/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func run() error {
	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("carousel"),
		kong.Description("Split one photo into a seamless row of carousel tiles."),
		kong.UsageOnError(),
	)
	return cliCtx.Run(&args.Globals)
}

type globals struct {
	Config  string `help:"Configuration file (YAML or JSON)" type:"path" short:"c"`
	Verbose bool   `help:"Enable verbose logging" short:"v"`
	LogJSON bool   `help:"Log as JSON instead of console output" name:"log-json"`
}

type cliArgs struct {
	Globals globals `embed:""`

	Plan    planCmd    `cmd:"" help:"Print the tile rectangles for an image without writing anything"`
	Split   splitCmd   `cmd:"" help:"Split images into tiles and store them in a collection"`
	Serve   serveCmd   `cmd:"" help:"Serve the HTTP API"`
	Config  configCmd  `cmd:"" help:"Manage the configuration file"`
	Version versionCmd `cmd:"" help:"Print the version"`
}

// setup configures logging and returns a context cancelled on SIGINT/SIGTERM
func (g *globals) setup() (context.Context, context.CancelFunc) {
	level := zerolog.InfoLevel
	if g.Verbose {
		level = zerolog.DebugLevel
	}
	if g.LogJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
	} else {
		log.Logger = log.Output(zerolog.NewConsoleWriter()).Level(level)
	}
	zerolog.DefaultContextLogger = &log.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return log.Logger.WithContext(ctx), cancel
}

// loadConfig reads the explicit config file, the default one if present, or
// falls back to defaults.
func (g *globals) loadConfig() (*config.Config, error) {
	path := g.Config
	if path == "" {
		path = config.GetConfigPath()
		if _, err := os.Stat(path); err != nil {
			return config.Default(), nil
		}
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

type versionCmd struct{}

func (cmd *versionCmd) Run() error {
	fmt.Println(carousel.GetVersion())
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
