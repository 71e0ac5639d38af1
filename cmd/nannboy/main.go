package main

import (
	"log"
	"log/slog"

	"tractor.dev/nannboy/config"
	"tractor.dev/nannboy/internal/slogger"
	"tractor.dev/toolkit-go/engine"
	"tractor.dev/toolkit-go/engine/cli"
)

func main() {
	engine.Run(Main{})
}

type Main struct{}

func (m Main) InitializeCLI(root *cli.Command) {
	root.Usage = "nannboy"
	root.Short = "pack an emulator engine and its skin into one HTML page"
	flags := addBuildFlags(root)
	root.Run = func(ctx *cli.Context, args []string) {
		fatal(runBuild(flags))
	}
	root.AddCommand(buildCmd())
	root.AddCommand(inspectCmd())
	root.AddCommand(unpackCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(romCmd())
}

func fatal(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads path, or the first config file found in dir. It also
// returns the file used, empty for the defaults.
func loadConfig(path, dir string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	return config.Find(dir)
}

func setupLogging(cfg *config.Config, verbose bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose || cfg.Log.Debug {
		level = slog.LevelDebug
	}
	l, err := slogger.NewWithOptions(slogger.HandlerOptions{
		Level:   level,
		Include: cfg.Log.Include,
		Exclude: cfg.Log.Exclude,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return l, nil
}
