package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"tractor.dev/nannboy"
	"tractor.dev/nannboy/payload"
	"tractor.dev/toolkit-go/engine/cli"
)

type BuildFlags struct {
	Config, Output, Dir *string
	Gzip, Force, Verbose *bool
	Chunk                *int
}

func addBuildFlags(cmd *cli.Command) *BuildFlags {
	f := cmd.Flags()
	return &BuildFlags{
		Config:  f.String("c", "", "config file (default: nannboy.yaml or nannboy.jsonc if present)"),
		Output:  f.String("o", "", "output file (default NannBoy_mGBA.html)"),
		Dir:     f.String("dir", ".", "directory to search for inputs"),
		Gzip:    f.Bool("gzip", false, "gzip the engine payload before encoding"),
		Force:   f.Bool("force", false, "rebuild even if the output is up to date"),
		Verbose: f.Bool("v", false, "debug logging"),
		Chunk:   f.Int("chunk", 0, "encoded bytes per payload chunk, a multiple of 4"),
	}
}

func buildCmd() *cli.Command {
	cmd := &cli.Command{
		Usage: "build",
		Short: "build the single-file page (default command)",
		Args:  cli.ExactArgs(0),
	}
	flags := addBuildFlags(cmd)
	cmd.Run = func(ctx *cli.Context, args []string) {
		fatal(runBuild(flags))
	}
	return cmd
}

// packager loads config and logging the way every command does.
func packager(flags *BuildFlags) (*nannboy.Packager, error) {
	cfg, found, err := loadConfig(*flags.Config, *flags.Dir)
	if err != nil {
		return nil, err
	}
	if *flags.Output != "" {
		cfg.Output = *flags.Output
	}
	if *flags.Gzip {
		cfg.Compress = payload.CompressionGzip
	}
	if *flags.Chunk != 0 {
		cfg.ChunkSize = *flags.Chunk
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l, err := setupLogging(cfg, *flags.Verbose)
	if err != nil {
		return nil, err
	}
	if found != "" {
		l.Debug("using config", "path", found)
	}
	p := nannboy.New(cfg, *flags.Dir)
	p.Log = l
	p.Force = *flags.Force
	return p, nil
}

func runBuild(flags *BuildFlags) error {
	p, err := packager(flags)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := p.Build(ctx)
	if err != nil {
		if missing := nannboy.Missing(err); len(missing) > 0 {
			return fmt.Errorf("missing input: %s; nothing was written", strings.Join(missing, ", "))
		}
		return err
	}
	if !res.Skipped {
		slog.Info(fmt.Sprintf("Built %s", res.Output),
			"payload_size", res.Payload.Size,
			"payload_encoded", res.Payload.Encoded,
			"payload_chunks", res.Payload.Chunks)
	}
	return nil
}
