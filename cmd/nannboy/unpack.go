package main

import (
	"fmt"
	"os"
	"path/filepath"

	"tractor.dev/nannboy"
	"tractor.dev/nannboy/config"
	"tractor.dev/nannboy/page"
	"tractor.dev/nannboy/payload"
	"tractor.dev/toolkit-go/engine/cli"
)

func unpackCmd() *cli.Command {
	cmd := &cli.Command{
		Usage: "unpack <page.html> [dir]",
		Short: "recover the engine payload and glue script from a built page",
		Args:  cli.MinArgs(1),
	}
	cfgPath := cmd.Flags().String("c", "", "config file naming the files to write")
	cmd.Run = func(ctx *cli.Context, args []string) {
		dir := "unpacked"
		if len(args) > 1 {
			dir = args[1]
		}
		cfg, _, err := loadConfig(*cfgPath, ".")
		fatal(err)
		glue, engine, err := unpack(args[0], dir, cfg)
		fatal(err)
		fmt.Printf("wrote %s and %s\n", glue, engine)
	}
	return cmd
}

// unpack extracts the page at path into dir under the configured input
// names and returns the paths written.
func unpack(path, dir string, cfg *config.Config) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	ex, err := page.Extract(f)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", path, err)
	}
	data, err := payload.Decode(ex.Payload)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", path, err)
	}
	glue := filepath.Join(dir, filepath.Base(cfg.Inputs.Glue))
	engine := filepath.Join(dir, filepath.Base(cfg.Inputs.Payload))
	if err := nannboy.WriteOutput(glue, []byte(ex.Glue)); err != nil {
		return "", "", err
	}
	if err := nannboy.WriteOutput(engine, data); err != nil {
		return "", "", err
	}
	return glue, engine, nil
}
