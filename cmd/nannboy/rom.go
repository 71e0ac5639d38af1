package main

import (
	"fmt"
	"os"
	"path/filepath"

	"tractor.dev/nannboy/rom"
	"tractor.dev/toolkit-go/engine/cli"
)

func romCmd() *cli.Command {
	cmd := &cli.Command{
		Usage: "rom <file>",
		Short: "show which ROM the page would load from a file or zip archive",
		Args:  cli.ExactArgs(1),
	}
	cfgPath := cmd.Flags().String("c", "", "config file with rom_extensions")
	cmd.Run = func(ctx *cli.Context, args []string) {
		cfg, _, err := loadConfig(*cfgPath, ".")
		fatal(err)
		name, size, err := pickROM(args[0], cfg.ROMs)
		fatal(err)
		fmt.Printf("%s (%d bytes)\n", name, size)
	}
	return cmd
}

func pickROM(path string, exts []string) (string, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	m, err := rom.NewMatcher(exts...)
	if err != nil {
		return "", 0, err
	}
	name, b, err := m.Select(filepath.Base(path), data)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", path, err)
	}
	return name, len(b), nil
}
