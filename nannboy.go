// Package nannboy packs a precompiled emulator engine, its JavaScript glue
// and an HTML skin into one self-contained page.
package nannboy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tractor.dev/nannboy/config"
	"tractor.dev/nannboy/page"
	"tractor.dev/nannboy/payload"
	"tractor.dev/nannboy/resolve"
)

// Input roles.
const (
	Template = "template"
	Glue     = "glue"
	Engine   = "payload"
)

type Packager struct {
	Config *config.Config
	// Root is where inputs are searched from and relative outputs land.
	Root string
	Log  *slog.Logger
	// Force rebuilds even when the cache says the output is current.
	Force bool
	// Reload is handed to the page settings; see page.Settings.
	Reload string
}

// Input is a resolved and read input file.
type Input struct {
	Role   string
	Name   string
	Path   string
	Size   int
	Digest string

	data []byte
}

// Data is the file content as read by Resolve.
func (in Input) Data() []byte {
	return in.data
}

type Result struct {
	Output  string
	Inputs  []Input
	Payload Stats
	// Skipped is set when the output was already up to date.
	Skipped bool
}

// Stats describe the encoded engine payload.
type Stats struct {
	Size        int
	Encoded     int
	Chunks      int
	Compression string
	Digest      string
}

func New(cfg *config.Config, root string) *Packager {
	return &Packager{Config: cfg, Root: root}
}

func (p *Packager) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

func (p *Packager) config() *config.Config {
	if p.Config != nil {
		return p.Config
	}
	return config.Default()
}

// OutputPath is where Build writes the page.
func (p *Packager) OutputPath() string {
	out := p.config().Output
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(p.Root, out)
}

// Resolve locates and reads the three inputs. Nothing is read unless all
// three are found; the error then joins one *resolve.NotFoundError per
// missing file.
func (p *Packager) Resolve(ctx context.Context) ([]Input, error) {
	cfg := p.config()
	r := resolve.Default(p.Root, cfg.Search...)
	roles := []string{Template, Glue, Engine}
	matches, err := r.ResolveAll(cfg.Inputs.Template, cfg.Inputs.Glue, cfg.Inputs.Payload)
	if err != nil {
		return nil, err
	}
	inputs := make([]Input, len(matches))
	for i, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.log().Info(fmt.Sprintf("Reading %s...", m.Name), "path", m.Path)
		data, err := os.ReadFile(m.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", m.Name, err)
		}
		inputs[i] = Input{
			Role:   roles[i],
			Name:   m.Name,
			Path:   m.Path,
			Size:   len(data),
			Digest: payload.Sum(data),
			data:   data,
		}
	}
	return inputs, nil
}

// Render produces the merged page without writing it.
func (p *Packager) Render(ctx context.Context) ([]byte, *Result, error) {
	inputs, err := p.Resolve(ctx)
	if err != nil {
		return nil, nil, err
	}
	return p.render(ctx, inputs)
}

func (p *Packager) render(ctx context.Context, inputs []Input) ([]byte, *Result, error) {
	cfg := p.config()
	res := &Result{Output: p.OutputPath(), Inputs: inputs}
	markup, glue, engine := inputs[0].data, inputs[1].data, inputs[2].data

	p.log().Info("Encoding engine payload...", "size", len(engine), "compress", cfg.Compress)
	enc, err := payload.Encode(engine, payload.Options{
		ChunkSize:   cfg.ChunkSize,
		Compression: cfg.Compress,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode %s: %w", inputs[2].Name, err)
	}
	res.Payload = Stats{
		Size:        enc.Size,
		Encoded:     enc.EncodedLen(),
		Chunks:      len(enc.Chunks),
		Compression: enc.Compression,
		Digest:      enc.Digest,
	}
	p.log().Debug("payload encoded", "payload_encoded", res.Payload.Encoded, "payload_chunks", res.Payload.Chunks, "digest", enc.Digest)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	settings := page.SettingsFrom(cfg)
	settings.Reload = p.Reload
	if page.MarkerIndex(string(markup)) < 0 {
		p.log().Warn("no closing body tag in template, appending block", "template", inputs[0].Name)
	}
	p.log().Info("Injecting engine into template...")
	out, err := page.Render(page.Assets{
		Markup:   string(markup),
		Glue:     string(glue),
		Payload:  enc,
		Settings: settings,
	})
	if err != nil {
		return nil, nil, err
	}
	return []byte(out), res, nil
}

// Build resolves, encodes, renders and writes the page. A missing input
// fails the build before anything is written.
func (p *Packager) Build(ctx context.Context) (*Result, error) {
	inputs, err := p.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	cfg := p.config()
	output := p.OutputPath()

	cachePath := filepath.Join(p.Root, CacheName)
	cache, err := loadCache(cachePath)
	if err != nil {
		p.log().Warn("ignoring unreadable build cache", "err", err)
		cache = newCache()
	}
	key, err := cacheKey(cfg, p.Reload, inputs)
	if err != nil {
		return nil, err
	}
	if !p.Force && cache.current(output, key) {
		p.log().Info("Output is up to date.", "output", output)
		return &Result{Output: output, Inputs: inputs, Skipped: true}, nil
	}

	data, res, err := p.render(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.log().Info(fmt.Sprintf("Writing %s...", filepath.Base(output)), "bytes", len(data))
	if err := WriteOutput(output, data); err != nil {
		return nil, err
	}

	key.Output = payload.Sum(data)
	cache.Entries[output] = key
	if err := cache.save(cachePath); err != nil {
		p.log().Warn("could not save build cache", "err", err)
	}
	p.log().Info("Done.", "output", output)
	return res, nil
}

// WriteOutput writes the page, replacing any previous file.
func WriteOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Missing lists the names of inputs err reports as not found.
func Missing(err error) []string {
	var names []string
	var walk func(error)
	walk = func(err error) {
		var nf *resolve.NotFoundError
		switch e := err.(type) {
		case interface{ Unwrap() []error }:
			for _, err := range e.Unwrap() {
				walk(err)
			}
		default:
			if errors.As(err, &nf) {
				names = append(names, nf.Name)
			}
		}
	}
	walk(err)
	return names
}
