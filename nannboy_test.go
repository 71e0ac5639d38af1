package nannboy

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tractor.dev/nannboy/config"
	"tractor.dev/nannboy/internal/slogger"
	"tractor.dev/nannboy/page"
	"tractor.dev/nannboy/payload"
	"tractor.dev/nannboy/resolve"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, data := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func newPackager(t *testing.T, dir string) (*Packager, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	off := false
	l, err := slogger.NewWithOptions(slogger.HandlerOptions{Level: slog.LevelDebug, Output: &buf, Color: &off})
	if err != nil {
		t.Fatal(err)
	}
	p := New(config.Default(), dir)
	p.Log = l
	return p, &buf
}

func TestBuildScenario(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"index.html": "<body></body>",
		"mgba.js":    "console.log(1)",
		"mgba.wasm":  "\xDE\xAD\xBE\xEF",
	})
	p, logs := newPackager(t, dir)
	res, err := p.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped {
		t.Fatal("first build skipped")
	}
	data, err := os.ReadFile(filepath.Join(dir, "NannBoy_mGBA.html"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "3q2+7w==") {
		t.Fatal("output lacks the encoded payload")
	}
	glue, marker := strings.Index(out, "console.log(1)"), strings.Index(out, "</body>")
	if glue < 0 || glue > marker {
		t.Fatalf("glue at %d, marker at %d", glue, marker)
	}
	if res.Payload.Size != 4 || res.Payload.Chunks != 1 || res.Payload.Encoded != 8 {
		t.Fatalf("unexpected stats %+v", res.Payload)
	}
	for _, want := range []string{"Reading index.html...", "Reading mgba.js...", "Reading mgba.wasm...", "Writing NannBoy_mGBA.html..."} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log lacks %q:\n%s", want, logs.String())
		}
	}
}

func TestBuildFindsInputsInBuildDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"Index.HTML":      "<html><body></body></html>",
		"build/mgba.js":   "var mGBA;",
		"build/MGBA.wasm": "wasm",
	})
	p, _ := newPackager(t, dir)
	res, err := p.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "Index.HTML"),
		filepath.Join(dir, "build", "mgba.js"),
		filepath.Join(dir, "build", "MGBA.wasm"),
	}
	for i, in := range res.Inputs {
		if in.Path != want[i] {
			t.Errorf("input %s resolved to %s, want %s", in.Role, in.Path, want[i])
		}
	}
}

func TestBuildMissingInputs(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"index.html": "<body></body>"})
	p, _ := newPackager(t, dir)
	_, err := p.Build(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var nf *resolve.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want *resolve.NotFoundError, got %T %v", err, err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("missing input does not match fs.ErrNotExist")
	}
	missing := Missing(err)
	if len(missing) != 2 || missing[0] != "mgba.js" || missing[1] != "mgba.wasm" {
		t.Fatalf("Missing = %v", missing)
	}
	if _, err := os.Stat(filepath.Join(dir, "NannBoy_mGBA.html")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("output written despite missing inputs: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, CacheName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("cache written despite missing inputs")
	}
}

func TestBuildCache(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"index.html": "<body></body>",
		"mgba.js":    "console.log(1)",
		"mgba.wasm":  "wasm",
	})
	p, _ := newPackager(t, dir)
	ctx := context.Background()
	build := func() *Result {
		t.Helper()
		res, err := p.Build(ctx)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	if build().Skipped {
		t.Fatal("first build skipped")
	}
	if !build().Skipped {
		t.Fatal("unchanged build not skipped")
	}

	p.Force = true
	if build().Skipped {
		t.Fatal("forced build skipped")
	}
	p.Force = false

	writeFiles(t, dir, map[string]string{"mgba.js": "console.log(2)"})
	if build().Skipped {
		t.Fatal("build skipped after input changed")
	}

	writeFiles(t, dir, map[string]string{"NannBoy_mGBA.html": "edited"})
	if build().Skipped {
		t.Fatal("build skipped after output was edited")
	}

	p.Config.Compress = payload.CompressionGzip
	if build().Skipped {
		t.Fatal("build skipped after settings changed")
	}
}

func TestBuildIgnoresCorruptCache(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"index.html": "<body></body>",
		"mgba.js":    "",
		"mgba.wasm":  "",
		CacheName:    "\xff\xff garbage",
	})
	p, logs := newPackager(t, dir)
	res, err := p.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped {
		t.Fatal("skipped with a corrupt cache")
	}
	if !strings.Contains(logs.String(), "ignoring unreadable build cache") {
		t.Fatalf("no warning logged:\n%s", logs.String())
	}
}

func TestRenderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	engine := strings.Repeat("\x00\x01engine\xff", 5000)
	writeFiles(t, dir, map[string]string{
		"index.html": "<html><body><canvas id=canvas></canvas></body></html>",
		"mgba.js":    "var mGBA = function () {};",
		"mgba.wasm":  engine,
	})
	p, _ := newPackager(t, dir)
	p.Config.ChunkSize = 1024
	p.Config.Compress = payload.CompressionGzip
	out, res, err := p.Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(p.OutputPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("Render wrote the output")
	}
	if got := string(res.Inputs[2].Data()); got != engine {
		t.Fatalf("result carries %d engine bytes, want %d", len(got), len(engine))
	}
	ex, err := page.Extract(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if ex.Payload.Compression != payload.CompressionGzip || len(ex.Payload.Chunks) != res.Payload.Chunks {
		t.Fatalf("extracted payload %+v does not match %+v", ex.Payload, res.Payload)
	}
	got, err := payload.Decode(ex.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != engine {
		t.Fatal("engine does not round trip through the page")
	}
	if ex.Glue != "var mGBA = function () {};" {
		t.Fatalf("glue = %q", ex.Glue)
	}
}

func TestBuildCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"index.html": "<body></body>",
		"mgba.js":    "",
		"mgba.wasm":  "",
	})
	p, _ := newPackager(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Build(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
