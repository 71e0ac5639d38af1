package slogger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, opts HandlerOptions) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	off := false
	opts.Output = buf
	opts.Color = &off
	if opts.Level == nil {
		opts.Level = slog.LevelDebug
	}
	l, err := NewWithOptions(opts)
	if err != nil {
		t.Fatal(err)
	}
	return l, buf
}

func handle(t *testing.T, l *slog.Logger, attrs map[string]any) bool {
	t.Helper()
	buf := l.Handler().(*Handler).out.(*bytes.Buffer)
	before := buf.Len()
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "test", 0)
	for k, v := range attrs {
		record.AddAttrs(slog.Any(k, v))
	}
	if err := l.Handler().Handle(context.Background(), record); err != nil {
		t.Fatal(err)
	}
	return buf.Len() > before
}

func TestIncludeFilters(t *testing.T) {
	tests := []struct {
		name      string
		filters   []string
		attrs     map[string]any
		shouldLog bool
	}{
		{
			name:      "include err=* logs record with non-nil error",
			filters:   []string{"err=*"},
			attrs:     map[string]any{"err": "missing input", "file": "mgba.js"},
			shouldLog: true,
		},
		{
			name:      "include err=* excludes record with nil error",
			filters:   []string{"err=*"},
			attrs:     map[string]any{"err": nil, "file": "mgba.js"},
			shouldLog: false,
		},
		{
			name:      "include err=* excludes record without error",
			filters:   []string{"err=*"},
			attrs:     map[string]any{"file": "mgba.js"},
			shouldLog: false,
		},
		{
			name:      "include err logs record with any err value",
			filters:   []string{"err"},
			attrs:     map[string]any{"err": nil},
			shouldLog: true,
		},
		{
			name:      "include payload_* logs matching prefix",
			filters:   []string{"payload_*"},
			attrs:     map[string]any{"payload_size": 4},
			shouldLog: true,
		},
		{
			name:      "multiple include filters (OR logic)",
			filters:   []string{"err=*", "warn=*"},
			attrs:     map[string]any{"warn": "no </body>"},
			shouldLog: true,
		},
		{
			name:      "include path=* matches a value containing slashes",
			filters:   []string{"path=*"},
			attrs:     map[string]any{"path": "build/mgba.wasm"},
			shouldLog: true,
		},
		{
			name:      "include path=build/* matches nested values",
			filters:   []string{"path=build/*"},
			attrs:     map[string]any{"path": "build/sub/mgba.wasm"},
			shouldLog: true,
		},
		{
			name:      "include path=build/* skips other values",
			filters:   []string{"path=build/*"},
			attrs:     map[string]any{"path": "dist/mgba.wasm"},
			shouldLog: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newTestLogger(t, HandlerOptions{Include: tt.filters})
			if got := handle(t, l, tt.attrs); got != tt.shouldLog {
				t.Errorf("logged = %v, want %v: %q", got, tt.shouldLog, buf.String())
			}
			if tt.shouldLog {
				for k := range tt.attrs {
					if !strings.Contains(buf.String(), k+"=") {
						t.Errorf("missing attribute %q in %q", k, buf.String())
					}
				}
			}
		})
	}
}

func TestExcludeFilters(t *testing.T) {
	tests := []struct {
		name      string
		filters   []string
		attrs     map[string]any
		shouldLog bool
	}{
		{"exclude digest filters record", []string{"digest"}, map[string]any{"digest": "abc", "file": "x"}, false},
		{"exclude digest allows other records", []string{"digest"}, map[string]any{"file": "x"}, true},
		{"exclude exact value", []string{"strategy=build"}, map[string]any{"strategy": "build"}, false},
		{"exclude exact value allows different value", []string{"strategy=build"}, map[string]any{"strategy": "."}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newTestLogger(t, HandlerOptions{Exclude: tt.filters})
			if got := handle(t, l, tt.attrs); got != tt.shouldLog {
				t.Errorf("logged = %v, want %v: %q", got, tt.shouldLog, buf.String())
			}
		})
	}
}

func TestLineFormat(t *testing.T) {
	l, buf := newTestLogger(t, HandlerOptions{Level: slog.LevelInfo})
	l.Debug("hidden")
	l.Info("Reading mgba.js...", "path", "build/mgba.js")
	l.With("output", "page.html").Warn("no closing body tag")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %q", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %q", out)
	}
	if !strings.Contains(lines[0], "slogger: Reading mgba.js... path=build/mgba.js") {
		t.Errorf("unexpected line %q", lines[0])
	}
	if !strings.Contains(lines[1], "WARN no closing body tag output=page.html") {
		t.Errorf("unexpected line %q", lines[1])
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("colour written with Color off: %q", out)
	}
}

func TestNilValueFormatting(t *testing.T) {
	l, buf := newTestLogger(t, HandlerOptions{})
	handle(t, l, map[string]any{"err": nil})
	if !strings.Contains(buf.String(), "err=<nil>") {
		t.Errorf("expected nil to be formatted as <nil>, got: %q", buf.String())
	}
}
