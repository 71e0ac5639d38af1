// Package slogger is a compact console handler for log/slog: one line per
// record, grey metadata when writing to a terminal, and glob filters on
// record attributes.
package slogger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/term"
	"tractor.dev/nannboy/internal/glob"
)

type HandlerOptions struct {
	Level   slog.Leveler
	Include []string // If non-empty, only records with an attr matching ANY pattern are logged
	Exclude []string // Records with an attr matching ANY pattern are dropped

	// Output defaults to os.Stderr.
	Output io.Writer
	// Color forces ANSI colour on or off. Nil detects a terminal.
	Color *bool
	// Source appends file:line to every line.
	Source bool
}

// filter matches an attribute key as a glob and, when the pattern has a
// "=value" part, the formatted value as free text.
type filter struct {
	key      *regexp.Regexp
	value    *regexp.Regexp
	original string
}

type Handler struct {
	mu    *sync.Mutex
	out   io.Writer
	level slog.Leveler
	color bool
	src   bool

	include []filter
	exclude []filter
	attrs   []slog.Attr
}

// matches reports whether the attribute matches any filter. A bare key
// pattern matches whatever the value; "key=value" patterns match the value
// too. A nil value never matches a "key=*" filter, so "err=*" selects only
// records carrying a real error.
func matches(key string, value any, filters []filter) bool {
	valueStr := formatValue(value)
	for _, f := range filters {
		if !f.key.MatchString(key) {
			continue
		}
		if f.value == nil {
			return true
		}
		if value == nil && strings.HasSuffix(f.original, "=*") {
			continue
		}
		if f.value.MatchString(valueStr) {
			return true
		}
	}
	return false
}

func formatValue(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v", v)
}

func (h *Handler) included(attrs []slog.Attr) bool {
	var hasInclude, hasExclude bool
	for _, a := range attrs {
		v := a.Value.Resolve().Any()
		if len(h.include) > 0 && matches(a.Key, v, h.include) {
			hasInclude = true
		}
		if len(h.exclude) > 0 && matches(a.Key, v, h.exclude) {
			hasExclude = true
		}
	}
	if len(h.include) > 0 && !hasInclude {
		return false
	}
	return !hasExclude
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	want := slog.LevelInfo
	if h.level != nil {
		want = h.level.Level()
	}
	return level >= want
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	attrs := append([]slog.Attr(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	if !h.included(attrs) {
		return nil
	}

	grey := func(s string) string {
		if h.color {
			return "\033[90m" + s + "\033[0m"
		}
		return s
	}

	var b strings.Builder
	b.WriteString(grey(r.Time.Format("15:04:05.000")))
	b.WriteByte(' ')

	var file string
	var line int
	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		file, line = frame.File, frame.Line
	}
	if file != "" {
		b.WriteString(filepath.Base(filepath.Dir(file)))
		b.WriteString(": ")
	}
	if r.Level >= slog.LevelWarn {
		b.WriteString(r.Level.String())
		b.WriteByte(' ')
	}
	b.WriteString(r.Message)
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(grey(a.Key + "="))
		b.WriteString(formatValue(a.Value.Resolve().Any()))
	}
	if h.src && file != "" {
		b.WriteByte(' ')
		b.WriteString(grey(fmt.Sprintf("%s:%d", filepath.Base(file), line)))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &h2
}

// WithGroup is a no-op; group names are not rendered.
func (h *Handler) WithGroup(string) slog.Handler {
	return h
}

// compileFilters splits "key=value" patterns and compiles both halves
func compileFilters(patterns []string) ([]filter, error) {
	filters := make([]filter, 0, len(patterns))
	for _, pattern := range patterns {
		keyPat, valPat, hasValue := strings.Cut(pattern, "=")
		f := filter{original: pattern}
		var err error
		if f.key, err = glob.Compile(keyPat, false); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if hasValue {
			if f.value, err = glob.CompileText(valPat); err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func Use(level slog.Level) {
	slog.SetDefault(New(level))
}

func UseWithOptions(opts HandlerOptions) error {
	l, err := NewWithOptions(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(l)
	return nil
}

func New(level slog.Level) *slog.Logger {
	l, _ := NewWithOptions(HandlerOptions{Level: level})
	return l
}

func NewWithOptions(opts HandlerOptions) (*slog.Logger, error) {
	include, err := compileFilters(opts.Include)
	if err != nil {
		return nil, fmt.Errorf("slogger: include filters: %w", err)
	}
	exclude, err := compileFilters(opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("slogger: exclude filters: %w", err)
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	color := isTerminal(out)
	if opts.Color != nil {
		color = *opts.Color
	}
	return slog.New(&Handler{
		mu:      &sync.Mutex{},
		out:     out,
		level:   opts.Level,
		color:   color,
		src:     opts.Source,
		include: include,
		exclude: exclude,
	}), nil
}
