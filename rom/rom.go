// Package rom decides which file a player meant to load: the file itself,
// or the first recognised ROM inside a zip archive.
package rom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/klauspost/compress/zip"
	"tractor.dev/nannboy/internal/glob"
)

// Extensions recognised when no list is configured.
var Extensions = []string{"gba", "gbc", "gb"}

var ErrNoROM = errors.New("no ROM found in archive")

// Matcher recognises ROM file names by extension, ignoring case.
type Matcher struct {
	// Source is the regular expression without flags. It is valid in both
	// Go and JavaScript; the page compiles it with the "i" flag.
	Source string
	re     *regexp.Regexp
}

func NewMatcher(exts ...string) (*Matcher, error) {
	if len(exts) == 0 {
		exts = Extensions
	}
	pattern := glob.Extensions(exts...)
	if pattern == "" {
		return nil, fmt.Errorf("rom: no usable extensions in %q", exts)
	}
	re, err := glob.Compile(pattern, true)
	if err != nil {
		return nil, err
	}
	return &Matcher{Source: glob.ToRegex(pattern), re: re}, nil
}

// Match reports whether the base name of an archive entry or file is a ROM.
func (m *Matcher) Match(name string) bool {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	return m.re.MatchString(base)
}

// Pick returns the first name that is a ROM, in the order given.
func (m *Matcher) Pick(names []string) (string, error) {
	for _, name := range names {
		if strings.HasSuffix(name, "/") {
			continue
		}
		if m.Match(name) {
			return name, nil
		}
	}
	return "", ErrNoROM
}

// IsZip reports whether data starts with a zip local file header.
func IsZip(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

// FromZip opens an archive and returns the first ROM entry, in central
// directory order, and its contents.
func (m *Matcher) FromZip(data []byte) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("rom: open archive: %w", err)
	}
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	name, err := m.Pick(names)
	if err != nil {
		return "", nil, err
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", nil, fmt.Errorf("rom: %s: %w", name, err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return "", nil, fmt.Errorf("rom: %s: %w", name, err)
		}
		return path.Base(name), b, nil
	}
	return "", nil, ErrNoROM
}

// Select resolves a selected file: archives yield their first ROM entry,
// anything else is passed through under its own name.
func (m *Matcher) Select(filename string, data []byte) (string, []byte, error) {
	if IsZip(data) || strings.EqualFold(path.Ext(filename), ".zip") {
		return m.FromZip(data)
	}
	return filename, data, nil
}
