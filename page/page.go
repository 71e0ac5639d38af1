// Package page renders the script block that boots the embedded engine and
// merges it into the player's markup. It can also take a built page apart
// again and check a template against the element contract.
package page

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"tractor.dev/nannboy/config"
	"tractor.dev/nannboy/payload"
	"tractor.dev/nannboy/rom"
)

//go:embed assets
var Dir embed.FS

var block = template.Must(template.ParseFS(Dir, "assets/inject.html"))

// Ids of the script elements in the injected block.
const (
	PayloadID = "nannboy-payload"
	RuntimeID = "nannboy-runtime"
	GlueID    = "nannboy-glue"
)

// BodyMarker is the injection point.
const BodyMarker = "</body>"

var ErrNoPayload = errors.New("page has no embedded engine payload")

// Settings are the page-side knobs taken from the configuration.
type Settings struct {
	Engine   config.Engine
	Elements config.Elements
	Keys     map[string]int
	ROMs     []string

	// Reload is the websocket path a dev server pushes "reload" on.
	// Empty in built pages.
	Reload string
}

func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		Engine:   cfg.Engine,
		Elements: cfg.Elements,
		Keys:     cfg.Keys,
		ROMs:     cfg.ROMs,
	}
}

// Assets are the inputs to a render.
type Assets struct {
	Markup   string
	Glue     string
	Payload  *payload.Payload
	Settings Settings
}

// pageConfig is the CONFIG constant of the runtime script.
type pageConfig struct {
	Factory       string            `json:"factory"`
	Start         string            `json:"start"`
	Elements      map[string]string `json:"elements"`
	Buttons       string            `json:"buttons"`
	Keys          map[string]int    `json:"keys"`
	ROMPattern    string            `json:"romPattern"`
	ROMExtensions []string          `json:"romExtensions"`
	Accept        string            `json:"accept"`
	Width         int               `json:"width"`
}

func newPageConfig(s Settings) (*pageConfig, error) {
	m, err := rom.NewMatcher(s.ROMs...)
	if err != nil {
		return nil, err
	}
	var exts []string
	for _, ext := range s.ROMs {
		if ext = strings.TrimLeft(ext, "."); ext != "" {
			exts = append(exts, ext)
		}
	}
	if len(exts) == 0 {
		exts = rom.Extensions
	}
	accept := []string{".zip"}
	for _, ext := range exts {
		accept = append(accept, "."+strings.TrimLeft(ext, "."))
	}
	ids := make(map[string]string)
	for role, id := range s.Elements.IDs() {
		if id != "" {
			ids[role] = id
		}
	}
	return &pageConfig{
		Factory:       s.Engine.Factory,
		Start:         s.Engine.Start,
		Elements:      ids,
		Buttons:       s.Elements.Buttons,
		Keys:          s.Keys,
		ROMPattern:    m.Source,
		ROMExtensions: exts,
		Accept:        strings.Join(accept, ","),
		Width:         s.Elements.Width,
	}, nil
}

var closeScript = regexp.MustCompile(`(?i)</script`)

// EscapeScript rewrites every "</script" in js as "<\/script" so the text
// can sit inside a script element without closing it.
func EscapeScript(js string) string {
	return closeScript.ReplaceAllStringFunc(js, func(m string) string {
		return `<\/` + m[2:]
	})
}

var escapedClose = regexp.MustCompile(`(?i)<\\/script`)

// UnescapeScript reverses EscapeScript.
func UnescapeScript(js string) string {
	return escapedClose.ReplaceAllStringFunc(js, func(m string) string {
		return "</" + m[3:]
	})
}

// Block renders the injection block for a.
func Block(a Assets) (string, error) {
	if a.Payload == nil {
		return "", ErrNoPayload
	}
	cfg, err := newPageConfig(a.Settings)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = block.Execute(&buf, map[string]any{
		"Payload": a.Payload,
		"Config":  cfg,
		"Reload":  a.Settings.Reload,
		"Glue":    template.JS(EscapeScript(a.Glue)),
	})
	if err != nil {
		return "", fmt.Errorf("render block: %w", err)
	}
	return buf.String(), nil
}

// Render merges the block for a into a.Markup.
func Render(a Assets) (string, error) {
	b, err := Block(a)
	if err != nil {
		return "", err
	}
	return Inject(a.Markup, b), nil
}

// Inject inserts block right before the last closing body tag of markup,
// matched without regard to case. Markup without one gets block appended.
func Inject(markup, block string) string {
	i := MarkerIndex(markup)
	if i < 0 {
		return markup + block
	}
	return markup[:i] + block + markup[i:]
}

// MarkerIndex returns the index of the last closing body tag in markup, or
// -1 when there is none.
func MarkerIndex(markup string) int {
	n := len(BodyMarker)
	for i := len(markup) - n; i >= 0; i-- {
		if equalFoldASCII(markup[i:i+n], BodyMarker) {
			return i
		}
	}
	return -1
}

func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Extracted holds what Extract recovers from a built page.
type Extracted struct {
	Payload *payload.Payload
	Glue    string
}

// Extract reads a built page and recovers the encoded payload and the glue
// script. Line endings in the glue come back as "\n".
func Extract(r io.Reader) (*Extracted, error) {
	z := html.NewTokenizer(r)
	var (
		out     Extracted
		current string
		found   bool
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			if !found {
				return nil, ErrNoPayload
			}
			return &out, nil
		case html.StartTagToken:
			t := z.Token()
			current = ""
			if t.DataAtom == atom.Script {
				current = attr(t, "id")
			}
		case html.EndTagToken:
			current = ""
		case html.TextToken:
			switch current {
			case PayloadID:
				var p payload.Payload
				if err := json.Unmarshal(z.Text(), &p); err != nil {
					return nil, fmt.Errorf("%s: %w", PayloadID, err)
				}
				out.Payload = &p
				found = true
			case GlueID:
				glue := strings.TrimPrefix(string(z.Text()), "\n")
				glue = strings.TrimSuffix(glue, "\n")
				out.Glue = UnescapeScript(glue)
			}
		}
	}
}

func attr(t html.Token, key string) string {
	for _, a := range t.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// Problem is a defect Check found in a template.
type Problem struct {
	Role string
	// ID is empty for a missing closing body tag.
	ID       string
	Required bool
}

func (p Problem) String() string {
	if p.ID == "" {
		return "no " + BodyMarker + " in template; the block will be appended at the end"
	}
	s := fmt.Sprintf("no element with id %q (%s)", p.ID, p.Role)
	if p.Required {
		s += ", required"
	}
	return s
}

// Check reports the contract elements markup lacks, required ones first,
// then a missing closing body tag.
func Check(markup string, el config.Elements) ([]Problem, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "id" {
					ids[a.Val] = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var problems []Problem
	for role, id := range el.IDs() {
		if id == "" || ids[id] {
			continue
		}
		problems = append(problems, Problem{Role: role, ID: id, Required: config.Required(role)})
	}
	sort.Slice(problems, func(i, j int) bool {
		if problems[i].Required != problems[j].Required {
			return problems[i].Required
		}
		return problems[i].Role < problems[j].Role
	})
	if MarkerIndex(markup) < 0 {
		problems = append(problems, Problem{Role: "marker"})
	}
	return problems, nil
}
