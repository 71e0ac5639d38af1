package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultChunkSize is the amount of encoded text per payload chunk.
const DefaultChunkSize = 256 * 1024

// Names looked up in the working directory when no config path is given.
var Names = []string{"nannboy.yaml", "nannboy.yml", "nannboy.jsonc", "nannboy.json"}

type Config struct {
	Output    string   `yaml:"output" json:"output"`
	Inputs    Inputs   `yaml:"inputs" json:"inputs"`
	Search    []string `yaml:"search" json:"search"`
	ChunkSize int      `yaml:"chunk_size" json:"chunk_size"`
	Compress  string   `yaml:"compress" json:"compress"`

	Engine   Engine         `yaml:"engine" json:"engine"`
	Elements Elements       `yaml:"elements" json:"elements"`
	Keys     map[string]int `yaml:"keys" json:"keys"`
	ROMs     []string       `yaml:"rom_extensions" json:"rom_extensions"`

	Log Log `yaml:"log" json:"log"`
}

type Inputs struct {
	Template string `yaml:"template" json:"template"`
	Glue     string `yaml:"glue" json:"glue"`
	Payload  string `yaml:"payload" json:"payload"`
}

// Engine names the entry points exported by the glue script.
type Engine struct {
	Factory string `yaml:"factory" json:"factory"`
	Start   string `yaml:"start" json:"start"`
}

// Elements is the element contract between the generated script and the
// markup template. Every field except Buttons is an element id.
type Elements struct {
	Canvas      string `yaml:"canvas" json:"canvas"`
	ROMInput    string `yaml:"rom_input" json:"rom_input"`
	LoadButton  string `yaml:"load_button" json:"load_button"`
	Loading     string `yaml:"loading" json:"loading"`
	StartScreen string `yaml:"start_screen" json:"start_screen"`
	PowerLED    string `yaml:"power_led" json:"power_led"`
	Menu        string `yaml:"menu" json:"menu"`
	Wrapper     string `yaml:"wrapper" json:"wrapper"`
	Body        string `yaml:"body" json:"body"`

	CloseMenu    string `yaml:"close_menu" json:"close_menu"`
	StylesButton string `yaml:"styles_button" json:"styles_button"`
	StylesBack   string `yaml:"styles_back" json:"styles_back"`
	StylesMenu   string `yaml:"styles_menu" json:"styles_menu"`

	// IFrame hosts self-contained HTML games; ROMCanvas is hidden while
	// one plays.
	IFrame    string `yaml:"iframe" json:"iframe"`
	ROMCanvas string `yaml:"rom_canvas" json:"rom_canvas"`

	// Buttons is a selector for the on-screen controls. Each control
	// carries its key label in a data-label attribute.
	Buttons string `yaml:"buttons" json:"buttons"`
	// Width is the console width the skin is laid out for; narrower
	// windows scale the wrapper down.
	Width int `yaml:"width" json:"width"`
}

// IDs returns the element ids in the contract keyed by role.
func (e Elements) IDs() map[string]string {
	return map[string]string{
		"canvas":       e.Canvas,
		"rom_input":    e.ROMInput,
		"load_button":  e.LoadButton,
		"loading":      e.Loading,
		"start_screen": e.StartScreen,
		"power_led":    e.PowerLED,
		"menu":         e.Menu,
		"wrapper":      e.Wrapper,
		"body":         e.Body,

		"close_menu":    e.CloseMenu,
		"styles_button": e.StylesButton,
		"styles_back":   e.StylesBack,
		"styles_menu":   e.StylesMenu,

		"iframe":     e.IFrame,
		"rom_canvas": e.ROMCanvas,
	}
}

// Required reports whether the generated page cannot work without the
// element playing role.
func Required(role string) bool {
	return role == "canvas" || role == "rom_input"
}

type Log struct {
	Debug   bool     `yaml:"debug" json:"debug"`
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// Default returns the configuration that reproduces the stock mGBA build.
func Default() *Config {
	return &Config{
		Output: "NannBoy_mGBA.html",
		Inputs: Inputs{
			Template: "index.html",
			Glue:     "mgba.js",
			Payload:  "mgba.wasm",
		},
		Search:    []string{".", "build"},
		ChunkSize: DefaultChunkSize,
		Compress:  "none",
		Engine: Engine{
			Factory: "mGBA",
			Start:   "loadGame",
		},
		Elements: Elements{
			Canvas:      "canvas",
			ROMInput:    "rom-input",
			LoadButton:  "btn-load-rom",
			Loading:     "loading-overlay",
			StartScreen: "start-screen",
			PowerLED:    "power-led",
			Menu:        "main-menu",
			Wrapper:     "console-wrapper",
			Body:        "gbc-body",

			CloseMenu:    "btn-close-main-menu",
			StylesButton: "btn-menu-style",
			StylesBack:   "btn-back-styles",
			StylesMenu:   "styles-menu",

			IFrame:    "game-iframe",
			ROMCanvas: "rom-canvas",

			Buttons: ".dpad-btn, .btn-round, .btn-pill",
			Width:   440,
		},
		Keys: map[string]int{
			"Up":     38,
			"Down":   40,
			"Left":   37,
			"Right":  39,
			"A":      88,
			"B":      90,
			"Start":  13,
			"Select": 8,
		},
		ROMs: []string{"gba", "gbc", "gb"},
	}
}

// Error reports an invalid configuration field.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Load reads the config file at path over the defaults. Files ending in
// .json or .jsonc may carry comments and trailing commas; anything else
// is parsed as YAML. Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Find loads the first of Names present in dir, or the defaults when none is.
func Find(dir string) (*Config, string, error) {
	for _, name := range Names {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", err
		}
		cfg, err := Load(p)
		return cfg, p, err
	}
	return Default(), "", nil
}

func (c *Config) Validate() error {
	var errs []error
	required := []struct{ field, value string }{
		{"output", c.Output},
		{"inputs.template", c.Inputs.Template},
		{"inputs.glue", c.Inputs.Glue},
		{"inputs.payload", c.Inputs.Payload},
		{"engine.factory", c.Engine.Factory},
		{"engine.start", c.Engine.Start},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, &Error{Field: r.field, Reason: "must not be empty"})
		}
	}
	if len(c.Search) == 0 {
		errs = append(errs, &Error{Field: "search", Reason: "needs at least one directory"})
	}
	if c.ChunkSize < 0 || c.ChunkSize%4 != 0 {
		errs = append(errs, &Error{Field: "chunk_size", Reason: fmt.Sprintf("%d is not a positive multiple of 4", c.ChunkSize)})
	}
	switch c.Compress {
	case "", "none", "gzip":
	default:
		errs = append(errs, &Error{Field: "compress", Reason: fmt.Sprintf("unknown compression %q", c.Compress)})
	}
	for label, code := range c.Keys {
		if code <= 0 {
			errs = append(errs, &Error{Field: "keys." + label, Reason: "key code must be positive"})
		}
	}
	if c.Elements.Width <= 0 {
		errs = append(errs, &Error{Field: "elements.width", Reason: "must be positive"})
	}
	if len(c.ROMs) == 0 {
		errs = append(errs, &Error{Field: "rom_extensions", Reason: "needs at least one extension"})
	}
	return errors.Join(errs...)
}
