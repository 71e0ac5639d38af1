package nannboy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fxamacker/cbor/v2"
	"tractor.dev/nannboy/config"
	"tractor.dev/nannboy/page"
	"tractor.dev/nannboy/payload"
)

// CacheName is the build cache kept next to the inputs.
const CacheName = ".nannboy-cache"

const cacheVersion = 1

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// entry records what produced an output: the digest of every input, of the
// settings that shape the page and of the page itself.
type entry struct {
	Inputs   map[string]string `cbor:"1,keyasint"`
	Settings string            `cbor:"2,keyasint"`
	Output   string            `cbor:"3,keyasint"`
}

type buildCache struct {
	Version int               `cbor:"1,keyasint"`
	Entries map[string]*entry `cbor:"2,keyasint"`
}

func newCache() *buildCache {
	return &buildCache{Version: cacheVersion, Entries: make(map[string]*entry)}
}

func loadCache(path string) (*buildCache, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return newCache(), nil
	}
	if err != nil {
		return nil, err
	}
	c := newCache()
	if err := cbor.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c.Version != cacheVersion {
		return newCache(), nil
	}
	if c.Entries == nil {
		c.Entries = make(map[string]*entry)
	}
	return c, nil
}

func (c *buildCache) save(path string) error {
	data, err := encMode.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// current reports whether output was built from key and has not been
// touched since.
func (c *buildCache) current(output string, key *entry) bool {
	old, ok := c.Entries[output]
	if !ok || old.Settings != key.Settings || len(old.Inputs) != len(key.Inputs) {
		return false
	}
	for role, digest := range key.Inputs {
		if old.Inputs[role] != digest {
			return false
		}
	}
	data, err := os.ReadFile(output)
	if err != nil {
		return false
	}
	return payload.Sum(data) == old.Output
}

// settingsKey is everything besides the inputs that changes the page.
type settingsKey struct {
	ChunkSize int
	Compress  string
	Engine    config.Engine
	Elements  config.Elements
	Keys      map[string]int
	ROMs      []string
	Reload    string
	Runtime   string
}

func cacheKey(cfg *config.Config, reload string, inputs []Input) (*entry, error) {
	runtime, err := fs.ReadFile(page.Dir, "assets/inject.html")
	if err != nil {
		return nil, err
	}
	b, err := encMode.Marshal(settingsKey{
		ChunkSize: cfg.ChunkSize,
		Compress:  cfg.Compress,
		Engine:    cfg.Engine,
		Elements:  cfg.Elements,
		Keys:      cfg.Keys,
		ROMs:      cfg.ROMs,
		Reload:    reload,
		Runtime:   payload.Sum(runtime),
	})
	if err != nil {
		return nil, err
	}
	e := &entry{
		Inputs:   make(map[string]string, len(inputs)),
		Settings: payload.Sum(b),
	}
	for _, in := range inputs {
		e.Inputs[in.Role] = in.Digest
	}
	return e, nil
}
