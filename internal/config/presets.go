package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"gopkg.in/yaml.v3"
)

// Presets maps a preset name to enrichment options.
type Presets map[string]enrich.Options

// ParsePresets decodes a YAML document of named option sets. Every preset starts from
// enrich.DefaultOptions, so omitted keys keep their defaults.
//
//	quick:
//	  enrichPhotos: false
//	  delayMs: 50
func ParsePresets(b []byte) (Presets, error) {
	var raw map[string]yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return Presets{}, nil
		}
		return nil, fmt.Errorf("parse presets: %w", err)
	}

	out := make(Presets, len(raw))
	for name, node := range raw {
		opts := enrich.DefaultOptions()
		if err := node.Decode(&opts); err != nil {
			return nil, fmt.Errorf("parse preset %q: %w", name, err)
		}
		if opts.DelayMs < 0 {
			return nil, fmt.Errorf("preset %q: delayMs must be >= 0", name)
		}
		out[name] = opts
	}
	return out, nil
}

// LoadPresets reads and parses a preset file.
func LoadPresets(path string) (Presets, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePresets(b)
}

// Resolve returns the named preset. An empty name yields the defaults.
func (p Presets) Resolve(name string) (enrich.Options, error) {
	if name == "" {
		return enrich.DefaultOptions(), nil
	}
	opts, ok := p[name]
	if !ok {
		return enrich.Options{}, fmt.Errorf("unknown preset %q (available: %v)", name, p.Names())
	}
	return opts, nil
}

// Names returns the preset names, sorted.
func (p Presets) Names() []string {
	out := make([]string, 0, len(p))
	for name := range p {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
