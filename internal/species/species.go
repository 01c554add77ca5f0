// Package species holds the per-species breeding constants used for date
// derivation, outcome prediction and offspring sex draws.
package species

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Profile carries the breeding constants for one species type. Zero fields
// are filled from the default profile.
type Profile struct {
	Name           string  `yaml:"-"`
	GestationDays  int     `yaml:"gestation_days"`
	LitterBase     int     `yaml:"litter_base"`
	OffspringValue float64 `yaml:"offspring_value"`
	MaleRatio      float64 `yaml:"male_ratio"`
	WeanDays       int     `yaml:"wean_days"`
}

func (p Profile) withFallback(fallback Profile) Profile {
	if p.GestationDays <= 0 {
		p.GestationDays = fallback.GestationDays
	}
	if p.LitterBase <= 0 {
		p.LitterBase = fallback.LitterBase
	}
	if p.OffspringValue <= 0 {
		p.OffspringValue = fallback.OffspringValue
	}
	if p.MaleRatio <= 0 || p.MaleRatio >= 1 {
		p.MaleRatio = fallback.MaleRatio
	}
	if p.WeanDays <= 0 {
		p.WeanDays = fallback.WeanDays
	}
	return p
}

type document struct {
	Default Profile            `yaml:"default"`
	Species map[string]Profile `yaml:"species"`
}

// Catalog resolves species names to profiles. It is immutable once built.
type Catalog struct {
	fallback Profile
	profiles map[string]Profile
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("species: embedded defaults: %v", err))
	}
	return c
}

// Load returns the built-in catalog overlaid with the YAML file at path.
// An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading species file: %w", err)
	}
	return Parse(data)
}

// Parse overlays override (may be nil) on the built-in defaults. Species
// entries in override replace built-in entries field by field.
func Parse(override []byte) (*Catalog, error) {
	var base document
	if err := yaml.Unmarshal(defaultsYAML, &base); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if len(override) > 0 {
		var extra document
		if err := yaml.Unmarshal(override, &extra); err != nil {
			return nil, fmt.Errorf("parsing species overrides: %w", err)
		}
		base.Default = extra.Default.withFallback(base.Default)
		for name, p := range extra.Species {
			key := normalize(name)
			base.Species[key] = p.withFallback(base.Species[key])
		}
	}
	c := &Catalog{fallback: base.Default, profiles: make(map[string]Profile, len(base.Species))}
	c.fallback.Name = "default"
	for name, p := range base.Species {
		key := normalize(name)
		p = p.withFallback(c.fallback)
		p.Name = key
		c.profiles[key] = p
	}
	return c, nil
}

// Lookup returns the profile for species, or the default profile for unknown
// or empty names. Matching is case-insensitive.
func (c *Catalog) Lookup(species string) Profile {
	if p, ok := c.profiles[normalize(species)]; ok {
		return p
	}
	return c.fallback
}

// Known reports whether species has its own profile.
func (c *Catalog) Known(species string) bool {
	_, ok := c.profiles[normalize(species)]
	return ok
}

// Names lists the configured species in alphabetical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.profiles))
	for name := range c.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
