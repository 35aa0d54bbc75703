// Package sites holds the preconfigured scrape targets.
package sites

import (
	"bytes"
	_ "embed"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/use-agent/figscrape/models"
	"gopkg.in/yaml.v3"
)

//go:embed sites.yaml
var builtin []byte

type file struct {
	Sites map[string]models.ScrapeConfig `yaml:"sites"`
}

// Registry maps site keys to scrape configurations. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	sites map[string]models.ScrapeConfig
}

// Default returns the registry built from the embedded site list.
func Default() *Registry {
	sites, err := decode(builtin)
	if err != nil {
		panic(fmt.Sprintf("sites: embedded sites.yaml: %v", err))
	}
	return &Registry{sites: sites}
}

// Load returns the built-in sites with the entries of the YAML file at path
// layered on top. An empty path yields Default().
func Load(path string) (*Registry, error) {
	r := Default()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}
	overrides, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sites file %s: %w", path, err)
	}
	maps.Copy(r.sites, overrides)
	return r, nil
}

// New builds a registry from an explicit map. Used by tests and embedders.
func New(sites map[string]models.ScrapeConfig) *Registry {
	return &Registry{sites: maps.Clone(sites)}
}

func decode(data []byte) (map[string]models.ScrapeConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	for key := range f.Sites {
		if key == "" {
			return nil, fmt.Errorf("empty site key")
		}
	}
	if f.Sites == nil {
		f.Sites = map[string]models.ScrapeConfig{}
	}
	return f.Sites, nil
}

// Get returns a copy of the configuration for key.
func (r *Registry) Get(key string) (*models.ScrapeConfig, bool) {
	cfg, ok := r.sites[key]
	if !ok {
		return nil, false
	}
	return &cfg, true
}

// Keys returns the site keys in sorted order.
func (r *Registry) Keys() []string {
	return slices.Sorted(maps.Keys(r.sites))
}
