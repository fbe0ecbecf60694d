package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/romkit/rom"
)

// Registry maps configuration names to configurations.
//
// NOT thread-safe.
type Registry struct {
	configs map[string]Config
}

// NewRegistry returns a registry holding configs.
func NewRegistry(configs ...Config) (*Registry, error) {
	r := &Registry{configs: make(map[string]Config)}
	for _, c := range configs {
		if err := r.Put(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Put validates c and stores it under its name, replacing any previous entry.
func (r *Registry) Put(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.configs[c.Name] = c.Clone()
	return nil
}

// Get returns a copy of the named configuration.
func (r *Registry) Get(name string) (Config, error) {
	c, ok := r.configs[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.Clone(), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode parses one YAML configuration document.
func Decode(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("%w: %w", rom.ErrConfig, err)
	}
	return c, nil
}

// Encode renders c as YAML.
func Encode(c Config) ([]byte, error) {
	return yaml.Marshal(c)
}

// LoadFile decodes a YAML file and stores it. A configuration without a name
// is named after the file.
func (r *Registry) LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", rom.ErrConfig, err)
	}
	c, err := Decode(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if c.Name == "" {
		c.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := r.Put(c); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// LoadDir loads every .yaml and .yml file in dir, in name order.
func (r *Registry) LoadDir(dir string) ([]Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rom.ErrConfig, err)
	}
	var loaded []Config
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		c, err := r.LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, c)
	}
	return loaded, nil
}
