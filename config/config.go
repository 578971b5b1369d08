// Package config loads the YAML build file describing the image to
// assemble: image metadata, the package specs to resolve, and the
// repositories and GPG keys the external resolver consults.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v2"

	"github.com/bibin-skaria/ocidir/internal/types"
)

// Repository describes a package repository consulted during resolution
type Repository struct {
	ID      string   `yaml:"id"`
	URL     string   `yaml:"url"`
	GPGKeys []string `yaml:"gpgkeys,omitempty"`
}

// Image holds the image-level settings recorded in the config blob
type Image struct {
	Name       string            `yaml:"name,omitempty"`
	User       string            `yaml:"user,omitempty"`
	WorkingDir string            `yaml:"workingdir,omitempty"`
	Entrypoint []string          `yaml:"entrypoint,omitempty"`
	Cmd        []string          `yaml:"cmd,omitempty"`
	Env        []string          `yaml:"env,omitempty"`
	Labels     map[string]string `yaml:"labels,omitempty"`
	Platform   types.Platform    `yaml:"platform,omitempty"`
}

// Config is the top-level build file
type Config struct {
	Image        Image        `yaml:"image"`
	Packages     []string     `yaml:"packages,omitempty"`
	Repositories []Repository `yaml:"repositories,omitempty"`
}

// Load reads and validates a build file, filling platform defaults from the
// host when unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Image.Platform.OS == "" {
		c.Image.Platform.OS = "linux"
	}
	if c.Image.Platform.Architecture == "" {
		c.Image.Platform.Architecture = runtime.GOARCH
	}
}

// Validate checks internal consistency of the build file
func (c *Config) Validate() error {
	if len(c.Packages) > 0 && len(c.Repositories) == 0 {
		return fmt.Errorf("packages requested but no repositories configured")
	}
	seen := make(map[string]bool)
	for i, repo := range c.Repositories {
		if repo.ID == "" {
			return fmt.Errorf("repository %d has no id", i)
		}
		if repo.URL == "" {
			return fmt.Errorf("repository %q has no url", repo.ID)
		}
		if seen[repo.ID] {
			return fmt.Errorf("duplicate repository id %q", repo.ID)
		}
		seen[repo.ID] = true
	}
	return nil
}

// Meta converts the image settings to the shared metadata type consumed by
// the manifest builder.
func (c *Config) Meta() types.ImageMeta {
	return types.ImageMeta{
		User:       c.Image.User,
		WorkingDir: c.Image.WorkingDir,
		Entrypoint: c.Image.Entrypoint,
		Cmd:        c.Image.Cmd,
		Env:        c.Image.Env,
		Labels:     c.Image.Labels,
	}
}

// GPGKeys returns the union of all repository GPG key URLs, de-duplicated
// in first-seen order.
func (c *Config) GPGKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, repo := range c.Repositories {
		for _, key := range repo.GPGKeys {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}
