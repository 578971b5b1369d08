// Package types holds shared types used across the builder packages.
package types

import (
	"github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// Platform identifies the OS/architecture an image is built for
type Platform struct {
	OS           string `json:"os" yaml:"os"`
	Architecture string `json:"architecture" yaml:"architecture"`
	Variant      string `json:"variant,omitempty" yaml:"variant,omitempty"`
}

// String returns the platform in os/arch[/variant] form
func (p Platform) String() string {
	s := p.OS + "/" + p.Architecture
	if p.Variant != "" {
		s += "/" + p.Variant
	}
	return s
}

// ImageMeta carries the runtime configuration recorded in the image config
// blob. All fields are optional.
type ImageMeta struct {
	User       string            `json:"user,omitempty"`
	WorkingDir string            `json:"workingDir,omitempty"`
	Entrypoint []string          `json:"entrypoint,omitempty"`
	Cmd        []string          `json:"cmd,omitempty"`
	Env        []string          `json:"env,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// BuildResult summarizes a completed image directory build
type BuildResult struct {
	Manifest v1.Descriptor   `json:"manifest"`
	Config   v1.Descriptor   `json:"config"`
	Layers   []v1.Descriptor `json:"layers"`
	DiffIDs  []digest.Digest `json:"diffIDs"`
	Tag      string          `json:"tag,omitempty"`
}
