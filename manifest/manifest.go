// Package manifest composes OCI image configuration and manifest documents
// from published layer blobs and records the result in an image directory.
//
// The layout package owns blob publication; this package is the downstream
// glue that turns layer Descriptors and diff IDs into the config and
// manifest JSON graph and appends the manifest reference to index.json.
package manifest

import (
	"runtime"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/bibin-skaria/ocidir/internal/types"
	"github.com/bibin-skaria/ocidir/layout"
)

// Layer pairs a published layer blob with the digest of its uncompressed
// content, recorded in the image configuration as a diff ID.
type Layer struct {
	Descriptor v1.Descriptor
	DiffID     digest.Digest
}

// BuilderOptions configures manifest and config generation
type BuilderOptions struct {
	// Platform the image is built for
	Platform types.Platform
	// Author recorded in the image config
	Author string
	// RefName annotates the manifest entry in index.json when non-empty
	RefName string
	// CreatedBy recorded in each history entry
	CreatedBy string
	// Timestamp for reproducible builds (if nil, uses current time)
	Timestamp *time.Time
}

// DefaultBuilderOptions returns sensible defaults for manifest generation
func DefaultBuilderOptions() *BuilderOptions {
	return &BuilderOptions{
		Platform: types.Platform{OS: "linux", Architecture: runtime.GOARCH},
	}
}

// Builder generates OCI image configs and manifests
type Builder struct {
	options *BuilderOptions
}

// NewBuilder creates a new manifest builder with the given options
func NewBuilder(options *BuilderOptions) *Builder {
	if options == nil {
		options = DefaultBuilderOptions()
	}
	return &Builder{options: options}
}

func (b *Builder) created() time.Time {
	if b.options.Timestamp != nil {
		return b.options.Timestamp.UTC()
	}
	return time.Now().UTC()
}

// BuildImageConfig generates the image configuration document for the given
// layers, recording each layer's diff ID in rootfs order.
func (b *Builder) BuildImageConfig(meta types.ImageMeta, layers []Layer) *v1.Image {
	created := b.created()
	diffIDs := make([]digest.Digest, 0, len(layers))
	history := make([]v1.History, 0, len(layers))
	for _, layer := range layers {
		diffIDs = append(diffIDs, layer.DiffID)
		history = append(history, v1.History{
			Created:   &created,
			CreatedBy: b.options.CreatedBy,
			Author:    b.options.Author,
		})
	}

	return &v1.Image{
		Created: &created,
		Author:  b.options.Author,
		Platform: v1.Platform{
			OS:           b.options.Platform.OS,
			Architecture: b.options.Platform.Architecture,
			Variant:      b.options.Platform.Variant,
		},
		Config: v1.ImageConfig{
			User:       meta.User,
			Env:        meta.Env,
			Entrypoint: meta.Entrypoint,
			Cmd:        meta.Cmd,
			WorkingDir: meta.WorkingDir,
			Labels:     meta.Labels,
		},
		RootFS: v1.RootFS{
			Type:    "layers",
			DiffIDs: diffIDs,
		},
		History: history,
	}
}

// BuildManifest generates the image manifest referencing the config blob
// and the layer blobs.
func (b *Builder) BuildManifest(config v1.Descriptor, layers []Layer) *v1.Manifest {
	layerDescs := make([]v1.Descriptor, 0, len(layers))
	for _, layer := range layers {
		layerDescs = append(layerDescs, layer.Descriptor)
	}

	return &v1.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: v1.MediaTypeImageManifest,
		Config:    config,
		Layers:    layerDescs,
	}
}

// Publish writes the image config and manifest blobs into the image
// directory at dir and appends the manifest descriptor to index.json.
func (b *Builder) Publish(dir string, meta types.ImageMeta, layers []Layer) (*types.BuildResult, error) {
	img := b.BuildImageConfig(meta, layers)
	configDesc, err := layout.WriteJSONBlob(img, v1.MediaTypeImageConfig, dir)
	if err != nil {
		return nil, err
	}

	m := b.BuildManifest(configDesc, layers)
	manifestDesc, err := layout.WriteJSONBlob(m, v1.MediaTypeImageManifest, dir)
	if err != nil {
		return nil, err
	}
	if b.options.RefName != "" {
		manifestDesc.Annotations = map[string]string{
			v1.AnnotationRefName: b.options.RefName,
		}
	}

	index, err := layout.ReadIndex(dir)
	if err != nil {
		return nil, err
	}
	index.Manifests = append(index.Manifests, manifestDesc)
	if err := layout.WriteIndex(dir, index); err != nil {
		return nil, err
	}

	result := &types.BuildResult{
		Manifest: manifestDesc,
		Config:   configDesc,
		Tag:      b.options.RefName,
	}
	for _, layer := range layers {
		result.Layers = append(result.Layers, layer.Descriptor)
		result.DiffIDs = append(result.DiffIDs, layer.DiffID)
	}
	return result, nil
}
