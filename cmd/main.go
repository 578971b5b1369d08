package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	ggcrlayout "github.com/google/go-containerregistry/pkg/v1/layout"
	"github.com/google/go-containerregistry/pkg/v1/validate"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bibin-skaria/ocidir/config"
	"github.com/bibin-skaria/ocidir/internal/types"
	"github.com/bibin-skaria/ocidir/layers"
	"github.com/bibin-skaria/ocidir/layout"
	"github.com/bibin-skaria/ocidir/manifest"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "ocidir",
		Short: "Build and maintain OCI image directories",
		Long: `ocidir maintains a content-addressable OCI image directory: it validates
or initializes the on-disk layout, writes JSON documents as digest-named
blobs, and converts root filesystem trees into compressed image layers.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newVerifyCommand())

	return cmd
}

func configureLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logrus.SetLevel(parsed)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init <directory>",
		Short: "Initialize or validate an OCI image directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if err := layout.Init(dir); err != nil {
				return err
			}
			logrus.WithField("path", dir).Info("image directory ready")
			return nil
		},
	}
}

func newBuildCommand() *cobra.Command {
	var (
		output     string
		configPath string
		tag        string
	)

	cmd := &cobra.Command{
		Use:   "build <rootfs>",
		Short: "Build an image directory from a root filesystem",
		Long: `Build packages a root filesystem directory as a compressed image layer,
writes the image config and manifest blobs, and records the manifest in the
image directory's index. Socket special files inside the rootfs are deleted
before archival; the rootfs must be treated as consumed by the build.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rootfs := args[0]
			log := logrus.WithFields(logrus.Fields{
				"rootfs": rootfs,
				"output": output,
			})

			meta := types.ImageMeta{}
			opts := manifest.DefaultBuilderOptions()
			opts.CreatedBy = "ocidir build"
			if configPath != "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				meta = cfg.Meta()
				opts.Platform = cfg.Image.Platform
				if tag == "" {
					tag = cfg.Image.Name
				}
			}
			opts.RefName = tag

			if err := layout.Init(output); err != nil {
				return err
			}

			start := time.Now()
			desc, diffID, err := layers.CreateImageLayer(rootfs, output)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"digest":   desc.Digest.String(),
				"diff_id":  diffID.String(),
				"size":     desc.Size,
				"duration": time.Since(start).String(),
			}).Info("layer published")

			builder := manifest.NewBuilder(opts)
			result, err := builder.Publish(output, meta, []manifest.Layer{
				{Descriptor: desc, DiffID: diffID},
			})
			if err != nil {
				return err
			}
			log.WithField("manifest", result.Manifest.Digest.String()).Info("image published")

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "image", "image directory to write")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "build config file (YAML)")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "ref name recorded in the index")

	return cmd
}

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <directory>",
		Short: "Verify an image directory with an independent reader",
		Long: `Verify opens the image directory through go-containerregistry and checks
that every manifest, config, and layer blob matches its recorded digest and
size.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if _, err := ggcrlayout.FromPath(dir); err != nil {
				return fmt.Errorf("not an OCI image directory %s: %w", dir, err)
			}
			index, err := ggcrlayout.ImageIndexFromPath(dir)
			if err != nil {
				return fmt.Errorf("failed to read index from %s: %w", dir, err)
			}
			if err := validate.Index(index); err != nil {
				return fmt.Errorf("image directory %s failed validation: %w", dir, err)
			}
			logrus.WithField("path", dir).Info("image directory is valid")
			return nil
		},
	}
}
