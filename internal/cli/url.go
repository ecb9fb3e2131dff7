package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"image-derivatives/internal/bucket"
	"image-derivatives/internal/codec"
	"image-derivatives/internal/sources"
	"image-derivatives/internal/urlgen"
)

func newURLCmd(opts *options) *cobra.Command {
	var (
		sourceID   string
		width      int
		height     int
		ext        string
		fit        string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "url",
		Short: "Build a derivative URL for a source image",
		Long: `Build the derivative URL a template would emit for a source image.

Only the public key is needed. Dimensions are snapped to the bucket
catalogue exactly as the API does.

Examples:
  derivctl url --source <id>                   # original size, original format
  derivctl url --source <id> --width 700       # bucketed to 500 wide
  derivctl url --source <id> --height 90 --ext png --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scheme, err := opts.keyScheme()
			if err != nil {
				return err
			}
			encoder, err := codec.EncoderFromProvider(scheme, opts.keyProvider())
			if err != nil {
				return err
			}
			catalogue, err := bucket.Load(opts.cfg.CatalogueFile)
			if err != nil {
				return err
			}
			registry, err := sources.Load(opts.cfg.SourcesFile, opts.cfg.OriginalsDir)
			if err != nil {
				return err
			}
			src, err := registry.Lookup(sourceID)
			if err != nil {
				return err
			}

			u, err := urlgen.New(catalogue, encoder, opts.cfg.DerivativePrefix).Generate(src, urlgen.Options{
				Width:     width,
				Height:    height,
				Extension: ext,
				Fit:       codec.Fit(fit),
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"url":       u.Path,
					"width":     u.Width,
					"height":    u.Height,
					"extension": u.Extension,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), u.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceID, "source", "", "source image id")
	cmd.Flags().IntVar(&width, "width", 0, "requested width")
	cmd.Flags().IntVar(&height, "height", 0, "requested height")
	cmd.Flags().StringVar(&ext, "ext", "", "output extension (default: the source's)")
	cmd.Flags().StringVar(&fit, "fit", string(codec.FitClip), "fit strategy")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
