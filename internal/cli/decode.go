package cli

import (
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"image-derivatives/internal/codec"
	"image-derivatives/internal/urlgen"
)

func newDecodeCmd(opts *options) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "decode TOKEN|PATH",
		Short: "Decode a derivative token",
		Long: `Open a derivative token with the private key and print the transform
request it carries. Accepts a bare token or a full derivative path.

Examples:
  derivctl decode <token>
  derivctl decode /derivatives/<token>.jpg --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := args[0]
			if strings.Contains(token, "/") || strings.Contains(token, ".") {
				t, _, err := urlgen.SplitFile(path.Base(token))
				if err != nil {
					return err
				}
				token = t
			}

			scheme, err := opts.keyScheme()
			if err != nil {
				return err
			}
			decoder, err := codec.DecoderFromProvider(scheme, opts.keyProvider())
			if err != nil {
				return err
			}
			req, err := decoder.Decode(token)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"source":    req.SourceID,
					"fit":       req.Fit,
					"width":     req.Width,
					"height":    req.Height,
					"extension": req.Extension,
				})
			}

			fmt.Fprintf(out, "source:    %s\n", req.SourceID)
			fmt.Fprintf(out, "fit:       %s\n", req.Fit)
			fmt.Fprintf(out, "width:     %s\n", optionalInt(req.Width))
			fmt.Fprintf(out, "height:    %s\n", optionalInt(req.Height))
			fmt.Fprintf(out, "extension: %s\n", optionalString(req.Extension))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func optionalString(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
