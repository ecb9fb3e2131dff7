package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"image-derivatives/internal/codec"
)

// keyFileNames returns the public and private file names for scheme.
func keyFileNames(scheme codec.Scheme) (string, string) {
	if scheme == codec.SchemeAge {
		return "public.age", "private.age"
	}
	return "public.pem", "private.pem"
}

func newKeygenCmd(opts *options) *cobra.Command {
	var (
		outDir string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a token key pair",
		Long: `Generate a key pair for sealing derivative tokens.

The rsa scheme writes PEM files (public.pem, private.pem); the age scheme
writes an X25519 recipient and identity (public.age, private.age).

Examples:
  derivctl keygen                      # RSA pair in ./keys
  derivctl keygen --scheme age --out /etc/derivatives`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scheme, err := opts.keyScheme()
			if err != nil {
				return err
			}

			pubName, privName := keyFileNames(scheme)
			pubPath := filepath.Join(outDir, pubName)
			privPath := filepath.Join(outDir, privName)

			if !force {
				for _, p := range []string{pubPath, privPath} {
					if _, err := os.Stat(p); err == nil {
						return fmt.Errorf("%s already exists (use --force to overwrite)", p)
					}
				}
			}

			public, private, err := codec.GenerateKeyPair(scheme)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0700); err != nil {
				return fmt.Errorf("creating key directory: %w", err)
			}
			if err := os.WriteFile(privPath, private, 0600); err != nil {
				return fmt.Errorf("writing private key: %w", err)
			}
			if err := os.WriteFile(pubPath, public, 0644); err != nil {
				return fmt.Errorf("writing public key: %w", err)
			}

			log.Debug().Str("scheme", string(scheme)).Str("dir", outDir).Msg("key pair written")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "public key:  %s\n", pubPath)
			fmt.Fprintf(out, "private key: %s\n", privPath)
			fmt.Fprintf(out, "set KEY_SCHEME=%s PUBLIC_KEY_PATH=%s PRIVATE_KEY_PATH=%s\n", scheme, pubPath, privPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "keys", "output directory")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing key files")
	return cmd
}
