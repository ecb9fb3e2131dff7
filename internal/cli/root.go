// Package cli contains the derivctl commands: key generation, URL building
// and token inspection for the derivative service.
package cli

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"image-derivatives/internal/codec"
	"image-derivatives/internal/config"
	"image-derivatives/internal/keys"
)

// options holds the global flags. Empty values fall back to the environment
// configuration the API server uses.
type options struct {
	verbose    bool
	scheme     string
	publicKey  string
	privateKey string
	sources    string
	originals  string
	catalogue  string
	prefix     string

	cfg *config.Config
}

// NewRootCmd builds the derivctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "derivctl",
		Short: "Image derivative key and URL tool",
		Long: `derivctl manages the keys derivative URLs are sealed with and builds or
inspects those URLs outside the API server.

Example usage:
  derivctl keygen --scheme age --out ./keys
  derivctl url --source 6f1c2a4e-8d3b-4c5a-9e7f-0a1b2c3d4e5f --width 700
  derivctl decode /derivatives/<token>.jpg`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.scheme, "scheme", "", "key scheme: rsa or age (default $KEY_SCHEME)")
	flags.StringVar(&opts.publicKey, "public-key", "", "public key path (default $PUBLIC_KEY_PATH)")
	flags.StringVar(&opts.privateKey, "private-key", "", "private key path (default $PRIVATE_KEY_PATH)")
	flags.StringVar(&opts.sources, "sources", "", "sources manifest (default $SOURCES_FILE)")
	flags.StringVar(&opts.originals, "originals", "", "originals directory (default $ORIGINALS_DIR)")
	flags.StringVar(&opts.catalogue, "catalogue", "", "bucket catalogue file (default $CATALOGUE_FILE)")
	flags.StringVar(&opts.prefix, "prefix", "", "derivative URL prefix (default $DERIVATIVE_PREFIX)")

	root.AddCommand(newKeygenCmd(opts), newURLCmd(opts), newDecodeCmd(opts))
	return root
}

// Execute runs derivctl with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *options) init(cmd *cobra.Command) error {
	level := zerolog.WarnLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.TimeOnly})

	o.cfg = config.Load()
	override(&o.cfg.KeyScheme, o.scheme)
	override(&o.cfg.PublicKeyPath, o.publicKey)
	override(&o.cfg.PrivateKeyPath, o.privateKey)
	override(&o.cfg.SourcesFile, o.sources)
	override(&o.cfg.OriginalsDir, o.originals)
	override(&o.cfg.CatalogueFile, o.catalogue)
	override(&o.cfg.DerivativePrefix, o.prefix)
	return nil
}

func (o *options) keyScheme() (codec.Scheme, error) {
	return codec.ParseScheme(o.cfg.KeyScheme)
}

func (o *options) keyProvider() keys.Provider {
	return keys.NewFileProvider(o.cfg.PublicKeyPath, o.cfg.PrivateKeyPath)
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
