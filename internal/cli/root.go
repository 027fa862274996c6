package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rl1809/cartsync/internal/config"
)

// RootOptions holds global flags for all commands. Flags left unset take
// their value from the cartsync configuration (environment or YAML file).
type RootOptions struct {
	APIURL    string
	Token     string
	TokenFile string
	Timeout   time.Duration
	Format    string // "json" | "text"
	Verbose   bool
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cartctl",
		Short: "cartctl - inspect and edit a remote shopping cart",
		Long:  "Operator CLI for the cart sync engine. Every command runs one engine session against the remote cart service.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.fillFromConfig(cmd)
		},
	}

	defaults := config.Default()
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", defaults.CartAPIURL, "base URL of the remote cart service")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "bearer token")
	cmd.PersistentFlags().StringVar(&opts.TokenFile, "token-file", "", "file holding the bearer token")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", defaults.RequestTimeout, "per-request timeout")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log engine activity to stderr")

	cmd.AddCommand(NewViewCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewStressCommand(opts))

	return cmd
}

func (o *RootOptions) fillFromConfig(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if !flags.Changed("api-url") {
		o.APIURL = cfg.CartAPIURL
	}
	if !flags.Changed("token") {
		o.Token = cfg.AuthToken
	}
	if !flags.Changed("token-file") {
		o.TokenFile = cfg.AuthTokenFile
	}
	if !flags.Changed("timeout") {
		o.Timeout = cfg.RequestTimeout
	}
	return nil
}

func (o *RootOptions) logger() *zap.Logger {
	if !o.Verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
