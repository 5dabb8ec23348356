package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danmuck/frameecho/internal/config"
	"github.com/danmuck/frameecho/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	logging.ConfigureRuntime()
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		kind     string
		output   string
		input    string
		validate bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "configgen",
		Short: "Write or validate echod/echoctl config files",
		Long: `configgen writes a commented TOML template for the given kind, or
strictly validates an existing file when --validate is set.

Examples:
  configgen --kind server
  configgen --kind client --output /tmp/echoctl.toml --force
  configgen --kind server --validate --input cmd/echod/config.toml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.New("configgen")
			if validate {
				path := input
				if path == "" {
					p, err := defaultPath(kind)
					if err != nil {
						return err
					}
					path = p
				}
				if err := config.Validate(kind, path); err != nil {
					return err
				}
				logger.Info().Str("kind", kind).Str("path", path).Msg("validated config")
				return nil
			}

			target := output
			if target == "" {
				p, err := defaultPath(kind)
				if err != nil {
					return err
				}
				target = p
			}
			if err := config.WriteTemplate(target, kind, force); err != nil {
				return err
			}
			logger.Info().Str("kind", kind).Str("path", target).Msg("wrote config template")
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", config.KindServer, "config kind: server|client")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path for config template")
	cmd.Flags().BoolVar(&validate, "validate", false, "validate an existing config file")
	cmd.Flags().StringVarP(&input, "input", "i", "", "config path for validation (defaults to per-kind cmd path)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")

	return cmd
}

func defaultPath(kind string) (string, error) {
	switch kind {
	case config.KindServer:
		return filepath.Join("cmd", "echod", "config.toml"), nil
	case config.KindClient:
		return filepath.Join("cmd", "echoctl", "config.toml"), nil
	default:
		return "", fmt.Errorf("%w: %s", config.ErrUnknownKind, kind)
	}
}
