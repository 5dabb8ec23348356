package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/frameecho/internal/admin"
	"github.com/danmuck/frameecho/internal/config"
	"github.com/danmuck/frameecho/internal/logging"
	"github.com/danmuck/frameecho/internal/server"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	addr       string
	adminAddr  string
	frameSize  int
	logLevel   string
}

func main() {
	logging.ConfigureRuntime()
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "echod: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "echod",
		Short: "Fixed-frame TCP echo server",
		Long: `echod accepts TCP connections and echoes every fixed-length frame
back to the peer that sent it. A frame cut short by end of stream is
echoed as the bytes that arrived.

Examples:
  echod
  echod --addr 127.0.0.1:13337 --admin-addr 127.0.0.1:7010
  echod --config cmd/echod/config.toml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "TOML config file")
	cmd.Flags().StringVar(&opts.addr, "addr", server.DefaultListenAddr, "echo listen address")
	cmd.Flags().StringVar(&opts.adminAddr, "admin-addr", "", "admin HTTP listen address (disabled when empty)")
	cmd.Flags().IntVar(&opts.frameSize, "frame-size", 0, "frame length in bytes (default 24)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level override (trace|debug|info|warn|error)")

	return cmd
}

// resolveConfig layers defaults, then the config file, then explicit flags.
func resolveConfig(cmd *cobra.Command, opts options) (daemonConfig, error) {
	cfg := defaultDaemonConfig()
	if path := strings.TrimSpace(opts.configPath); path != "" {
		loaded, err := loadDaemonConfig(path)
		if err != nil {
			return daemonConfig{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Service.ListenAddr = strings.TrimSpace(opts.addr)
	}
	if flags.Changed("admin-addr") {
		cfg.AdminListenAddr = strings.TrimSpace(opts.adminAddr)
	}
	if flags.Changed("frame-size") {
		if err := config.RequirePositive("frame-size", opts.frameSize); err != nil {
			return daemonConfig{}, err
		}
		cfg.Service.Session.FrameSize = opts.frameSize
	}
	if flags.Changed("log-level") && !logging.SetLevel(opts.logLevel) {
		return daemonConfig{}, fmt.Errorf("unknown log level %q", opts.logLevel)
	}
	return cfg, nil
}

func runDaemon(ctx context.Context, cfg daemonConfig) error {
	logger := logging.New("echod")
	cfg.Service.Logger = &logger
	svc := server.NewServiceWithConfig(cfg.Service)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	adminDone := make(chan struct{})
	if cfg.AdminListenAddr != "" {
		adm := admin.New(admin.Config{
			Name:       "echod",
			ListenAddr: cfg.AdminListenAddr,
			Status:     func() any { return svc.Status() },
			Logger:     &logger,
		})
		go func() {
			defer close(adminDone)
			if err := adm.Run(ctx); err != nil {
				logger.Error().Err(err).Str("addr", cfg.AdminListenAddr).Msg("echod admin server failed")
				cancel()
			}
		}()
	} else {
		close(adminDone)
	}

	err := svc.Run(ctx)
	cancel()
	<-adminDone
	if err != nil {
		return err
	}
	logger.Info().Msg("echod stopped")
	return nil
}
