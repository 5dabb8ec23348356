package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/danmuck/frameecho/internal/admin"
	"github.com/danmuck/frameecho/internal/client"
	"github.com/danmuck/frameecho/internal/config"
	"github.com/danmuck/frameecho/internal/logging"
	"github.com/danmuck/frameecho/internal/protocol/frame"
	"github.com/spf13/cobra"
)

type options struct {
	configPath  string
	addr        string
	adminAddr   string
	frameSize   int
	probeByte   uint8
	maxAttempts int
	count       int
	logLevel    string
}

func main() {
	logging.ConfigureRuntime()
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "echoctl: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "echoctl",
		Short: "Fixed-frame TCP echo client",
		Long: `echoctl connects to an echod server, sends one probe frame per
connection, and logs every frame read back. Dropped or refused
connections are retried with exponential backoff.

Examples:
  echoctl
  echoctl --probe-byte 171 --count 1
  echoctl --config cmd/echoctl/config.toml`,
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
			return runClient(ctx, cfg, opts.count)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "TOML config file")
	cmd.Flags().StringVar(&opts.addr, "addr", client.DefaultAddress, "echo server address")
	cmd.Flags().StringVar(&opts.adminAddr, "admin-addr", "", "admin HTTP listen address (disabled when empty)")
	cmd.Flags().IntVar(&opts.frameSize, "frame-size", 0, "frame length in bytes (default 24)")
	cmd.Flags().Uint8Var(&opts.probeByte, "probe-byte", 0, "byte value filling the probe frame")
	cmd.Flags().IntVar(&opts.maxAttempts, "max-attempts", 0, "consecutive failed connects before giving up (0 retries forever)")
	cmd.Flags().IntVar(&opts.count, "count", 0, "exit after this many complete frames (0 runs until interrupted)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level override (trace|debug|info|warn|error)")

	return cmd
}

// resolveConfig layers defaults, then the config file, then explicit flags.
func resolveConfig(cmd *cobra.Command, opts options) (ctlConfig, error) {
	cfg := defaultCtlConfig()
	if path := strings.TrimSpace(opts.configPath); path != "" {
		loaded, err := loadCtlConfig(path)
		if err != nil {
			return ctlConfig{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Client.Address = strings.TrimSpace(opts.addr)
	}
	if flags.Changed("admin-addr") {
		cfg.AdminListenAddr = strings.TrimSpace(opts.adminAddr)
	}
	if flags.Changed("frame-size") {
		if err := config.RequirePositive("frame-size", opts.frameSize); err != nil {
			return ctlConfig{}, err
		}
		cfg.Client.Session.FrameSize = opts.frameSize
	}
	if flags.Changed("probe-byte") {
		cfg.Client.ProbeByte = opts.probeByte
	}
	if flags.Changed("max-attempts") {
		if opts.maxAttempts < 0 {
			return ctlConfig{}, errors.New("max-attempts must not be negative")
		}
		cfg.Client.MaxConnectAttempts = opts.maxAttempts
	}
	if opts.count < 0 {
		return ctlConfig{}, errors.New("count must not be negative")
	}
	if flags.Changed("log-level") && !logging.SetLevel(opts.logLevel) {
		return ctlConfig{}, fmt.Errorf("unknown log level %q", opts.logLevel)
	}
	return cfg, nil
}

func runClient(ctx context.Context, cfg ctlConfig, count int) error {
	logger := logging.New("echoctl")
	cfg.Client.Logger = &logger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if count > 0 {
		cfg.Client.OnFrame = stopAfter(count, cancel)
	}
	c, err := client.New(cfg.Client)
	if err != nil {
		return err
	}

	adminDone := make(chan struct{})
	if cfg.AdminListenAddr != "" {
		adm := admin.New(admin.Config{
			Name:       "echoctl",
			ListenAddr: cfg.AdminListenAddr,
			Status:     func() any { return c.Status() },
			Logger:     &logger,
		})
		go func() {
			defer close(adminDone)
			if err := adm.Run(ctx); err != nil {
				logger.Error().Err(err).Str("addr", cfg.AdminListenAddr).Msg("echoctl admin server failed")
				cancel()
			}
		}()
	} else {
		close(adminDone)
	}

	err = c.Run(ctx)
	cancel()
	<-adminDone
	if err != nil {
		return err
	}
	status := c.Status()
	logger.Info().Uint64("sessions", status.Sessions).Uint64("frames_complete", status.FramesComplete).
		Uint64("frames_partial", status.FramesPartial).Msg("echoctl stopped")
	return nil
}

// stopAfter returns an OnFrame hook that cancels once n complete frames
// have been seen across all sessions.
func stopAfter(n int, cancel context.CancelFunc) func(frame.Result, []byte) {
	var seen atomic.Int64
	return func(res frame.Result, _ []byte) {
		if res.Outcome != frame.OutcomeComplete {
			return
		}
		if seen.Add(1) >= int64(n) {
			cancel()
		}
	}
}
