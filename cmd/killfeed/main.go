package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientcmd "github.com/rzbill/killfeed/internal/cmd/client"
	serverrun "github.com/rzbill/killfeed/internal/cmd/server"
	cfgpkg "github.com/rzbill/killfeed/internal/config"
	pebblestore "github.com/rzbill/killfeed/internal/storage/pebble"
	logpkg "github.com/rzbill/killfeed/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	// Respect KILLFEED_LOG_LEVEL for CLI output before any config is read.
	level := os.Getenv("KILLFEED_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:          "killfeed",
		Short:        "killfeed long-poll killmail feed",
		Long:         "killfeed serves stored killmails over RedisQ-compatible long-poll endpoints.",
		SilenceUsage: true,
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the killfeed HTTP server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)

			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			if v, _ := cmd.Flags().GetString("source"); v != "" {
				cfg.Source.Driver = v
			}
			if v, _ := cmd.Flags().GetString("cursor"); v != "" {
				cfg.Cursor.Driver = v
			}
			if v, _ := cmd.Flags().GetString("nats-url"); v != "" {
				cfg.Cursor.NATSURL = v
			}
			if v, _ := cmd.Flags().GetString("log-level"); v != "" {
				cfg.Log.Level = v
			}
			if v, _ := cmd.Flags().GetString("log-format"); v != "" {
				cfg.Log.Format = v
			}

			mode := pebblestore.FsyncModeUnspecified
			if v, _ := cmd.Flags().GetString("fsync"); v != "" {
				mode, err = pebblestore.ParseFsyncMode(v)
				if err != nil {
					return fmt.Errorf("invalid --fsync; use always|interval|never")
				}
				cfg.Storage.Fsync = v
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{
				DataDir:  dataDir,
				HTTPAddr: httpAddr,
				Fsync:    mode,
				Config:   cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("config", os.Getenv("KILLFEED_CONFIG"), "Config file (yaml or json)")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses config or the OS application data directory)")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default from config, :8080)")
	serverStartCmd.Flags().String("source", "", "Record source: pebble|sqlite")
	serverStartCmd.Flags().String("cursor", "", "Cursor store: pebble|nats|memory")
	serverStartCmd.Flags().String("nats-url", "", "NATS URL for --cursor nats")
	serverStartCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json (default text)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	clientcmd.Register(rootCmd, clientcmd.BaseURLFromEnv)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
