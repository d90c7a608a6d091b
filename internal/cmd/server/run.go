package serverrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cfgpkg "github.com/rzbill/killfeed/internal/config"
	"github.com/rzbill/killfeed/internal/metrics"
	"github.com/rzbill/killfeed/internal/runtime"
	httpserver "github.com/rzbill/killfeed/internal/server/http"
	pebblestore "github.com/rzbill/killfeed/internal/storage/pebble"
	logpkg "github.com/rzbill/killfeed/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := func() string { return getenv(key) }(); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing; replaced by os.Getenv at build time
var getenv = func(key string) string { return os.Getenv(key) }

type Options struct {
	DataDir  string
	HTTPAddr string
	Fsync    pebblestore.FsyncMode
	Config   cfgpkg.Config
}

// Run opens the runtime and serves the feed endpoints until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if opts.DataDir == "" {
		opts.DataDir = cfg.Storage.DataDir
	}
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	if opts.HTTPAddr == "" {
		opts.HTTPAddr = cfg.HTTP.Addr
	}

	logCfg := &logpkg.Config{
		Level:  getenvDefault("KILLFEED_LOG_LEVEL", cfg.Log.Level),
		Format: getenvDefault("KILLFEED_LOG_FORMAT", cfg.Log.Format),
	}
	procLogger, err := logpkg.ApplyConfig(logCfg)
	if err != nil {
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(logCfg.Level); e == nil {
			lvl = l
		}
		procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	// Pebble logs through the stdlib logger.
	logpkg.RedirectStdLog(procLogger)

	procLogger.Info("starting killfeed",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("source", cfg.Source.Driver),
		logpkg.Str("cursor", cfg.Cursor.Driver),
		logpkg.Str("level", logCfg.Level),
		logpkg.Str("format", logCfg.Format),
	)

	rt, err := runtime.Open(runtime.Options{
		DataDir: opts.DataDir,
		Fsync:   opts.Fsync,
		Config:  cfg,
		Metrics: metrics.New(),
		Logger:  procLogger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			procLogger.Warn("runtime close", logpkg.Err(err))
		}
	}()

	hsrv := httpserver.New(rt, procLogger)
	errCh := make(chan error, 1)
	go func() { errCh <- hsrv.ListenAndServe(sctx, opts.HTTPAddr) }()

	// ListenAndServe drains in-flight polls before returning, so the runtime
	// is closed only after every handler is done with it.
	err = <-errCh
	if err != nil && sctx.Err() == nil {
		procLogger.Error("http server", logpkg.Err(err))
		return err
	}
	procLogger.Info("killfeed stopped")
	return nil
}
