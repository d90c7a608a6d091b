// Package log provides killfeed's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. It is backed by the standard library
// slog via a bridge handler that routes records through a formatter and a
// set of outputs, so every component logs with the same shape.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("redisq"))
//	l.Warn("poll failed", log.Str("queue_id", "abc"), log.Err(err))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config (level, text or JSON
// format, console/file/null outputs, redaction and sampling).
//
// # Interop
//
// RedirectStdLog sends output from libraries that use the standard "log"
// package (Pebble, for example) through a Logger.
package log
