// Package log provides feedgen's structured logging facade and utilities.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that feeds our formatter and
// outputs pipeline.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("ingest"), log.Feed("rapidfire"))
//	l.Info("checkpoint saved", log.Uint64("seq", 1000))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config, supporting JSON
// or text formatting and multiple outputs (console, rotating file, null).
// Redaction and sampling are applied inside the slog handler.
//
// # Interop
//
// Pebble and other libraries log through the standard library logger; use
// RedirectStdLog or ToStdLogger to route them through a Logger.
package log
