// Package logging provides structured logging for sqlbridge.
//
// It wraps log/slog with the configured format (json or text), level
// filtering and the default fields service=sqlbridge and version.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("database opened", "database", "notes")
//
// Never log SQL parameter values or tokens; statements are logged only on
// failure and only as text the caller sent.
package logging
