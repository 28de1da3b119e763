// Package logging provides structured logging for changeling-watch.
//
// It wraps the standard log/slog package:
//
//   - Text output by default, JSON for machine collection
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - stderr by default, keeping stdout for received message lines
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # text, json
//	  output: "stderr"   # stderr, stdout
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("connected", "broker", "localhost:1883")
//	logger.Error("subscribe failed", "error", err)
//
// Never log broker passwords or InfluxDB tokens.
package logging
