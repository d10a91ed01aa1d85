// Package logging builds the service's log/slog logger from configuration.
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(&cfg.Telemetry.Logging, os.Stderr))
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
// Formats are "json" (default), "text" and "console" (text without
// timestamps). ParseLevel and ParseFormat are exported for CLI flags.
//
// # Context
//
// The returned logger wraps its handler in a ContextHandler, so records
// logged with a context carry the request ID, owner token and stream handle
// stored there by WithRequestID, WithOwner and WithStream.
//
// # Token Redaction
//
// With RedactTokens set, attributes named "owner" or "token" are reduced to
// an eight character prefix. Tokens are bearer capabilities for the mixes
// they registered.
package logging
