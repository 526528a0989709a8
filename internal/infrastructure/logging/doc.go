// Package logging provides structured logging for homesec.
//
// It wraps log/slog so every component logs with the same handler and the
// same default fields (service, version). JSON is used in production and the
// text handler during development:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components take a narrow Debug/Info/Warn/Error interface rather than this
// concrete type, so *Logger satisfies them and tests can pass Discard().
//
// Never log broker passwords or the InfluxDB token.
package logging
