// Package logger provides structured logging for httpkit using zerolog.
//
// It supports multiple output formats (JSON, console), log level
// configuration, and component-scoped loggers with structured fields.
// When an OpenTelemetry span is active on a context, WithContext picks
// up its trace and span IDs automatically.
//
// # Configuration
//
//	logger:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("httpclient")
//	log.Info("exchange complete", logger.Fields("status", 200))
package logger
