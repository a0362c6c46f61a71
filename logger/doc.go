// Package logger provides structured logging for streamkit using zerolog.
//
// It supports JSON and console output, level configuration and
// component-scoped loggers carrying structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("delivery")
//	log.Info("delivery completed", logger.Fields("bytes", 512))
package logger
