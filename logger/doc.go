// Package logger provides structured logging for seqkit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with structured fields. Sequence runs log their
// lifecycle at debug level with the run_id, engine and mode fields.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("seq")
//	log.Debug("run started", logger.Fields(logger.FieldRunID, id))
package logger
