// Package logging provides structured logging for the agentwatch daemon and CLI.
//
// This package wraps Go's log/slog to produce JSON-formatted log lines with
// persistent context attributes. Every decision taken by the watcher is logged
// as a structured event carrying the agent ID, elapsed times and the outcome
// as separate fields, so logs can be filtered with jq or similar tools.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(logging.Options{Dir: stateDir, Level: "info"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	agentLog := logger.WithAgent("cam-1")
//	agentLog.Info("notification decided", "action", "send", "elapsed_s", 0)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"notification decided","agent_id":"cam-1","action":"send","elapsed_s":0}
//
// # Rotation
//
// When a directory is given, logs are written through a [RotatingWriter] which
// rotates the file once it grows past MaxSizeMB and keeps MaxBackups old files
// named agentwatch.log.1 (newest) through agentwatch.log.N.
//
// # Thread Safety
//
// [Logger] and [RotatingWriter] are safe for concurrent use. Child loggers
// created with the With* methods share the parent's writer.
package logging
