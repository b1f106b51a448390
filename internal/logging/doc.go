// Package logging provides structured logging for surveyctl.
//
// It wraps Go's log/slog to write JSON lines that can be filtered after the
// fact, which is how inconsistencies between the stream and command
// responses are diagnosed.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the parent's writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(path, "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithSession(epoch).WithMission("42").WithComponent("telemetry")
//	log.Info("connected", "url", url)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"connected","session_id":"...","mission_id":"42","component":"telemetry","url":"..."}
//
// # Log Rotation
//
// [RotatingWriter] rotates by size and keeps numbered backups:
// surveyctl.log.1 is the newest. With Compress set, backups are gzipped in
// the background and become surveyctl.log.1.gz.
//
// # Reading Logs
//
// [ReadLogs] parses a log file and its backups (compressed or not) and
// [FilterLogs] narrows them by level, mission, session or component:
//
//	entries, err := logging.ReadLogs(path, 3)
//	warnings := logging.FilterLogs(entries, logging.LogFilter{Level: "WARN", MissionID: "42"})
//	logging.WriteEntries(os.Stdout, warnings, "text")
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a buffer to
// assert on entries.
package logging
