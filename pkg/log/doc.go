/*
Package log provides structured logging for stagehand using zerolog.

The package wraps zerolog behind a global logger initialized once via Init,
plus helpers that derive child loggers carrying common context fields
(component, run, task, node, path). JSON output is intended for production;
the console writer is for interactive use.

Usage:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	walkerLog := log.WithComponent("walker")
	walkerLog.Debug().Str("manifest", path).Msg("streaming manifest")

	pathLog := log.WithPath("/scratch/run1/x.fastq")
	pathLog.Warn().Err(err).Msg("could not materialise symlink")

Fatal logs the message and exits the process; reserve it for unrecoverable
startup errors.
*/
package log
