// Package memlog wraps go-log/v2 to hand every package a named logger, the
// same pattern the teacher uses for its "storethehash" / "faithful"
// loggers. Named loggers let operators tune verbosity per subsystem via
// GOLOG_LOG_LEVEL without recompiling.
package memlog

import (
	logging "github.com/ipfs/go-log/v2"
)

// Logger is a narrowed logging.ZapEventLogger surface; the rest of the repo
// only ever needs structured leveled logging, never the full zap API.
type Logger = *logging.ZapEventLogger

// Named returns (creating if necessary) the logger registered under name.
func Named(name string) Logger {
	return logging.Logger(name)
}

// SetLevel sets the log level for a single named logger (e.g. "debug",
// "info", "warn", "error").
func SetLevel(name, level string) error {
	return logging.SetLogLevel(name, level)
}

// SetAllLevels sets the log level for every logger registered so far.
func SetAllLevels(level string) error {
	lvl, err := logging.LevelFromString(level)
	if err != nil {
		return err
	}
	logging.SetAllLoggers(lvl)
	return nil
}
