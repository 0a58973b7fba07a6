package dtsbundle

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// nopLogger backs the library when the caller passes no logger; the driver
// never checks for nil.
var nopLogger = zap.NewNop()

// VerboseLogger builds the console logger the CLI switches on with
// --verbose: human-readable, debug level, no stack traces below error.
func VerboseLogger() *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	config.DisableStacktrace = true
	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
