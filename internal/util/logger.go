// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a no-op until InitLogger runs, so library code can log
// unconditionally.
var Logger = zap.NewNop()

// DebugEnvVar enables debug logging when set to any non-empty value.
const DebugEnvVar = "APCOLD_DEBUG"

// InitLogger initializes the global logger. Logs go to stderr so command
// output on stdout stays clean. By default only warnings and errors are
// shown; debug (or APCOLD_DEBUG=1) switches to a development logger.
func InitLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug || os.Getenv(DebugEnvVar) != "" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Encoding = "console"
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.DisableStacktrace = true
	}
	config.OutputPaths = []string{"stderr"}

	l, err := config.Build()
	if err != nil {
		// Only reachable with a broken encoder config.
		panic(err)
	}
	Logger = l
	return l
}

// SyncLogger flushes buffered log entries.
func SyncLogger() {
	_ = Logger.Sync()
}
