package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// log is the CLI's logger, a no-op by default; -v wires it to a console
// logger writing to stderr. The core packages never touch this (spec §7);
// only this command configures and calls it, the way zhyee/atos-go exposes
// its own package-level Log variable.
var log = zap.NewNop().Sugar()

func enableVerboseLogging() {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stderr),
		zapcore.DebugLevel,
	)
	log = zap.New(core).Sugar()
}
