package misc

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the zap.Logger used throughout the inspector. level is
// one of debug, info, warn, error, dpanic, panic, fatal. outputPaths and
// errOutputPaths default to stdout/stderr when nil.
func NewLogger(level string, outputPaths, errOutputPaths []string) (*zap.Logger, error) {
	if outputPaths == nil {
		outputPaths = []string{"stdout"}
	}
	if errOutputPaths == nil {
		errOutputPaths = []string{"stderr"}
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("error parsing log level: %w", err)
	}

	cfg := zap.Config{
		Level:             lvl,
		Development:       false,
		DisableCaller:     false,
		DisableStacktrace: false,
		Encoding:          "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:   "message",
			LevelKey:     "level",
			TimeKey:      "time",
			NameKey:      "logger",
			CallerKey:    "caller",
			EncodeLevel:  zapcore.LowercaseLevelEncoder,
			EncodeTime:   zapcore.ISO8601TimeEncoder,
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
		OutputPaths:      outputPaths,
		ErrorOutputPaths: errOutputPaths,
	}

	return cfg.Build()
}
