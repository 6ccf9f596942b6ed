// Package quantlog builds the zap logger the engines emit their call events
// through. Engines receive the logger by injection; nothing in this module
// reads a global.
package quantlog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bcdannyboy/quantlib/config"
	"github.com/bcdannyboy/quantlib/models"
)

// New constructs a logger from the logging section of the config snapshot.
// Console output goes to stderr with a console encoder; file output goes
// through lumberjack rotation with a JSON encoder. With both disabled the
// returned logger is a no-op.
func New(cfg config.Logging) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var cores []zapcore.Core
	if cfg.Console {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
	}
	if cfg.FileOutput && cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxFileSizeMB,
			MaxBackups: cfg.MaxFiles,
		}
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rotator), level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "INFO":
		return zapcore.InfoLevel, nil
	case "WARNING", "WARN":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InvalidLevel, fmt.Errorf("unknown log level %q", s)
}

// Event records the outcome of one engine call: component name, outcome
// label, and elapsed wall time. Successes log at debug so that iterative
// callers (the implied vol solver prices on every step) stay quiet at the
// default level; failures log at warn.
func Event(log *zap.Logger, component string, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("component", component),
		zap.String("outcome", models.ErrorKind(err)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		log.Warn("call failed", fields...)
		return
	}
	log.Debug("call complete", fields...)
}
