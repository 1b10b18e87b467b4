package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger writes JSON entries to a rotating healthwatch.log under logDir and
// mirrors them to stderr. level is a zap level name; empty means info.
func NewLogger(logDir, level string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	file := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, "healthwatch.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	enc := zapcore.NewJSONEncoder(cfg)
	core := zapcore.NewTee(
		zapcore.NewCore(enc, file, lvl),
		zapcore.NewCore(enc.Clone(), zapcore.Lock(os.Stderr), lvl),
	)
	return zap.New(core), nil
}
