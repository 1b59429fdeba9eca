package lib

import (
	"context"
	"os"
	"path/filepath"

	"github.com/covalenthq/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKey struct{}

var logger = zap.NewNop()

// InitLogger builds the process logger. Output goes to stdout and, when
// file is set, to a rotated log file.
func InitLogger(level, env, file string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)
	if env == "local" || env == "development" {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(devCfg)
	}

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, err
		}
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    500,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), zap.NewAtomicLevelAt(lvl))
	l := zap.New(core, zap.AddCaller(), zap.Fields(
		zap.String("service", "menusync"),
		zap.String("environment", env),
	))
	SetLogger(l)
	return l, nil
}

func SetLogger(l *zap.Logger) {
	logger = l
	zap.ReplaceGlobals(l)
}

func Logger() *zap.Logger {
	return logger
}

// LoggerFromContext returns the request scoped logger, falling back to the
// process logger.
func LoggerFromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return logger
}

func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}
