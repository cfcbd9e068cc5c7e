package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	fallback     *zap.Logger
	once         sync.Once
	fallbackOnce sync.Once
)

// Init builds the process logger once.
// Debug selects the console encoder with coloured levels at debug level,
// otherwise JSON at info level. The service name is attached to every entry.
func Init(debug bool, service string) error {
	var err error
	once.Do(func() {
		var config zap.Config
		if debug {
			config = zap.NewDevelopmentConfig()
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			config = zap.NewProductionConfig()
			config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		if service != "" {
			config.InitialFields = map[string]interface{}{"service": service}
		}

		// The MCP stdio transport owns stdout.
		config.OutputPaths = []string{"stderr"}

		globalLogger, err = config.Build(zap.AddCallerSkip(1))
	})
	return err
}

// Get returns the process logger, or a production logger if Init was not called.
func Get() *zap.Logger {
	if globalLogger != nil {
		return globalLogger
	}
	fallbackOnce.Do(func() {
		l, err := zap.NewProduction(zap.AddCallerSkip(1))
		if err != nil {
			l = zap.NewNop()
		}
		fallback = l
	})
	return fallback
}

// Sync flushes any buffered log entries.
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

// Named returns a child logger for a component. The caller skip added for
// the package helpers is undone so call sites are reported correctly.
func Named(name string) *zap.Logger {
	return Get().WithOptions(zap.AddCallerSkip(-1)).Named(name)
}

// Hex renders a frame payload as an uppercase hex field.
func Hex(key string, data []byte) zap.Field {
	return zap.String(key, fmt.Sprintf("0x%X", data))
}

func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Get().Fatal(msg, fields...)
}
