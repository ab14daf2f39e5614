// Package logging provides the process-wide structured logger.
package logging

import "go.uber.org/zap"

var logger *zap.Logger

func init() {
	logger, _ = zap.NewDevelopment()
}

// Logger returns the global logger.
func Logger() *zap.Logger {
	return logger
}

// SetLogger replaces the global logger (e.g. with a production encoder).
func SetLogger(l *zap.Logger) {
	logger = l
}

// InitProduction swaps in a JSON-encoded production logger.
func InitProduction() error {
	l, err := zap.NewProduction()
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func Debug(msg string, fields ...zap.Field) { logger.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { logger.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { logger.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { logger.Error(msg, fields...) }

// With returns a child logger carrying additional structured fields, e.g.
// logging.With(zap.String("session_id", id)).
func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}

// Sync flushes any buffered log entries; call before process exit.
func Sync() error {
	return logger.Sync()
}
