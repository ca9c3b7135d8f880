// Package logger builds the application logger from configuration: leveled
// logrus output, rotated on disk in production, plain text on stdout in
// development and tests.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"caudal/internal/config"
)

// New creates a logger configured per the application config.
func New(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(parseLevel(cfg.LogLevel))

	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogsDirectory, cfg.AppName+".log"),
			MaxSize:    cfg.LogsMaxSizeInMb,
			MaxBackups: cfg.LogsMaxBackups,
			MaxAge:     cfg.LogsMaxAgeInDays,
			Compress:   true,
		}))
		return log
	}

	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	return log
}

func parseLevel(level config.LogLevel) logrus.Level {
	switch level {
	case config.LogLevelDebug:
		return logrus.DebugLevel
	case config.LogLevelInfo:
		return logrus.InfoLevel
	case config.LogLevelWarn:
		return logrus.WarnLevel
	case config.LogLevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
