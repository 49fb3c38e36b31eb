// Package logger wraps github.com/charmbracelet/log with the
// LOG_LEVEL environment-variable convention used across the daemon.
package logger

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Logger is the package-wide structured logger.
var Logger *log.Logger

func init() {
	Logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Prefix:          "kloak",
	})
	SetLevel(os.Getenv("LOG_LEVEL"))
}

// SetLevel sets the log level from a string (case-insensitive),
// defaulting to info for an empty or unrecognized value.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		Logger.SetLevel(log.DebugLevel)
	case "WARN", "WARNING":
		Logger.SetLevel(log.WarnLevel)
	case "ERROR":
		Logger.SetLevel(log.ErrorLevel)
	case "FATAL":
		Logger.SetLevel(log.FatalLevel)
	default:
		Logger.SetLevel(log.InfoLevel)
	}
}

func Info(msg interface{}, keyvals ...interface{})  { Logger.Info(msg, keyvals...) }
func Debug(msg interface{}, keyvals ...interface{}) { Logger.Debug(msg, keyvals...) }
func Warn(msg interface{}, keyvals ...interface{})  { Logger.Warn(msg, keyvals...) }
func Error(msg interface{}, keyvals ...interface{}) { Logger.Error(msg, keyvals...) }
func Fatal(msg interface{}, keyvals ...interface{}) { Logger.Fatal(msg, keyvals...) }

func Infof(format string, args ...interface{})  { Logger.Infof(format, args...) }
func Debugf(format string, args ...interface{}) { Logger.Debugf(format, args...) }
func Warnf(format string, args ...interface{})  { Logger.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Logger.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { Logger.Fatalf(format, args...) }

// Get returns the package logger instance.
func Get() *log.Logger { return Logger }
