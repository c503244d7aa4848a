// Package logger builds the named logrus loggers used across gigmatch.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger names
const (
	App   = "app"
	Sweep = "sweep"
	HTTP  = "http"
)

// Config controls level, format and destination of every logger.
type Config struct {
	Level      string // logrus level name
	Format     string // "text" or "json"
	Output     string // "stdout", "file" or "both"
	Path       string // directory for file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig logs info and above as text to stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "text",
		Output:     "stdout",
		Path:       "logs",
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
	}
}

var (
	loggers   = make(map[string]*logrus.Logger)
	loggersMu sync.Mutex
	config    *Config
)

// Init sets the configuration for loggers created afterwards and drops cached ones.
func Init(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	config = cfg
	loggers = make(map[string]*logrus.Logger)
	return nil
}

// GetLogger returns the logger registered under name, creating it on first use.
func GetLogger(name string) *logrus.Logger {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if config == nil {
		config = DefaultConfig()
	}
	if l, ok := loggers[name]; ok {
		return l
	}
	l := newLogger(name, config)
	loggers[name] = l
	return l
}

// GetAppLogger returns the main application logger.
func GetAppLogger() *logrus.Logger {
	return GetLogger(App)
}

// GetSweepLogger returns the logger used by the expiry sweep.
func GetSweepLogger() *logrus.Logger {
	return GetLogger(Sweep)
}

// GetHTTPLogger returns the request logger.
func GetHTTPLogger() *logrus.Logger {
	return GetLogger(HTTP)
}

func newLogger(name string, cfg *Config) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}

	var writers []io.Writer
	if cfg.Output == "file" || cfg.Output == "both" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Path, name+".log"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}
	if cfg.Output != "file" {
		writers = append(writers, os.Stdout)
	}
	l.SetOutput(io.MultiWriter(writers...))

	return l
}
