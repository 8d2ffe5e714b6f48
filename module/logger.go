package module

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	MAX_LOG_FILES   = 3
	LOG_FILE_LAYOUT = "20060102-150405"
)

// SetLogger builds a logger writing to stdout and to a new timestamped file
// under dir. Debug mode uses the coloured console encoder, otherwise JSON.
// Old files are pruned so that at most MAX_LOG_FILES remain.
func SetLogger(dir string, level zapcore.Level, isDebug bool) (*zap.Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	if err := pruneLogs(dir, MAX_LOG_FILES-1); err != nil {
		return nil, err
	}

	var logConf zap.Config
	logPath := filepath.Join(dir, time.Now().Format(LOG_FILE_LAYOUT)+".log")
	if isDebug {
		logConf = zap.NewDevelopmentConfig()
		logConf.Encoding = "console"
		logConf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		logConf = zap.NewProductionConfig()
		logConf.Encoding = "json"
		logConf.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	logConf.Level = zap.NewAtomicLevelAt(level)
	logConf.OutputPaths = append(logConf.OutputPaths, logPath)

	logger, err := logConf.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// pruneLogs removes the oldest files in dir until at most keep remain.
func pruneLogs(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read log directory %s: %w", dir, err)
	}

	type logFile struct {
		path    string
		modTime time.Time
	}
	var files []logFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	if len(files) <= keep {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	for _, f := range files[:len(files)-keep] {
		if err := os.Remove(f.path); err != nil {
			return fmt.Errorf("failed to delete old log file %s: %w", f.path, err)
		}
	}
	return nil
}
