package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

var logFile *os.File

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "epub2m4b").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "epub2m4b.log"), nil
}

func setupLog() (func() error, error) {
	log.SetOutput(os.Stderr)
	return func() error {
		if logFile == nil {
			return nil
		}
		return logFile.Close()
	}, nil
}

// logToFile moves logging off the terminal while the progress view owns it.
func logToFile() (string, error) {
	path, err := getLogFilePath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return "", fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}
	logFile = f
	log.SetOutput(f)
	log.SetReportTimestamp(true)
	return path, nil
}
