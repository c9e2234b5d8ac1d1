package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/muesli/termenv"
)

// logFile is the open log file, nil until setupLog succeeds.
var logFile *os.File

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "sparkle").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sparkle.log"), nil
}

// setupLog sends log output to a file so it doesn't draw over the TUI.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)

	path, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		// log disabled
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return nil, err
	}
	logFile = f
	log.SetOutput(f)
	log.SetColorProfile(termenv.Ascii)
	log.SetReportTimestamp(true)
	log.SetLevel(log.InfoLevel)
	return f.Close, nil
}

// logToStderr mirrors the log file on stderr for commands that don't own
// the terminal screen.
func logToStderr() {
	if logFile == nil {
		log.SetOutput(os.Stderr)
		return
	}
	log.SetOutput(io.MultiWriter(logFile, os.Stderr))
}

func setLogLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}
