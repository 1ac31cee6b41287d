package helper

import (
	"fmt"
	"os"
	"path/filepath"
)

const defaultPIDPath = "/var/run/algoroom.pid"

// GetPIDPath returns the path to the PID file.
//
// An absolute filename is returned as is. A relative one resolves against the
// working directory when its parent directory exists, otherwise the default
// /var/run path is used. An empty filename yields the default.
func GetPIDPath(filename string) string {
	if filename == "" {
		return defaultPIDPath
	}
	if filepath.IsAbs(filename) {
		return filename
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return defaultPIDPath
	}
	if _, err := os.Stat(filepath.Dir(absPath)); err != nil {
		return defaultPIDPath
	}
	return absPath
}

// WritePIDFile writes the current process ID to path, creating its directory
func WritePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// RemovePIDFile removes the PID file, ignoring a file that is already gone
func RemovePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
