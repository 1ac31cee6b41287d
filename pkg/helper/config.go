package helper

import (
	"os"
	"path/filepath"
)

// GetCfgPath returns the path to the configuration file.
//
// Priority:
// 1. If filename is an absolute path, return it directly.
// 2. Check ./{filename} and ./configs/{filename}
// 3. Otherwise, fallback to /etc/algoroom/{filename}
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}

	if filepath.IsAbs(filename) {
		return filename
	}

	if found := findInWorkDir(filename, ".", "configs"); found != "" {
		return found
	}

	// fallback
	return filepath.Join("/etc/algoroom", filename)
}

// findInWorkDir returns the absolute path of the first existing
// {cwd}/{dir}/{filename}, or "" if none exists
func findInWorkDir(filename string, dirs ...string) string {
	currentDir, err := os.Getwd()
	if err != nil || currentDir == "" {
		return ""
	}

	for _, dir := range dirs {
		candidatePath := filepath.Join(currentDir, dir, filename)
		if _, err := os.Stat(candidatePath); err != nil {
			continue
		}
		if absPath, err := filepath.Abs(candidatePath); err == nil {
			return absPath
		}
	}
	return ""
}
