package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrSettingsNotFound = errors.New("settings file not found")

// SettingsFiles are the names looked up in each resolution directory
var SettingsFiles = []string{"troupe.json", "troupe.yaml", "troupe.yml", "troupe.toml"}

// ResolveSettingsPath finds the settings file. TROUPE_CONFIG_PATH wins,
// then each resolution directory is searched in order.
func ResolveSettingsPath(files ...string) (string, error) {
	if value, exists := os.LookupEnv("TROUPE_CONFIG_PATH"); exists && value != "" {
		return value, nil
	}
	if len(files) == 0 {
		files = SettingsFiles
	}

	lookup := getResolutionPath()

	for _, dir := range lookup {
		for _, file := range files {
			path := filepath.Join(dir, file)
			stat, err := os.Stat(path)
			if err == nil && !stat.IsDir() {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("%w in %v", ErrSettingsNotFound, lookup)
}

func getBaseResolutionPath() []string {
	var paths []string

	if dir, err := os.Getwd(); err == nil {
		paths = append(paths, dir)
	}

	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "troupe"))
	}

	return paths
}
