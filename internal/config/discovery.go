package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoConfig is returned by DiscoverConfigPath when no location has a config.
var ErrNoConfig = errors.New("no config found (checked: --config, $GPIOGW_CONFIG_DIR, ~/.config/gpiogw, /etc/gpiogw, ./config.yaml)")

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: explicit path, $GPIOGW_CONFIG_DIR, ~/.config/gpiogw,
// /etc/gpiogw, ./config.yaml. Directories resolve to their config.yaml.
func DiscoverConfigPath(explicit string) (string, error) {
	if explicit != "" {
		path := resolveConfigFile(explicit)
		if !fileExists(path) {
			return "", fmt.Errorf("config file not found: %s", path)
		}
		return path, nil
	}

	var candidates []string
	if dir := os.Getenv("GPIOGW_CONFIG_DIR"); dir != "" {
		candidates = append(candidates, dir)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "gpiogw"))
	}
	candidates = append(candidates, "/etc/gpiogw", "./config.yaml")

	for _, c := range candidates {
		if path := resolveConfigFile(c); fileExists(path) {
			return path, nil
		}
	}
	return "", ErrNoConfig
}

func resolveConfigFile(path string) string {
	if dirExists(path) {
		return filepath.Join(path, "config.yaml")
	}
	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
