package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment
// variables first.
// Environment variables:
//   - LISTWATCH_CONFIG_PATH: config file location (default: ~/.config/listwatch.toml)
//   - LISTWATCH_HOME: base directory for listwatch data (default: ~/.local/share/listwatch)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking LISTWATCH_CONFIG_PATH
// first, then falling back to ~/.config/listwatch.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("LISTWATCH_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "listwatch.toml"), nil
}

// getBaseDir returns the base data directory, checking LISTWATCH_HOME
// first, then falling back to the XDG default ~/.local/share/listwatch.
func getBaseDir() (string, error) {
	if path := os.Getenv("LISTWATCH_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "listwatch"), nil
}
