package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Names a config file may have, in order of preference. The JSON name
// is the legacy preferences file.
var fileNames = []string{"config.toml", "preferences.json"}

// DefaultPath returns the XDG-compliant default config path.
func DefaultPath() string {
	return filepath.Join(configDir(), fileNames[0])
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "galleria")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "galleria")
}

// Discover returns the first existing config file. GALLERIA_CONFIG wins;
// otherwise each file name is tried in the working directory, the user
// config directory and /etc/galleria.
func Discover() (string, error) {
	if envPath := os.Getenv("GALLERIA_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("GALLERIA_CONFIG=%s: %w", envPath, err)
		}
		return envPath, nil
	}

	var checked []string
	for _, dir := range []string{".", configDir(), "/etc/galleria"} {
		for _, name := range fileNames {
			p := filepath.Join(dir, name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
			checked = append(checked, p)
		}
	}
	return "", fmt.Errorf("config not found, checked: %s", strings.Join(checked, ", "))
}
