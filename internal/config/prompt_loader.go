package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultPromptDir is the subdirectory within the user's home directory.
const defaultPromptDir = ".config/curator/prompts"

// LoadPromptContent resolves the path for a prompt template and reads its
// content. An absolute configuredPath is used directly; a relative or empty
// one is treated as a filename within ~/.config/curator/prompts/.
func LoadPromptContent(configuredPath, defaultFilename string) (string, error) {
	finalPath := configuredPath

	if !filepath.IsAbs(configuredPath) {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}

		filename := configuredPath
		if filename == "" {
			filename = defaultFilename
		}
		finalPath = filepath.Join(homeDir, defaultPromptDir, filename)

		if err := os.MkdirAll(filepath.Dir(finalPath), 0750); err != nil {
			return "", fmt.Errorf("failed to create default prompt directory %q: %w", filepath.Dir(finalPath), err)
		}
	}

	promptBytes, err := os.ReadFile(finalPath)
	if err != nil {
		if os.IsNotExist(err) && !filepath.IsAbs(configuredPath) {
			return "", fmt.Errorf("prompt file not found at default location %q; create it or set an absolute path in config.yaml: %w", finalPath, err)
		}
		return "", fmt.Errorf("failed to read prompt file %q: %w", finalPath, err)
	}
	return string(promptBytes), nil
}
