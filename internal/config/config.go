package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Config holds the user-level configuration
type Config struct {
	// LogLevel controls logging verbosity: debug, info, warn, error, none
	LogLevel string `json:"log_level"`
	// LogPath is where log output is written
	LogPath string `json:"log_path"`

	// Tone is the default conversation tone: Precise, Creative or Balanced
	Tone string `json:"tone"`
	// Citations extracts answer text from the rich-card body (keeps citation markers)
	Citations bool `json:"citations"`
	// Suggestions surfaces follow-up prompts with the final answer
	Suggestions bool `json:"suggestions"`
	// CloseAfterResponse closes the channel after each answer
	CloseAfterResponse bool `json:"close_after_response"`

	// CreateURL overrides the conversation-create endpoint (testing only)
	CreateURL string `json:"create_url,omitempty"`
	// ChatHubURL overrides the chat hub websocket endpoint (testing only)
	ChatHubURL string `json:"chathub_url,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Tone:     "Balanced",
	}
}

// Load loads configuration from the given path, falling back to defaults for
// a missing file or missing fields.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogPath == "" {
		config.LogPath = filepath.Join(defaultStateDir(), "sydney.log")
	}
	if config.Tone == "" {
		config.Tone = "Balanced"
	}

	return config, nil
}

// Save writes the configuration to the given path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "sydney")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "sydney")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "sydney")
	}
}

func defaultStateDir() string {
	if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
		return filepath.Join(stateHome, "sydney")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".local", "state", "sydney")
}
