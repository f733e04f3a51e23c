package config

import (
	"os"
	"path/filepath"
)

// Paths contains the standard paths for dagent data.
type Paths struct {
	Data   string // ~/.local/share/dagent
	Config string // ~/.config/dagent
	State  string // ~/.local/state/dagent
}

// GetPaths returns the standard paths for dagent data.
func GetPaths() *Paths {
	return &Paths{
		Data:   filepath.Join(getEnvOrDefault("XDG_DATA_HOME", filepath.Join(os.Getenv("HOME"), ".local", "share")), "dagent"),
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", filepath.Join(os.Getenv("HOME"), ".config")), "dagent"),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", filepath.Join(os.Getenv("HOME"), ".local", "state")), "dagent"),
	}
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.State} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// StoragePath returns the path to the storage directory.
func (p *Paths) StoragePath() string {
	return filepath.Join(p.Data, "storage")
}

// MemoryPath returns the path to the session memory database.
func (p *Paths) MemoryPath() string {
	return filepath.Join(p.Data, "memory.db")
}

// SkillsPath returns the path to the skills directory.
func (p *Paths) SkillsPath() string {
	return filepath.Join(p.Data, "skills")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
