// Package config provides configuration loading and path management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/dagent-ai/dagent/pkg/types"
)

// Load loads configuration from multiple sources (priority order):
//  1. Global config (~/.dagent/)
//  2. XDG global config (~/.config/dagent/)
//  3. Project config (<dir>/dagent.json, <dir>/.dagent/)
//  4. DAGENT_CONFIG file
//  5. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{
		Provider: make(map[string]types.ProviderConfig),
	}

	loaded := make(map[string]bool)
	loadOnce := func(path string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config) == nil {
			loaded[absPath] = true
		}
	}

	if home := os.Getenv("HOME"); home != "" {
		homeDir := filepath.Join(home, ".dagent")
		loadOnce(filepath.Join(homeDir, "dagent.json"))
		loadOnce(filepath.Join(homeDir, "dagent.jsonc"))
	}

	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "dagent.json"))
	loadOnce(filepath.Join(globalPath, "dagent.jsonc"))

	if directory != "" {
		loadOnce(filepath.Join(directory, "dagent.json"))
		loadOnce(filepath.Join(directory, ".dagent", "dagent.json"))
	}

	if configPath := os.Getenv("DAGENT_CONFIG"); configPath != "" {
		loadOnce(configPath)
	}

	applyEnvOverrides(config)

	if config.Primary == "" {
		config.Primary = types.ProviderClaude
	}

	return config, nil
}

// loadConfigFile loads and merges a single jsonc config file.
func loadConfigFile(path string, config *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	data = jsonc.ToJSON(data)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// mergeConfig merges src into dst; src wins on conflict.
func mergeConfig(dst, src *types.Config) {
	if src.Primary != "" {
		dst.Primary = src.Primary
	}
	if src.Decompose != nil {
		dst.Decompose = src.Decompose
	}
	if src.DedupWindowSeconds != 0 {
		dst.DedupWindowSeconds = src.DedupWindowSeconds
	}
	if src.DecomposeTimeoutSeconds != 0 {
		dst.DecomposeTimeoutSeconds = src.DecomposeTimeoutSeconds
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	for id, pc := range src.Provider {
		merged := dst.Provider[id]
		if pc.Executable != "" {
			merged.Executable = pc.Executable
		}
		if pc.PermissionMode != "" {
			merged.PermissionMode = pc.PermissionMode
		}
		if len(pc.AllowedTools) > 0 {
			merged.AllowedTools = pc.AllowedTools
		}
		if pc.ApprovalPolicy != "" {
			merged.ApprovalPolicy = pc.ApprovalPolicy
		}
		if pc.SandboxMode != "" {
			merged.SandboxMode = pc.SandboxMode
		}
		if pc.Approval != "" {
			merged.Approval = pc.Approval
		}
		if len(pc.Commands) > 0 {
			if merged.Commands == nil {
				merged.Commands = make(map[string]string, len(pc.Commands))
			}
			for pattern, action := range pc.Commands {
				merged.Commands[pattern] = action
			}
		}
		if pc.Disable {
			merged.Disable = true
		}
		dst.Provider[id] = merged
	}
}

// applyEnvOverrides applies DAGENT_* environment variables (highest priority).
func applyEnvOverrides(config *types.Config) {
	if v := strings.TrimSpace(os.Getenv("DAGENT_PRIMARY")); v != "" {
		if id, ok := types.ParseProviderID(v); ok {
			config.Primary = id
		}
	}
	if v := os.Getenv("DAGENT_DECOMPOSE"); v != "" {
		enabled := ParseEnabledFlag(v)
		config.Decompose = &enabled
	}
	if v := os.Getenv("DAGENT_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("DAGENT_DEDUP_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			config.DedupWindowSeconds = n
		}
	}

	setProvider := func(id types.ProviderID, mutate func(*types.ProviderConfig)) {
		pc := config.Provider[string(id)]
		mutate(&pc)
		config.Provider[string(id)] = pc
	}

	if v := strings.TrimSpace(os.Getenv("DAGENT_CLAUDE_PERMISSION_MODE")); v != "" {
		setProvider(types.ProviderClaude, func(pc *types.ProviderConfig) { pc.PermissionMode = v })
	}
	if v := strings.TrimSpace(os.Getenv("DAGENT_CLAUDE_ALLOWED_TOOLS")); v != "" {
		tools := strings.Split(v, ",")
		for i := range tools {
			tools[i] = strings.TrimSpace(tools[i])
		}
		setProvider(types.ProviderClaude, func(pc *types.ProviderConfig) { pc.AllowedTools = tools })
	}
	if v := strings.TrimSpace(os.Getenv("DAGENT_CODEX_APPROVAL_POLICY")); v != "" {
		setProvider(types.ProviderCodex, func(pc *types.ProviderConfig) { pc.ApprovalPolicy = v })
	}
	if v := strings.TrimSpace(os.Getenv("DAGENT_CODEX_SANDBOX")); v != "" {
		setProvider(types.ProviderCodex, func(pc *types.ProviderConfig) { pc.SandboxMode = v })
	}
	for _, id := range types.KnownProviders() {
		envKey := "DAGENT_" + strings.ToUpper(string(id)) + "_APPROVAL"
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			setProvider(id, func(pc *types.ProviderConfig) { pc.Approval = v })
		}
	}
}

// ParseEnabledFlag interprets common boolean spellings; anything but an
// explicit negative counts as enabled.
func ParseEnabledFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "0", "false", "no", "off":
		return false
	}
	return true
}
