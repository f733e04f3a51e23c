// Package types holds shared configuration and identity types.
package types

// Config is the process-wide configuration, assembled once at startup from
// config files and DAGENT_* environment overrides. Read-only afterwards.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty"`

	// Primary provider used when a message carries no explicit mention.
	Primary ProviderID `json:"primary,omitempty"`

	// Decompose enables the best-effort multi-agent task decomposition
	// preparatory call. Defaults to true.
	Decompose *bool `json:"decompose,omitempty"`

	// DedupWindowSeconds bounds the rolling window used to suppress
	// duplicate cross-provider progress lines. 0 means the default.
	DedupWindowSeconds int `json:"dedupWindowSeconds,omitempty"`

	// DecomposeTimeoutSeconds bounds the decomposition preparatory call.
	// 0 means the default.
	DecomposeTimeoutSeconds int `json:"decomposeTimeoutSeconds,omitempty"`

	// LogLevel is one of DEBUG|INFO|WARN|ERROR|FATAL.
	LogLevel string `json:"logLevel,omitempty"`

	// Provider holds per-provider overrides keyed by provider id.
	Provider map[string]ProviderConfig `json:"provider,omitempty"`
}

// ProviderConfig holds per-provider invocation defaults.
type ProviderConfig struct {
	// Executable overrides the binary name looked up on PATH.
	Executable string `json:"executable,omitempty"`

	// PermissionMode is passed to claude's --permission-mode flag.
	PermissionMode string `json:"permissionMode,omitempty"`

	// AllowedTools is passed to claude's --allowedTools flag.
	AllowedTools []string `json:"allowedTools,omitempty"`

	// ApprovalPolicy is passed to codex's --ask-for-approval flag.
	ApprovalPolicy string `json:"approvalPolicy,omitempty"`

	// SandboxMode is passed to codex's -s flag.
	SandboxMode string `json:"sandboxMode,omitempty"`

	// Approval controls the operator approval gate for risky actions
	// surfaced by this provider: "allow" | "deny" | "ask".
	Approval string `json:"approval,omitempty"`

	// Commands maps shell command patterns ("git push *", "rm *", "*")
	// to a per-command gate action, overriding Approval for matching
	// commands.
	Commands map[string]string `json:"commands,omitempty"`

	// Disable removes the provider from the registry.
	Disable bool `json:"disable,omitempty"`
}

// DecompositionEnabled reports the effective decomposition toggle.
func (c *Config) DecompositionEnabled() bool {
	if c.Decompose == nil {
		return true
	}
	return *c.Decompose
}
