package types

// ProviderID identifies one configured agent CLI family.
type ProviderID string

const (
	ProviderClaude ProviderID = "claude"
	ProviderCodex  ProviderID = "codex"
)

// KnownProviders returns the closed set of provider identifiers, in the
// default dispatch order.
func KnownProviders() []ProviderID {
	return []ProviderID{ProviderClaude, ProviderCodex}
}

// ParseProviderID resolves a provider name to its identifier.
func ParseProviderID(name string) (ProviderID, bool) {
	switch name {
	case "claude":
		return ProviderClaude, true
	case "codex":
		return ProviderCodex, true
	}
	return "", false
}

func (p ProviderID) String() string {
	return string(p)
}
