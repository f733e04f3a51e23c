package provider

import (
	"errors"
	"strings"

	"github.com/dagent-ai/dagent/pkg/types"
)

// quotaMarkers are the lowercase substrings that classify provider output
// as quota or rate-limit exhaustion.
var quotaMarkers = []string{
	"hit your limit",
	"rate_limit",
	"rate limit",
	"quota",
	"credit balance is too low",
	"insufficient credits",
	"usage limit",
}

// IsQuotaText reports whether text reads as a quota/rate-limit failure.
func IsQuotaText(text string) bool {
	t := strings.ToLower(text)
	for _, marker := range quotaMarkers {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}

// QuotaError marks a run failure caused by quota/rate-limit exhaustion.
// The failover policy promotes an alternate primary on this class only.
type QuotaError struct {
	Provider types.ProviderID
	Message  string
}

func (e *QuotaError) Error() string {
	return e.Message
}

// IsQuotaError reports whether err classifies as quota exhaustion,
// either as a typed QuotaError or by its message text.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var qe *QuotaError
	if errors.As(err, &qe) {
		return true
	}
	return IsQuotaText(err.Error())
}
