package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagent-ai/dagent/pkg/types"
)

var bothProviders = []types.ProviderID{types.ProviderClaude, types.ProviderCodex}

func TestParseDecompositionValid(t *testing.T) {
	response := "[claude]\nReview the API design.\n\n[codex]\nImplement the endpoint."

	tasks := parseDecomposition(response, bothProviders)
	require.NotNil(t, tasks)
	assert.Equal(t, "Review the API design.", tasks[types.ProviderClaude])
	assert.Equal(t, "Implement the endpoint.", tasks[types.ProviderCodex])
}

func TestParseDecompositionMultilineSubtasks(t *testing.T) {
	response := "[claude]\nline one\nline two\n\n[codex]\nsingle line"

	tasks := parseDecomposition(response, bothProviders)
	require.NotNil(t, tasks)
	assert.Equal(t, "line one\nline two", tasks[types.ProviderClaude])
}

func TestParseDecompositionWithPreamble(t *testing.T) {
	response := "Sure, here is the plan:\n[claude]\nanalyze\n[codex]\nbuild"

	tasks := parseDecomposition(response, bothProviders)
	require.NotNil(t, tasks)
	assert.Equal(t, "analyze", tasks[types.ProviderClaude])
	assert.Equal(t, "build", tasks[types.ProviderCodex])
}

func TestParseDecompositionRejectsIncomplete(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"missing provider", "[claude]\nonly one section"},
		{"empty response", ""},
		{"empty subtask", "[claude]\n\n[codex]\nbuild"},
		{"unknown sections only", "[alpha]\na\n[beta]\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, parseDecomposition(tt.response, bothProviders))
		})
	}
}

func TestExtractSectionHeader(t *testing.T) {
	assert.Equal(t, "claude", extractSectionHeader("[claude]"))
	assert.Equal(t, "codex", extractSectionHeader("[ codex ]"))
	assert.Empty(t, extractSectionHeader("[claude] trailing"))
	assert.Empty(t, extractSectionHeader("[]"))
	assert.Empty(t, extractSectionHeader("no header"))
	assert.Empty(t, extractSectionHeader("[unclosed"))
}

func TestFormatDecompositionSummary(t *testing.T) {
	tasks := map[types.ProviderID]string{
		types.ProviderClaude: "review\nthe   plan",
		types.ProviderCodex:  strings.Repeat("x", 300),
	}

	summary := formatDecompositionSummary(tasks, bothProviders)
	lines := strings.Split(summary, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "multi-agent plan:", lines[0])
	assert.Equal(t, "- claude: review the plan", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "- codex: xxx"))
	assert.True(t, strings.HasSuffix(lines[2], "..."))
}

func TestBuildAgentPromptIncludesCoordination(t *testing.T) {
	tasks := map[types.ProviderID]string{
		types.ProviderClaude: "review it",
		types.ProviderCodex:  "build it",
	}

	prompt := buildAgentPrompt("ship feature", types.ProviderClaude, "review it", tasks, bothProviders)
	assert.Contains(t, prompt, "OVERALL TASK: ship feature")
	assert.Contains(t, prompt, "YOUR ASSIGNMENT (you are claude): review it")
	assert.Contains(t, prompt, "- codex is working on: build it")
	assert.Contains(t, prompt, "Do not duplicate work")
	assert.NotContains(t, prompt, "- claude is working on")
}

func TestBuildDecompositionPromptListsAgents(t *testing.T) {
	prompt := buildDecompositionPrompt("do the thing", bothProviders)
	assert.Contains(t, prompt, "do the thing")
	assert.Contains(t, prompt, "[claude]")
	assert.Contains(t, prompt, "[codex]")
	assert.Contains(t, prompt, "Only use agents: claude, codex")
}

func TestPlannerOrder(t *testing.T) {
	order := plannerOrder(bothProviders, types.ProviderCodex)
	assert.Equal(t, []types.ProviderID{types.ProviderCodex, types.ProviderClaude}, order)

	order = plannerOrder(bothProviders, types.ProviderID("other"))
	assert.Equal(t, bothProviders, order)
}

func TestClipRunes(t *testing.T) {
	assert.Equal(t, "short", clipRunes("short", 10))
	assert.Equal(t, "abc...", clipRunes("abcdef", 3))
}
