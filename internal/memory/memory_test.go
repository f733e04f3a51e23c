package memory

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "s1", "user", "", "hello"))
	require.NoError(t, store.AppendMessage(ctx, "s1", "assistant", "claude", "hi there"))
	require.NoError(t, store.AppendMessage(ctx, "s1", "user", "", "   "))
	require.NoError(t, store.AppendMessage(ctx, "s2", "user", "", "other session"))

	count, err := store.Count(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, count) // blank content dropped
}

func TestClearSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "s1", "user", "", "hello"))
	require.NoError(t, store.AppendMessage(ctx, "s2", "user", "", "keep me"))

	require.NoError(t, store.Clear(ctx, "s1"))

	count, err := store.Count(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = store.Count(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPruneKeepsRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, msg := range []string{"one", "two", "three", "four"} {
		require.NoError(t, store.AppendMessage(ctx, "s1", "user", "", msg))
	}

	deleted, err := store.Prune(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	lines, err := store.RecentLines(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "three")
	assert.Contains(t, lines[1], "four")
}

func TestPruneZeroClearsAll(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "s1", "user", "", "one"))
	require.NoError(t, store.AppendMessage(ctx, "s1", "user", "", "two"))

	deleted, err := store.Prune(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}

func TestSearchLines(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "s1", "user", "", "refactor the parser module"))
	require.NoError(t, store.AppendMessage(ctx, "s1", "assistant", "codex", "parser refactor done"))
	require.NoError(t, store.AppendMessage(ctx, "s1", "user", "", "unrelated note about lunch"))

	lines, err := store.SearchLines(ctx, "s1", "parser", 8)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "user: refactor the parser module")
	assert.Contains(t, lines[1], "assistant(codex): parser refactor done")
}

func TestSearchLinesEmptyQuery(t *testing.T) {
	store := openTestStore(t)

	lines, err := store.SearchLines(context.Background(), "s1", "!!", 8)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestBuildContextEmptySession(t *testing.T) {
	store := openTestStore(t)

	out, err := store.BuildContext(context.Background(), "s1", "do the thing")
	require.NoError(t, err)
	assert.Equal(t, "do the thing", out)
}

func TestBuildContextIncludesRecentAndSkipsCurrentPrompt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "s1", "user", "", "set up the database"))
	require.NoError(t, store.AppendMessage(ctx, "s1", "assistant", "claude", "database ready"))
	// The current prompt is usually already appended before dispatch.
	require.NoError(t, store.AppendMessage(ctx, "s1", "user", "", "now add the schema"))

	out, err := store.BuildContext(ctx, "s1", "now add the schema")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "Shared session memory:\n"))
	assert.True(t, strings.HasSuffix(out, "\n\nCurrent user request:\nnow add the schema"))
	assert.Contains(t, out, "assistant(claude): database ready")
	// The echo of the current prompt is skipped, not shown as memory.
	assert.Equal(t, 1, strings.Count(out, "now add the schema"))
}

func TestBuildContextBudget(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := strings.Repeat("a", 400)
	recent := strings.Repeat("b", 400)
	for i := 0; i < 6; i++ {
		require.NoError(t, store.AppendMessage(ctx, "s1", "assistant", "claude", old))
	}
	require.NoError(t, store.AppendMessage(ctx, "s1", "assistant", "claude", recent))

	out, err := store.BuildContext(ctx, "s1", "short prompt")
	require.NoError(t, err)

	// The newest entry always survives the budget.
	assert.Contains(t, out, recent)
	assert.LessOrEqual(t, len(out), contextCharLimit+len("Shared session memory:\n\n\nCurrent user request:\nshort prompt")+64)
}

func TestNormalizeTerms(t *testing.T) {
	assert.Equal(t, []string{"fix", "the", "parser"}, normalizeTerms("Fix the parser! fix"))
	assert.Nil(t, normalizeTerms("a ! ?"))

	many := normalizeTerms("one two three four five six seven eight nine ten")
	assert.Len(t, many, maxQueryTerms)
}

func TestFormatLineKeepsBlockStructure(t *testing.T) {
	item := Message{
		ID:      1,
		Role:    "assistant",
		Agent:   "codex",
		Content: "first line\n\n  second   line ",
	}

	line, ok := formatLine(item)
	require.True(t, ok)
	assert.Equal(t, "assistant(codex): first line\n                  second line", line)
}

func TestFormatLineClips(t *testing.T) {
	item := Message{ID: 2, Role: "user", Content: strings.Repeat("x", maxLineChars+5)}

	line, ok := formatLine(item)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(line, "user: "))
	assert.True(t, strings.HasSuffix(line, "..."))
}

func TestFormatPreviewLineFlattens(t *testing.T) {
	item := Message{
		ID:      3,
		Role:    "assistant",
		Agent:   "claude",
		Content: "first line\n\n  second   line",
	}

	line, ok := formatPreviewLine(item)
	require.True(t, ok)
	assert.Equal(t, "assistant(claude): first line second line", line)
}
