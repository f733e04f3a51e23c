// Package memory persists the shared session transcript in SQLite and
// builds the bounded context block prepended to provider prompts.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	recentLimit      = 2
	searchLimit      = 8
	contextCharLimit = 2000
	maxLineChars     = 500
	maxPreviewChars  = 180
	maxQueryTerms    = 8
)

// Message is one stored transcript entry.
type Message struct {
	ID      int64
	Role    string // user | assistant | system
	Agent   string // provider name for assistant messages, else empty
	Content string
}

// Store is the SQLite-backed session memory.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the memory database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS messages (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  session_id TEXT NOT NULL,
	  role TEXT NOT NULL,
	  agent TEXT,
	  content TEXT NOT NULL,
	  created_at INTEGER NOT NULL DEFAULT (unixepoch())
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session_id_id
	  ON messages(session_id, id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init memory schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendMessage records one transcript entry. Blank content is dropped.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, agent, content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}

	var agentVal any
	if agent != "" {
		agentVal = agent
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages(session_id, role, agent, content) VALUES (?, ?, ?, ?)",
		sessionID, role, agentVal, trimmed)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Clear removes every entry of one session.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Count returns the number of entries stored for a session.
func (s *Store) Count(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count session messages: %w", err)
	}
	return count, nil
}

// Prune deletes all but the most recent keep entries of a session and
// returns how many rows were removed.
func (s *Store) Prune(ctx context.Context, sessionID string, keep int) (int, error) {
	if keep <= 0 {
		res, err := s.db.ExecContext(ctx,
			"DELETE FROM messages WHERE session_id = ?", sessionID)
		if err != nil {
			return 0, fmt.Errorf("prune session: %w", err)
		}
		n, _ := res.RowsAffected()
		return int(n), nil
	}

	var cutoff int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT 1 OFFSET ?",
		sessionID, keep-1).Scan(&cutoff)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query prune cutoff: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE session_id = ? AND id < ?", sessionID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune session: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RecentLines returns preview lines for the newest entries of a session,
// oldest first.
func (s *Store) RecentLines(ctx context.Context, sessionID string, limit int) ([]string, error) {
	items, err := s.recentMessages(ctx, sessionID, max(limit, 1))
	if err != nil {
		return nil, err
	}

	var out []string
	for _, item := range items {
		if line, ok := formatPreviewLine(item); ok {
			out = append(out, fmt.Sprintf("#%d %s", item.ID, line))
		}
	}
	return out, nil
}

// SearchLines returns preview lines for entries matching the query
// terms, in id order.
func (s *Store) SearchLines(ctx context.Context, sessionID, query string, limit int) ([]string, error) {
	terms := normalizeTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	items, err := s.searchMessages(ctx, sessionID, terms, max(limit, 1))
	if err != nil {
		return nil, err
	}

	var out []string
	for _, item := range items {
		if line, ok := formatPreviewLine(item); ok {
			out = append(out, fmt.Sprintf("#%d %s", item.ID, line))
		}
	}
	return out, nil
}

// BuildContext prefixes the prompt with relevant session memory, bounded
// by a character budget. The newest entries win when the budget is
// tight; an entry repeating the current prompt is skipped once.
func (s *Store) BuildContext(ctx context.Context, sessionID, prompt string) (string, error) {
	items, err := s.recentMessages(ctx, sessionID, recentLimit)
	if err != nil {
		return "", err
	}

	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		seen[item.ID] = true
	}

	if terms := normalizeTerms(prompt); len(terms) > 0 {
		hits, err := s.searchMessages(ctx, sessionID, terms, searchLimit)
		if err != nil {
			return "", err
		}
		for _, hit := range hits {
			if !seen[hit.ID] {
				seen[hit.ID] = true
				items = append(items, hit)
			}
		}
	}

	if len(items) == 0 {
		return prompt, nil
	}

	sortByID(items)

	promptNorm := squashWhitespace(strings.TrimSpace(prompt))
	var filtered []Message
	skippedCurrent := false
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		textNorm := squashWhitespace(strings.TrimSpace(item.Content))
		if !skippedCurrent && item.Role == "user" && promptNorm != "" && textNorm == promptNorm {
			skippedCurrent = true
			continue
		}
		filtered = append(filtered, item)
	}
	reverse(filtered)

	var lines []string
	for _, item := range filtered {
		if line, ok := formatLine(item); ok {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return prompt, nil
	}

	var selected []string
	used := 0
	for i := len(lines) - 1; i >= 0; i-- {
		delta := len(lines[i]) + 1
		if used+delta > contextCharLimit && len(selected) > 0 {
			break
		}
		used += delta
		selected = append(selected, lines[i])
	}
	reverse(selected)

	return fmt.Sprintf("Shared session memory:\n%s\n\nCurrent user request:\n%s",
		strings.Join(selected, "\n"), prompt), nil
}

func (s *Store) recentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, COALESCE(agent, ''), content FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?",
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	items, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	reverse(items)
	return items, nil
}

// searchMessages scores entries by how many query terms they contain.
func (s *Store) searchMessages(ctx context.Context, sessionID string, terms []string, limit int) ([]Message, error) {
	var conds []string
	args := []any{sessionID}
	var score strings.Builder
	for i, term := range terms {
		conds = append(conds, "instr(lower(content), ?) > 0")
		if i > 0 {
			score.WriteString(" + ")
		}
		score.WriteString("(instr(lower(content), ?) > 0)")
		args = append(args, term)
	}
	for _, term := range terms {
		args = append(args, term)
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		"SELECT id, role, COALESCE(agent, ''), content FROM messages WHERE session_id = ? AND (%s) ORDER BY (%s) DESC, id DESC LIMIT ?",
		strings.Join(conds, " OR "), score.String())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query search messages: %w", err)
	}
	defer rows.Close()

	items, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	sortByID(items)
	return items, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var items []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Agent, &m.Content); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
