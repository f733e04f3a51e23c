// Package skill manages the reusable instruction snippets that can be
// injected into provider prompts, stored as JSON documents on disk.
package skill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dagent-ai/dagent/internal/logging"
	"github.com/dagent-ai/dagent/internal/storage"
)

// Skill is one stored instruction snippet.
type Skill struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Summary is the listing view of a skill, without its content.
type Summary struct {
	ID          string
	Name        string
	Description string
	UpdatedAt   int64
}

// Store is the file-backed skill collection. An fsnotify watcher keeps
// the in-memory cache fresh when skill files change on disk.
type Store struct {
	root  string
	files *storage.Store

	mu      sync.Mutex
	cache   []Skill
	dirty   bool
	watcher *fsnotify.Watcher
}

// Open opens (creating if needed) the skill directory at root.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create skills dir: %w", err)
	}
	return &Store{
		root:  root,
		files: storage.New(root),
		dirty: true,
	}, nil
}

// Watch starts invalidating the cache when skill files change on disk.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.root); err != nil {
		watcher.Close()
		return fmt.Errorf("watch skills dir: %w", err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if strings.HasSuffix(ev.Name, ".json") {
					s.mu.Lock()
					s.dirty = true
					s.mu.Unlock()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn().Err(err).Msg("skill watcher error")
			}
		}
	}()
	return nil
}

// Close stops the watcher, if running.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}

// Count returns the number of stored skills.
func (s *Store) Count(ctx context.Context) (int, error) {
	skills, err := s.loadAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(skills), nil
}

// List returns summaries of every skill, sorted by id.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	skills, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(skills))
	for _, sk := range skills {
		out = append(out, Summary{
			ID:          sk.ID,
			Name:        sk.Name,
			Description: sk.Description,
			UpdatedAt:   sk.UpdatedAt,
		})
	}
	return out, nil
}

// Get retrieves one skill by raw id. A nil skill means not found.
func (s *Store) Get(ctx context.Context, rawID string) (*Skill, error) {
	id := NormalizeID(rawID)
	if id == "" {
		return nil, nil
	}

	var sk Skill
	err := s.files.Get(ctx, []string{id}, &sk)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read skill %s: %w", id, err)
	}
	return &sk, nil
}

// Create stores a new skill. The id is normalized from rawID.
func (s *Store) Create(ctx context.Context, rawID, name, description, content string) (*Skill, error) {
	id := NormalizeID(rawID)
	if id == "" {
		return nil, fmt.Errorf("invalid skill id: %s", strings.TrimSpace(rawID))
	}
	if s.files.Exists(ctx, []string{id}) {
		return nil, fmt.Errorf("skill already exists: %s", id)
	}

	now := time.Now().Unix()
	sk := Skill{
		ID:          id,
		Name:        sanitizeLine(name),
		Description: sanitizeLine(description),
		Content:     sanitizeBlock(content),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validate(sk); err != nil {
		return nil, err
	}
	if err := s.put(ctx, sk); err != nil {
		return nil, err
	}
	return &sk, nil
}

// Update modifies an existing skill. Nil fields are left unchanged; a
// blank name or content update is ignored rather than erased.
func (s *Store) Update(ctx context.Context, rawID string, name, description, content *string) (*Skill, error) {
	id := NormalizeID(rawID)
	if id == "" {
		return nil, fmt.Errorf("invalid skill id: %s", strings.TrimSpace(rawID))
	}

	sk, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sk == nil {
		return nil, fmt.Errorf("skill not found: %s", id)
	}

	if name != nil {
		if cleaned := sanitizeLine(*name); cleaned != "" {
			sk.Name = cleaned
		}
	}
	if description != nil {
		sk.Description = sanitizeLine(*description)
	}
	if content != nil {
		if cleaned := sanitizeBlock(*content); cleaned != "" {
			sk.Content = cleaned
		}
	}
	sk.UpdatedAt = time.Now().Unix()

	if err := validate(*sk); err != nil {
		return nil, err
	}
	if err := s.put(ctx, *sk); err != nil {
		return nil, err
	}
	return sk, nil
}

// Delete removes a skill. Returns false when it did not exist.
func (s *Store) Delete(ctx context.Context, rawID string) (bool, error) {
	id := NormalizeID(rawID)
	if id == "" {
		return false, nil
	}
	if !s.files.Exists(ctx, []string{id}) {
		return false, nil
	}
	if err := s.files.Delete(ctx, []string{id}); err != nil {
		return false, fmt.Errorf("delete skill %s: %w", id, err)
	}

	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
	return true, nil
}

// SearchRelevant scores skills against the query terms: metadata hits
// weigh three times content hits. Ties break by recency, then id.
func (s *Store) SearchRelevant(ctx context.Context, query string, limit int) ([]Skill, error) {
	terms := tokenizeTerms(query)
	if len(terms) == 0 || limit == 0 {
		return nil, nil
	}

	skills, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		score int
		skill Skill
	}
	var hits []scored
	for _, sk := range skills {
		meta := sk.ID + " " + strings.ToLower(sk.Name) + " " + strings.ToLower(sk.Description)
		content := strings.ToLower(sk.Content)
		score := 0
		for _, term := range terms {
			if strings.Contains(meta, term) {
				score += 3
			}
			if strings.Contains(content, term) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{score: score, skill: sk})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if hits[i].skill.UpdatedAt != hits[j].skill.UpdatedAt {
			return hits[i].skill.UpdatedAt > hits[j].skill.UpdatedAt
		}
		return hits[i].skill.ID < hits[j].skill.ID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Skill, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.skill)
	}
	return out, nil
}

// ResolveExplicitRefs resolves @skill:<id> style references in a prompt
// to stored skills, first-seen order, capped at limit.
func (s *Store) ResolveExplicitRefs(ctx context.Context, prompt string, limit int) ([]Skill, error) {
	if limit == 0 {
		return nil, nil
	}

	var out []Skill
	for _, id := range ExtractRefs(prompt) {
		if len(out) >= limit {
			break
		}
		sk, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if sk != nil {
			out = append(out, *sk)
		}
	}
	return out, nil
}

func (s *Store) put(ctx context.Context, sk Skill) error {
	if err := s.files.Put(ctx, []string{sk.ID}, sk); err != nil {
		return fmt.Errorf("write skill %s: %w", sk.ID, err)
	}

	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
	return nil
}

func (s *Store) loadAll(ctx context.Context) ([]Skill, error) {
	s.mu.Lock()
	if !s.dirty {
		cached := make([]Skill, len(s.cache))
		copy(cached, s.cache)
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	var skills []Skill
	err := s.files.Scan(ctx, nil, func(key string, data json.RawMessage) error {
		var sk Skill
		if err := json.Unmarshal(data, &sk); err != nil {
			return nil // skip unparseable files
		}
		if NormalizeID(sk.ID) == "" {
			return nil
		}
		skills = append(skills, sk)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan skills: %w", err)
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i].ID < skills[j].ID })

	s.mu.Lock()
	s.cache = skills
	s.dirty = false
	s.mu.Unlock()
	return skills, nil
}

func validate(sk Skill) error {
	if strings.TrimSpace(sk.ID) == "" {
		return errors.New("skill id cannot be empty")
	}
	if strings.TrimSpace(sk.Name) == "" {
		return errors.New("skill name cannot be empty")
	}
	if strings.TrimSpace(sk.Content) == "" {
		return errors.New("skill content cannot be empty")
	}
	return nil
}
