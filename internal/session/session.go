// Package session records the shared conversation transcript so a
// session can be restored across process restarts.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dagent-ai/dagent/internal/event"
	"github.com/dagent-ai/dagent/internal/storage"
	"github.com/dagent-ai/dagent/pkg/types"
)

// Entry is one transcript line.
type Entry struct {
	ID        string           `json:"id"`
	Role      string           `json:"role"` // user | assistant | system
	Provider  types.ProviderID `json:"provider,omitempty"`
	Text      string           `json:"text"`
	CreatedAt int64            `json:"created_at"`
}

// Transcript is the stored form of one session.
type Transcript struct {
	SessionID string  `json:"session_id"`
	Entries   []Entry `json:"entries"`
	UpdatedAt int64   `json:"updated_at"`
}

// Recorder appends transcript entries and restores past sessions.
type Recorder struct {
	store *storage.Store
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store *storage.Store) *Recorder {
	return &Recorder{store: store}
}

// NewSessionID creates a fresh sortable session id.
func NewSessionID() string {
	return ulid.Make().String()
}

// Append adds one entry to a session transcript and announces it on the
// event bus. Returns the entry id.
func (r *Recorder) Append(ctx context.Context, sessionID, role string, provider types.ProviderID, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	var tr Transcript
	err := r.store.Get(ctx, []string{"session", sessionID}, &tr)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("load transcript: %w", err)
	}
	tr.SessionID = sessionID

	entry := Entry{
		ID:        ulid.Make().String(),
		Role:      role,
		Provider:  provider,
		Text:      text,
		CreatedAt: time.Now().Unix(),
	}
	tr.Entries = append(tr.Entries, entry)
	tr.UpdatedAt = entry.CreatedAt

	if err := r.store.Put(ctx, []string{"session", sessionID}, tr); err != nil {
		return "", fmt.Errorf("store transcript: %w", err)
	}

	event.Publish(event.Event{
		Type: event.TranscriptAppended,
		Data: event.TranscriptAppendedData{
			SessionID: sessionID,
			EntryID:   entry.ID,
		},
	})
	return entry.ID, nil
}

// Load returns a session transcript. A missing session yields an empty
// transcript, not an error.
func (r *Recorder) Load(ctx context.Context, sessionID string) (*Transcript, error) {
	var tr Transcript
	err := r.store.Get(ctx, []string{"session", sessionID}, &tr)
	if errors.Is(err, storage.ErrNotFound) {
		return &Transcript{SessionID: sessionID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	return &tr, nil
}

// List returns the ids of all stored sessions.
func (r *Recorder) List(ctx context.Context) ([]string, error) {
	return r.store.List(ctx, []string{"session"})
}

// Latest returns the most recently updated session id, or "" when no
// sessions are stored. Entry ids are monotonic ULIDs, so the session
// holding the largest last-entry id is the most recent.
func (r *Recorder) Latest(ctx context.Context) (string, error) {
	ids, err := r.List(ctx)
	if err != nil {
		return "", err
	}

	var latest, latestEntry string
	for _, id := range ids {
		tr, err := r.Load(ctx, id)
		if err != nil || len(tr.Entries) == 0 {
			continue
		}
		last := tr.Entries[len(tr.Entries)-1].ID
		if last > latestEntry {
			latestEntry = last
			latest = id
		}
	}
	return latest, nil
}

// Clear deletes a session transcript.
func (r *Recorder) Clear(ctx context.Context, sessionID string) error {
	return r.store.Delete(ctx, []string{"session", sessionID})
}
