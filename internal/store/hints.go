package store

import (
	"fmt"
	"time"

	"selene/internal/logging"
)

// Hint scopes.
const (
	HintScopeSession = "session"
	HintScopeUser    = "user"
)

// HintRecord is one learned behavioral correction.
type HintRecord struct {
	ID              int64
	Scope           string
	ScopeID         string
	Type            string
	Text            string
	Weight          float64
	OccurrenceCount int
	LastSeen        time.Time
}

// UpsertSessionHint inserts a session-scoped hint, ignoring duplicates.
// Session hints are markers, not weighted signals.
func (s *Store) UpsertSessionHint(sessionID, hintType, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO hints (scope, scope_id, type, text) VALUES (?, ?, ?, ?)`,
		HintScopeSession, sessionID, hintType, text,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session hint: %w", err)
	}
	return nil
}

// UpsertUserHint inserts or reinforces a user-scoped hint. One type per
// user is a singleton: recurrence increments occurrence_count and raises
// weight by step, capped at maxWeight. Weight never decreases.
func (s *Store) UpsertUserHint(userID, hintType, text string, step, maxWeight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO hints (scope, scope_id, type, text, weight, occurrence_count, last_seen)
		 VALUES (?, ?, ?, ?, 1.0, 1, CURRENT_TIMESTAMP)
		 ON CONFLICT(scope, scope_id, type) DO UPDATE SET
			occurrence_count = occurrence_count + 1,
			weight = MIN(?, weight + ?),
			last_seen = CURRENT_TIMESTAMP,
			text = excluded.text`,
		HintScopeUser, userID, hintType, text, maxWeight, step,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user hint: %w", err)
	}
	logging.StoreDebug("upserted user hint type=%s user=%s", hintType, userID)
	return nil
}

// ListUserHints returns a user's hints ordered by weight descending.
func (s *Store) ListUserHints(userID string) ([]HintRecord, error) {
	return s.listHints(HintScopeUser, userID)
}

// ListSessionHints returns a session's hints.
func (s *Store) ListSessionHints(sessionID string) ([]HintRecord, error) {
	return s.listHints(HintScopeSession, sessionID)
}

func (s *Store) listHints(scope, scopeID string) ([]HintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, scope, scope_id, type, text, weight, occurrence_count, last_seen
		 FROM hints WHERE scope = ? AND scope_id = ?
		 ORDER BY weight DESC, last_seen DESC`, scope, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list hints: %w", err)
	}
	defer rows.Close()

	var hints []HintRecord
	for rows.Next() {
		var h HintRecord
		if err := rows.Scan(&h.ID, &h.Scope, &h.ScopeID, &h.Type, &h.Text, &h.Weight, &h.OccurrenceCount, &h.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan hint: %w", err)
		}
		hints = append(hints, h)
	}
	return hints, rows.Err()
}
