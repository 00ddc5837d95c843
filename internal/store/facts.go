package store

import (
	"fmt"
	"time"
)

// FactRecord is one durable fact about a user.
type FactRecord struct {
	ID        int64
	UserID    string
	Content   string
	Category  string
	CreatedAt time.Time
}

// AddFact records a fact about a user.
func (s *Store) AddFact(userID, content, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO user_facts (user_id, content, category) VALUES (?, ?, ?)`,
		userID, content, category,
	)
	if err != nil {
		return fmt.Errorf("failed to add fact: %w", err)
	}
	return nil
}

// ListFacts returns a user's facts, oldest first.
func (s *Store) ListFacts(userID string) ([]FactRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, user_id, content, category, created_at FROM user_facts
		 WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	defer rows.Close()

	var facts []FactRecord
	for rows.Next() {
		var f FactRecord
		var category *string
		if err := rows.Scan(&f.ID, &f.UserID, &f.Content, &category, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		if category != nil {
			f.Category = *category
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
