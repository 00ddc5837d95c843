package store

import (
	"database/sql"
	"fmt"
	"time"

	"selene/internal/logging"
)

// EventRecord is one row in the append-only event log.
type EventRecord struct {
	ID        int64
	SessionID string
	TurnID    string
	Type      string
	Payload   string // JSON
	Sequence  int64
	CreatedAt time.Time
}

// AppendEvent appends an event with the next sequence number for its
// session. Events are never updated or deleted.
func (s *Store) AppendEvent(sessionID, turnID, eventType, payload string) (*EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq sql.NullInt64
	if err := tx.QueryRow(
		`SELECT MAX(sequence) FROM events WHERE session_id = ?`, sessionID,
	).Scan(&seq); err != nil {
		return nil, fmt.Errorf("failed to read max sequence: %w", err)
	}
	next := seq.Int64 + 1

	res, err := tx.Exec(
		`INSERT INTO events (session_id, turn_id, type, payload, sequence) VALUES (?, ?, ?, ?, ?)`,
		sessionID, turnID, eventType, payload, next,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}
	id, _ := res.LastInsertId()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit event: %w", err)
	}

	logging.StoreDebug("appended event %s seq=%d session=%s", eventType, next, sessionID)
	return &EventRecord{
		ID:        id,
		SessionID: sessionID,
		TurnID:    turnID,
		Type:      eventType,
		Payload:   payload,
		Sequence:  next,
		CreatedAt: time.Now(),
	}, nil
}

// LoadEvents returns all events for a session ordered by sequence.
func (s *Store) LoadEvents(sessionID string) ([]EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, session_id, turn_id, type, payload, sequence, created_at
		 FROM events WHERE session_id = ? ORDER BY sequence ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TurnID, &e.Type, &e.Payload, &e.Sequence, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// LoadRecentEvents returns the last n events for a session, oldest first.
func (s *Store) LoadRecentEvents(sessionID string, n int) ([]EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, session_id, turn_id, type, payload, sequence, created_at FROM (
			SELECT * FROM events WHERE session_id = ? ORDER BY sequence DESC LIMIT ?
		 ) ORDER BY sequence ASC`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TurnID, &e.Type, &e.Payload, &e.Sequence, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
