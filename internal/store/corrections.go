package store

import (
	"fmt"
	"time"
)

// CorrectionRecord is a critique finding waiting to steer the next turn.
type CorrectionRecord struct {
	ID              int64
	SessionID       string
	TurnID          string
	Severity        string
	Issues          string // JSON array
	FixInstructions string
	OriginalResp    string
	CreatedAt       time.Time
}

// AddPendingCorrection stores a correction for the session's next turn.
func (s *Store) AddPendingCorrection(sessionID, turnID, severity, issues, fix, original string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO pending_corrections (session_id, turn_id, severity, issues, fix_instructions, original_response)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, turnID, severity, issues, fix, original,
	)
	if err != nil {
		return fmt.Errorf("failed to add pending correction: %w", err)
	}
	return nil
}

// TakePendingCorrections returns and removes a session's corrections.
// Each correction is consumed at most once.
func (s *Store) TakePendingCorrections(sessionID string) ([]CorrectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, session_id, turn_id, severity, issues, fix_instructions, original_response, created_at
		 FROM pending_corrections WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending corrections: %w", err)
	}

	var out []CorrectionRecord
	for rows.Next() {
		var c CorrectionRecord
		if err := rows.Scan(&c.ID, &c.SessionID, &c.TurnID, &c.Severity, &c.Issues, &c.FixInstructions, &c.OriginalResp, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) > 0 {
		if _, err := s.db.Exec(`DELETE FROM pending_corrections WHERE session_id = ?`, sessionID); err != nil {
			return nil, fmt.Errorf("failed to consume pending corrections: %w", err)
		}
	}
	return out, nil
}
