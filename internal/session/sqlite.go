package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/medassist/vha/internal/model"
)

// SQLiteStore persists sessions in SQLite. One turn per row; total_turns on
// the session row is updated in the same transaction as the insert so the
// history invariant holds even across restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open, migrated database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get loads the session's full ordered history. Unknown ids yield an empty
// state, matching the in-memory store.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (model.SessionState, error) {
	state := model.SessionState{SessionID: sessionID, History: []model.TurnRecord{}}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, user_input, final_response, triage_level, urgency_score,
		       critic_score, latency_ms, agent_outputs_json, error
		FROM turns WHERE session_id = ? ORDER BY turn_index`, sessionID)
	if err != nil {
		return state, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec        model.TurnRecord
			ts         string
			outputs    sql.NullString
			errMessage sql.NullString
		)
		if err := rows.Scan(&ts, &rec.UserInput, &rec.FinalResponse, &rec.TriageLevel,
			&rec.UrgencyScore, &rec.CriticScore, &rec.LatencyMS, &outputs, &errMessage); err != nil {
			return state, fmt.Errorf("scan turn: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = t
		}
		if outputs.Valid && outputs.String != "" {
			if err := json.Unmarshal([]byte(outputs.String), &rec.AgentOutputs); err != nil {
				return state, fmt.Errorf("decode agent outputs: %w", err)
			}
		}
		rec.Error = errMessage.String
		state.History = append(state.History, rec)
	}
	if err := rows.Err(); err != nil {
		return state, fmt.Errorf("iterate turns: %w", err)
	}
	state.TotalTurns = len(state.History)
	return state, nil
}

// Append inserts the turn and bumps the session counter atomically.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, rec model.TurnRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, created_at, total_turns) VALUES (?, ?, 0)
		ON CONFLICT (session_id) DO NOTHING`, sessionID, now); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}

	var outputs sql.NullString
	if len(rec.AgentOutputs) > 0 {
		raw, err := json.Marshal(rec.AgentOutputs)
		if err != nil {
			return fmt.Errorf("encode agent outputs: %w", err)
		}
		outputs = sql.NullString{String: string(raw), Valid: true}
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (session_id, turn_index, ts, user_input, final_response,
		                   triage_level, urgency_score, critic_score, latency_ms,
		                   agent_outputs_json, error)
		VALUES (?, (SELECT total_turns FROM sessions WHERE session_id = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, sessionID, ts.Format(time.RFC3339Nano), rec.UserInput, rec.FinalResponse,
		string(rec.TriageLevel), rec.UrgencyScore, rec.CriticScore, rec.LatencyMS,
		outputs, nullable(rec.Error)); err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET total_turns = total_turns + 1 WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("update session counter: %w", err)
	}
	return tx.Commit()
}

// Sessions lists known session ids.
func (s *SQLiteStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM sessions ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
