package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

// ConversationRepository stores the turn log and the memory snapshot of each
// conversation session.
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) AppendTurn(ctx context.Context, turn domain.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversation_turns (session_id, input, output, created_at)
VALUES ($1,$2,$3,$4)
`, turn.SessionID, turn.Input, turn.Output, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// LoadSnapshot returns an empty snapshot for sessions that have none yet.
func (r *ConversationRepository) LoadSnapshot(ctx context.Context, sessionID string) (*domain.MemorySnapshot, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT summary, buffer
FROM conversation_memory
WHERE session_id = $1
`, sessionID)

	snapshot := &domain.MemorySnapshot{SessionID: sessionID}
	var bufferRaw []byte
	if err := row.Scan(&snapshot.Summary, &bufferRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snapshot, nil
		}
		return nil, fmt.Errorf("load memory snapshot: %w", err)
	}
	if len(bufferRaw) > 0 {
		if err := json.Unmarshal(bufferRaw, &snapshot.Buffer); err != nil {
			return nil, fmt.Errorf("unmarshal memory buffer: %w", err)
		}
	}
	return snapshot, nil
}

func (r *ConversationRepository) SaveSnapshot(ctx context.Context, snapshot domain.MemorySnapshot) error {
	buffer := snapshot.Buffer
	if buffer == nil {
		buffer = []domain.Turn{}
	}
	bufferJSON, err := json.Marshal(buffer)
	if err != nil {
		return fmt.Errorf("marshal memory buffer: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO conversation_memory (session_id, summary, buffer, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (session_id) DO UPDATE
SET summary = EXCLUDED.summary, buffer = EXCLUDED.buffer, updated_at = EXCLUDED.updated_at
`, snapshot.SessionID, snapshot.Summary, bufferJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save memory snapshot: %w", err)
	}
	return nil
}

// ListTurns returns up to limit most recent turns in chronological order.
func (r *ConversationRepository) ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT session_id, input, output, created_at
FROM conversation_turns
WHERE session_id = $1
ORDER BY id DESC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Turn, 0, limit)
	for rows.Next() {
		var turn domain.Turn
		if err := rows.Scan(&turn.SessionID, &turn.Input, &turn.Output, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
