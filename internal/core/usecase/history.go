package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type SessionHistoryUseCase struct {
	turns ports.TurnHistory
}

func NewSessionHistoryUseCase(turns ports.TurnHistory) *SessionHistoryUseCase {
	return &SessionHistoryUseCase{turns: turns}
}

// History returns the most recent turns of a session, oldest first.
// A non-positive limit selects the default page size.
func (uc *SessionHistoryUseCase) History(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "session history", errors.New("session id is required"))
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	turns, err := uc.turns.ListTurns(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return turns, nil
}
