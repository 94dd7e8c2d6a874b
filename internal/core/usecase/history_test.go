package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type turnHistoryFake struct {
	turns     []domain.Turn
	err       error
	lastLimit int
}

func (f *turnHistoryFake) ListTurns(_ context.Context, _ string, limit int) ([]domain.Turn, error) {
	f.lastLimit = limit
	return f.turns, f.err
}

func TestSessionHistoryClampsLimit(t *testing.T) {
	store := &turnHistoryFake{}
	uc := NewSessionHistoryUseCase(store)

	cases := map[int]int{0: defaultHistoryLimit, -3: defaultHistoryLimit, 7: 7, 5000: maxHistoryLimit}
	for in, want := range cases {
		turns, err := uc.History(context.Background(), "s1", in)
		if err != nil {
			t.Fatalf("History(%d) error = %v", in, err)
		}
		if turns == nil {
			t.Fatalf("History(%d) returned nil slice", in)
		}
		if store.lastLimit != want {
			t.Fatalf("History(%d) used limit %d, want %d", in, store.lastLimit, want)
		}
	}
}

func TestSessionHistoryRequiresSessionID(t *testing.T) {
	uc := NewSessionHistoryUseCase(&turnHistoryFake{})
	_, err := uc.History(context.Background(), "  ", 10)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSessionHistoryPropagatesStoreError(t *testing.T) {
	storeErr := errors.New("db down")
	uc := NewSessionHistoryUseCase(&turnHistoryFake{err: storeErr})
	if _, err := uc.History(context.Background(), "s1", 10); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}
