package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

var tracer = otel.Tracer("github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/repository/redis")

const defaultKeyPrefix = "rag:session:"

// TurnStore keeps each session's turn log in a list and its memory snapshot
// in a string key. Both keys share a sliding TTL when one is configured.
type TurnStore struct {
	rdb       goredis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

type Options struct {
	KeyPrefix string
	TTL       time.Duration
}

func NewTurnStore(rdb goredis.UniversalClient, opts Options) *TurnStore {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultKeyPrefix
	}
	return &TurnStore{rdb: rdb, keyPrefix: opts.KeyPrefix, ttl: opts.TTL}
}

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (s *TurnStore) AppendTurn(ctx context.Context, turn domain.Turn) error {
	ctx, span := tracer.Start(ctx, "redis.AppendTurn", trace.WithAttributes(attribute.String("session_id", turn.SessionID)))
	defer span.End()

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	key := s.turnsKey(turn.SessionID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, raw)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// LoadSnapshot returns an empty snapshot for sessions that have none yet.
func (s *TurnStore) LoadSnapshot(ctx context.Context, sessionID string) (*domain.MemorySnapshot, error) {
	ctx, span := tracer.Start(ctx, "redis.LoadSnapshot", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	raw, err := s.rdb.Get(ctx, s.memoryKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			span.SetAttributes(attribute.Bool("memory.hit", false))
			return &domain.MemorySnapshot{SessionID: sessionID}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("load memory snapshot: %w", err)
	}

	var snapshot domain.MemorySnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal memory snapshot: %w", err)
	}
	snapshot.SessionID = sessionID
	span.SetAttributes(attribute.Bool("memory.hit", true))
	return &snapshot, nil
}

func (s *TurnStore) SaveSnapshot(ctx context.Context, snapshot domain.MemorySnapshot) error {
	ctx, span := tracer.Start(ctx, "redis.SaveSnapshot", trace.WithAttributes(attribute.String("session_id", snapshot.SessionID)))
	defer span.End()

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal memory snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, s.memoryKey(snapshot.SessionID), raw, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("save memory snapshot: %w", err)
	}
	return nil
}

// ListTurns returns up to limit most recent turns in chronological order.
func (s *TurnStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	items, err := s.rdb.LRange(ctx, s.turnsKey(sessionID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	out := make([]domain.Turn, 0, len(items))
	for _, item := range items {
		var turn domain.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		out = append(out, turn)
	}
	return out, nil
}

func (s *TurnStore) turnsKey(sessionID string) string {
	return s.keyPrefix + sessionID + ":turns"
}

func (s *TurnStore) memoryKey(sessionID string) string {
	return s.keyPrefix + sessionID + ":memory"
}
