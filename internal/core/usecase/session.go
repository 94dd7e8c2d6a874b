package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

// MemoryFactory builds the memory handle owned by one session.
type MemoryFactory func(sessionID string) ports.ConversationMemory

type sessionEntry struct {
	agent    *ConversationalAgent
	lastUsed time.Time
	// inUse counts Chat calls holding the agent; busy entries are never evicted.
	inUse int
}

// SessionManager keeps one ConversationalAgent per session id. Idle agents
// beyond maxSessions are dropped; their memory stays in the turn store.
// An agent with a Chat in flight stays cached, so a session never gets a
// second agent writing the same memory.
type SessionManager struct {
	retriever   ports.Retriever
	model       ports.ChatModel
	newMemory   MemoryFactory
	settings    RetrievalSettings
	maxSessions int
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewSessionManager(
	retriever ports.Retriever,
	model ports.ChatModel,
	newMemory MemoryFactory,
	settings RetrievalSettings,
	maxSessions int,
	logger *slog.Logger,
) *SessionManager {
	if maxSessions <= 0 {
		maxSessions = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		retriever:   retriever,
		model:       model,
		newMemory:   newMemory,
		settings:    settings,
		maxSessions: maxSessions,
		logger:      logger,
		now:         time.Now,
		sessions:    make(map[string]*sessionEntry),
	}
}

// Chat answers query within sessionID, opening a new session when it is empty.
func (m *SessionManager) Chat(ctx context.Context, sessionID, query string) (*domain.Reply, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = NewSessionID(m.now())
	}

	entry := m.acquire(sessionID)
	defer m.release(entry)
	return entry.agent.Respond(ctx, query)
}

// Session returns the agent bound to sessionID, creating it on first use.
func (m *SessionManager) Session(sessionID string) *ConversationalAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entryLocked(sessionID).agent
}

func (m *SessionManager) acquire(sessionID string) *sessionEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.entryLocked(sessionID)
	entry.inUse++
	return entry
}

func (m *SessionManager) release(entry *sessionEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.inUse--
	entry.lastUsed = m.now()
	m.evictLocked("")
}

func (m *SessionManager) entryLocked(sessionID string) *sessionEntry {
	if entry, ok := m.sessions[sessionID]; ok {
		entry.lastUsed = m.now()
		return entry
	}

	agent := NewConversationalAgent(sessionID, m.retriever, m.model, m.newMemory(sessionID), m.settings, m.logger)
	entry := &sessionEntry{agent: agent, lastUsed: m.now()}
	m.sessions[sessionID] = entry
	m.evictLocked(sessionID)
	m.logger.Info("session_opened", "session_id", sessionID, "open_sessions", len(m.sessions))
	return entry
}

// evictLocked drops idle agents other than keep, oldest first, until the
// cache fits. When every surplus agent is busy the cache stays over capacity
// until a release.
func (m *SessionManager) evictLocked(keep string) {
	for len(m.sessions) > m.maxSessions {
		oldestID := ""
		var oldest time.Time
		for id, entry := range m.sessions {
			if entry.inUse > 0 || id == keep {
				continue
			}
			if oldestID == "" || entry.lastUsed.Before(oldest) {
				oldestID = id
				oldest = entry.lastUsed
			}
		}
		if oldestID == "" {
			return
		}
		delete(m.sessions, oldestID)
		m.logger.Info("session_evicted", "session_id", oldestID)
	}
}

// NewSessionID formats a sortable session id: YYYYMMDD_HHMMSS_<8 hex>.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("%s_%s", now.Format("20060102_150405"), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
