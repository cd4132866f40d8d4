package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"research-chatbot/internal/cache"
	"research-chatbot/internal/model"
	"research-chatbot/internal/repository"
)

var ErrSessionNotFound = errors.New("session not found")

// TurnPublisher hands a resolved turn to the async persist pipeline.
type TurnPublisher interface {
	Publish(ctx context.Context, turn *model.Turn) error
}

// Manager owns conversational memory: session lifecycle, the bounded context
// window handed to tools, and turn persistence. Each session is serialized by
// its own mutex, so concurrent requests against one session never interleave
// their read-context/append-turn sequences.
type Manager struct {
	sessions  *repository.SessionRepository
	turns     *repository.TurnRepository
	history   *cache.HistoryCache
	publisher TurnPublisher
	window    int
	log       *zap.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is reference-counted so idle sessions do not pin map entries.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(
	sessions *repository.SessionRepository,
	turns *repository.TurnRepository,
	history *cache.HistoryCache,
	publisher TurnPublisher,
	window int,
	log *zap.Logger,
) *Manager {
	return &Manager{
		sessions:  sessions,
		turns:     turns,
		history:   history,
		publisher: publisher,
		window:    window,
		log:       log,
		locks:     make(map[string]*sessionLock),
	}
}

func (m *Manager) Window() int {
	return m.window
}

func (m *Manager) CreateSession(ctx context.Context, userID string) (*model.Session, error) {
	now := time.Now()
	session := &model.Session{
		SessionID:    uuid.NewString(),
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := m.sessions.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (m *Manager) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := m.sessions.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session, nil
}

// Lock serializes access to one session. The returned func releases it. The
// map entry is dropped once no goroutine holds or waits on the lock.
func (m *Manager) Lock(sessionID string) func() {
	m.mu.Lock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		m.locks[sessionID] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		m.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(m.locks, sessionID)
		}
		m.mu.Unlock()
	}
}

// Context returns the most recent turns of the session, oldest first, capped
// at the configured window. The redis cache is consulted first; on a miss the
// window is rebuilt from MySQL and written back.
func (m *Manager) Context(ctx context.Context, sessionID string) ([]model.Turn, error) {
	if m.history != nil {
		cached, err := m.history.Get(ctx, sessionID)
		if err != nil {
			m.log.Warn("history cache read failed, falling back to db",
				zap.String("session_id", sessionID), zap.Error(err))
		} else if cached != nil {
			return clampWindow(cached, m.window), nil
		}
	}

	turns, err := m.turns.ListRecentBySessionID(sessionID, m.window)
	if err != nil {
		return nil, err
	}

	if m.history != nil {
		if err := m.history.Set(ctx, sessionID, turns); err != nil {
			m.log.Warn("history cache write failed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return turns, nil
}

// Append records a fully resolved turn. The cache window is marked dirty
// before the turn leaves for the persist queue, so readers never see a stale
// window as authoritative. When no publisher is wired the write is synchronous.
func (m *Manager) Append(ctx context.Context, turn *model.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	if m.history != nil {
		if err := m.history.MarkDirty(ctx, turn.SessionID); err != nil {
			m.log.Warn("mark history dirty failed",
				zap.String("session_id", turn.SessionID), zap.Error(err))
		}
	}

	if m.publisher != nil {
		err := m.publisher.Publish(ctx, turn)
		if err == nil {
			m.touch(turn.SessionID)
			return nil
		}
		m.log.Warn("turn publish failed, persisting synchronously",
			zap.String("session_id", turn.SessionID), zap.Error(err))
	}

	if err := m.turns.Create(turn); err != nil {
		return fmt.Errorf("append turn failed: %w", err)
	}
	if m.history != nil {
		if err := m.history.ClearDirty(ctx, turn.SessionID); err != nil {
			m.log.Warn("clear dirty marker failed",
				zap.String("session_id", turn.SessionID), zap.Error(err))
		}
	}
	m.touch(turn.SessionID)
	return nil
}

// DeleteSession removes the session row, its turns, and the cached window.
// The session lock is taken so an in-flight turn resolves before the wipe.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := m.GetSession(ctx, sessionID); err != nil {
		return err
	}

	unlock := m.Lock(sessionID)
	defer unlock()

	if err := m.turns.DeleteBySessionID(sessionID); err != nil {
		return fmt.Errorf("delete session turns failed: %w", err)
	}
	if err := m.sessions.Delete(sessionID); err != nil {
		return err
	}
	if m.history != nil {
		if err := m.history.Invalidate(ctx, sessionID); err != nil {
			m.log.Warn("invalidate history cache failed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	m.log.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

func (m *Manager) touch(sessionID string) {
	if err := m.sessions.TouchActivity(sessionID, time.Now()); err != nil {
		m.log.Warn("touch session activity failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

// History returns up to limit turns for display, oldest first.
func (m *Manager) History(ctx context.Context, sessionID string, limit int) ([]model.Turn, error) {
	if _, err := m.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return m.turns.ListRecentBySessionID(sessionID, limit)
}

func clampWindow(turns []model.Turn, window int) []model.Turn {
	if len(turns) <= window {
		return turns
	}
	return turns[len(turns)-window:]
}
