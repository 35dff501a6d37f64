package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/caseflow-io/caseflow/internal/logging"
	"github.com/caseflow-io/caseflow/pkg/domain"
	"github.com/caseflow-io/caseflow/pkg/ports"
)

// defaultLockTTL bounds orphaned distributed locks. A full turn,
// including collaborator calls, is expected to finish well within it.
const defaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates conversation access, ensuring one logical
// execution per conversation ID at a time. It uses reference counting
// to garbage collect unused locks.
type Manager struct {
	store ports.StateStore

	mu    sync.Mutex // guards the locks map
	locks map[string]*lockEntry

	locker  ports.DistributedLocker // optional, for multi-replica setups
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Manager backed by the given state store.
func NewManager(store ports.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: defaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock entry.mu, then call release(id) after unlocking.
func (m *Manager) acquire(conversationID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[conversationID]
	if !exists {
		entry = &lockEntry{}
		m.locks[conversationID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[conversationID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, conversationID)
	}
}

// Load retrieves an existing conversation from the store.
func (m *Manager) Load(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var state *domain.Conversation
	err := m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, conversationID)
		return err
	})
	return state, err
}

// LoadOrStart tries to load a conversation. If none exists it returns a
// fresh one, so first contact never special-cases creation.
func (m *Manager) LoadOrStart(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var state *domain.Conversation
	err := m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		var err error
		state, err = m.loadOrStart(ctx, conversationID)
		return err
	})
	return state, err
}

// loadOrStart is LoadOrStart without the lock. Callers hold it.
func (m *Manager) loadOrStart(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	state, err := m.store.Load(ctx, conversationID)
	if err == nil {
		return state, nil
	}

	if !errors.Is(err, domain.ErrConversationNotFound) {
		return nil, fmt.Errorf("failed to check conversation existence: %w", err)
	}

	state = domain.NewConversation(conversationID)

	// Persist immediately to reserve the ID.
	if err := m.store.Save(ctx, conversationID, state); err != nil {
		return nil, fmt.Errorf("failed to initialize conversation: %w", err)
	}
	return state, nil
}

// Turn runs one full conversational turn under a single lock
// acquisition: the conversation is loaded (created on first contact),
// fn transforms it, and the returned state is persisted before the lock
// is released. fn errors abort the save.
func (m *Manager) Turn(ctx context.Context, conversationID string, fn func(context.Context, *domain.Conversation) (*domain.Conversation, error)) error {
	return m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		state, err := m.loadOrStart(ctx, conversationID)
		if err != nil {
			return err
		}

		next, err := fn(ctx, state)
		if err != nil {
			return err
		}
		return m.store.Save(ctx, conversationID, next)
	})
}

// Save persists the conversation state.
func (m *Manager) Save(ctx context.Context, conversationID string, state *domain.Conversation) error {
	return m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		return m.store.Save(ctx, conversationID, state)
	})
}

// Delete removes the conversation from the store.
func (m *Manager) Delete(ctx context.Context, conversationID string) error {
	return m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		return m.store.Delete(ctx, conversationID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// ActiveLocks returns the number of lock entries currently held. Mainly
// useful to assert that refcounting does not leak.
func (m *Manager) ActiveLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock executes fn while holding the conversation's lock. The lock
// spans the full turn: load, node execution including remote calls, and
// save. Turns for the same conversation therefore apply strictly in
// arrival order.
func (m *Manager) WithLock(ctx context.Context, conversationID string, fn func(context.Context) error) error {
	entry := m.acquire(conversationID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(conversationID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, conversationID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"conversation_id", conversationID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
