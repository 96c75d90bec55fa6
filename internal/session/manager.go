package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/types"
)

// ErrLockNotHeld is returned by Release for a session that is not locked.
var ErrLockNotHeld = errors.New("session lock not held")

// Observer receives lock instrumentation.
type Observer interface {
	RecordLockWait(d time.Duration, acquired bool)
}

// Manager serializes work per session id.
type Manager struct {
	mu       sync.RWMutex
	locks    map[string]chan struct{}
	timeout  time.Duration
	observer Observer
	logger   *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout bounds how long Acquire waits. Zero waits forever.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithObserver attaches lock instrumentation.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// NewManager creates an empty lock registry.
func NewManager(logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		locks:  make(map[string]chan struct{}),
		logger: logger.With(zap.String("component", "session_locks")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) lockFor(id string) chan struct{} {
	m.mu.RLock()
	l, ok := m.locks[id]
	m.mu.RUnlock()
	if ok {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok = m.locks[id]; ok {
		return l
	}
	l = make(chan struct{}, 1)
	m.locks[id] = l
	return l
}

// Acquire blocks until the session lock is free, the timeout expires or ctx
// is done. Failures return a LockTimeout error and leave the lock untouched.
func (m *Manager) Acquire(ctx context.Context, id string) error {
	if id == "" {
		return types.NewError(types.ErrInvalidRequest, "session id is required")
	}
	l := m.lockFor(id)
	start := time.Now()

	select {
	case l <- struct{}{}:
		m.observe(time.Since(start), true)
		return nil
	default:
	}

	var expired <-chan time.Time
	if m.timeout > 0 {
		timer := time.NewTimer(m.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case l <- struct{}{}:
		m.observe(time.Since(start), true)
		return nil
	case <-expired:
		m.observe(time.Since(start), false)
		m.logger.Warn("lock acquisition timed out",
			zap.String("session_id", id),
			zap.Duration("timeout", m.timeout))
		return types.Errorf(types.ErrLockTimeout,
			"session %s is busy: lock not acquired within %s", id, m.timeout).WithRetryable(true)
	case <-ctx.Done():
		m.observe(time.Since(start), false)
		return types.Errorf(types.ErrLockTimeout,
			"session %s lock wait aborted", id).WithCause(ctx.Err()).WithRetryable(true)
	}
}

// Release frees the session lock. It returns ErrLockNotHeld when the id is
// unknown or the lock is not held by anyone.
//
// Ownership is not tracked: like sync.Mutex, a lock acquired by one goroutine
// may be released by another. Callers pair Acquire and Release themselves,
// usually through WithLock.
func (m *Manager) Release(id string) error {
	m.mu.RLock()
	l, ok := m.locks[id]
	m.mu.RUnlock()
	if !ok {
		return ErrLockNotHeld
	}
	select {
	case <-l:
		return nil
	default:
		return ErrLockNotHeld
	}
}

// WithLock runs fn while holding the session lock.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	if err := m.Acquire(ctx, id); err != nil {
		return err
	}
	defer func() {
		if err := m.Release(id); err != nil {
			m.logger.Error("release after WithLock", zap.String("session_id", id), zap.Error(err))
		}
	}()
	return fn(ctx)
}

// Len returns the number of sessions that ever acquired a lock.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.locks)
}

func (m *Manager) observe(d time.Duration, acquired bool) {
	if m.observer != nil {
		m.observer.RecordLockWait(d, acquired)
	}
}
