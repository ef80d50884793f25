// Package session manages the persisted, TTL-bounded authentication record.
// The session is a process-wide singleton owned by the sign-in/sign-out
// flow: created at sign-in or sign-up, refreshed on profile edits, and
// destroyed at sign-out or when its TTL lapses. A session whose expiry has
// passed is treated as absent everywhere, even if still physically present
// in storage.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

const (
	// sessionStorageKey holds the serialized session record.
	sessionStorageKey = "user-session"

	// expiryStorageKey holds the absolute expiry timestamp in Unix
	// milliseconds. Cleared together with the session record.
	expiryStorageKey = "session-expiration"

	// DefaultTTL is the session lifetime applied when Save is called
	// without an explicit TTL.
	DefaultTTL = time.Hour
)

// Session is the viewer's authentication record.
type Session struct {
	UserID         string    `json:"userId"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	IsAdmin        bool      `json:"isAdmin"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	ExpiresAt      time.Time `json:"-"`
}

// Manager owns the session lifecycle. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	storage  Storage
	timer    *time.Timer
	onExpire func()
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a session manager backed by storage.
func NewManager(storage Storage, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// OnExpire registers a callback invoked after the TTL timer clears the
// session, so the application can invalidate session-dependent state.
// Not invoked for explicit Clear calls.
func (m *Manager) OnExpire(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

// Load returns the persisted session, or nil when none is stored or the
// stored record has expired. An expired record is eagerly cleared rather
// than left for the timer. A successful load re-arms the expiry timer,
// covering process restarts mid-TTL.
func (m *Manager) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, ok, err := m.loadExpiry()
	if err != nil {
		return nil, err
	}
	if !ok || !expiresAt.After(m.now()) {
		// Missing expiry or already past: the record is dead either way.
		if clearErr := m.clearLocked(); clearErr != nil {
			return nil, clearErr
		}
		return nil, nil
	}

	data, ok, err := m.storage.Get(sessionStorageKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		if clearErr := m.clearLocked(); clearErr != nil {
			return nil, clearErr
		}
		return nil, nil
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.ExpiresAt = expiresAt

	m.armTimerLocked(expiresAt)
	return &sess, nil
}

// Save persists sess with an absolute expiry of now+ttl and arms the
// expiry timer. A non-positive ttl falls back to DefaultTTL.
func (m *Manager) Save(sess Session, ttl time.Duration) (*Session, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess.ExpiresAt = m.now().Add(ttl)
	if err := m.persistLocked(sess); err != nil {
		return nil, err
	}
	expiry := strconv.FormatInt(sess.ExpiresAt.UnixMilli(), 10)
	if err := m.storage.Set(expiryStorageKey, []byte(expiry)); err != nil {
		return nil, fmt.Errorf("save session expiry: %w", err)
	}

	m.armTimerLocked(sess.ExpiresAt)
	return &sess, nil
}

// Refresh rewrites the session record after a profile edit, leaving the
// stored expiry timestamp and the armed timer untouched. Refreshing when
// no live session exists is an error.
func (m *Manager) Refresh(sess Session) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, ok, err := m.loadExpiry()
	if err != nil {
		return nil, err
	}
	if !ok || !expiresAt.After(m.now()) {
		if clearErr := m.clearLocked(); clearErr != nil {
			return nil, clearErr
		}
		return nil, fmt.Errorf("refresh session: no live session")
	}

	sess.ExpiresAt = expiresAt
	if err := m.persistLocked(sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Clear removes the session and its expiry from storage and cancels any
// armed timer. Idempotent; safe to call when nothing is stored.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked()
}

func (m *Manager) clearLocked() error {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if err := m.storage.Delete(sessionStorageKey, expiryStorageKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (m *Manager) persistLocked(sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.storage.Set(sessionStorageKey, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (m *Manager) loadExpiry() (time.Time, bool, error) {
	data, ok, err := m.storage.Get(expiryStorageKey)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load session expiry: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse session expiry: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}

// armTimerLocked schedules the autonomous expiry exactly at expiresAt,
// replacing any previously armed timer.
func (m *Manager) armTimerLocked(expiresAt time.Time) {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(expiresAt.Sub(m.now()), m.expire)
}

// expire runs on the timer goroutine when the TTL lapses.
func (m *Manager) expire() {
	m.mu.Lock()
	err := m.clearLocked()
	fn := m.onExpire
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("failed to clear expired session", "error", err)
		return
	}
	m.logger.Info("session expired, storage cleared")
	if fn != nil {
		fn()
	}
}
