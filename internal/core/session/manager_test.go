package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStorage is an in-memory Storage for manager tests.
type memStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{data: make(map[string][]byte)}
}

func (s *memStorage) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStorage) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStorage) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *memStorage) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func testSession() Session {
	return Session{
		UserID:   "u1",
		Username: "ada",
		Email:    "ada@example.com",
	}
}

func TestManager_SaveLoadRoundTrip(t *testing.T) {
	storage := newMemStorage()
	m := NewManager(storage, nil)

	saved, err := m.Save(testSession(), time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), saved.ExpiresAt, time.Second)

	loaded, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "u1", loaded.UserID)
	assert.Equal(t, "ada", loaded.Username)
	assert.Equal(t, saved.ExpiresAt.UnixMilli(), loaded.ExpiresAt.UnixMilli())
}

func TestManager_SaveAppliesDefaultTTL(t *testing.T) {
	m := NewManager(newMemStorage(), nil)

	saved, err := m.Save(testSession(), 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), saved.ExpiresAt, time.Second)
}

func TestManager_ExpiredRecordLoadsAsAbsentAndClearsStorage(t *testing.T) {
	storage := newMemStorage()
	m := NewManager(storage, nil)

	base := time.Now()
	m.now = func() time.Time { return base }

	_, err := m.Save(testSession(), time.Second)
	require.NoError(t, err)

	// 1ms past the absolute expiry: the record is dead even though the
	// timer has not fired yet.
	m.now = func() time.Time { return base.Add(time.Second + time.Millisecond) }

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
	assert.Equal(t, 0, storage.len(), "expired record must be eagerly cleared")
}

func TestManager_TimerClearsAtExpiry(t *testing.T) {
	storage := newMemStorage()
	m := NewManager(storage, nil)

	expired := make(chan struct{})
	m.OnExpire(func() { close(expired) })

	_, err := m.Save(testSession(), 30*time.Millisecond)
	require.NoError(t, err)

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry timer did not fire")
	}
	assert.Equal(t, 0, storage.len())

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestManager_RefreshPreservesExpiry(t *testing.T) {
	storage := newMemStorage()
	m := NewManager(storage, nil)

	saved, err := m.Save(testSession(), time.Hour)
	require.NoError(t, err)

	edited := testSession()
	edited.Username = "lovelace"
	refreshed, err := m.Refresh(edited)
	require.NoError(t, err)
	assert.Equal(t, saved.ExpiresAt.UnixMilli(), refreshed.ExpiresAt.UnixMilli())

	loaded, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "lovelace", loaded.Username)
	assert.Equal(t, saved.ExpiresAt.UnixMilli(), loaded.ExpiresAt.UnixMilli())
}

func TestManager_RefreshWithoutLiveSessionFails(t *testing.T) {
	m := NewManager(newMemStorage(), nil)

	_, err := m.Refresh(testSession())
	assert.Error(t, err)
}

func TestManager_ClearIsIdempotent(t *testing.T) {
	storage := newMemStorage()
	m := NewManager(storage, nil)

	_, err := m.Save(testSession(), time.Hour)
	require.NoError(t, err)

	require.NoError(t, m.Clear())
	require.NoError(t, m.Clear())
	assert.Equal(t, 0, storage.len())

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestManager_LoadWithoutExpiryRecordClears(t *testing.T) {
	storage := newMemStorage()
	require.NoError(t, storage.Set(sessionStorageKey, []byte(`{"userId":"u1"}`)))

	m := NewManager(storage, nil)
	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
	assert.Equal(t, 0, storage.len(), "orphaned session record must be cleared")
}
