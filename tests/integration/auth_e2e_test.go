package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Quill/internal/blogapi"
	"Quill/internal/core/cache"
	"Quill/internal/core/session"
)

func TestSignUpEstablishesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sess, err := env.auth.SignUp(ctx, "ada", "ada@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "ada", sess.Username)
	assert.Equal(t, "ada@example.com", sess.Email)
	assert.False(t, sess.IsAdmin)
	assert.WithinDuration(t, time.Now().Add(testSessionTTL), sess.ExpiresAt, 5*time.Second)

	// The session query sees the signed-in viewer.
	got, err := env.queries.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.UserID, got.UserID)

	// The auth cookie established at signup authorizes follow-up writes.
	_, err = env.mutations.CreatePost(ctx, newPostInput("First post"))
	require.NoError(t, err)
}

func TestSignInWithWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.fake.seedUser("ada", "ada@example.com", "hunter22", false)

	_, err := env.auth.SignIn(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, blogapi.ErrUnauthorized))

	// Failed sign-in must not leave a local session behind.
	sess, err := env.sessions.Load()
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSignOutClearsSessionAndCache(t *testing.T) {
	env := newTestEnv(t)
	env.fake.seedUser("ada", "ada@example.com", "hunter22", false)
	ctx := context.Background()

	_, err := env.auth.SignIn(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)

	got, err := env.queries.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, env.auth.SignOut(ctx))

	// The cached session entry was invalidated, so the next read
	// observes the signed-out state instead of the stale viewer.
	got, err = env.queries.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// The server dropped the token: writes are rejected now.
	_, err = env.mutations.CreatePost(ctx, newPostInput("after signout"))
	require.Error(t, err)
}

func TestSessionSurvivesRestart(t *testing.T) {
	env := newTestEnv(t)
	env.fake.seedUser("ada", "ada@example.com", "hunter22", false)
	ctx := context.Background()

	saved, err := env.auth.SignIn(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)

	// A fresh manager over the same storage sees the persisted session,
	// the way a new process would after restart.
	restarted := session.NewManager(env.storage, nil)
	t.Cleanup(func() { _ = restarted.Clear() })

	sess, err := restarted.Load()
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, saved.UserID, sess.UserID)
	assert.Equal(t, "ada", sess.Username)
}

func TestSessionExpiryPropagatesToCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.sessions.Save(session.Session{UserID: "u1", Username: "ada"}, 40*time.Millisecond)
	require.NoError(t, err)
	env.cache.Invalidate(cache.SessionKey())

	sess, err := env.queries.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)

	// Once the TTL elapses the expiry timer clears the record and
	// invalidates the cached session entry, so the query refetches nil.
	require.Eventually(t, func() bool {
		sess, err := env.queries.Session(ctx)
		return err == nil && sess == nil
	}, time.Second, 10*time.Millisecond)
}
