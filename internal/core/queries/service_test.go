package queries

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Quill/internal/blogapi"
	"Quill/internal/core/cache"
	"Quill/internal/core/session"
)

// readAPI stubs the read endpoints; the embedded interface panics on
// anything a query should never call.
type readAPI struct {
	blogapi.Client

	listPostsCalls atomic.Int32
	getUserCalls   atomic.Int32
	posts          []blogapi.Post
}

func (m *readAPI) ListPosts(ctx context.Context) ([]blogapi.Post, error) {
	m.listPostsCalls.Add(1)
	return m.posts, nil
}

func (m *readAPI) ListComments(ctx context.Context, postID string) ([]blogapi.Comment, error) {
	return []blogapi.Comment{{ID: "c1", PostID: postID}}, nil
}

func (m *readAPI) GetUser(ctx context.Context, userID string) (*blogapi.User, error) {
	m.getUserCalls.Add(1)
	return &blogapi.User{ID: userID, Username: "ada"}, nil
}

type stubSessions struct {
	sess *session.Session
}

func (s *stubSessions) Load() (*session.Session, error) { return s.sess, nil }

func TestService_PostsAreCachedUntilInvalidated(t *testing.T) {
	api := &readAPI{posts: []blogapi.Post{{ID: "p1", Title: "Hello"}}}
	c := cache.New(nil)
	svc := NewService(api, c, &stubSessions{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		posts, err := svc.Posts(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 1)
	}
	assert.Equal(t, int32(1), api.listPostsCalls.Load())

	c.Invalidate(cache.PostsKey())
	_, err := svc.Posts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.listPostsCalls.Load(), "invalidation must force a refetch")
}

func TestService_DistinctUsersFetchIndependently(t *testing.T) {
	api := &readAPI{}
	svc := NewService(api, cache.New(nil), &stubSessions{})
	ctx := context.Background()

	u1, err := svc.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u1.ID)

	_, err = svc.User(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.getUserCalls.Load())

	// Repeat reads hit the cache.
	_, err = svc.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.getUserCalls.Load())
}

func TestService_CommentsKeyedByPost(t *testing.T) {
	svc := NewService(&readAPI{}, cache.New(nil), &stubSessions{})

	comments, err := svc.Comments(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "p1", comments[0].PostID)
}

func TestService_SessionReflectsSignedOutState(t *testing.T) {
	svc := NewService(&readAPI{}, cache.New(nil), &stubSessions{})

	sess, err := svc.Session(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestService_SnapshotEnvelope(t *testing.T) {
	api := &readAPI{posts: []blogapi.Post{{ID: "p1"}}}
	c := cache.New(nil)
	svc := NewService(api, c, &stubSessions{})

	snap := svc.Snapshot(cache.PostsKey())
	assert.Nil(t, snap.Data)
	assert.False(t, snap.IsLoading)

	_, err := svc.Posts(context.Background())
	require.NoError(t, err)

	snap = svc.Snapshot(cache.PostsKey())
	require.NotNil(t, snap.Data)
	assert.NoError(t, snap.Err)
}
