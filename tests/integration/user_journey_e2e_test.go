package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Quill/internal/core/invalidation"
	"Quill/internal/core/mutations"
)

// TestUserJourney exercises the whole stack in one sitting: sign up,
// publish, browse, discuss, touch up the profile, sign out.
func TestUserJourney(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sess, err := env.auth.SignUp(ctx, "ada", "ada@example.com", "hunter22")
	require.NoError(t, err)

	post, err := env.mutations.CreatePost(ctx, newPostInput("Notes on engines"))
	require.NoError(t, err)

	posts, err := env.queries.Posts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	single, err := env.queries.Post(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "notes-on-engines", single.Slug)

	comment, err := env.mutations.CreateComment(ctx, mutations.CreateCommentInput{
		PostID:  post.ID,
		Content: "first!",
	})
	require.NoError(t, err)

	liked, err := env.mutations.LikeComment(ctx, mutations.LikeCommentInput{
		CommentID: comment.ID,
		PostID:    post.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, liked.NumberOfLikes)

	comments, err := env.queries.Comments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.True(t, comments[0].LikedBy(sess.UserID))

	_, err = env.mutations.UpdateProfile(ctx, mutations.UpdateProfileInput{
		UserID:   sess.UserID,
		Username: "ada.lovelace",
	})
	require.NoError(t, err)

	require.NoError(t, env.auth.SignOut(ctx))

	got, err := env.queries.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Public reads still work signed out.
	posts, err = env.queries.Posts(ctx)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestDuplicateSubmissionNeverReachesTheServer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.SignUp(ctx, "ada", "ada@example.com", "hunter22")
	require.NoError(t, err)

	gate := make(chan struct{})
	env.fake.mu.Lock()
	env.fake.createPostGate = gate
	env.fake.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := env.mutations.CreatePost(ctx, newPostInput("Double click"))
		done <- err
	}()

	require.Eventually(t, func() bool {
		return env.mutations.IsPending(invalidation.OpCreatePost, "double click")
	}, time.Second, 5*time.Millisecond)

	// The second submission is rejected locally, before any request.
	_, err = env.mutations.CreatePost(ctx, newPostInput("Double click"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, mutations.ErrMutationInFlight))

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, env.fake.callCount("POST /api/posts"))
	assert.False(t, env.mutations.IsPending(invalidation.OpCreatePost, "double click"))

	// With the first flight settled, resubmission is allowed again.
	env.fake.mu.Lock()
	env.fake.createPostGate = nil
	env.fake.mu.Unlock()
	_, err = env.mutations.CreatePost(ctx, newPostInput("Double click"))
	require.NoError(t, err)
}
