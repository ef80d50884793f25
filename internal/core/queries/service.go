// Package queries binds canonical cache keys to their API fetchers: the
// read side of the core. Every read goes through the entity cache, so
// concurrent readers of one key share a single fetch and invalidated keys
// refetch transparently.
package queries

import (
	"context"
	"fmt"

	"Quill/internal/blogapi"
	"Quill/internal/core/cache"
	"Quill/internal/core/session"
)

// Sessions provides the viewer's session for the session query key.
type Sessions interface {
	Load() (*session.Session, error)
}

// Service resolves reads through the cache.
type Service struct {
	api      blogapi.Client
	cache    *cache.Cache
	sessions Sessions
}

// NewService creates the read-side query layer.
func NewService(api blogapi.Client, c *cache.Cache, sessions Sessions) *Service {
	return &Service{api: api, cache: c, sessions: sessions}
}

// get resolves key through the cache with a typed fetcher.
func get[T any](ctx context.Context, c *cache.Cache, key cache.Key, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %q holds %T, not %T", key.String(), v, zero)
	}
	return t, nil
}

// Posts returns the post listing.
func (s *Service) Posts(ctx context.Context) ([]blogapi.Post, error) {
	return get(ctx, s.cache, cache.PostsKey(), s.api.ListPosts)
}

// Post returns a single post by id.
func (s *Service) Post(ctx context.Context, postID string) (*blogapi.Post, error) {
	return get(ctx, s.cache, cache.PostKey(postID), func(ctx context.Context) (*blogapi.Post, error) {
		return s.api.GetPost(ctx, postID)
	})
}

// Comments returns the comments on a post.
func (s *Service) Comments(ctx context.Context, postID string) ([]blogapi.Comment, error) {
	return get(ctx, s.cache, cache.CommentsKey(postID), func(ctx context.Context) ([]blogapi.Comment, error) {
		return s.api.ListComments(ctx, postID)
	})
}

// User returns a user's profile snapshot.
func (s *Service) User(ctx context.Context, userID string) (*blogapi.User, error) {
	return get(ctx, s.cache, cache.UserKey(userID), func(ctx context.Context) (*blogapi.User, error) {
		return s.api.GetUser(ctx, userID)
	})
}

// Session returns the viewer's session, nil when signed out. Cached under
// the session key so sign-in/out and profile edits invalidate it like any
// other read.
func (s *Service) Session(ctx context.Context) (*session.Session, error) {
	return get(ctx, s.cache, cache.SessionKey(), func(context.Context) (*session.Session, error) {
		return s.sessions.Load()
	})
}

// Snapshot exposes the non-blocking read envelope for UI rendering.
func (s *Service) Snapshot(key cache.Key) cache.Snapshot {
	return s.cache.Snapshot(key)
}
