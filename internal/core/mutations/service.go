// Package mutations implements the mutation pipeline: every create, update,
// delete, and like flows through here. Each operation validates its input
// locally, gates on the viewer's session, performs exactly one API call,
// and, only after the API confirms success, applies the operation's
// declared invalidation set to the cache. On any failure the cache is left
// untouched and a classifiable error is returned to the caller.
//
// The pipeline never writes optimistic state into the shared cache; any
// provisional UI state stays local to the issuing component and is
// discarded once the authoritative refetch lands.
package mutations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"Quill/internal/blogapi"
	"Quill/internal/core/cache"
	"Quill/internal/core/invalidation"
	"Quill/internal/core/session"
)

// Service executes mutations against the API. Safe for concurrent use.
type Service struct {
	api      blogapi.Client
	sessions Sessions
	cache    Invalidator
	inflight *inflightGuard
	logger   *slog.Logger
}

// NewService creates the mutation pipeline.
func NewService(api blogapi.Client, sessions Sessions, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:      api,
		sessions: sessions,
		cache:    invalidator,
		inflight: newInflightGuard(),
		logger:   logger,
	}
}

// IsPending reports whether a mutation for operation+target is currently
// awaiting the API. The presentation layer uses this to disable submit
// controls during submission.
func (s *Service) IsPending(op invalidation.Operation, target string) bool {
	return s.inflight.pending(op, target)
}

// requireSession returns the live session or an AuthorizationError. A
// session-store failure surfaces as ErrSessionUnavailable so callers can
// classify it alongside other infrastructure errors.
func (s *Service) requireSession() (*session.Session, error) {
	sess, err := s.sessions.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	if sess == nil {
		return nil, NewAuthorizationError("sign-in required")
	}
	return sess, nil
}

// invalidate applies the router's key set for a confirmed mutation.
func (s *Service) invalidate(op invalidation.Operation, params invalidation.Params) {
	for _, key := range invalidation.Keys(op, params) {
		s.cache.Invalidate(key)
	}
	s.logger.Debug("mutation confirmed, cache invalidated", "operation", string(op))
}

// CreatePostInput carries the fields for a new post. Image is required.
type CreatePostInput struct {
	Title    string
	Content  string
	Category string
	Image    *blogapi.FileAttachment
}

// CreatePost submits a new post and invalidates the post listing.
func (s *Service) CreatePost(ctx context.Context, in CreatePostInput) (*blogapi.Post, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, NewValidationError("title", "title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, NewValidationError("content", "content is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, NewValidationError("category", "category is required")
	}
	if in.Image == nil || len(in.Image.Data) == 0 {
		// Fail fast locally; a post without an image is rejected before
		// any bytes hit the wire.
		return nil, NewValidationError("image", "an image is required")
	}

	if _, err := s.requireSession(); err != nil {
		return nil, err
	}

	target := strings.ToLower(strings.TrimSpace(in.Title))
	if err := s.inflight.begin(invalidation.OpCreatePost, target); err != nil {
		return nil, err
	}
	defer s.inflight.end(invalidation.OpCreatePost, target)

	post, err := s.api.CreatePost(ctx, blogapi.CreatePostRequest{
		Title:    in.Title,
		Content:  in.Content,
		Category: in.Category,
		Image:    in.Image,
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(invalidation.OpCreatePost, invalidation.Params{})
	return post, nil
}

// UpdatePostInput carries edits to an existing post. A nil Image keeps the
// stored image, provided ExistingImage references one. AuthorID is the
// post's owner as rendered by the UI; the server re-checks ownership.
type UpdatePostInput struct {
	PostID        string
	AuthorID      string
	Title         string
	Content       string
	Category      string
	Image         *blogapi.FileAttachment
	ExistingImage string
}

// UpdatePost edits a post and invalidates both the listing and the post's
// own entry. Allowed for the post's author or an admin.
func (s *Service) UpdatePost(ctx context.Context, in UpdatePostInput) (*blogapi.Post, error) {
	if in.PostID == "" {
		return nil, NewValidationError("postId", "post id is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, NewValidationError("title", "title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, NewValidationError("content", "content is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, NewValidationError("category", "category is required")
	}
	if in.Image == nil && in.ExistingImage == "" {
		return nil, NewValidationError("image", "an image is required")
	}

	sess, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	if sess.UserID != in.AuthorID && !sess.IsAdmin {
		return nil, NewAuthorizationError("only the author or an admin may edit a post")
	}

	if err := s.inflight.begin(invalidation.OpUpdatePost, in.PostID); err != nil {
		return nil, err
	}
	defer s.inflight.end(invalidation.OpUpdatePost, in.PostID)

	post, err := s.api.UpdatePost(ctx, in.PostID, blogapi.UpdatePostRequest{
		Title:    in.Title,
		Content:  in.Content,
		Category: in.Category,
		Image:    in.Image,
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(invalidation.OpUpdatePost, invalidation.Params{PostID: in.PostID})
	return post, nil
}

// DeletePostInput identifies the post to delete and its owner.
type DeletePostInput struct {
	PostID   string
	AuthorID string
}

// DeletePost removes a post, invalidates the listing, and drops the post's
// own cache entry. Allowed for the post's author or an admin.
func (s *Service) DeletePost(ctx context.Context, in DeletePostInput) error {
	if in.PostID == "" {
		return NewValidationError("postId", "post id is required")
	}

	sess, err := s.requireSession()
	if err != nil {
		return err
	}
	if sess.UserID != in.AuthorID && !sess.IsAdmin {
		return NewAuthorizationError("only the author or an admin may delete a post")
	}

	if err := s.inflight.begin(invalidation.OpDeletePost, in.PostID); err != nil {
		return err
	}
	defer s.inflight.end(invalidation.OpDeletePost, in.PostID)

	if err := s.api.DeletePost(ctx, in.PostID); err != nil {
		return err
	}

	s.invalidate(invalidation.OpDeletePost, invalidation.Params{PostID: in.PostID})
	// Delete-success is the only path that removes an entity's own entry.
	s.cache.Remove(cache.PostKey(in.PostID))
	return nil
}

// CreateCommentInput carries a new comment for a post.
type CreateCommentInput struct {
	PostID  string
	Content string
}

// CreateComment adds a comment and invalidates the post's comment list.
func (s *Service) CreateComment(ctx context.Context, in CreateCommentInput) (*blogapi.Comment, error) {
	if in.PostID == "" {
		return nil, NewValidationError("postId", "post id is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, NewValidationError("content", "content is required")
	}

	if _, err := s.requireSession(); err != nil {
		return nil, err
	}

	if err := s.inflight.begin(invalidation.OpCreateComment, in.PostID); err != nil {
		return nil, err
	}
	defer s.inflight.end(invalidation.OpCreateComment, in.PostID)

	comment, err := s.api.CreateComment(ctx, in.PostID, in.Content)
	if err != nil {
		return nil, err
	}

	s.invalidate(invalidation.OpCreateComment, invalidation.Params{PostID: in.PostID})
	return comment, nil
}

// UpdateCommentInput carries edits to a comment. AuthorID is the comment's
// owner as rendered by the UI.
type UpdateCommentInput struct {
	CommentID string
	PostID    string
	AuthorID  string
	Content   string
}

// UpdateComment edits a comment. Allowed only for the comment's author.
func (s *Service) UpdateComment(ctx context.Context, in UpdateCommentInput) (*blogapi.Comment, error) {
	if in.CommentID == "" {
		return nil, NewValidationError("commentId", "comment id is required")
	}
	// PostID feeds the invalidation set; without it the comment list
	// would never go stale.
	if in.PostID == "" {
		return nil, NewValidationError("postId", "post id is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, NewValidationError("content", "content is required")
	}

	sess, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	if sess.UserID != in.AuthorID {
		return nil, NewAuthorizationError("only the author may edit a comment")
	}

	if err := s.inflight.begin(invalidation.OpUpdateComment, in.CommentID); err != nil {
		return nil, err
	}
	defer s.inflight.end(invalidation.OpUpdateComment, in.CommentID)

	comment, err := s.api.UpdateComment(ctx, in.CommentID, in.Content)
	if err != nil {
		return nil, err
	}

	s.invalidate(invalidation.OpUpdateComment, invalidation.Params{PostID: in.PostID})
	return comment, nil
}

// DeleteCommentInput identifies the comment to delete and its owner.
type DeleteCommentInput struct {
	CommentID string
	PostID    string
	AuthorID  string
}

// DeleteComment removes a comment. Allowed only for the comment's author.
func (s *Service) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	if in.CommentID == "" {
		return NewValidationError("commentId", "comment id is required")
	}
	if in.PostID == "" {
		return NewValidationError("postId", "post id is required")
	}

	sess, err := s.requireSession()
	if err != nil {
		return err
	}
	if sess.UserID != in.AuthorID {
		return NewAuthorizationError("only the author may delete a comment")
	}

	if err := s.inflight.begin(invalidation.OpDeleteComment, in.CommentID); err != nil {
		return err
	}
	defer s.inflight.end(invalidation.OpDeleteComment, in.CommentID)

	if err := s.api.DeleteComment(ctx, in.CommentID); err != nil {
		return err
	}

	s.invalidate(invalidation.OpDeleteComment, invalidation.Params{PostID: in.PostID})
	return nil
}

// LikeCommentInput identifies the comment to like.
type LikeCommentInput struct {
	CommentID string
	PostID    string
}

// LikeComment toggles the viewer's like on a comment. The updated like
// count comes back from the server; it is never computed locally.
func (s *Service) LikeComment(ctx context.Context, in LikeCommentInput) (*blogapi.Comment, error) {
	if in.CommentID == "" {
		return nil, NewValidationError("commentId", "comment id is required")
	}
	if in.PostID == "" {
		return nil, NewValidationError("postId", "post id is required")
	}

	if _, err := s.requireSession(); err != nil {
		return nil, err
	}

	if err := s.inflight.begin(invalidation.OpLikeComment, in.CommentID); err != nil {
		return nil, err
	}
	defer s.inflight.end(invalidation.OpLikeComment, in.CommentID)

	comment, err := s.api.LikeComment(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}

	s.invalidate(invalidation.OpLikeComment, invalidation.Params{PostID: in.PostID})
	return comment, nil
}

// UpdateProfileInput carries the viewer's profile edits.
type UpdateProfileInput struct {
	UserID   string
	Username string
	Email    string
	Picture  *blogapi.FileAttachment
}

// UpdateProfile edits the viewer's own profile, refreshes the persisted
// session with the confirmed fields, and invalidates the session and user
// cache keys. Self only; admins cannot edit other profiles here.
func (s *Service) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*blogapi.User, error) {
	if in.UserID == "" {
		return nil, NewValidationError("userId", "user id is required")
	}
	if in.Picture == nil && strings.TrimSpace(in.Username) == "" && strings.TrimSpace(in.Email) == "" {
		return nil, NewValidationError("fields", "nothing to update")
	}

	sess, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	if sess.UserID != in.UserID {
		return nil, NewAuthorizationError("profiles can only be edited by their owner")
	}

	if err := s.inflight.begin(invalidation.OpUpdateProfile, in.UserID); err != nil {
		return nil, err
	}
	defer s.inflight.end(invalidation.OpUpdateProfile, in.UserID)

	user, err := s.api.UpdateProfile(ctx, in.UserID, blogapi.UpdateProfileRequest{
		Username: in.Username,
		Email:    in.Email,
		Picture:  in.Picture,
	})
	if err != nil {
		return nil, err
	}

	// Carry the confirmed fields into the persisted session; the stored
	// expiry timestamp is left untouched.
	if _, err := s.sessions.Refresh(session.Session{
		UserID:         sess.UserID,
		Username:       user.Username,
		Email:          user.Email,
		IsAdmin:        sess.IsAdmin,
		ProfilePicture: user.ProfilePicture,
	}); err != nil {
		s.logger.Error("profile updated but session refresh failed", "error", err)
	}

	s.invalidate(invalidation.OpUpdateProfile, invalidation.Params{UserID: in.UserID})
	return user, nil
}
