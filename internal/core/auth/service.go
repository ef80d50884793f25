// Package auth owns the session lifecycle: sign-up and sign-in seed the
// persisted session from the API's confirmed user record, sign-out revokes
// it. No other component creates or destroys sessions.
package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"Quill/internal/blogapi"
	"Quill/internal/core/cache"
	"Quill/internal/core/session"
)

// Sessions is the session-store surface the auth flow owns.
type Sessions interface {
	Save(sess session.Session, ttl time.Duration) (*session.Session, error)
	Clear() error
}

// Invalidator marks session-dependent cache state stale after lifecycle
// transitions.
type Invalidator interface {
	Invalidate(prefix cache.Key)
}

// Service drives sign-up, sign-in, and sign-out.
type Service struct {
	api      blogapi.Client
	sessions Sessions
	cache    Invalidator
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService creates the auth flow. ttl bounds each new session; a
// non-positive value falls back to the session store's default.
func NewService(api blogapi.Client, sessions Sessions, invalidator Invalidator, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:      api,
		sessions: sessions,
		cache:    invalidator,
		ttl:      ttl,
		logger:   logger,
	}
}

// SignUp registers a new account and starts a session.
func (s *Service) SignUp(ctx context.Context, username, email, password string) (*session.Session, error) {
	if strings.TrimSpace(username) == "" {
		return nil, ErrMissingUsername
	}
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.api.SignUp(ctx, username, email, password)
	if err != nil {
		return nil, err
	}
	return s.seed(user)
}

// SignIn authenticates and starts a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.api.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.seed(user)
}

// seed persists a session built from the API's confirmed user record.
func (s *Service) seed(user *blogapi.User) (*session.Session, error) {
	sess, err := s.sessions.Save(session.Session{
		UserID:         user.ID,
		Username:       user.Username,
		Email:          user.Email,
		IsAdmin:        user.IsAdmin,
		ProfilePicture: user.ProfilePicture,
	}, s.ttl)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.SessionKey())
	s.logger.Info("session started", "userId", sess.UserID)
	return sess, nil
}

// SignOut revokes the server-side session, then clears the persisted
// record. The local record is kept if the API call fails, so a transient
// network error doesn't strand a server session the user believes is gone.
func (s *Service) SignOut(ctx context.Context) error {
	if err := s.api.SignOut(ctx); err != nil {
		return err
	}
	if err := s.sessions.Clear(); err != nil {
		return err
	}
	s.cache.Invalidate(cache.SessionKey())
	s.logger.Info("session ended")
	return nil
}
