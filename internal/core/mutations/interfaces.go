package mutations

import (
	"Quill/internal/core/cache"
	"Quill/internal/core/session"
)

// Sessions provides the viewer's identity for authorization gating and
// lets the pipeline refresh the persisted record after profile edits.
type Sessions interface {
	// Load returns the live session, or nil when none exists or the
	// stored one has expired.
	Load() (*session.Session, error)

	// Refresh rewrites the session record without touching its expiry.
	Refresh(sess session.Session) (*session.Session, error)
}

// Invalidator is the cache surface the pipeline touches after a confirmed
// mutation. Nothing here is called on failure; the cache is left untouched
// so stale-but-consistent reads keep working.
type Invalidator interface {
	// Invalidate marks the key (and all keys under it) stale.
	Invalidate(prefix cache.Key)

	// Remove drops an entry entirely; used on delete-success only.
	Remove(key cache.Key)
}
