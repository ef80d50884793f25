// Package invalidation maps a completed mutation to the set of cache keys
// that must be refetched. The mapping is pure and deterministic; the
// mutation pipeline calls it once per successful mutation and forwards the
// result to the cache.
package invalidation

import "Quill/internal/core/cache"

// Operation names a mutation in the pipeline.
type Operation string

const (
	OpCreatePost    Operation = "createPost"
	OpUpdatePost    Operation = "updatePost"
	OpDeletePost    Operation = "deletePost"
	OpCreateComment Operation = "createComment"
	OpUpdateComment Operation = "updateComment"
	OpDeleteComment Operation = "deleteComment"
	OpLikeComment   Operation = "likeComment"
	OpUpdateProfile Operation = "updateProfile"
)

// Params carries the identifiers a mutation's invalidation set depends on.
// Only the fields relevant to the operation need to be populated.
type Params struct {
	PostID string
	UserID string
}

// Keys returns the cache keys (or prefixes) invalidated by a successful
// run of op. Unknown operations invalidate nothing.
func Keys(op Operation, p Params) []cache.Key {
	switch op {
	case OpCreatePost, OpDeletePost:
		return []cache.Key{cache.PostsKey()}
	case OpUpdatePost:
		return []cache.Key{cache.PostsKey(), cache.PostKey(p.PostID)}
	case OpCreateComment, OpUpdateComment, OpDeleteComment, OpLikeComment:
		return []cache.Key{cache.CommentsKey(p.PostID)}
	case OpUpdateProfile:
		return []cache.Key{cache.SessionKey(), cache.UserKey(p.UserID)}
	default:
		return nil
	}
}
