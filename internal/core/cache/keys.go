package cache

import "strings"

// Key is a hierarchical cache key made of path segments, e.g.
// {"comments", "<postId>"}. Modeling keys as segments instead of raw
// strings keeps prefix invalidation segment-wise: invalidating "post"
// never touches "posts".
type Key []string

// String renders the key in its canonical colon-joined form.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Equal reports whether two keys are identical.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix matches the leading segments of k.
// A key is considered its own prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Canonical key constructors. Kept in one place so key shapes never drift
// between the query layer and the invalidation router.

// PostsKey is the key for the full post listing.
func PostsKey() Key { return Key{"posts"} }

// PostKey is the key for a single post.
func PostKey(postID string) Key { return Key{"post", postID} }

// CommentsKey is the key for a post's comment list.
func CommentsKey(postID string) Key { return Key{"comments", postID} }

// UserKey is the key for a user profile snapshot.
func UserKey(userID string) Key { return Key{"user", userID} }

// SessionKey is the key for the viewer's session record.
func SessionKey() Key { return Key{"session"} }
