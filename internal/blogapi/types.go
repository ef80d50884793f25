package blogapi

import "time"

// Post is a blog post as returned by the API.
// Image is an opaque reference; resolving it to a displayable URL is the
// caller's concern.
type Post struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Image     string    `json:"image,omitempty"`
	AuthorID  string    `json:"userId"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment belongs to exactly one post. NumberOfLikes is server-derived and
// treated as authoritative; it is never recomputed client-side.
type Comment struct {
	ID            string   `json:"_id"`
	PostID        string   `json:"postId"`
	AuthorID      string   `json:"userId"`
	Content       string   `json:"content"`
	Likes         []string `json:"likes"`
	NumberOfLikes int      `json:"numberOfLikes"`
}

// LikedBy reports whether userID is in the comment's like set.
func (c *Comment) LikedBy(userID string) bool {
	for _, id := range c.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// User is a per-id profile snapshot fetched on demand; posts and comments
// reference users by AuthorID rather than embedding them.
type User struct {
	ID             string `json:"_id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	IsAdmin        bool   `json:"isAdmin"`
}

// CreatePostRequest carries the fields for a new post. Image is required;
// the mutation layer rejects a missing image before any network call.
type CreatePostRequest struct {
	Title    string
	Content  string
	Category string
	Image    *FileAttachment
}

// UpdatePostRequest carries the editable fields of an existing post.
// A nil Image means "keep the current image"; the image field is then
// omitted from the payload entirely.
type UpdatePostRequest struct {
	Title    string
	Content  string
	Category string
	Image    *FileAttachment
}

// UpdateProfileRequest carries profile edits. Picture is optional.
type UpdateProfileRequest struct {
	Username string
	Email    string
	Picture  *FileAttachment
}
