// Package blogapi provides the HTTP client for the blogging service's REST
// API. It wraps hashicorp's retryable HTTP client to provide typed errors
// and transparent credential handling: the server establishes an auth cookie
// at sign-in and the client carries it on every subsequent request.
package blogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client provides access to the blogging service API.
// All methods return typed errors (see errors.go) so callers can classify
// failures without inspecting status codes or message strings.
type Client interface {
	// SignUp registers a new account and establishes a session cookie.
	SignUp(ctx context.Context, username, email, password string) (*User, error)

	// SignIn authenticates and establishes a session cookie.
	SignIn(ctx context.Context, email, password string) (*User, error)

	// SignOut revokes the server-side session and drops the cookie.
	SignOut(ctx context.Context) error

	// ListPosts retrieves all posts, newest first.
	ListPosts(ctx context.Context) ([]Post, error)

	// GetPost retrieves a single post by id.
	GetPost(ctx context.Context, postID string) (*Post, error)

	// CreatePost submits a new post as multipart form data.
	CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error)

	// UpdatePost edits an existing post. A nil Image leaves the stored
	// image untouched.
	UpdatePost(ctx context.Context, postID string, req UpdatePostRequest) (*Post, error)

	// DeletePost removes a post.
	DeletePost(ctx context.Context, postID string) error

	// ListComments retrieves the comments on a post.
	ListComments(ctx context.Context, postID string) ([]Comment, error)

	// CreateComment adds a comment to a post.
	CreateComment(ctx context.Context, postID, content string) (*Comment, error)

	// UpdateComment edits a comment's content.
	UpdateComment(ctx context.Context, commentID, content string) (*Comment, error)

	// DeleteComment removes a comment.
	DeleteComment(ctx context.Context, commentID string) error

	// LikeComment toggles the caller's like on a comment and returns the
	// updated comment. The like count in the response is authoritative.
	LikeComment(ctx context.Context, commentID string) (*Comment, error)

	// GetUser retrieves a user's public profile.
	GetUser(ctx context.Context, userID string) (*User, error)

	// UpdateProfile edits the caller's own profile, optionally replacing
	// the profile picture.
	UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*User, error)
}

type client struct {
	// reads retries transient failures; writes never does, so a flaky
	// network can't silently duplicate a submission. Both share one
	// cookie jar so the auth cookie rides along everywhere.
	reads   *retryablehttp.Client
	writes  *retryablehttp.Client
	baseURL string
	logger  *slog.Logger
}

// Ensure client implements Client interface.
var _ Client = (*client)(nil)

// NewClient creates an API client for the service at baseURL.
// Transient failures are retried for GET requests only; mutating requests
// are never replayed.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	httpClient := &http.Client{Jar: jar, Timeout: timeout}

	reads := retryablehttp.NewClient()
	reads.HTTPClient = httpClient
	reads.RetryMax = 2
	reads.RetryWaitMin = 200 * time.Millisecond
	reads.RetryWaitMax = 2 * time.Second
	reads.Logger = nil

	writes := retryablehttp.NewClient()
	writes.HTTPClient = httpClient
	writes.RetryMax = 0
	writes.Logger = nil

	return &client{
		reads:   reads,
		writes:  writes,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// apiMessage is the error envelope the server returns for failed requests.
type apiMessage struct {
	Message string `json:"message"`
}

// do performs a request and decodes the JSON response into out (if non-nil).
// Non-2xx responses are mapped to typed errors via wrapStatusError.
func (c *client) do(ctx context.Context, operation, method, path, contentType string, body io.Reader, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", operation, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.writes
	if method == http.MethodGet {
		httpClient = c.reads
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", operation, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg apiMessage
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); readErr == nil {
			_ = json.Unmarshal(data, &msg)
		}
		return wrapStatusError(operation, resp.StatusCode, msg.Message)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return nil
}

// doJSON encodes payload as the JSON request body.
func (c *client) doJSON(ctx context.Context, operation, method, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", operation, err)
	}
	return c.do(ctx, operation, method, path, "application/json", bytes.NewReader(data), out)
}

// userEnvelope wraps user-bearing responses from auth and profile endpoints.
type userEnvelope struct {
	User User `json:"user"`
}

func (c *client) SignUp(ctx context.Context, username, email, password string) (*User, error) {
	payload := map[string]string{
		"username": strings.TrimSpace(username),
		"email":    strings.TrimSpace(email),
		"password": password,
	}
	var result userEnvelope
	if err := c.doJSON(ctx, "signUp", http.MethodPost, "/api/auth/signup", payload, &result); err != nil {
		return nil, err
	}
	return &result.User, nil
}

func (c *client) SignIn(ctx context.Context, email, password string) (*User, error) {
	payload := map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	}
	var result userEnvelope
	if err := c.doJSON(ctx, "signIn", http.MethodPost, "/api/auth/signin", payload, &result); err != nil {
		return nil, err
	}
	return &result.User, nil
}

func (c *client) SignOut(ctx context.Context) error {
	return c.do(ctx, "signOut", http.MethodPost, "/api/auth/signout", "", nil, nil)
}

func (c *client) ListPosts(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := c.do(ctx, "listPosts", http.MethodGet, "/api/posts", "", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *client) GetPost(ctx context.Context, postID string) (*Post, error) {
	var post Post
	if err := c.do(ctx, "getPost", http.MethodGet, "/api/posts/"+url.PathEscape(postID), "", nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *client) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	fields := map[string]string{
		"title":    req.Title,
		"content":  req.Content,
		"category": req.Category,
	}
	body, contentType, err := EncodeMultipart(fields, "image", req.Image)
	if err != nil {
		return nil, fmt.Errorf("createPost: %w", err)
	}
	var post Post
	if err := c.do(ctx, "createPost", http.MethodPost, "/api/posts", contentType, body, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *client) UpdatePost(ctx context.Context, postID string, req UpdatePostRequest) (*Post, error) {
	fields := map[string]string{
		"title":    req.Title,
		"content":  req.Content,
		"category": req.Category,
	}
	body, contentType, err := EncodeMultipart(fields, "image", req.Image)
	if err != nil {
		return nil, fmt.Errorf("updatePost: %w", err)
	}
	var post Post
	if err := c.do(ctx, "updatePost", http.MethodPut, "/api/posts/"+url.PathEscape(postID), contentType, body, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *client) DeletePost(ctx context.Context, postID string) error {
	return c.do(ctx, "deletePost", http.MethodDelete, "/api/posts/"+url.PathEscape(postID), "", nil, nil)
}

func (c *client) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	var comments []Comment
	path := "/api/posts/" + url.PathEscape(postID) + "/comments"
	if err := c.do(ctx, "listComments", http.MethodGet, path, "", nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *client) CreateComment(ctx context.Context, postID, content string) (*Comment, error) {
	payload := map[string]string{"content": strings.TrimSpace(content)}
	path := "/api/posts/" + url.PathEscape(postID) + "/comments"
	var comment Comment
	if err := c.doJSON(ctx, "createComment", http.MethodPost, path, payload, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *client) UpdateComment(ctx context.Context, commentID, content string) (*Comment, error) {
	payload := map[string]string{"content": strings.TrimSpace(content)}
	var comment Comment
	if err := c.doJSON(ctx, "updateComment", http.MethodPut, "/api/comments/"+url.PathEscape(commentID), payload, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *client) DeleteComment(ctx context.Context, commentID string) error {
	return c.do(ctx, "deleteComment", http.MethodDelete, "/api/comments/"+url.PathEscape(commentID), "", nil, nil)
}

func (c *client) LikeComment(ctx context.Context, commentID string) (*Comment, error) {
	var comment Comment
	path := "/api/comments/" + url.PathEscape(commentID) + "/like"
	if err := c.do(ctx, "likeComment", http.MethodPut, path, "", nil, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *client) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.do(ctx, "getUser", http.MethodGet, "/api/users/"+url.PathEscape(userID), "", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *client) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*User, error) {
	var result userEnvelope
	path := "/api/users/" + url.PathEscape(userID)

	// Picture edits require multipart; plain field edits stay JSON.
	if req.Picture != nil {
		fields := map[string]string{}
		if req.Username != "" {
			fields["username"] = req.Username
		}
		if req.Email != "" {
			fields["email"] = req.Email
		}
		body, contentType, err := EncodeMultipart(fields, "profilePicture", req.Picture)
		if err != nil {
			return nil, fmt.Errorf("updateProfile: %w", err)
		}
		if err := c.do(ctx, "updateProfile", http.MethodPut, path, contentType, body, &result); err != nil {
			return nil, err
		}
		return &result.User, nil
	}

	payload := map[string]string{
		"username": strings.TrimSpace(req.Username),
		"email":    strings.TrimSpace(req.Email),
	}
	if err := c.doJSON(ctx, "updateProfile", http.MethodPut, path, payload, &result); err != nil {
		return nil, err
	}
	return &result.User, nil
}
