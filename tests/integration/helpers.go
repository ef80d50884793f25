package integration

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"Quill/internal/blogapi"
	"Quill/internal/core/auth"
	"Quill/internal/core/cache"
	"Quill/internal/core/mutations"
	"Quill/internal/core/queries"
	"Quill/internal/core/session"
)

const testSessionTTL = time.Hour

// fakeBlogServer is an in-memory stand-in for the blogging service's REST
// API. It speaks the same wire format as the real thing: cookie auth,
// multipart post uploads, {"user": ...} envelopes on auth/profile routes
// and {"message": ...} error bodies.
type fakeBlogServer struct {
	mu       sync.Mutex
	users    map[string]*fakeUser // by id
	byEmail  map[string]string    // email -> id
	posts    map[string]*blogapi.Post
	comments map[string]*blogapi.Comment
	tokens   map[string]string // cookie token -> user id
	calls    map[string]int    // "METHOD /route/pattern" -> count

	// When set, handleCreatePost blocks until the channel is closed,
	// letting tests observe in-flight state deterministically.
	createPostGate chan struct{}
}

type fakeUser struct {
	user     blogapi.User
	password string
}

func newFakeBlogServer() *fakeBlogServer {
	return &fakeBlogServer{
		users:    make(map[string]*fakeUser),
		byEmail:  make(map[string]string),
		posts:    make(map[string]*blogapi.Post),
		comments: make(map[string]*blogapi.Comment),
		tokens:   make(map[string]string),
		calls:    make(map[string]int),
	}
}

// callCount returns how many requests matched the given chi route pattern,
// e.g. "GET /api/posts" or "PUT /api/comments/{commentID}/like".
func (s *fakeBlogServer) callCount(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern]
}

// seedUser registers an account directly, bypassing the signup route.
func (s *fakeBlogServer) seedUser(username, email, password string, isAdmin bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	s.users[id] = &fakeUser{
		user: blogapi.User{
			ID:       id,
			Username: username,
			Email:    email,
			IsAdmin:  isAdmin,
		},
		password: password,
	}
	s.byEmail[email] = id
	return id
}

func (s *fakeBlogServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.countCalls)

	r.Post("/api/auth/signup", s.handleSignUp)
	r.Post("/api/auth/signin", s.handleSignIn)
	r.Post("/api/auth/signout", s.handleSignOut)

	r.Get("/api/posts", s.handleListPosts)
	r.Post("/api/posts", s.handleCreatePost)
	r.Get("/api/posts/{postID}", s.handleGetPost)
	r.Put("/api/posts/{postID}", s.handleUpdatePost)
	r.Delete("/api/posts/{postID}", s.handleDeletePost)

	r.Get("/api/posts/{postID}/comments", s.handleListComments)
	r.Post("/api/posts/{postID}/comments", s.handleCreateComment)
	r.Put("/api/comments/{commentID}", s.handleUpdateComment)
	r.Delete("/api/comments/{commentID}", s.handleDeleteComment)
	r.Put("/api/comments/{commentID}/like", s.handleLikeComment)

	r.Get("/api/users/{userID}", s.handleGetUser)
	r.Put("/api/users/{userID}", s.handleUpdateProfile)

	return r
}

func (s *fakeBlogServer) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if pattern := chi.RouteContext(r.Context()).RoutePattern(); pattern != "" {
			s.mu.Lock()
			s.calls[r.Method+" "+pattern]++
			s.mu.Unlock()
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// viewer resolves the request's access_token cookie to a user, or nil.
func (s *fakeBlogServer) viewer(r *http.Request) *blogapi.User {
	c, err := r.Cookie("access_token")
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[c.Value]
	if !ok {
		return nil
	}
	u := s.users[id].user
	return &u
}

func (s *fakeBlogServer) grantToken(w http.ResponseWriter, userID string) {
	token := uuid.New().String()
	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: token, Path: "/", HttpOnly: true})
}

func (s *fakeBlogServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct{ Username, Email, Password string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "All fields are required")
		return
	}
	s.mu.Lock()
	_, taken := s.byEmail[req.Email]
	s.mu.Unlock()
	if taken {
		writeMessage(w, http.StatusConflict, "Email already in use")
		return
	}

	id := s.seedUser(req.Username, req.Email, req.Password, false)
	s.grantToken(w, id)
	s.mu.Lock()
	u := s.users[id].user
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (s *fakeBlogServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct{ Email, Password string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	id, ok := s.byEmail[req.Email]
	var u *fakeUser
	if ok {
		u = s.users[id]
	}
	s.mu.Unlock()
	if u == nil || u.password != req.Password {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	s.grantToken(w, id)
	writeJSON(w, http.StatusOK, map[string]any{"user": u.user})
}

func (s *fakeBlogServer) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie("access_token"); err == nil {
		s.mu.Lock()
		delete(s.tokens, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

func (s *fakeBlogServer) handleListPosts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	posts := make([]blogapi.Post, 0, len(s.posts))
	for _, p := range s.posts {
		posts = append(posts, *p)
	}
	s.mu.Unlock()
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	writeJSON(w, http.StatusOK, posts)
}

func slugify(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(title))), "-")
}

func (s *fakeBlogServer) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.createPostGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	u := s.viewer(r)
	if u == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	title := r.FormValue("title")
	content := r.FormValue("content")
	category := r.FormValue("category")
	if title == "" || content == "" || category == "" {
		writeMessage(w, http.StatusBadRequest, "All fields are required")
		return
	}
	img, header, err := r.FormFile("image")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "An image is required")
		return
	}
	_ = img.Close()

	post := &blogapi.Post{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		Category:  category,
		Image:     "/uploads/" + header.Filename,
		AuthorID:  u.ID,
		Slug:      slugify(title),
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.posts[post.ID] = post
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, post)
}

func (s *fakeBlogServer) handleGetPost(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	post, ok := s.posts[chi.URLParam(r, "postID")]
	var copied blogapi.Post
	if ok {
		copied = *post
	}
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Post not found")
		return
	}
	writeJSON(w, http.StatusOK, copied)
}

func (s *fakeBlogServer) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	u := s.viewer(r)
	if u == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	s.mu.Lock()
	post, ok := s.posts[chi.URLParam(r, "postID")]
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Post not found")
		return
	}
	if post.AuthorID != u.ID && !u.IsAdmin {
		writeMessage(w, http.StatusForbidden, "You are not allowed to edit this post")
		return
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "expected multipart form")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v := r.FormValue("title"); v != "" {
		post.Title = v
		post.Slug = slugify(v)
	}
	if v := r.FormValue("content"); v != "" {
		post.Content = v
	}
	if v := r.FormValue("category"); v != "" {
		post.Category = v
	}
	// The image part is optional on edit; absence keeps the stored one.
	if img, header, err := r.FormFile("image"); err == nil {
		_ = img.Close()
		post.Image = "/uploads/" + header.Filename
	}
	writeJSON(w, http.StatusOK, *post)
}

func (s *fakeBlogServer) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	u := s.viewer(r)
	if u == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	postID := chi.URLParam(r, "postID")
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[postID]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Post not found")
		return
	}
	if post.AuthorID != u.ID && !u.IsAdmin {
		writeMessage(w, http.StatusForbidden, "You are not allowed to delete this post")
		return
	}
	delete(s.posts, postID)
	for id, c := range s.comments {
		if c.PostID == postID {
			delete(s.comments, id)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (s *fakeBlogServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	s.mu.Lock()
	comments := make([]blogapi.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == postID {
			comments = append(comments, *c)
		}
	}
	s.mu.Unlock()
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	writeJSON(w, http.StatusOK, comments)
}

func (s *fakeBlogServer) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	u := s.viewer(r)
	if u == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	postID := chi.URLParam(r, "postID")
	s.mu.Lock()
	_, postExists := s.posts[postID]
	s.mu.Unlock()
	if !postExists {
		writeMessage(w, http.StatusNotFound, "Post not found")
		return
	}
	var req struct{ Content string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeMessage(w, http.StatusBadRequest, "Content is required")
		return
	}
	comment := &blogapi.Comment{
		ID:       uuid.New().String(),
		PostID:   postID,
		AuthorID: u.ID,
		Content:  req.Content,
		Likes:    []string{},
	}
	s.mu.Lock()
	s.comments[comment.ID] = comment
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, *comment)
}

func (s *fakeBlogServer) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	u := s.viewer(r)
	if u == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	s.mu.Lock()
	comment, ok := s.comments[chi.URLParam(r, "commentID")]
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Comment not found")
		return
	}
	if comment.AuthorID != u.ID {
		writeMessage(w, http.StatusForbidden, "You are not allowed to edit this comment")
		return
	}
	var req struct{ Content string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeMessage(w, http.StatusBadRequest, "Content is required")
		return
	}
	s.mu.Lock()
	comment.Content = req.Content
	copied := *comment
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, copied)
}

func (s *fakeBlogServer) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	u := s.viewer(r)
	if u == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	commentID := chi.URLParam(r, "commentID")
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[commentID]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Comment not found")
		return
	}
	if comment.AuthorID != u.ID {
		writeMessage(w, http.StatusForbidden, "You are not allowed to delete this comment")
		return
	}
	delete(s.comments, commentID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (s *fakeBlogServer) handleLikeComment(w http.ResponseWriter, r *http.Request) {
	u := s.viewer(r)
	if u == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[chi.URLParam(r, "commentID")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Comment not found")
		return
	}
	// Toggle: a second like from the same user removes the first.
	liked := false
	for i, id := range comment.Likes {
		if id == u.ID {
			comment.Likes = append(comment.Likes[:i], comment.Likes[i+1:]...)
			liked = true
			break
		}
	}
	if !liked {
		comment.Likes = append(comment.Likes, u.ID)
	}
	comment.NumberOfLikes = len(comment.Likes)
	writeJSON(w, http.StatusOK, *comment)
}

func (s *fakeBlogServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u, ok := s.users[chi.URLParam(r, "userID")]
	var copied blogapi.User
	if ok {
		copied = u.user
	}
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, copied)
}

func (s *fakeBlogServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	u := s.viewer(r)
	if u == nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	userID := chi.URLParam(r, "userID")
	if u.ID != userID {
		writeMessage(w, http.StatusForbidden, "You are not allowed to update this user")
		return
	}

	var username, email, picture string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		username = r.FormValue("username")
		email = r.FormValue("email")
		if img, header, err := r.FormFile("profilePicture"); err == nil {
			_ = img.Close()
			picture = "/uploads/" + header.Filename
		}
	} else {
		var req struct{ Username, Email string }
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid body")
			return
		}
		username, email = req.Username, req.Email
	}

	s.mu.Lock()
	rec := s.users[userID]
	if username != "" {
		rec.user.Username = username
	}
	if email != "" {
		rec.user.Email = email
	}
	if picture != "" {
		rec.user.ProfilePicture = picture
	}
	copied := rec.user
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"user": copied})
}

// testEnv wires the full client stack against a fake API server, with
// session state persisted in a per-test temp directory.
type testEnv struct {
	fake     *fakeBlogServer
	server   *httptest.Server
	api      blogapi.Client
	cache    *cache.Cache
	storage  *session.FileStore
	sessions *session.Manager

	queries   *queries.Service
	mutations *mutations.Service
	auth      *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := newFakeBlogServer()
	server := httptest.NewServer(fake.router())
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	api, err := blogapi.NewClient(server.URL, 5*time.Second, logger)
	if err != nil {
		t.Fatalf("Failed to create API client: %v", err)
	}

	storage, err := session.NewFileStore(t.TempDir(), []byte("integration-test-secret"))
	if err != nil {
		t.Fatalf("Failed to create session store: %v", err)
	}
	sessions := session.NewManager(storage, logger)
	t.Cleanup(func() { _ = sessions.Clear() })

	entityCache := cache.New(logger)
	sessions.OnExpire(func() { entityCache.Invalidate(cache.SessionKey()) })

	return &testEnv{
		fake:      fake,
		server:    server,
		api:       api,
		cache:     entityCache,
		storage:   storage,
		sessions:  sessions,
		queries:   queries.NewService(api, entityCache, sessions),
		mutations: mutations.NewService(api, sessions, entityCache, logger),
		auth:      auth.NewService(api, sessions, entityCache, testSessionTTL, logger),
	}
}

// newPostInput builds a valid create-post input with the given title.
func newPostInput(title string) mutations.CreatePostInput {
	return mutations.CreatePostInput{
		Title:    title,
		Content:  "Some long-form content about " + title + ".",
		Category: "golang",
		Image:    pngAttachment("cover.png"),
	}
}

// pngAttachment returns a minimal file attachment for upload tests.
func pngAttachment(name string) *blogapi.FileAttachment {
	return &blogapi.FileAttachment{
		Name:        name,
		ContentType: "image/png",
		Data:        []byte{0x89, 0x50, 0x4e, 0x47},
	}
}
