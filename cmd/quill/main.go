package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"Quill/internal/blogapi"
	"Quill/internal/config"
	"Quill/internal/core/auth"
	"Quill/internal/core/cache"
	"Quill/internal/core/mutations"
	"Quill/internal/core/queries"
	"Quill/internal/core/session"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: quill <command> [args]

commands:
  signup <username> <email> <password>
  signin <email> <password>
  signout
  whoami
  posts
  post <postId>
  comments <postId>
  create-post <title> <category> <imagePath> <content...>
  comment <postId> <content...>
  like <postId> <commentId>`)
	os.Exit(2)
}

type app struct {
	queries   *queries.Service
	mutations *mutations.Service
	auth      *auth.Service
	sessions  *session.Manager
}

func main() {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	cfg, err := config.Load("quill.yaml")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	api, err := blogapi.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, logger)
	if err != nil {
		log.Fatal("Failed to create API client:", err)
	}

	storage, err := session.NewFileStore(cfg.StateDir, []byte(cfg.StateSecret))
	if err != nil {
		log.Fatal("Failed to open state dir:", err)
	}
	sessions := session.NewManager(storage, logger)

	entityCache := cache.New(logger)
	sessions.OnExpire(func() { entityCache.Invalidate(cache.SessionKey()) })

	a := &app{
		queries:   queries.NewService(api, entityCache, sessions),
		mutations: mutations.NewService(api, sessions, entityCache, logger),
		auth:      auth.NewService(api, sessions, entityCache, cfg.SessionTTL, logger),
		sessions:  sessions,
	}

	if len(os.Args) < 2 {
		usage()
	}
	if err := a.run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		log.Fatal(err)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "signup":
		if len(args) != 3 {
			usage()
		}
		sess, err := a.auth.SignUp(ctx, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("signed up as %s (session expires %s)\n", sess.Username, sess.ExpiresAt.Format("15:04:05"))

	case "signin":
		if len(args) != 2 {
			usage()
		}
		sess, err := a.auth.SignIn(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("signed in as %s (session expires %s)\n", sess.Username, sess.ExpiresAt.Format("15:04:05"))

	case "signout":
		if err := a.auth.SignOut(ctx); err != nil {
			return err
		}
		fmt.Println("signed out")

	case "whoami":
		sess, err := a.queries.Session(ctx)
		if err != nil {
			return err
		}
		if sess == nil {
			fmt.Println("not signed in")
			return nil
		}
		fmt.Printf("%s <%s> admin=%v\n", sess.Username, sess.Email, sess.IsAdmin)

	case "posts":
		posts, err := a.queries.Posts(ctx)
		if err != nil {
			return err
		}
		for _, p := range posts {
			fmt.Printf("%s  [%s]  %s\n", p.ID, p.Category, p.Title)
		}

	case "post":
		if len(args) != 1 {
			usage()
		}
		p, err := a.queries.Post(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\n[%s] by %s\n\n%s\n", p.Title, p.Category, p.AuthorID, p.Content)

	case "comments":
		if len(args) != 1 {
			usage()
		}
		comments, err := a.queries.Comments(ctx, args[0])
		if err != nil {
			return err
		}
		for _, c := range comments {
			fmt.Printf("%s  (%d likes)  %s\n", c.ID, c.NumberOfLikes, c.Content)
		}

	case "create-post":
		if len(args) < 4 {
			usage()
		}
		image, err := readAttachment(args[2])
		if err != nil {
			return err
		}
		preview := blogapi.DataURL(image)
		if len(preview) > 64 {
			preview = preview[:64] + "..."
		}
		fmt.Printf("attaching %s as %s\n", image.Name, preview)
		post, err := a.mutations.CreatePost(ctx, mutations.CreatePostInput{
			Title:    args[0],
			Category: args[1],
			Image:    image,
			Content:  strings.Join(args[3:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Printf("created post %s (%s)\n", post.ID, post.Slug)

	case "comment":
		if len(args) < 2 {
			usage()
		}
		c, err := a.mutations.CreateComment(ctx, mutations.CreateCommentInput{
			PostID:  args[0],
			Content: strings.Join(args[1:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Printf("created comment %s\n", c.ID)

	case "like":
		if len(args) != 2 {
			usage()
		}
		c, err := a.mutations.LikeComment(ctx, mutations.LikeCommentInput{
			PostID:    args[0],
			CommentID: args[1],
		})
		if err != nil {
			return err
		}
		fmt.Printf("comment %s now has %d likes\n", c.ID, c.NumberOfLikes)

	default:
		usage()
	}
	return nil
}

func readAttachment(path string) (*blogapi.FileAttachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %q: %w", path, err)
	}
	contentType := ""
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		contentType = "image/png"
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	case ".gif":
		contentType = "image/gif"
	case ".webp":
		contentType = "image/webp"
	}
	return &blogapi.FileAttachment{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}
