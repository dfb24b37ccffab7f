package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"synerthree/internal/fakebackend"
	"synerthree/internal/observability"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options size a generated data set. Zero values pick the defaults.
type Options struct {
	Users           int
	Posts           int
	CommentsPerPost int
	MaxDays         int
	// Seed makes the generated content reproducible when non-zero.
	Seed int64
}

func (o Options) withDefaults() Options {
	if o.Users <= 0 {
		o.Users = 8
	}
	if o.Posts <= 0 {
		o.Posts = 20
	}
	if o.CommentsPerPost <= 0 {
		o.CommentsPerPost = 3
	}
	if o.MaxDays <= 0 {
		o.MaxDays = 60
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	return o
}

// Factory builds fake users, ideas and comments and persists them.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	hash  string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	opts = opts.withDefaults()
	return &Factory{db: db, opts: opts, faker: gofakeit.New(opts.Seed)}
}

// BuildUser returns an unsaved user with a hashed DefaultPassword.
func (f *Factory) BuildUser() (*fakebackend.User, error) {
	if f.hash == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		f.hash = string(hash)
	}
	return &fakebackend.User{
		Username:       fmt.Sprintf("%s%d", f.faker.Username(), f.faker.Number(100, 999)),
		Email:          f.faker.Email(),
		Password:       f.hash,
		ProfilePicture: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
	}, nil
}

// BuildPost returns an unsaved idea by author with a created_at spread over
// the last MaxDays days.
func (f *Factory) BuildPost(author *fakebackend.User) *fakebackend.Post {
	back := time.Duration(f.faker.Number(0, f.opts.MaxDays*24*60)) * time.Minute
	return &fakebackend.Post{
		Title:         fmt.Sprintf("%s for %s", f.faker.AppName(), f.faker.HipsterWord()),
		Content:       f.faker.Paragraph(1, 3, 12, " "),
		UserID:        author.ID,
		UpvoteCount:   f.faker.Number(0, 50),
		DownvoteCount: f.faker.Number(0, 8),
		CreatedAt:     time.Now().Add(-back),
	}
}

// BuildComment returns an unsaved comment on post by author.
func (f *Factory) BuildComment(post *fakebackend.Post, author *fakebackend.User) *fakebackend.Comment {
	return &fakebackend.Comment{
		PostID:    post.ID,
		UserID:    author.ID,
		Content:   f.faker.Sentence(f.faker.Number(6, 20)),
		CreatedAt: post.CreatedAt.Add(time.Duration(f.faker.Number(1, 72*60)) * time.Minute),
	}
}

// Populate creates users, ideas and comments in one transaction.
func (f *Factory) Populate(ctx context.Context) error {
	return f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make([]*fakebackend.User, 0, f.opts.Users)
		for i := 0; i < f.opts.Users; i++ {
			u, err := f.BuildUser()
			if err != nil {
				return err
			}
			if err := tx.Create(u).Error; err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			users = append(users, u)
		}

		comments := 0
		for i := 0; i < f.opts.Posts; i++ {
			post := f.BuildPost(users[f.faker.Number(0, len(users)-1)])
			n := f.faker.Number(0, f.opts.CommentsPerPost)
			post.CommentCount = n
			if err := tx.Create(post).Error; err != nil {
				return fmt.Errorf("create post: %w", err)
			}
			for j := 0; j < n; j++ {
				c := f.BuildComment(post, users[f.faker.Number(0, len(users)-1)])
				if err := tx.Create(c).Error; err != nil {
					return fmt.Errorf("create comment: %w", err)
				}
			}
			comments += n
		}

		observability.Logger.InfoContext(ctx, "seeded generated data",
			slog.Int("users", f.opts.Users),
			slog.Int("posts", f.opts.Posts),
			slog.Int("comments", comments),
		)
		return nil
	})
}
