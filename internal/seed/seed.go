// Package seed fills the fake backend's database with demo content, either
// from the bundled fixture or generated with gofakeit. It is intended for
// development and testing only.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"synerthree/internal/fakebackend"
	"synerthree/internal/observability"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Modes accepted by Run.
const (
	ModeNone    = ""
	ModeFixture = "fixture"
	ModeRandom  = "random"
)

//go:embed fixtures/ideas.yml
var fixtureYAML []byte

// Fixture is the shape of fixtures/ideas.yml.
type Fixture struct {
	Users []struct {
		Username string `yaml:"username"`
		Email    string `yaml:"email"`
	} `yaml:"users"`
	Posts []struct {
		Key       string    `yaml:"key"`
		Author    string    `yaml:"author"`
		Title     string    `yaml:"title"`
		Content   string    `yaml:"content"`
		CreatedAt time.Time `yaml:"created_at"`
		Upvotes   int       `yaml:"upvotes"`
		Downvotes int       `yaml:"downvotes"`
	} `yaml:"posts"`
	Comments []struct {
		Post      string    `yaml:"post"`
		Author    string    `yaml:"author"`
		Text      string    `yaml:"text"`
		CreatedAt time.Time `yaml:"created_at"`
	} `yaml:"comments"`
}

// ParseFixture decodes a fixture document.
func ParseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// Run seeds db according to mode. Seeding is skipped when users already exist.
func Run(ctx context.Context, db *gorm.DB, mode string) error {
	if mode == ModeNone {
		return nil
	}
	var users int64
	if err := db.WithContext(ctx).Model(&fakebackend.User{}).Count(&users).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if users > 0 {
		observability.Logger.InfoContext(ctx, "database already seeded", slog.Int64("users", users))
		return nil
	}

	switch mode {
	case ModeFixture:
		f, err := ParseFixture(fixtureYAML)
		if err != nil {
			return err
		}
		return LoadFixture(ctx, db, f)
	case ModeRandom:
		return NewFactory(db, Options{}).Populate(ctx)
	default:
		return fmt.Errorf("unknown seed mode %q", mode)
	}
}

// LoadFixture writes f in one transaction.
func LoadFixture(ctx context.Context, db *gorm.DB, f *Fixture) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make(map[string]uint, len(f.Users))
		for _, u := range f.Users {
			row := fakebackend.User{Username: u.Username, Email: u.Email, Password: string(hash)}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("seed user %s: %w", u.Username, err)
			}
			users[u.Username] = row.ID
		}

		commentCounts := make(map[string]int)
		for _, c := range f.Comments {
			commentCounts[c.Post]++
		}

		posts := make(map[string]uint, len(f.Posts))
		for _, p := range f.Posts {
			authorID, ok := users[p.Author]
			if !ok {
				return fmt.Errorf("post %s: unknown author %s", p.Key, p.Author)
			}
			row := fakebackend.Post{
				Title:         p.Title,
				Content:       p.Content,
				UserID:        authorID,
				UpvoteCount:   p.Upvotes,
				DownvoteCount: p.Downvotes,
				CommentCount:  commentCounts[p.Key],
				CreatedAt:     p.CreatedAt,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("seed post %s: %w", p.Key, err)
			}
			posts[p.Key] = row.ID
		}

		for _, c := range f.Comments {
			postID, ok := posts[c.Post]
			if !ok {
				return fmt.Errorf("comment: unknown post %s", c.Post)
			}
			authorID, ok := users[c.Author]
			if !ok {
				return fmt.Errorf("comment on %s: unknown author %s", c.Post, c.Author)
			}
			row := fakebackend.Comment{PostID: postID, UserID: authorID, Content: c.Text, CreatedAt: c.CreatedAt}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("seed comment: %w", err)
			}
		}

		observability.Logger.InfoContext(ctx, "seeded fixture",
			slog.Int("users", len(f.Users)),
			slog.Int("posts", len(f.Posts)),
			slog.Int("comments", len(f.Comments)),
		)
		return nil
	})
}
