package seed

import (
	"context"
	"testing"

	"synerthree/internal/database"
	"synerthree/internal/fakebackend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(sqlite.Open(":memory:"), fakebackend.AllModels()...)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestParseFixture(t *testing.T) {
	f, err := ParseFixture(fixtureYAML)
	require.NoError(t, err)
	assert.Len(t, f.Posts, 5)
	assert.Len(t, f.Comments, 8)
	assert.Equal(t, "Subscription-Based Platform for Home-Cooked Meals", f.Posts[0].Title)
	assert.Equal(t, 2023, f.Posts[0].CreatedAt.Year())
	assert.NotContains(t, f.Posts[0].Content, "\n")
}

func TestRun_Fixture(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, Run(ctx, db, ModeFixture))

	assert.Equal(t, int64(5), count(t, db, &fakebackend.Post{}))
	assert.Equal(t, int64(8), count(t, db, &fakebackend.Comment{}))

	store := fakebackend.NewStore(db)
	posts, err := store.ListPosts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, posts, 5)
	assert.Equal(t, "Virtual Reality Language Learning", posts[0].Title, "newest first")
	assert.Equal(t, "demo", posts[0].UserName)
	assert.Equal(t, 28, posts[0].UpvoteCount)

	meals := posts[len(posts)-1]
	assert.Equal(t, 3, meals.CommentCount)

	demo, err := store.UserByEmail(ctx, "demo@synerthree.dev")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(demo.Password), []byte(DefaultPassword)))

	// A second run leaves the data alone.
	require.NoError(t, Run(ctx, db, ModeFixture))
	assert.Equal(t, int64(5), count(t, db, &fakebackend.Post{}))
}

func TestRun_Random(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, NewFactory(db, Options{Users: 3, Posts: 6, CommentsPerPost: 2, Seed: 42}).Populate(context.Background()))

	assert.Equal(t, int64(3), count(t, db, &fakebackend.User{}))
	assert.Equal(t, int64(6), count(t, db, &fakebackend.Post{}))

	var posts []fakebackend.Post
	require.NoError(t, db.Find(&posts).Error)
	total := 0
	for _, p := range posts {
		total += p.CommentCount
	}
	assert.Equal(t, int64(total), count(t, db, &fakebackend.Comment{}))
}

func TestRun_Modes(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, Run(context.Background(), db, ModeNone))
	assert.Equal(t, int64(0), count(t, db, &fakebackend.User{}))
	assert.Error(t, Run(context.Background(), db, "bogus"))
}

func TestFactory_Builders(t *testing.T) {
	f := NewFactory(nil, Options{Seed: 7, MaxDays: 1})
	u, err := f.BuildUser()
	require.NoError(t, err)
	assert.NotEmpty(t, u.Username)
	assert.Contains(t, u.Email, "@")

	u.ID = 9
	p := f.BuildPost(u)
	assert.Equal(t, uint(9), p.UserID)
	assert.NotEmpty(t, p.Title)

	c := f.BuildComment(p, u)
	assert.True(t, c.CreatedAt.After(p.CreatedAt))
}
