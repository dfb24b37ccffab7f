package fakebackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"synerthree/internal/remote"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("not the owner")
	ErrDuplicate = errors.New("username or email already taken")
)

// Store is the gorm-backed persistence of the fake backend.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open, migrated connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the connection for seeding.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateUser inserts u. Password must already be hashed.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	var taken int64
	if err := s.db.WithContext(ctx).Model(&User{}).
		Where("username = ? OR email = ?", u.Username, u.Email).
		Count(&taken).Error; err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if taken > 0 {
		return ErrDuplicate
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UserByEmail finds a user by email, case-insensitively.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UserByID finds a user by id.
func (s *Store) UserByID(ctx context.Context, id uint) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UpdatePicture sets the profile picture URL of a user.
func (s *Store) UpdatePicture(ctx context.Context, id uint, pictureURL string) (*User, error) {
	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("profile_picture", pictureURL)
	if res.Error != nil {
		return nil, fmt.Errorf("update picture: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.UserByID(ctx, id)
}

// ListPosts returns every post, newest first, with viewerID's vote filled in.
func (s *Store) ListPosts(ctx context.Context, viewerID uint) ([]remote.PostRecord, error) {
	var posts []Post
	if err := s.db.WithContext(ctx).Preload("User").
		Order("created_at DESC").Order("id DESC").
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	votes, err := s.votesOf(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	out := make([]remote.PostRecord, 0, len(posts))
	for _, p := range posts {
		out = append(out, postRecord(p, votes[p.ID]))
	}
	return out, nil
}

// GetPost returns one post with viewerID's vote filled in.
func (s *Store) GetPost(ctx context.Context, id, viewerID uint) (*remote.PostRecord, error) {
	var p Post
	if err := s.db.WithContext(ctx).Preload("User").First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	votes, err := s.votesOf(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	rec := postRecord(p, votes[p.ID])
	return &rec, nil
}

func (s *Store) votesOf(ctx context.Context, userID uint) (map[uint]string, error) {
	out := map[uint]string{}
	if userID == 0 {
		return out, nil
	}
	var votes []Vote
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("load votes: %w", err)
	}
	for _, v := range votes {
		out[v.PostID] = v.Type
	}
	return out, nil
}

// CreatePost inserts a post owned by userID.
func (s *Store) CreatePost(ctx context.Context, userID uint, title, content string) (*remote.PostRecord, error) {
	p := Post{Title: title, Content: content, UserID: userID}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return s.GetPost(ctx, p.ID, userID)
}

// UpdatePost changes title and content of a post owned by userID.
func (s *Store) UpdatePost(ctx context.Context, id, userID uint, title, content string) error {
	p, err := s.ownedPost(ctx, s.db, id, userID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(p).Updates(map[string]interface{}{
		"title":   title,
		"content": content,
	}).Error
}

// DeletePost removes a post owned by userID with its comments and votes.
func (s *Store) DeletePost(ctx context.Context, id, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.ownedPost(ctx, tx, id, userID)
		if err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", p.ID).Delete(&Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", p.ID).Delete(&Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(p).Error
	})
}

func (s *Store) ownedPost(ctx context.Context, db *gorm.DB, id, userID uint) (*Post, error) {
	var p Post
	if err := db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	if p.UserID != userID {
		return nil, ErrForbidden
	}
	return &p, nil
}

// ListComments returns the comments of a post, newest first.
func (s *Store) ListComments(ctx context.Context, postID uint) ([]remote.CommentRecord, error) {
	var comments []Comment
	if err := s.db.WithContext(ctx).Preload("User").
		Where("post_id = ?", postID).
		Order("created_at DESC").Order("id DESC").
		Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	out := make([]remote.CommentRecord, 0, len(comments))
	for _, c := range comments {
		out = append(out, commentRecord(c))
	}
	return out, nil
}

// CreateComment adds a comment and bumps the post's comment count.
func (s *Store) CreateComment(ctx context.Context, postID, userID uint, content string) (*remote.CommentRecord, error) {
	c := Comment{PostID: postID, UserID: userID, Content: content}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&Post{}, postID).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		return bump(tx, postID, "comment_count", 1)
	})
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Preload("User").First(&c, c.ID).Error; err != nil {
		return nil, notFound(err)
	}
	rec := commentRecord(c)
	return &rec, nil
}

// DeleteComment removes a comment written by userID.
func (s *Store) DeleteComment(ctx context.Context, id, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Comment
		if err := tx.First(&c, id).Error; err != nil {
			return notFound(err)
		}
		if c.UserID != userID {
			return ErrForbidden
		}
		if err := tx.Delete(&c).Error; err != nil {
			return err
		}
		return bump(tx, c.PostID, "comment_count", -1)
	})
}

// ApplyVote records req and adjusts the post's tallies. Repeating the current
// vote answers vote_exists and changes nothing.
func (s *Store) ApplyVote(ctx context.Context, req remote.VoteRequest) (remote.VoteStatus, error) {
	status := remote.VoteSuccess
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&Post{}, req.PostID).Error; err != nil {
			return notFound(err)
		}

		var current Vote
		err := tx.Where("post_id = ? AND user_id = ?", req.PostID, req.UserID).
			First(&current).Error
		existing := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if req.VoteType == remote.VoteTypeRemove {
			if !existing {
				return nil
			}
			if err := tx.Delete(&current).Error; err != nil {
				return err
			}
			return bump(tx, req.PostID, tallyColumn(current.Type), -1)
		}

		if existing && current.Type == string(req.VoteType) {
			status = remote.VoteExists
			return nil
		}
		if existing {
			if err := bump(tx, req.PostID, tallyColumn(current.Type), -1); err != nil {
				return err
			}
			current.Type = string(req.VoteType)
			current.Reason = req.Reason
			if err := tx.Save(&current).Error; err != nil {
				return err
			}
		} else {
			v := Vote{PostID: req.PostID, UserID: req.UserID, Type: string(req.VoteType), Reason: req.Reason}
			if err := tx.Create(&v).Error; err != nil {
				return err
			}
		}
		return bump(tx, req.PostID, tallyColumn(string(req.VoteType)), 1)
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

func tallyColumn(voteType string) string {
	if voteType == string(remote.VoteTypeDown) {
		return "downvote_count"
	}
	return "upvote_count"
}

// bump adds delta to a counter column without letting it go below zero.
func bump(tx *gorm.DB, postID uint, column string, delta int) error {
	expr := gorm.Expr(column+" + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END", delta, delta)
	}
	return tx.Model(&Post{}).Where("id = ?", postID).UpdateColumn(column, expr).Error
}

// Recall loads the stored response for key into out. It reports false when
// the key has not been seen.
func (s *Store) Recall(ctx context.Context, key string, out interface{}) (bool, error) {
	if key == "" {
		return false, nil
	}
	var r Receipt
	err := s.db.WithContext(ctx).First(&r, "idempotency_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("recall %s: %w", key, err)
	}
	return true, json.Unmarshal([]byte(r.Response), out)
}

// Remember stores the response for key.
func (s *Store) Remember(ctx context.Context, key string, v interface{}) error {
	if key == "" {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Receipt{IdempotencyKey: key, Response: string(raw)}).Error
}

func postRecord(p Post, userVote string) remote.PostRecord {
	return remote.PostRecord{
		ID:            p.ID,
		Title:         p.Title,
		Content:       p.Content,
		UserID:        p.UserID,
		UserName:      p.User.Username,
		CreatedAt:     remote.Timestamp{Time: p.CreatedAt},
		UpvoteCount:   p.UpvoteCount,
		DownvoteCount: p.DownvoteCount,
		CommentCount:  p.CommentCount,
		UserVote:      userVote,
	}
}

func commentRecord(c Comment) remote.CommentRecord {
	return remote.CommentRecord{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		UserName:  c.User.Username,
		Content:   c.Content,
		CreatedAt: remote.Timestamp{Time: c.CreatedAt},
	}
}
