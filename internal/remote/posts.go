package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListPosts fetches every post. token may be empty for an anonymous viewer.
func (c *Client) ListPosts(ctx context.Context, token string) ([]PostRecord, error) {
	var posts []PostRecord
	err := c.do(ctx, call{op: "list_posts", method: http.MethodGet, path: "/post", token: token}, &posts)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost fetches one post.
func (c *Client) GetPost(ctx context.Context, token string, id uint) (*PostRecord, error) {
	var post PostRecord
	err := c.do(ctx, call{op: "get_post", method: http.MethodGet, path: postPath(id), token: token}, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// CreatePost creates a post owned by the session user.
func (c *Client) CreatePost(ctx context.Context, token string, in PostInput) (*PostRecord, error) {
	var post PostRecord
	err := c.do(ctx, call{
		op: "create_post", method: http.MethodPost, path: "/post",
		token: token, auth: true, body: in,
	}, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost changes the title and content of a post.
func (c *Client) UpdatePost(ctx context.Context, token string, id uint, in PostInput) error {
	return c.do(ctx, call{
		op: "update_post", method: http.MethodPatch, path: postPath(id),
		token: token, auth: true, body: in,
	}, nil)
}

// DeletePost removes a post.
func (c *Client) DeletePost(ctx context.Context, token string, id uint) error {
	return c.do(ctx, call{
		op: "delete_post", method: http.MethodDelete, path: postPath(id),
		token: token, auth: true,
	}, nil)
}

// ListComments fetches the comments of a post.
func (c *Client) ListComments(ctx context.Context, token string, postID uint) ([]CommentRecord, error) {
	var comments []CommentRecord
	err := c.do(ctx, call{
		op: "list_comments", method: http.MethodGet, path: "/get_post_comments",
		query: url.Values{"post_id": {strconv.FormatUint(uint64(postID), 10)}},
		token: token,
	}, &comments)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateComment adds a comment. idempotencyKey is the provisional id of the
// optimistic local copy.
func (c *Client) CreateComment(ctx context.Context, token, idempotencyKey string, in CommentInput) (*CommentRecord, error) {
	var comment CommentRecord
	err := c.do(ctx, call{
		op: "create_comment", method: http.MethodPost, path: "/comment",
		token: token, auth: true, body: in, idempotencyKey: idempotencyKey,
	}, &comment)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, token string, id uint) error {
	return c.do(ctx, call{
		op: "delete_comment", method: http.MethodDelete, path: fmt.Sprintf("/comment/%d", id),
		token: token, auth: true,
	}, nil)
}

// Vote records a vote mutation and returns the backend's status token.
func (c *Client) Vote(ctx context.Context, token, idempotencyKey string, req VoteRequest) (VoteStatus, error) {
	var status VoteStatus
	err := c.do(ctx, call{
		op: "vote", method: http.MethodPost, path: "/vote",
		token: token, auth: true, body: req, idempotencyKey: idempotencyKey,
	}, &status)
	if err != nil {
		return "", err
	}
	return status, nil
}

func postPath(id uint) string {
	return fmt.Sprintf("/post/%d", id)
}
