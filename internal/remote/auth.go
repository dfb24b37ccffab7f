package remote

import (
	"context"
	"fmt"
	"net/http"

	"synerthree/internal/models"
)

// Login exchanges credentials for a backend auth token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp authResponse
	err := c.do(ctx, call{
		op: "login", method: http.MethodPost, path: "/auth/login",
		body: authRequest{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.AuthToken, nil
}

// Signup registers a user and returns its backend auth token.
func (c *Client) Signup(ctx context.Context, username, email, password string) (string, error) {
	var resp authResponse
	err := c.do(ctx, call{
		op: "signup", method: http.MethodPost, path: "/auth/signup",
		body: authRequest{Username: username, Email: email, Password: password},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.AuthToken, nil
}

// Me fetches the profile of the token's owner.
func (c *Client) Me(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	err := c.do(ctx, call{op: "me", method: http.MethodGet, path: "/auth/me", token: token, auth: true}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout tells the backend the token is no longer used.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, call{op: "logout", method: http.MethodPost, path: "/auth/logout", token: token, auth: true}, nil)
}

// UpdateProfilePicture sets the profile picture URL of a user.
func (c *Client) UpdateProfilePicture(ctx context.Context, token string, userID uint, pictureURL string) (*models.User, error) {
	var user models.User
	err := c.do(ctx, call{
		op: "update_profile_picture", method: http.MethodPatch, path: fmt.Sprintf("/user/%d", userID),
		token: token, auth: true, body: profilePictureRequest{ProfilePicture: pictureURL},
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
