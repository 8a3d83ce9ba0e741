package api

import (
	"context"
	"fmt"
	"net/http"
)

type tokenResponse struct {
	Token string `json:"token"`
}

// Register creates an instructor account and returns its access token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "POST /user", "/user", req, &out); err != nil {
		return "", err
	}
	return nonEmptyToken(out.Token)
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "POST /user/auth", "/user/auth", req, &out); err != nil {
		return "", err
	}
	return nonEmptyToken(out.Token)
}

// RefreshToken trades the current (still valid) token for a fresh one.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "POST /user/refresh", "/user/refresh", struct{}{}, &out); err != nil {
		return "", err
	}
	return nonEmptyToken(out.Token)
}

// Me returns the user owning the current token.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "GET /user", "/user", nil, &out); err != nil {
		return User{}, err
	}
	return out.User, nil
}

func nonEmptyToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("empty token in response")
	}
	return token, nil
}
