package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ahinestrog/mybookstore-storefront/internal/models"
)

type LoginResult struct {
	Token    string `json:"token"`
	Redirect string `json:"redirect,omitempty"`
}

type Registration struct {
	FullName     string `json:"fullName"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	MobileNumber string `json:"mobileNumber,omitempty"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	resp, err := c.request(ctx, "").
		SetBody(credentials{Username: username, Password: password}).
		SetResult(&out).
		Post("/api/auth/login")
	if err := check(resp, err, http.MethodPost, "/api/auth/login"); err != nil {
		return LoginResult{}, err
	}
	if out.Token == "" {
		return LoginResult{}, fmt.Errorf("POST /api/auth/login: %w: no token", ErrUnexpectedResponse)
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.request(ctx, token).SetBody(struct{}{}).Post("/api/auth/logout")
	return check(resp, err, http.MethodPost, "/api/auth/logout")
}

func (c *Client) Register(ctx context.Context, reg Registration) error {
	resp, err := c.request(ctx, "").SetBody(reg).Post("/api/auth/register")
	return check(resp, err, http.MethodPost, "/api/auth/register")
}

// UserByUsername loads the profile shown on the cart page.
func (c *Client) UserByUsername(ctx context.Context, token, username string) (models.User, error) {
	var out models.User
	resp, err := c.request(ctx, token).
		SetPathParam("username", username).
		SetResult(&out).
		Get("/api/auth/username/{username}")
	if err := check(resp, err, http.MethodGet, "/api/auth/username/"+username); err != nil {
		return models.User{}, err
	}
	return out, nil
}

// UserID resolves the id purchases are recorded against.
func (c *Client) UserID(ctx context.Context, token, username string) (string, error) {
	var out struct {
		UserID string `json:"userId"`
	}
	resp, err := c.request(ctx, token).
		SetQueryParam("username", username).
		SetResult(&out).
		Get("/api/auth/userId")
	if err := check(resp, err, http.MethodGet, "/api/auth/userId"); err != nil {
		return "", err
	}
	if out.UserID == "" {
		return "", fmt.Errorf("GET /api/auth/userId: %w: empty userId", ErrUnexpectedResponse)
	}
	return out.UserID, nil
}
