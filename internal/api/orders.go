package api

import (
	"context"
	"net/http"

	"github.com/ahinestrog/mybookstore-storefront/internal/models"
)

type purchaseRequest struct {
	Purchases []models.Purchase `json:"purchases"`
}

// Purchase submits one checkout. The returned message is the API's confirmation text.
func (c *Client) Purchase(ctx context.Context, token string, purchases []models.Purchase) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	resp, err := c.request(ctx, token).
		SetBody(purchaseRequest{Purchases: purchases}).
		SetResult(&out).
		Post("/api/purchase")
	if err := check(resp, err, http.MethodPost, "/api/purchase"); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) ListOrders(ctx context.Context, token string) ([]models.Order, error) {
	var out []models.Order
	resp, err := c.request(ctx, token).SetResult(&out).Get("/api/purchase")
	if err := check(resp, err, http.MethodGet, "/api/purchase"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendContact(ctx context.Context, msg models.Contact) error {
	resp, err := c.request(ctx, "").SetBody(msg).Post("/api/contact")
	return check(resp, err, http.MethodPost, "/api/contact")
}

func (c *Client) ListContacts(ctx context.Context, token string) ([]models.Contact, error) {
	var out []models.Contact
	resp, err := c.request(ctx, token).SetResult(&out).Get("/api/contact")
	if err := check(resp, err, http.MethodGet, "/api/contact"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListUsers(ctx context.Context, token string) ([]models.User, error) {
	var out []models.User
	resp, err := c.request(ctx, token).SetResult(&out).Get("/api/admin/users")
	if err := check(resp, err, http.MethodGet, "/api/admin/users"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateUser(ctx context.Context, token, id string, u models.User) (models.User, error) {
	var out models.User
	resp, err := c.request(ctx, token).
		SetPathParam("id", id).
		SetBody(u).
		SetResult(&out).
		Put("/api/admin/users/{id}")
	if err := check(resp, err, http.MethodPut, "/api/admin/users/"+id); err != nil {
		return models.User{}, err
	}
	if out.ID == "" {
		u.ID = id
		return u, nil
	}
	return out, nil
}

func (c *Client) DeleteUser(ctx context.Context, token, id string) error {
	resp, err := c.request(ctx, token).SetPathParam("id", id).Delete("/api/admin/users/{id}")
	return check(resp, err, http.MethodDelete, "/api/admin/users/"+id)
}
