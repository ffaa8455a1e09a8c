package api

import (
	"context"
	"net/http"

	"github.com/ahinestrog/mybookstore-storefront/internal/models"
)

func (c *Client) ListBooks(ctx context.Context) ([]models.Book, error) {
	var out []models.Book
	resp, err := c.request(ctx, "").SetResult(&out).Get("/api/books")
	if err := check(resp, err, http.MethodGet, "/api/books"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) NewArrivals(ctx context.Context) ([]models.Book, error) {
	var out []models.Book
	resp, err := c.request(ctx, "").SetResult(&out).Get("/api/books/new-arrivals")
	if err := check(resp, err, http.MethodGet, "/api/books/new-arrivals"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateBook(ctx context.Context, token string, b models.Book) (models.Book, error) {
	var out models.Book
	resp, err := c.request(ctx, token).SetBody(b).SetResult(&out).Post("/api/books")
	if err := check(resp, err, http.MethodPost, "/api/books"); err != nil {
		return models.Book{}, err
	}
	return out, nil
}

func (c *Client) UpdateBook(ctx context.Context, token, id string, b models.Book) (models.Book, error) {
	var out models.Book
	resp, err := c.request(ctx, token).
		SetPathParam("id", id).
		SetBody(b).
		SetResult(&out).
		Put("/api/books/{id}")
	if err := check(resp, err, http.MethodPut, "/api/books/"+id); err != nil {
		return models.Book{}, err
	}
	// Some deployments answer with a bare message; keep what was sent.
	if out.ID == "" {
		b.ID = id
		return b, nil
	}
	return out, nil
}

func (c *Client) DeleteBook(ctx context.Context, token, id string) error {
	resp, err := c.request(ctx, token).SetPathParam("id", id).Delete("/api/books/{id}")
	return check(resp, err, http.MethodDelete, "/api/books/"+id)
}
