package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ahinestrog/mybookstore-storefront/internal/models"
)

type addItemRequest struct {
	BookID   string `json:"bookId"`
	Quantity int    `json:"quantity,omitempty"`
}

// decrementResult accepts both shapes the decrement endpoint may answer with:
// the updated item, or a marker saying the line is gone.
type decrementResult struct {
	models.CartItem
	Deleted bool `json:"deleted"`
}

func (c *Client) GetCart(ctx context.Context, token string) ([]models.CartItem, error) {
	var out []models.CartItem
	resp, err := c.request(ctx, token).SetResult(&out).Get("/api/cart")
	if err := check(resp, err, http.MethodGet, "/api/cart"); err != nil {
		return nil, err
	}
	return out, nil
}

// AddToCart asks the API to add qty copies of a book. The API decides whether that
// creates a new line or bumps an existing one; the returned item is authoritative.
func (c *Client) AddToCart(ctx context.Context, token, bookID string, qty int) (models.CartItem, error) {
	var out models.CartItem
	resp, err := c.request(ctx, token).
		SetBody(addItemRequest{BookID: bookID, Quantity: qty}).
		SetResult(&out).
		Post("/api/cart")
	if err := check(resp, err, http.MethodPost, "/api/cart"); err != nil {
		return models.CartItem{}, err
	}
	if out.ID == "" {
		return models.CartItem{}, fmt.Errorf("POST /api/cart: %w: item without id", ErrUnexpectedResponse)
	}
	return out, nil
}

func (c *Client) IncrementCartItem(ctx context.Context, token, itemID string) (models.CartItem, error) {
	path := "/api/cart/" + itemID + "/increment"
	var out models.CartItem
	resp, err := c.request(ctx, token).
		SetPathParam("id", itemID).
		SetResult(&out).
		Put("/api/cart/{id}/increment")
	if err := check(resp, err, http.MethodPut, path); err != nil {
		return models.CartItem{}, err
	}
	if out.Quantity < 1 {
		return models.CartItem{}, fmt.Errorf("PUT %s: %w: quantity %d", path, ErrUnexpectedResponse, out.Quantity)
	}
	if out.ID == "" {
		out.ID = itemID
	}
	return out, nil
}

// DecrementCartItem lowers a line by one. deleted is true when the API removed the line
// (204 No Content, a {"deleted":true} body, or a returned quantity below one).
func (c *Client) DecrementCartItem(ctx context.Context, token, itemID string) (item models.CartItem, deleted bool, err error) {
	path := "/api/cart/" + itemID + "/decrement"
	var out decrementResult
	resp, err := c.request(ctx, token).
		SetPathParam("id", itemID).
		SetResult(&out).
		Put("/api/cart/{id}/decrement")
	if err := check(resp, err, http.MethodPut, path); err != nil {
		return models.CartItem{}, false, err
	}
	if resp.StatusCode() == http.StatusNoContent || out.Deleted || out.Quantity < 1 {
		return models.CartItem{}, true, nil
	}
	if out.ID == "" {
		out.ID = itemID
	}
	return out.CartItem, false, nil
}

func (c *Client) RemoveCartItem(ctx context.Context, token, itemID string) error {
	resp, err := c.request(ctx, token).SetPathParam("id", itemID).Delete("/api/cart/{id}")
	return check(resp, err, http.MethodDelete, "/api/cart/"+itemID)
}

func (c *Client) ClearCart(ctx context.Context, token string) error {
	resp, err := c.request(ctx, token).Delete("/api/cart/clear")
	return check(resp, err, http.MethodDelete, "/api/cart/clear")
}

func (c *Client) GetWishlist(ctx context.Context, token string) ([]models.WishlistItem, error) {
	var out []models.WishlistItem
	resp, err := c.request(ctx, token).SetResult(&out).Get("/api/wishlist")
	if err := check(resp, err, http.MethodGet, "/api/wishlist"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddToWishlist(ctx context.Context, token, bookID string) (models.WishlistItem, error) {
	var out models.WishlistItem
	resp, err := c.request(ctx, token).
		SetBody(addItemRequest{BookID: bookID}).
		SetResult(&out).
		Post("/api/wishlist")
	if err := check(resp, err, http.MethodPost, "/api/wishlist"); err != nil {
		return models.WishlistItem{}, err
	}
	if out.ID == "" {
		return models.WishlistItem{}, fmt.Errorf("POST /api/wishlist: %w: item without id", ErrUnexpectedResponse)
	}
	return out, nil
}

func (c *Client) RemoveWishlistItem(ctx context.Context, token, itemID string) error {
	resp, err := c.request(ctx, token).SetPathParam("id", itemID).Delete("/api/wishlist/{id}")
	return check(resp, err, http.MethodDelete, "/api/wishlist/"+itemID)
}
