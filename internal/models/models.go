// Package models holds the JSON shapes exchanged with the bookstore API.
// Field names follow the API's camelCase wire format; ids are the API's opaque `_id`.
package models

import (
	"github.com/shopspring/decimal"
)

type Book struct {
	ID              string          `json:"_id"`
	Name            string          `json:"bookName"`
	Author          string          `json:"authorName"`
	Publisher       string          `json:"publisherName,omitempty"`
	Genre           string          `json:"genre,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Description     string          `json:"description,omitempty"`
	ImageURL        string          `json:"imageUrl,omitempty"`
	CopiesAvailable *int            `json:"copiesAvailable,omitempty"`
	PublishingDate  string          `json:"publishingDate,omitempty"`
}

// Populated reports whether the book carries display fields and not only a reference.
func (b Book) Populated() bool { return b.Name != "" || b.Author != "" }

// Stock returns the copies available and whether the API sent that figure at all.
// Cart and wishlist lines usually carry only display fields.
func (b Book) Stock() (int, bool) {
	if b.CopiesAvailable == nil {
		return 0, false
	}
	return *b.CopiesAvailable, true
}

// Copies is a convenience for filling CopiesAvailable.
func Copies(n int) *int { return &n }

// CartItem is one (book, quantity) line of a user's cart.
type CartItem struct {
	ID       string `json:"_id"`
	Book     Book   `json:"book"`
	Quantity int    `json:"quantity"`
}

// LineTotal is price × quantity.
func (it CartItem) LineTotal() decimal.Decimal {
	return it.Book.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type WishlistItem struct {
	ID   string `json:"_id"`
	Book Book   `json:"book"`
}

type User struct {
	ID           string `json:"_id"`
	Username     string `json:"username"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobileNumber,omitempty"`
	IsAdmin      bool   `json:"isAdmin"`
}

// Purchase is one line of a checkout request.
type Purchase struct {
	UserID  string `json:"userId"`
	BookID  string `json:"bookId"`
	Copies  int    `json:"copies"`
	Address string `json:"address"`
}

// Order is a recorded purchase as listed by the admin orders endpoint.
type Order struct {
	ID              string          `json:"_id"`
	OrderDate       string          `json:"orderDate"`
	Customer        *User           `json:"customer,omitempty"`
	CustomerName    string          `json:"customerName,omitempty"`
	CustomerEmail   string          `json:"customerEmail,omitempty"`
	Book            *Book           `json:"book,omitempty"`
	CopiesPurchased int             `json:"copiesPurchased"`
	Price           decimal.Decimal `json:"price"`
	Address         string          `json:"address,omitempty"`
}

type Contact struct {
	ID      string `json:"_id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func init() {
	// The API expects prices as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}
