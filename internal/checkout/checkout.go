// Package checkout turns the current cart into purchases.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ahinestrog/mybookstore-storefront/internal/events"
	"github.com/ahinestrog/mybookstore-storefront/internal/models"
	"github.com/ahinestrog/mybookstore-storefront/internal/session"
	"github.com/ahinestrog/mybookstore-storefront/internal/store"
)

const ActionCheckout store.Action = "checkout"

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrMissingAddress = errors.New("address is required")
)

// OutOfStockError reports a line asking for more copies than the book has.
type OutOfStockError struct {
	BookID    string
	Title     string
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("not enough copies of %q: requested %d, available %d", e.Title, e.Requested, e.Available)
}

// OrderAPI is the purchase part of the bookstore API. *api.Client implements it.
type OrderAPI interface {
	UserID(ctx context.Context, token, username string) (string, error)
	Purchase(ctx context.Context, token string, purchases []models.Purchase) (string, error)
}

// Cart is the view of the store checkout needs.
type Cart interface {
	Cart() []models.CartItem
	CartTotal() decimal.Decimal
	ForgetCart()
}

type Result struct {
	Message string
	Lines   []models.CartItem
	Total   decimal.Decimal
}

type Service struct {
	api      OrderAPI
	sess     session.Source
	notifier store.Notifier
	events   events.Publisher
	log      zerolog.Logger
}

func NewService(api OrderAPI, sess session.Source, notifier store.Notifier, pub events.Publisher) *Service {
	if notifier == nil {
		notifier = store.NotifierFunc(func(store.Notice) {})
	}
	return &Service{
		api:      api,
		sess:     sess,
		notifier: notifier,
		events:   pub,
		log:      log.With().Str("component", "checkout").Logger(),
	}
}

// Checkout buys every line of cart for delivery to address. On success the local
// cart is forgotten, since the API has consumed it. On any failure the cart is left
// alone. Exactly one notice is emitted either way.
func (s *Service) Checkout(ctx context.Context, cart Cart, address string) (Result, error) {
	cur := s.sess.Current()
	if !cur.Authenticated() {
		s.notify(store.KindUnauthenticated, "Please login to proceed")
		return Result{}, store.ErrNotAuthenticated
	}
	lines := cart.Cart()
	if len(lines) == 0 {
		s.notify(store.KindFailure, "Your cart is empty")
		return Result{}, ErrEmptyCart
	}
	address = strings.TrimSpace(address)
	if address == "" {
		s.notify(store.KindFailure, "Please enter an address.")
		return Result{}, ErrMissingAddress
	}
	// Only lines whose stock the API reported are checked; the server has the final say.
	for _, it := range lines {
		if n, known := it.Book.Stock(); known && it.Quantity > n {
			err := &OutOfStockError{BookID: it.Book.ID, Title: it.Book.Name, Requested: it.Quantity, Available: n}
			s.notify(store.KindFailure, "Not enough copies of "+it.Book.Name)
			return Result{}, err
		}
	}

	userID, err := s.api.UserID(ctx, cur.Token, cur.Username)
	if err != nil {
		return Result{}, s.failed(fmt.Errorf("resolve user %q: %w", cur.Username, err))
	}
	purchases := make([]models.Purchase, 0, len(lines))
	for _, it := range lines {
		purchases = append(purchases, models.Purchase{
			UserID:  userID,
			BookID:  it.Book.ID,
			Copies:  it.Quantity,
			Address: address,
		})
	}
	msg, err := s.api.Purchase(ctx, cur.Token, purchases)
	if err != nil {
		return Result{}, s.failed(fmt.Errorf("purchase: %w", err))
	}

	total := cart.CartTotal()
	cart.ForgetCart()
	s.notify(store.KindSuccess, "Order Successful!\n"+msg)
	s.log.Info().Str("user", cur.Username).Int("lines", len(lines)).Str("total", total.StringFixed(2)).Msg("order placed")

	evt := events.OrderPlacedPayload{Username: cur.Username, UserID: userID, Total: total.StringFixed(2), Message: msg}
	for _, it := range lines {
		evt.Lines = append(evt.Lines, events.OrderLineEvent{
			BookID: it.Book.ID, Title: it.Book.Name, Copies: it.Quantity, Line: it.LineTotal().StringFixed(2),
		})
	}
	events.PublishJSON(ctx, s.events, events.RKOrderPlaced, evt)

	return Result{Message: msg, Lines: lines, Total: total}, nil
}

func (s *Service) failed(err error) error {
	s.log.Warn().Err(err).Msg("checkout failed")
	s.notify(store.KindFailure, "There was an error processing your purchase. Please try again.")
	return err
}

func (s *Service) notify(kind store.Kind, msg string) {
	s.notifier.Notify(store.Notice{Kind: kind, Action: ActionCheckout, Message: msg})
}
