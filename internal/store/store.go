// Package store keeps the client-side view of the signed-in user's cart and wishlist.
//
// The remote API is the source of truth. Every mutation goes through it, and the local
// copy is only ever updated from the API's answer: an entry is replaced by what the
// server returned or removed when the server says it is gone. A failed call leaves the
// local state exactly as it was. Each mutating call emits exactly one Notice; Load only
// notifies on failure.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ahinestrog/mybookstore-storefront/internal/events"
	"github.com/ahinestrog/mybookstore-storefront/internal/models"
	"github.com/ahinestrog/mybookstore-storefront/internal/session"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrUnknownItem      = errors.New("item not in cart")
)

// Remote is the part of the bookstore API the store talks to. *api.Client implements it.
type Remote interface {
	GetCart(ctx context.Context, token string) ([]models.CartItem, error)
	AddToCart(ctx context.Context, token, bookID string, qty int) (models.CartItem, error)
	IncrementCartItem(ctx context.Context, token, itemID string) (models.CartItem, error)
	DecrementCartItem(ctx context.Context, token, itemID string) (models.CartItem, bool, error)
	RemoveCartItem(ctx context.Context, token, itemID string) error
	ClearCart(ctx context.Context, token string) error
	GetWishlist(ctx context.Context, token string) ([]models.WishlistItem, error)
	AddToWishlist(ctx context.Context, token, bookID string) (models.WishlistItem, error)
	RemoveWishlistItem(ctx context.Context, token, itemID string) error
}

type Option func(*Store)

func WithNotifier(n Notifier) Option { return func(s *Store) { s.notifier = n } }

func WithEvents(p events.Publisher) Option { return func(s *Store) { s.events = p } }

func WithLogger(l zerolog.Logger) Option { return func(s *Store) { s.log = l } }

type Store struct {
	remote   Remote
	sess     session.Source
	notifier Notifier
	events   events.Publisher
	log      zerolog.Logger
	lanes    *lanes

	mu       sync.RWMutex
	cart     []models.CartItem
	wishlist []models.WishlistItem
	loading  int
}

func New(remote Remote, sess session.Source, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		sess:   sess,
		log:    log.With().Str("component", "store").Logger(),
		lanes:  newLanes(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Log: s.log}
	}
	return s
}

// Load replaces the local cart and wishlist with the server's. Without a credential
// both are emptied and nothing is requested.
func (s *Store) Load(ctx context.Context) error {
	cur := s.sess.Current()
	if !cur.Authenticated() {
		s.mu.Lock()
		s.cart, s.wishlist = nil, nil
		s.mu.Unlock()
		return nil
	}

	s.setLoading(1)
	defer s.setLoading(-1)

	var (
		cart     []models.CartItem
		wishlist []models.WishlistItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cart, err = s.remote.GetCart(gctx, cur.Token)
		return err
	})
	g.Go(func() (err error) {
		wishlist, err = s.remote.GetWishlist(gctx, cur.Token)
		return err
	})
	if err := g.Wait(); err != nil {
		s.mu.Lock()
		s.cart, s.wishlist = nil, nil
		s.mu.Unlock()
		s.fail(ActionLoad, err)
		return fmt.Errorf("load: %w", err)
	}

	cart = dropEmptyLines(cart)
	s.mu.Lock()
	s.cart, s.wishlist = cart, wishlist
	s.mu.Unlock()
	s.log.Debug().Int("cart", len(cart)).Int("wishlist", len(wishlist)).Msg("loaded")
	return nil
}

// AddToCart asks for one more copy of b. The returned line is appended as is; the
// server decides whether it is a new line or an existing one.
func (s *Store) AddToCart(ctx context.Context, b models.Book) error {
	cur, err := s.begin(ActionAddToCart)
	if err != nil {
		return err
	}
	item, err := s.remote.AddToCart(ctx, cur.Token, b.ID, 1)
	if err != nil {
		s.fail(ActionAddToCart, err)
		return fmt.Errorf("add to cart: %w", err)
	}
	item.Book = keepSnapshot(item.Book, b)

	s.mu.Lock()
	s.cart = append(s.cart, item)
	s.mu.Unlock()

	s.succeed(ActionAddToCart)
	events.PublishJSON(ctx, s.events, events.RKCartItemAdded, events.CartItemPayload{
		Username: cur.Username, ItemID: item.ID, BookID: item.Book.ID, Quantity: item.Quantity,
	})
	return nil
}

func (s *Store) IncrementQuantity(ctx context.Context, itemID string) error {
	return s.adjust(ctx, ActionIncrement, itemID)
}

// DecrementQuantity lowers a line by one. When the server reports the line deleted
// (the quantity-one case) the entry is removed locally.
func (s *Store) DecrementQuantity(ctx context.Context, itemID string) error {
	return s.adjust(ctx, ActionDecrement, itemID)
}

func (s *Store) adjust(ctx context.Context, action Action, itemID string) error {
	cur, err := s.begin(action)
	if err != nil {
		return err
	}
	release, err := s.lanes.acquire(ctx, itemID)
	if err != nil {
		s.fail(action, err)
		return fmt.Errorf("%s %s: %w", action, itemID, err)
	}
	defer release()

	prev, ok := s.CartItem(itemID)
	if !ok {
		s.fail(action, ErrUnknownItem)
		return fmt.Errorf("%s %s: %w", action, itemID, ErrUnknownItem)
	}

	var (
		item    models.CartItem
		deleted bool
	)
	if action == ActionIncrement {
		item, err = s.remote.IncrementCartItem(ctx, cur.Token, itemID)
	} else {
		item, deleted, err = s.remote.DecrementCartItem(ctx, cur.Token, itemID)
	}
	if err != nil {
		s.fail(action, err)
		return fmt.Errorf("%s %s: %w", action, itemID, err)
	}

	if deleted {
		s.removeCartItem(itemID)
		s.succeed(action)
		events.PublishJSON(ctx, s.events, events.RKCartItemRemoved, events.CartItemPayload{
			Username: cur.Username, ItemID: itemID, BookID: prev.Book.ID,
		})
		return nil
	}

	item.Book = keepSnapshot(item.Book, prev.Book)
	if !s.replaceCartItem(item) {
		s.log.Debug().Str("item", itemID).Msg("line vanished while updating")
	}
	s.succeed(action)
	events.PublishJSON(ctx, s.events, events.RKCartItemUpdated, events.CartItemPayload{
		Username: cur.Username, ItemID: item.ID, BookID: item.Book.ID, Quantity: item.Quantity,
	})
	return nil
}

func (s *Store) RemoveFromCart(ctx context.Context, itemID string) error {
	cur, err := s.begin(ActionRemoveFromCart)
	if err != nil {
		return err
	}
	release, err := s.lanes.acquire(ctx, itemID)
	if err != nil {
		s.fail(ActionRemoveFromCart, err)
		return fmt.Errorf("remove %s: %w", itemID, err)
	}
	defer release()

	if err := s.remote.RemoveCartItem(ctx, cur.Token, itemID); err != nil {
		s.fail(ActionRemoveFromCart, err)
		return fmt.Errorf("remove %s: %w", itemID, err)
	}
	s.removeCartItem(itemID)
	s.succeed(ActionRemoveFromCart)
	events.PublishJSON(ctx, s.events, events.RKCartItemRemoved, events.CartItemPayload{
		Username: cur.Username, ItemID: itemID,
	})
	return nil
}

func (s *Store) ClearCart(ctx context.Context) error {
	cur, err := s.begin(ActionClearCart)
	if err != nil {
		return err
	}
	if err := s.remote.ClearCart(ctx, cur.Token); err != nil {
		s.fail(ActionClearCart, err)
		return fmt.Errorf("clear cart: %w", err)
	}
	s.mu.Lock()
	n := len(s.cart)
	s.cart = nil
	s.mu.Unlock()

	s.succeed(ActionClearCart)
	events.PublishJSON(ctx, s.events, events.RKCartCleared, events.CartClearedPayload{
		Username: cur.Username, Items: n,
	})
	return nil
}

// ForgetCart empties the local cart without calling the API. It is meant for the
// moment right after checkout, when the server has already consumed the cart.
func (s *Store) ForgetCart() {
	s.mu.Lock()
	s.cart = nil
	s.mu.Unlock()
}

func (s *Store) AddToWishlist(ctx context.Context, b models.Book) error {
	cur, err := s.begin(ActionAddToWishlist)
	if err != nil {
		return err
	}
	item, err := s.remote.AddToWishlist(ctx, cur.Token, b.ID)
	if err != nil {
		s.fail(ActionAddToWishlist, err)
		return fmt.Errorf("add to wishlist: %w", err)
	}
	item.Book = keepSnapshot(item.Book, b)

	s.mu.Lock()
	s.wishlist = append(s.wishlist, item)
	s.mu.Unlock()

	s.succeed(ActionAddToWishlist)
	events.PublishJSON(ctx, s.events, events.RKWishlistItemAdded, events.WishlistItemPayload{
		Username: cur.Username, ItemID: item.ID, BookID: item.Book.ID,
	})
	return nil
}

func (s *Store) RemoveFromWishlist(ctx context.Context, itemID string) error {
	cur, err := s.begin(ActionRemoveFromWishlist)
	if err != nil {
		return err
	}
	if err := s.remote.RemoveWishlistItem(ctx, cur.Token, itemID); err != nil {
		s.fail(ActionRemoveFromWishlist, err)
		return fmt.Errorf("remove from wishlist %s: %w", itemID, err)
	}
	s.mu.Lock()
	out := s.wishlist[:0:0]
	for _, it := range s.wishlist {
		if it.ID != itemID {
			out = append(out, it)
		}
	}
	s.wishlist = out
	s.mu.Unlock()

	s.succeed(ActionRemoveFromWishlist)
	events.PublishJSON(ctx, s.events, events.RKWishlistItemRemoved, events.WishlistItemPayload{
		Username: cur.Username, ItemID: itemID,
	})
	return nil
}

// Cart returns a copy of the current cart lines.
func (s *Store) Cart() []models.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CartItem(nil), s.cart...)
}

func (s *Store) Wishlist() []models.WishlistItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.WishlistItem(nil), s.wishlist...)
}

func (s *Store) CartItem(itemID string) (models.CartItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.cart {
		if it.ID == itemID {
			return it, true
		}
	}
	return models.CartItem{}, false
}

func (s *Store) CartTotal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, it := range s.cart {
		total = total.Add(it.LineTotal())
	}
	return total
}

// CartCount is the number of copies across all lines.
func (s *Store) CartCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, it := range s.cart {
		n += it.Quantity
	}
	return n
}

// WishlistItemFor returns the wishlist entry holding bookID, if any.
func (s *Store) WishlistItemFor(bookID string) (models.WishlistItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.wishlist {
		if it.Book.ID == bookID {
			return it, true
		}
	}
	return models.WishlistItem{}, false
}

func (s *Store) InWishlist(bookID string) bool {
	_, ok := s.WishlistItemFor(bookID)
	return ok
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

func (s *Store) Authenticated() bool { return s.sess.Current().Authenticated() }

// begin reads the session for one operation and rejects it when there is no credential.
func (s *Store) begin(action Action) (session.Session, error) {
	cur := s.sess.Current()
	if !cur.Authenticated() {
		s.notifier.Notify(Notice{Kind: KindUnauthenticated, Action: action, Message: messages[action].login})
		return session.Session{}, ErrNotAuthenticated
	}
	return cur, nil
}

func (s *Store) succeed(action Action) {
	s.notifier.Notify(Notice{Kind: KindSuccess, Action: action, Message: messages[action].ok})
}

func (s *Store) fail(action Action, err error) {
	s.log.Warn().Err(err).Str("action", string(action)).Msg("request failed")
	s.notifier.Notify(Notice{Kind: KindFailure, Action: action, Message: messages[action].fail})
}

func (s *Store) setLoading(d int) {
	s.mu.Lock()
	s.loading += d
	s.mu.Unlock()
}

func (s *Store) replaceCartItem(item models.CartItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cart {
		if s.cart[i].ID == item.ID {
			s.cart[i] = item
			return true
		}
	}
	return false
}

func (s *Store) removeCartItem(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.cart[:0:0]
	for _, it := range s.cart {
		if it.ID != itemID {
			out = append(out, it)
		}
	}
	s.cart = out
}

// keepSnapshot returns the server's book when it is populated. A bare reference keeps
// the local display fields, taking the server's id and price when it sent them.
func keepSnapshot(server, local models.Book) models.Book {
	if server.Populated() {
		return server
	}
	out := local
	if server.ID != "" {
		out.ID = server.ID
	}
	if !server.Price.IsZero() {
		out.Price = server.Price
	}
	return out
}

// dropEmptyLines discards lines the server reports with a quantity below one.
func dropEmptyLines(cart []models.CartItem) []models.CartItem {
	out := cart[:0]
	for _, it := range cart {
		if it.Quantity >= 1 {
			out = append(out, it)
		}
	}
	return out
}
