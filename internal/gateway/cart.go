package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ahinestrog/mybookstore-storefront/internal/catalog"
	"github.com/ahinestrog/mybookstore-storefront/internal/models"
	"github.com/ahinestrog/mybookstore-storefront/internal/store"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	ctx, cancel := s.ctx(r)
	defer cancel()

	q := r.URL.Query()
	by := catalog.ParseGroupBy(q.Get("category"))
	page, err := s.catalog.Browse(ctx, catalog.Query{
		Term:    q.Get("q"),
		GroupBy: by,
		Page:    pageParam(r),
		PerPage: catalog.StorefrontPerPage,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("browse failed")
		http.Error(w, "catalog unavailable", httpStatus(err))
		return
	}
	arrived, err := s.catalog.NewArrivals(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("new arrivals unavailable")
	}

	wished := map[string]bool{}
	for _, it := range e.store.Wishlist() {
		wished[it.Book.ID] = true
	}
	s.render(w, r, e, "index.html", view{
		Title:   "Books",
		Query:   q.Get("q"),
		GroupBy: string(by),
		Page:    page,
		Arrived: arrived,
		Wished:  wished,
	})
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	if !e.holder.Current().Authenticated() {
		redirect(w, r, "/login", "Please login to view cart")
		return
	}
	s.render(w, r, e, "cart.html", view{
		Title: "Cart",
		Cart:  e.store.Cart(),
		Total: e.store.CartTotal(),
	})
}

func (s *Server) handleWishlist(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	s.render(w, r, e, "wishlist.html", view{
		Title:    "Wishlist",
		Wishlist: e.store.Wishlist(),
	})
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	ctx, cancel := s.ctx(r)
	defer cancel()
	bookID := strings.TrimSpace(r.FormValue("book_id"))
	if bookID == "" {
		http.Error(w, "book_id is required", http.StatusBadRequest)
		return
	}
	_ = e.store.AddToCart(ctx, s.lookupBook(ctx, bookID))
	redirect(w, r, back(r, "/"), e.drain())
}

func (s *Server) handleCartIncrement(w http.ResponseWriter, r *http.Request) {
	s.itemAction(w, r, (*store.Store).IncrementQuantity)
}

func (s *Server) handleCartDecrement(w http.ResponseWriter, r *http.Request) {
	s.itemAction(w, r, (*store.Store).DecrementQuantity)
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	s.itemAction(w, r, (*store.Store).RemoveFromCart)
}

// itemAction runs one cart-line mutation named by the item_id form field.
func (s *Server) itemAction(w http.ResponseWriter, r *http.Request, op func(*store.Store, context.Context, string) error) {
	e := s.session(w, r)
	ctx, cancel := s.ctx(r)
	defer cancel()
	id := strings.TrimSpace(r.FormValue("item_id"))
	if id == "" {
		http.Error(w, "item_id is required", http.StatusBadRequest)
		return
	}
	_ = op(e.store, ctx, id)
	redirect(w, r, back(r, "/cart"), e.drain())
}

func (s *Server) handleCartClear(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	ctx, cancel := s.ctx(r)
	defer cancel()
	_ = e.store.ClearCart(ctx)
	redirect(w, r, back(r, "/cart"), e.drain())
}

func (s *Server) handleWishlistAdd(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	ctx, cancel := s.ctx(r)
	defer cancel()
	bookID := strings.TrimSpace(r.FormValue("book_id"))
	if bookID == "" {
		http.Error(w, "book_id is required", http.StatusBadRequest)
		return
	}
	_ = e.store.AddToWishlist(ctx, s.lookupBook(ctx, bookID))
	redirect(w, r, back(r, "/wishlist"), e.drain())
}

// handleWishlistRemove accepts the wishlist item id, or the book id when posted from
// a catalog card.
func (s *Server) handleWishlistRemove(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	ctx, cancel := s.ctx(r)
	defer cancel()
	id := strings.TrimSpace(r.FormValue("item_id"))
	if id == "" {
		if it, ok := e.store.WishlistItemFor(r.FormValue("book_id")); ok {
			id = it.ID
		}
	}
	if id == "" {
		redirect(w, r, back(r, "/wishlist"), "That book is not in your wishlist")
		return
	}
	_ = e.store.RemoveFromWishlist(ctx, id)
	redirect(w, r, back(r, "/wishlist"), e.drain())
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	ctx, cancel := s.ctx(r)
	defer cancel()
	if _, err := e.checkout.Checkout(ctx, e.store, r.FormValue("address")); err != nil {
		if !e.holder.Current().Authenticated() {
			redirect(w, r, "/login", e.drain())
			return
		}
		redirect(w, r, "/cart", e.drain())
		return
	}
	redirect(w, r, "/", e.drain())
}

type stateResponse struct {
	Authenticated bool                  `json:"authenticated"`
	Username      string                `json:"username,omitempty"`
	Loading       bool                  `json:"loading"`
	Cart          []models.CartItem     `json:"cart"`
	Wishlist      []models.WishlistItem `json:"wishlist"`
	CartCount     int                   `json:"cartCount"`
	CartTotal     decimal.Decimal       `json:"cartTotal"`
	Notices       []store.Notice        `json:"notices"`
}

// handleState serves the session's store as JSON for script clients.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	cur := e.holder.Current()
	resp := stateResponse{
		Authenticated: cur.Authenticated(),
		Username:      cur.Username,
		Loading:       e.store.Loading(),
		Cart:          e.store.Cart(),
		Wishlist:      e.store.Wishlist(),
		CartCount:     e.store.CartCount(),
		CartTotal:     e.store.CartTotal(),
		Notices:       e.notices.Drain(),
	}
	if resp.Cart == nil {
		resp.Cart = []models.CartItem{}
	}
	if resp.Wishlist == nil {
		resp.Wishlist = []models.WishlistItem{}
	}
	if resp.Notices == nil {
		resp.Notices = []store.Notice{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error().Err(err).Msg("encode state")
	}
}
