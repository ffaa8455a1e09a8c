package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/mybookstore-storefront/internal/events"
	"github.com/ahinestrog/mybookstore-storefront/internal/models"
)

// BookAPI is the books part of the bookstore API. *api.Client implements it.
type BookAPI interface {
	ListBooks(ctx context.Context) ([]models.Book, error)
	NewArrivals(ctx context.Context) ([]models.Book, error)
	CreateBook(ctx context.Context, token string, b models.Book) (models.Book, error)
	UpdateBook(ctx context.Context, token, id string, b models.Book) (models.Book, error)
	DeleteBook(ctx context.Context, token, id string) error
}

const (
	keyAll         = "all"
	keyNewArrivals = "new-arrivals"
)

// Service serves the book list with a short-lived cache in front of the API.
// Admin writes drop the cache and announce the change.
type Service struct {
	api    BookAPI
	cache  *expirable.LRU[string, []models.Book]
	events events.Publisher
}

func NewService(api BookAPI, ttl time.Duration, pub events.Publisher) *Service {
	return &Service{
		api:    api,
		cache:  expirable.NewLRU[string, []models.Book](4, nil, ttl),
		events: pub,
	}
}

func (s *Service) Books(ctx context.Context) ([]models.Book, error) {
	return s.cached(ctx, keyAll, s.api.ListBooks)
}

func (s *Service) NewArrivals(ctx context.Context) ([]models.Book, error) {
	return s.cached(ctx, keyNewArrivals, s.api.NewArrivals)
}

func (s *Service) cached(ctx context.Context, key string, load func(context.Context) ([]models.Book, error)) ([]models.Book, error) {
	if books, ok := s.cache.Get(key); ok {
		return books, nil
	}
	books, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	s.cache.Add(key, books)
	return books, nil
}

// Query is one storefront listing request.
type Query struct {
	Term    string
	GroupBy GroupBy
	Page    int
	PerPage int
}

type Page struct {
	Groups     []Group
	Page       int
	TotalPages int
	Total      int
}

// Browse filters, groups and paginates the catalog. The page is cut from the
// grouped order and then regrouped so headings follow the books shown.
func (s *Service) Browse(ctx context.Context, q Query) (Page, error) {
	books, err := s.Books(ctx)
	if err != nil {
		return Page{}, err
	}
	if q.PerPage == 0 {
		q.PerPage = StorefrontPerPage
	}
	matched := Flatten(GroupBooks(Filter(books, q.Term), q.GroupBy))
	items, cur, pages := Paginate(matched, q.Page, q.PerPage)
	return Page{
		Groups:     GroupBooks(items, q.GroupBy),
		Page:       cur,
		TotalPages: pages,
		Total:      len(matched),
	}, nil
}

type bookEvent struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (s *Service) Create(ctx context.Context, token string, b models.Book) (models.Book, error) {
	out, err := s.api.CreateBook(ctx, token, b)
	if err != nil {
		return models.Book{}, err
	}
	s.changed(ctx, events.RKBookCreated, bookEvent{ID: out.ID, Name: out.Name})
	return out, nil
}

func (s *Service) Update(ctx context.Context, token, id string, b models.Book) (models.Book, error) {
	out, err := s.api.UpdateBook(ctx, token, id, b)
	if err != nil {
		return models.Book{}, err
	}
	s.changed(ctx, events.RKBookUpdated, bookEvent{ID: out.ID, Name: out.Name})
	return out, nil
}

func (s *Service) Delete(ctx context.Context, token, id string) error {
	if err := s.api.DeleteBook(ctx, token, id); err != nil {
		return err
	}
	s.changed(ctx, events.RKBookDeleted, bookEvent{ID: id})
	return nil
}

func (s *Service) changed(ctx context.Context, key string, payload bookEvent) {
	s.cache.Purge()
	log.Info().Str("book", payload.ID).Str("event", key).Msg("catalog changed")
	events.PublishJSON(ctx, s.events, key, payload)
}
