package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahinestrog/mybookstore-storefront/internal/models"
)

func book(id, name, author, genre string, price int64) models.Book {
	return models.Book{ID: id, Name: name, Author: author, Genre: genre, Price: decimal.NewFromInt(price)}
}

var shelf = []models.Book{
	book("b1", "Dune", "Frank Herbert", "Sci-Fi", 20),
	book("b2", "Emma", "Jane Austen", "Classic", 12),
	book("b3", "Neuromancer", "William Gibson", "Sci-Fi", 15),
	book("b4", "Persuasion", "Jane Austen", "Classic", 11),
	book("b5", "Untitled", "Anon", "", 5),
}

func names(books []models.Book) []string {
	var out []string
	for _, b := range books {
		out = append(out, b.Name)
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		term string
		want []string
	}{
		{"", []string{"Dune", "Emma", "Neuromancer", "Persuasion", "Untitled"}},
		{"  austen ", []string{"Emma", "Persuasion"}},
		{"SCI", []string{"Dune", "Neuromancer"}},
		{"mancer", []string{"Neuromancer"}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			assert.Equal(t, tt.want, names(Filter(shelf, tt.term)))
		})
	}
}

func TestGroupBooks(t *testing.T) {
	groups := GroupBooks(shelf, ByGenre)
	require.Len(t, groups, 3)
	assert.Equal(t, "Classic", groups[0].Key)
	assert.Equal(t, []string{"Emma", "Persuasion"}, names(groups[0].Books))
	assert.Equal(t, "Other", groups[1].Key)
	assert.Equal(t, "Sci-Fi", groups[2].Key)

	all := GroupBooks(shelf, ByAll)
	require.Len(t, all, 1)
	assert.Equal(t, "All", all[0].Key)
	assert.Len(t, all[0].Books, 5)

	assert.Nil(t, GroupBooks(nil, ByAll))
	assert.Equal(t, ByGenre, ParseGroupBy("nonsense"))
	assert.Equal(t, ByAuthor, ParseGroupBy("authorName"))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	tests := []struct {
		page, perPage int
		want          []int
		cur, pages    int
	}{
		{1, 5, []int{1, 2, 3, 4, 5}, 1, 3},
		{3, 5, []int{11}, 3, 3},
		{9, 5, []int{11}, 3, 3},
		{0, 8, []int{1, 2, 3, 4, 5, 6, 7, 8}, 1, 2},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d of %d", tt.page, tt.perPage), func(t *testing.T) {
			got, cur, pages := Paginate(items, tt.page, tt.perPage)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.cur, cur)
			assert.Equal(t, tt.pages, pages)
		})
	}

	got, cur, pages := Paginate([]int(nil), 2, 5)
	assert.Empty(t, got)
	assert.Equal(t, 1, cur)
	assert.Equal(t, 1, pages)
}

func TestSortByAuthor(t *testing.T) {
	sorted := SortByAuthor(shelf)
	assert.Equal(t, []string{"Untitled", "Dune", "Emma", "Persuasion", "Neuromancer"}, names(sorted))
	assert.Equal(t, "Dune", shelf[0].Name, "input untouched")
}

func TestStats(t *testing.T) {
	orders := []models.Order{
		{Book: &shelf[0], CopiesPurchased: 2, Price: decimal.NewFromInt(20)},
		{Book: &shelf[0], CopiesPurchased: 1},
		{Book: &shelf[1], CopiesPurchased: 3, Price: decimal.NewFromInt(10)},
		{CopiesPurchased: 4},
	}

	sales := SalesByBook(shelf, orders)
	require.Len(t, sales, len(shelf))
	assert.Equal(t, 3, sales[0].CopiesSold)
	assert.Equal(t, 3, sales[1].CopiesSold)
	assert.Zero(t, sales[2].CopiesSold)

	counts := GenreCounts(shelf)
	assert.Equal(t, []GenreCount{{"Classic", 2}, {"Sci-Fi", 2}, {"Other", 1}}, counts)

	assert.Equal(t, "90", Revenue(orders).String())
}

type fakeBooks struct {
	lists    int
	created  []models.Book
	err      error
	writeErr error
}

func (f *fakeBooks) ListBooks(context.Context) ([]models.Book, error) {
	f.lists++
	if f.err != nil {
		return nil, f.err
	}
	return shelf, nil
}

func (f *fakeBooks) NewArrivals(context.Context) ([]models.Book, error) { return shelf[:2], nil }

func (f *fakeBooks) CreateBook(_ context.Context, _ string, b models.Book) (models.Book, error) {
	if f.writeErr != nil {
		return models.Book{}, f.writeErr
	}
	b.ID = "new"
	f.created = append(f.created, b)
	return b, nil
}

func (f *fakeBooks) UpdateBook(_ context.Context, _, id string, b models.Book) (models.Book, error) {
	if f.writeErr != nil {
		return models.Book{}, f.writeErr
	}
	b.ID = id
	return b, nil
}

func (f *fakeBooks) DeleteBook(context.Context, string, string) error { return f.writeErr }

type recorder struct{ keys []string }

func (r *recorder) Publish(_ context.Context, key string, _ []byte) error {
	r.keys = append(r.keys, key)
	return nil
}

func TestService_BrowseUsesCacheUntilWrite(t *testing.T) {
	api := &fakeBooks{}
	rec := &recorder{}
	svc := NewService(api, time.Minute, rec)
	ctx := context.Background()

	page, err := svc.Browse(ctx, Query{Term: "o", GroupBy: ByGenre, Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Groups, 2)
	assert.Equal(t, "Classic", page.Groups[0].Key)
	assert.Equal(t, "Other", page.Groups[1].Key)

	page, err = svc.Browse(ctx, Query{Term: "o", GroupBy: ByGenre, Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, page.Groups, 1)
	assert.Equal(t, "Sci-Fi", page.Groups[0].Key)
	assert.Equal(t, []string{"Neuromancer"}, names(page.Groups[0].Books))
	assert.Equal(t, 1, api.lists)

	_, err = svc.Create(ctx, "tok", book("", "Ulysses", "James Joyce", "Classic", 30))
	require.NoError(t, err)
	_, err = svc.Books(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, api.lists)
	assert.Equal(t, []string{"catalog.book.created"}, rec.keys)

	require.NoError(t, svc.Delete(ctx, "tok", "b1"))
	assert.Equal(t, []string{"catalog.book.created", "catalog.book.deleted"}, rec.keys)
}

func TestService_WritesPurgeCache(t *testing.T) {
	tests := []struct {
		name  string
		write func(context.Context, *Service) error
		key   string
	}{
		{"create", func(ctx context.Context, s *Service) error {
			_, err := s.Create(ctx, "tok", book("", "Ulysses", "James Joyce", "Classic", 30))
			return err
		}, "catalog.book.created"},
		{"update", func(ctx context.Context, s *Service) error {
			_, err := s.Update(ctx, "tok", "b2", book("", "Emma", "Jane Austen", "Classic", 9))
			return err
		}, "catalog.book.updated"},
		{"delete", func(ctx context.Context, s *Service) error {
			return s.Delete(ctx, "tok", "b1")
		}, "catalog.book.deleted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			api := &fakeBooks{}
			rec := &recorder{}
			svc := NewService(api, time.Minute, rec)

			_, err := svc.Books(ctx)
			require.NoError(t, err)
			require.NoError(t, tt.write(ctx, svc))
			_, err = svc.Books(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, api.lists, "write purges the cached list")
			assert.Equal(t, []string{tt.key}, rec.keys)

			api.writeErr = errors.New("forbidden")
			assert.Error(t, tt.write(ctx, svc))
			_, err = svc.Books(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, api.lists, "failed write keeps the cache")
			assert.Equal(t, []string{tt.key}, rec.keys)
		})
	}
}

func TestService_ListErrorIsNotCached(t *testing.T) {
	api := &fakeBooks{err: errors.New("down")}
	svc := NewService(api, time.Minute, nil)

	_, err := svc.Browse(context.Background(), Query{})
	assert.Error(t, err)

	api.err = nil
	page, err := svc.Browse(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, api.lists)
}
