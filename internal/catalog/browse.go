// Package catalog implements storefront browsing and the admin dashboard figures
// on top of the book list served by the API.
package catalog

import (
	"sort"
	"strings"

	"github.com/ahinestrog/mybookstore-storefront/internal/models"
)

const (
	StorefrontPerPage = 8
	DashboardPerPage  = 5
)

// GroupBy names the book field the storefront groups by.
type GroupBy string

const (
	ByGenre     GroupBy = "genre"
	ByAuthor    GroupBy = "authorName"
	ByPublisher GroupBy = "publisherName"
	ByAll       GroupBy = "all"
)

func ParseGroupBy(s string) GroupBy {
	switch GroupBy(s) {
	case ByAuthor, ByPublisher, ByAll:
		return GroupBy(s)
	default:
		return ByGenre
	}
}

type Group struct {
	Key   string
	Books []models.Book
}

// Filter keeps books whose name, author or genre contains term, ignoring case.
// A blank term keeps everything.
func Filter(books []models.Book, term string) []models.Book {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return books
	}
	var out []models.Book
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.Name), term) ||
			strings.Contains(strings.ToLower(b.Author), term) ||
			strings.Contains(strings.ToLower(b.Genre), term) {
			out = append(out, b)
		}
	}
	return out
}

// GroupBooks splits books by the chosen field, groups ordered by key. Books keep their
// relative order inside a group. ByAll yields the single group "All".
func GroupBooks(books []models.Book, by GroupBy) []Group {
	if by == ByAll {
		if len(books) == 0 {
			return nil
		}
		return []Group{{Key: "All", Books: books}}
	}
	idx := map[string]int{}
	var out []Group
	for _, b := range books {
		k := groupKey(b, by)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Group{Key: k})
		}
		out[i].Books = append(out[i].Books, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func groupKey(b models.Book, by GroupBy) string {
	var k string
	switch by {
	case ByAuthor:
		k = b.Author
	case ByPublisher:
		k = b.Publisher
	default:
		k = b.Genre
	}
	if k == "" {
		return "Other"
	}
	return k
}

// Flatten lists the books of groups in group order.
func Flatten(groups []Group) []models.Book {
	var out []models.Book
	for _, g := range groups {
		out = append(out, g.Books...)
	}
	return out
}

// Paginate returns the 1-based page of items. page is clamped into [1, pages];
// pages is at least 1 even for an empty list.
func Paginate[T any](items []T, page, perPage int) (out []T, current, pages int) {
	if perPage < 1 {
		perPage = 1
	}
	pages = (len(items) + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}
	current = min(max(page, 1), pages)
	start := (current - 1) * perPage
	end := min(start+perPage, len(items))
	if start >= len(items) {
		return nil, current, pages
	}
	return items[start:end], current, pages
}

// SortByAuthor orders by author, then title. The input is not modified.
func SortByAuthor(books []models.Book) []models.Book {
	out := append([]models.Book(nil), books...)
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := strings.ToLower(out[i].Author), strings.ToLower(out[j].Author)
		if ai != aj {
			return ai < aj
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
