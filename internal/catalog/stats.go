package catalog

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ahinestrog/mybookstore-storefront/internal/models"
)

type BookSales struct {
	BookID          string
	Name            string
	CopiesSold      int
	CopiesAvailable int
}

// SalesByBook totals copies purchased per book, in catalog order.
// Orders whose book is missing are ignored.
func SalesByBook(books []models.Book, orders []models.Order) []BookSales {
	sold := map[string]int{}
	for _, o := range orders {
		if o.Book == nil || o.Book.ID == "" {
			continue
		}
		sold[o.Book.ID] += o.CopiesPurchased
	}
	out := make([]BookSales, 0, len(books))
	for _, b := range books {
		stock, _ := b.Stock()
		out = append(out, BookSales{
			BookID:          b.ID,
			Name:            b.Name,
			CopiesSold:      sold[b.ID],
			CopiesAvailable: stock,
		})
	}
	return out
}

type GenreCount struct {
	Genre string
	Books int
}

// GenreCounts counts books per genre, largest first, ties by name.
func GenreCounts(books []models.Book) []GenreCount {
	counts := map[string]int{}
	for _, b := range books {
		g := b.Genre
		if g == "" {
			g = "Other"
		}
		counts[g]++
	}
	out := make([]GenreCount, 0, len(counts))
	for g, n := range counts {
		out = append(out, GenreCount{Genre: g, Books: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Books != out[j].Books {
			return out[i].Books > out[j].Books
		}
		return out[i].Genre < out[j].Genre
	})
	return out
}

// Revenue sums unit price times copies over orders. An order without its own price
// is valued at its book's price.
func Revenue(orders []models.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		unit := o.Price
		if unit.IsZero() && o.Book != nil {
			unit = o.Book.Price
		}
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(o.CopiesPurchased))))
	}
	return total
}
