package gateway

import (
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/ahinestrog/mybookstore-storefront/internal/catalog"
	"github.com/ahinestrog/mybookstore-storefront/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"money": formatMoney,
	"count": func(n int) string { return humanize.Comma(int64(n)) },
	"ordinal": humanize.Ordinal,
	"line": func(it models.CartItem) string { return formatMoney(it.LineTotal()) },
	"pages": func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out
	},
	"lines": func(s string) []string { return strings.Split(s, "\n") },
}

func parseTemplates() (*template.Template, error) {
	return template.New("storefront").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

func formatMoney(d decimal.Decimal) string { return models.FormatMoney(d) }

type view struct {
	Title     string
	Msg       string
	LoggedIn  bool
	UserName  string
	IsAdmin   bool
	CartCount int
	Year      int
	Path      string

	Query   string
	GroupBy string
	Page    catalog.Page
	Arrived []models.Book
	Wished  map[string]bool

	Cart     []models.CartItem
	Total    decimal.Decimal
	Wishlist []models.WishlistItem
	Loading  bool
}

// render fills the fields every page shows and executes the named page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, e *entry, name string, v view) {
	cur := e.holder.Current()
	v.LoggedIn = cur.Authenticated()
	v.UserName = cur.Username
	v.IsAdmin = cur.IsAdmin()
	v.CartCount = e.store.CartCount()
	v.Loading = e.store.Loading()
	v.Year = time.Now().Year()
	v.Path = r.URL.RequestURI()

	msgs := []string{}
	if m := r.URL.Query().Get("msg"); m != "" {
		msgs = append(msgs, m)
	}
	if m := e.drain(); m != "" {
		msgs = append(msgs, m)
	}
	v.Msg = strings.Join(msgs, " | ")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.ExecuteTemplate(w, name, v); err != nil {
		s.log.Error().Err(err).Str("template", name).Msg("template render error")
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}
