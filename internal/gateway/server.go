// Package gateway is the server-rendered storefront. Each browser session owns one
// cart/wishlist store; pages follow Post/Redirect/Get and carry the resulting
// notices in the msg query parameter.
package gateway

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/mybookstore-storefront/internal/api"
	"github.com/ahinestrog/mybookstore-storefront/internal/catalog"
	"github.com/ahinestrog/mybookstore-storefront/internal/events"
	"github.com/ahinestrog/mybookstore-storefront/internal/models"
	"github.com/ahinestrog/mybookstore-storefront/internal/session"
)

type Options struct {
	API         *api.Client
	Catalog     *catalog.Service
	Sessions    session.Repository
	Events      events.Publisher
	CacheSize   int
	CORSOrigins []string
	Timeout     time.Duration
	// SecureCookies marks the sid cookie Secure; set it outside dev.
	SecureCookies bool
}

type Server struct {
	api      *api.Client
	catalog  *catalog.Service
	sessions session.Repository
	events   events.Publisher
	stores   *storeCache
	tpl      *template.Template
	timeout  time.Duration
	secure   bool
	origins  []string
	log      zerolog.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	tpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	s := &Server{
		api:      opts.API,
		catalog:  opts.Catalog,
		sessions: opts.Sessions,
		events:   opts.Events,
		tpl:      tpl,
		timeout:  opts.Timeout,
		secure:   opts.SecureCookies,
		origins:  opts.CORSOrigins,
		log:      log.With().Str("component", "gateway").Logger(),
	}
	s.stores, err = newStoreCache(opts.CacheSize, s.restoreEntry)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /cart", s.handleCart)
	mux.HandleFunc("POST /cart/add", s.handleCartAdd)
	mux.HandleFunc("POST /cart/increment", s.handleCartIncrement)
	mux.HandleFunc("POST /cart/decrement", s.handleCartDecrement)
	mux.HandleFunc("POST /cart/remove", s.handleCartRemove)
	mux.HandleFunc("POST /cart/clear", s.handleCartClear)
	mux.HandleFunc("GET /wishlist", s.handleWishlist)
	mux.HandleFunc("POST /wishlist/add", s.handleWishlistAdd)
	mux.HandleFunc("POST /wishlist/remove", s.handleWishlistRemove)
	mux.HandleFunc("POST /checkout", s.handleCheckout)
	mux.HandleFunc("GET /checkout", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
	})
	mux.HandleFunc("GET /login", s.handleLoginForm)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /register", s.handleRegisterForm)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("GET /contact", s.handleContactForm)
	mux.HandleFunc("POST /contact", s.handleContact)

	state := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet},
		AllowCredentials: true,
	}).Handler(http.HandlerFunc(s.handleState))
	mux.Handle("GET /api/state", state)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return s.withLog(mux)
}

func (s *Server) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		ev := s.log.Info()
		if rec.status >= 500 {
			ev = s.log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("http")
	})
}

// redirect sends the browser to path, carrying msg when there is one.
func redirect(w http.ResponseWriter, r *http.Request, path, msg string) {
	if msg != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + "msg=" + url.QueryEscape(msg)
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// back returns to the page the form was posted from, defaulting to fallback.
func back(r *http.Request, fallback string) string {
	if next := r.FormValue("next"); strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return fallback
}

// lookupBook finds the catalog entry for id so the store gets a full snapshot.
func (s *Server) lookupBook(ctx context.Context, id string) models.Book {
	books, err := s.catalog.Books(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("catalog unavailable, using bare book reference")
		return models.Book{ID: id}
	}
	for _, b := range books {
		if b.ID == id {
			return b
		}
	}
	return models.Book{ID: id}
}

func pageParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		return 1
	}
	return n
}

func httpStatus(err error) int {
	var he *api.HTTPError
	if errors.As(err, &he) && he.Status >= 400 && he.Status < 500 {
		return he.Status
	}
	return http.StatusBadGateway
}
