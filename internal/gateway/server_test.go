package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahinestrog/mybookstore-storefront/internal/api"
	"github.com/ahinestrog/mybookstore-storefront/internal/catalog"
	"github.com/ahinestrog/mybookstore-storefront/internal/models"
	"github.com/ahinestrog/mybookstore-storefront/internal/session"
)

// bookstoreAPI is an in-memory stand-in for the remote REST API.
type bookstoreAPI struct {
	mu        sync.Mutex
	books     []gin.H
	cart      map[string]gin.H
	wishlist  map[string]gin.H
	seq       int
	purchases []models.Purchase
	contacts  int
}

func newBookstoreAPI() *bookstoreAPI {
	return &bookstoreAPI{
		books: []gin.H{
			{"_id": "b1", "bookName": "Dune", "authorName": "Frank Herbert", "genre": "Sci-Fi", "price": 20, "copiesAvailable": 5},
			{"_id": "b2", "bookName": "Emma", "authorName": "Jane Austen", "genre": "Classic", "price": 12.5, "copiesAvailable": 3},
		},
		cart:     map[string]gin.H{},
		wishlist: map[string]gin.H{},
	}
}

func (a *bookstoreAPI) recorded() ([]models.Purchase, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Purchase(nil), a.purchases...), a.contacts
}

func (a *bookstoreAPI) book(id string) gin.H {
	for _, b := range a.books {
		if b["_id"] == id {
			return b
		}
	}
	return gin.H{"_id": id}
}

func (a *bookstoreAPI) routes() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer good-token" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		}
	}
	r.GET("/api/books", func(c *gin.Context) { c.JSON(http.StatusOK, a.books) })
	r.GET("/api/books/new-arrivals", func(c *gin.Context) { c.JSON(http.StatusOK, a.books[:1]) })
	r.POST("/api/auth/login", func(c *gin.Context) {
		var in struct{ Username, Password string }
		_ = c.ShouldBindJSON(&in)
		if in.Password != "secret" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": "good-token", "redirect": "/bookspage"})
	})
	r.POST("/api/contact", func(c *gin.Context) {
		a.mu.Lock()
		a.contacts++
		a.mu.Unlock()
		c.JSON(http.StatusCreated, gin.H{"message": "ok"})
	})

	g := r.Group("/api", auth)
	g.POST("/auth/logout", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "bye"}) })
	g.GET("/auth/userId", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"userId": "u-" + c.Query("username")}) })
	g.GET("/cart", func(c *gin.Context) {
		a.mu.Lock()
		defer a.mu.Unlock()
		out := []gin.H{}
		for _, it := range a.cart {
			out = append(out, it)
		}
		c.JSON(http.StatusOK, out)
	})
	g.POST("/cart", func(c *gin.Context) {
		var in struct {
			BookID string `json:"bookId"`
		}
		_ = c.ShouldBindJSON(&in)
		a.mu.Lock()
		defer a.mu.Unlock()
		a.seq++
		id := fmt.Sprintf("c%d", a.seq)
		a.cart[id] = gin.H{"_id": id, "book": gin.H{"_id": in.BookID}, "quantity": 1}
		c.JSON(http.StatusCreated, a.cart[id])
	})
	adjust := func(delta int) gin.HandlerFunc {
		return func(c *gin.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			it, ok := a.cart[c.Param("id")]
			if !ok {
				c.JSON(http.StatusNotFound, gin.H{"message": "Cart item not found"})
				return
			}
			q := it["quantity"].(int) + delta
			if q < 1 {
				delete(a.cart, c.Param("id"))
				c.JSON(http.StatusOK, gin.H{"deleted": true})
				return
			}
			it["quantity"] = q
			c.JSON(http.StatusOK, it)
		}
	}
	g.PUT("/cart/:id/increment", adjust(1))
	g.PUT("/cart/:id/decrement", adjust(-1))
	g.DELETE("/cart/clear", func(c *gin.Context) {
		a.mu.Lock()
		a.cart = map[string]gin.H{}
		a.mu.Unlock()
		c.Status(http.StatusNoContent)
	})
	g.DELETE("/cart/:id", func(c *gin.Context) {
		a.mu.Lock()
		delete(a.cart, c.Param("id"))
		a.mu.Unlock()
		c.Status(http.StatusNoContent)
	})
	g.GET("/wishlist", func(c *gin.Context) {
		a.mu.Lock()
		defer a.mu.Unlock()
		out := []gin.H{}
		for _, it := range a.wishlist {
			out = append(out, it)
		}
		c.JSON(http.StatusOK, out)
	})
	g.POST("/wishlist", func(c *gin.Context) {
		var in struct {
			BookID string `json:"bookId"`
		}
		_ = c.ShouldBindJSON(&in)
		a.mu.Lock()
		defer a.mu.Unlock()
		a.seq++
		id := fmt.Sprintf("w%d", a.seq)
		a.wishlist[id] = gin.H{"_id": id, "book": a.book(in.BookID)}
		c.JSON(http.StatusCreated, a.wishlist[id])
	})
	g.DELETE("/wishlist/:id", func(c *gin.Context) {
		a.mu.Lock()
		delete(a.wishlist, c.Param("id"))
		a.mu.Unlock()
		c.Status(http.StatusNoContent)
	})
	g.POST("/purchase", func(c *gin.Context) {
		var in struct {
			Purchases []models.Purchase `json:"purchases"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		a.mu.Lock()
		a.purchases = append(a.purchases, in.Purchases...)
		a.cart = map[string]gin.H{}
		a.mu.Unlock()
		c.JSON(http.StatusCreated, gin.H{"message": fmt.Sprintf("%d purchases recorded", len(in.Purchases))})
	})
	return r
}

type harness struct {
	api    *bookstoreAPI
	srv    *Server
	web    *httptest.Server
	client *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := newBookstoreAPI()
	remote := httptest.NewServer(fake.routes())
	t.Cleanup(remote.Close)

	repo, err := session.NewSQLiteRepository(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	client := api.New(remote.URL, 2*time.Second)
	srv, err := New(Options{
		API:         client,
		Catalog:     catalog.NewService(client, time.Minute, nil),
		Sessions:    repo,
		CacheSize:   8,
		CORSOrigins: []string{"http://shop.test"},
		Timeout:     2 * time.Second,
	})
	require.NoError(t, err)
	web := httptest.NewServer(srv.Handler())
	t.Cleanup(web.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{
		api: fake,
		srv: srv,
		web: web,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// post submits a form and returns the msg carried by the redirect.
func (h *harness) post(t *testing.T, path string, form url.Values) (location, msg string) {
	t.Helper()
	resp, err := h.client.PostForm(h.web.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return loc.Path, loc.Query().Get("msg")
}

func (h *harness) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := h.client.Get(h.web.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func (h *harness) state(t *testing.T) stateResponse {
	t.Helper()
	code, body := h.get(t, "/api/state")
	require.Equal(t, http.StatusOK, code)
	var st stateResponse
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	return st
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	_, msg := h.post(t, "/login", url.Values{"username": {"ana"}, "password": {"secret"}})
	require.Equal(t, "Welcome back, ana", msg)
}

func (h *harness) sid() string {
	u, _ := url.Parse(h.web.URL)
	for _, c := range h.client.Jar.Cookies(u) {
		if c.Name == sidCookie {
			return c.Value
		}
	}
	return ""
}

func (h *harness) setSID(sid string) {
	u, _ := url.Parse(h.web.URL)
	h.client.Jar.SetCookies(u, []*http.Cookie{{Name: sidCookie, Value: sid, Path: "/"}})
}

// as returns a second browser sharing the server but holding the given sid.
func (h *harness) as(t *testing.T, sid string) *harness {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	other := *h
	other.client = &http.Client{Jar: jar, CheckRedirect: h.client.CheckRedirect}
	other.setSID(sid)
	return &other
}

func TestCatalogPage(t *testing.T) {
	h := newHarness(t)

	code, body := h.get(t, "/?q=dune")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Dune")
	assert.NotContains(t, body, `id="book-b2"`)

	u, _ := url.Parse(h.web.URL)
	assert.NotEmpty(t, h.client.Jar.Cookies(u), "sid cookie issued")
}

func TestCart_RequiresLogin(t *testing.T) {
	h := newHarness(t)

	_, msg := h.post(t, "/cart/add", url.Values{"book_id": {"b1"}})
	assert.Equal(t, "Please log in to add items to your cart", msg)

	path, msg := h.post(t, "/checkout", url.Values{"address": {"Calle 10"}})
	assert.Equal(t, "/login", path)
	assert.Equal(t, "Please login to proceed", msg)

	st := h.state(t)
	assert.False(t, st.Authenticated)
	assert.Empty(t, st.Cart)
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)
	path, msg := h.post(t, "/login", url.Values{"username": {"ana"}, "password": {"nope"}})
	assert.Equal(t, "/login", path)
	assert.Equal(t, "Invalid credentials", msg)
}

func TestCartLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	_, msg := h.post(t, "/cart/add", url.Values{"book_id": {"b1"}})
	assert.Equal(t, "Book added to cart", msg)

	st := h.state(t)
	require.Len(t, st.Cart, 1)
	item := st.Cart[0]
	assert.Equal(t, "Dune", item.Book.Name, "catalog snapshot kept for a bare server reference")
	assert.Equal(t, 1, item.Quantity)

	_, msg = h.post(t, "/cart/increment", url.Values{"item_id": {item.ID}})
	assert.Equal(t, "Quantity updated", msg)
	st = h.state(t)
	assert.Equal(t, 2, st.Cart[0].Quantity)
	assert.Equal(t, "40", st.CartTotal.String())

	code, body := h.get(t, "/cart")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "$40.00")

	h.post(t, "/cart/decrement", url.Values{"item_id": {item.ID}})
	h.post(t, "/cart/decrement", url.Values{"item_id": {item.ID}})
	assert.Empty(t, h.state(t).Cart)

	h.post(t, "/cart/add", url.Values{"book_id": {"b2"}})
	h.post(t, "/cart/add", url.Values{"book_id": {"b1"}})
	assert.Len(t, h.state(t).Cart, 2)
	_, msg = h.post(t, "/cart/clear", nil)
	assert.Equal(t, "Cart cleared", msg)
	assert.Empty(t, h.state(t).Cart)
}

func TestWishlistByBook(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	_, msg := h.post(t, "/wishlist/add", url.Values{"book_id": {"b2"}, "next": {"/"}})
	assert.Equal(t, "Book added to wishlist", msg)
	st := h.state(t)
	require.Len(t, st.Wishlist, 1)
	assert.Equal(t, "Emma", st.Wishlist[0].Book.Name)

	path, msg := h.post(t, "/wishlist/remove", url.Values{"book_id": {"b2"}, "next": {"/"}})
	assert.Equal(t, "/", path)
	assert.Equal(t, "Removed from wishlist", msg)
	assert.Empty(t, h.state(t).Wishlist)
}

func TestCheckout(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	_, msg := h.post(t, "/checkout", url.Values{"address": {"Calle 10"}})
	assert.Equal(t, "Your cart is empty", msg)

	h.post(t, "/cart/add", url.Values{"book_id": {"b1"}})
	_, msg = h.post(t, "/checkout", url.Values{"address": {"  "}})
	assert.Equal(t, "Please enter an address.", msg)
	assert.Len(t, h.state(t).Cart, 1)

	path, msg := h.post(t, "/checkout", url.Values{"address": {"Calle 10"}})
	assert.Equal(t, "/", path)
	assert.True(t, strings.HasPrefix(msg, "Order Successful!\n1 purchases recorded"), msg)
	assert.Empty(t, h.state(t).Cart)
	purchases, _ := h.api.recorded()
	require.Len(t, purchases, 1)
	assert.Equal(t, models.Purchase{UserID: "u-ana", BookID: "b1", Copies: 1, Address: "Calle 10"}, purchases[0])
}

func TestSessionSurvivesCacheEviction(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.post(t, "/cart/add", url.Values{"book_id": {"b1"}})

	sid := h.sid()
	require.NotEmpty(t, sid)
	h.srv.stores.remove(sid)

	st := h.state(t)
	assert.True(t, st.Authenticated)
	assert.Equal(t, "ana", st.Username)
	assert.Len(t, st.Cart, 1)
}

func TestLogin_RotatesSID(t *testing.T) {
	h := newHarness(t)
	h.get(t, "/")
	before := h.sid()
	require.NotEmpty(t, before)

	h.login(t)
	after := h.sid()
	assert.NotEqual(t, before, after)
	assert.True(t, h.state(t).Authenticated)

	// The pre-login id is retired.
	old := h.as(t, before)
	assert.False(t, old.state(t).Authenticated)
	assert.NotEqual(t, before, old.sid())
}

func TestUnknownSIDIsReplaced(t *testing.T) {
	h := newHarness(t)
	h.setSID("chosen-by-client")

	h.get(t, "/")
	assert.NotEqual(t, "chosen-by-client", h.sid())
	h.login(t)

	planted := h.as(t, "chosen-by-client")
	st := planted.state(t)
	assert.False(t, st.Authenticated)
	assert.Empty(t, st.Username)
	assert.NotEqual(t, "chosen-by-client", planted.sid())
}

func TestSharedAnonymousSIDDoesNotInheritLogin(t *testing.T) {
	h := newHarness(t)
	h.get(t, "/")
	shared := h.sid()
	// Another browser is handed the same anonymous id before the victim signs in.
	other := h.as(t, shared)
	assert.False(t, other.state(t).Authenticated)
	assert.Equal(t, shared, other.sid())

	h.login(t)
	h.post(t, "/cart/add", url.Values{"book_id": {"b1"}})

	st := other.state(t)
	assert.False(t, st.Authenticated)
	assert.Empty(t, st.Cart)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.post(t, "/cart/add", url.Values{"book_id": {"b1"}})

	_, msg := h.post(t, "/logout", nil)
	assert.Equal(t, "You have been logged out", msg)

	st := h.state(t)
	assert.False(t, st.Authenticated)
	assert.Empty(t, st.Cart)
}

func TestRegisterAndContactValidation(t *testing.T) {
	h := newHarness(t)

	_, msg := h.post(t, "/register", url.Values{
		"full_name": {"Ana"}, "username": {"ana"}, "email": {"a@x.test"},
		"password": {"one"}, "confirm": {"two"},
	})
	assert.Equal(t, "Passwords do not match", msg)

	_, msg = h.post(t, "/contact", url.Values{"name": {"Ana"}})
	assert.Equal(t, "Please fill in every field", msg)

	_, msg = h.post(t, "/contact", url.Values{"name": {"Ana"}, "email": {"a@x.test"}, "message": {"hi"}})
	assert.Equal(t, "Contact details sent successfully!", msg)
	_, contacts := h.api.recorded()
	assert.Equal(t, 1, contacts)
}

func TestStateCORS(t *testing.T) {
	h := newHarness(t)
	req, err := http.NewRequest(http.MethodGet, h.web.URL+"/api/state", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://shop.test")

	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://shop.test", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.test")
	resp2, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}
