package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/mybookstore-storefront/internal/checkout"
	"github.com/ahinestrog/mybookstore-storefront/internal/session"
	"github.com/ahinestrog/mybookstore-storefront/internal/store"
)

const (
	sidCookie = "sid"
	sidMaxAge = 30 * 24 * time.Hour
)

// entry is everything one browser session owns.
type entry struct {
	sid      string
	holder   *session.Holder
	store    *store.Store
	notices  *store.Queue
	checkout *checkout.Service
}

func (e *entry) drain() string {
	var msgs []string
	for _, n := range e.notices.Drain() {
		if n.Message != "" {
			msgs = append(msgs, n.Message)
		}
	}
	return strings.Join(msgs, " | ")
}

// storeCache keeps the most recently used sessions in memory. An evicted signed-in
// session is rebuilt from the session repository and reloaded from the API on its
// next request; an evicted anonymous one is simply replaced.
type storeCache struct {
	lru     *lru.Cache[string, *entry]
	restore func(ctx context.Context, sid string) (*entry, bool)
}

func newStoreCache(size int, restore func(context.Context, string) (*entry, bool)) (*storeCache, error) {
	if size <= 0 {
		size = 512
	}
	c, err := lru.NewWithEvict(size, func(sid string, _ *entry) {
		log.Debug().Str("sid", shortSID(sid)).Msg("session store evicted")
	})
	if err != nil {
		return nil, err
	}
	return &storeCache{lru: c, restore: restore}, nil
}

// lookup returns the entry for a sid this server issued. ok is false for a sid that
// is neither cached nor stored.
func (c *storeCache) lookup(ctx context.Context, sid string) (*entry, bool) {
	if e, ok := c.lru.Get(sid); ok {
		return e, true
	}
	e, ok := c.restore(ctx, sid)
	if !ok {
		return nil, false
	}
	return c.add(sid, e), true
}

func (c *storeCache) add(sid string, e *entry) *entry {
	if prev, ok, _ := c.lru.PeekOrAdd(sid, e); ok {
		return prev
	}
	return e
}

func (c *storeCache) remove(sid string) { c.lru.Remove(sid) }

func (c *storeCache) len() int { return c.lru.Len() }

// restoreEntry rebuilds a signed-in session from the repository.
func (s *Server) restoreEntry(ctx context.Context, sid string) (*entry, bool) {
	sess, err := s.sessions.Get(ctx, sid)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return nil, false
	case err != nil:
		s.log.Error().Err(err).Msg("session lookup failed")
		return nil, false
	case sess.Expired(time.Now()):
		s.log.Info().Str("user", sess.Username).Msg("session expired")
		if err := s.sessions.Delete(ctx, sid); err != nil {
			s.log.Warn().Err(err).Msg("could not drop expired session")
		}
		return nil, false
	}
	return s.newEntry(ctx, sid, sess), true
}

func (s *Server) newEntry(ctx context.Context, sid string, sess session.Session) *entry {
	logger := s.log.With().Str("sid", shortSID(sid)).Logger()
	e := &entry{
		sid:     sid,
		holder:  session.NewHolder(sess),
		notices: &store.Queue{},
	}
	notifier := store.Tee(e.notices, store.LogNotifier{Log: logger})
	e.store = store.New(s.api, e.holder,
		store.WithNotifier(notifier),
		store.WithEvents(s.events),
		store.WithLogger(logger))
	e.checkout = checkout.NewService(s.api, e.holder, notifier, s.events)
	// Failures surface as a queued notice on the first page.
	_ = e.store.Load(ctx)
	return e
}

// session returns the caller's entry. A missing or unrecognised sid cookie gets a
// freshly issued anonymous session; client-chosen ids are never adopted.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *entry {
	ctx, cancel := s.ctx(r)
	defer cancel()
	if c, err := r.Cookie(sidCookie); err == nil && c.Value != "" {
		if e, ok := s.stores.lookup(ctx, c.Value); ok {
			return e
		}
	}
	sid := uuid.NewString()
	s.setSID(w, sid)
	return s.stores.add(sid, s.newEntry(ctx, sid, session.Session{}))
}

func (s *Server) setSID(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sidCookie,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(sidMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// rotate moves a session that just signed in to a new sid and retires the old one.
func (s *Server) rotate(ctx context.Context, w http.ResponseWriter, old *entry, sess session.Session) (*entry, error) {
	sid := uuid.NewString()
	if err := s.sessions.Save(ctx, sid, sess); err != nil {
		return nil, err
	}
	if err := s.sessions.Delete(ctx, old.sid); err != nil {
		s.log.Warn().Err(err).Msg("could not drop previous session")
	}
	s.stores.remove(old.sid)
	old.holder.Clear()
	s.setSID(w, sid)
	return s.stores.add(sid, s.newEntry(ctx, sid, sess)), nil
}

func shortSID(sid string) string {
	if len(sid) > 8 {
		return sid[:8]
	}
	return sid
}
