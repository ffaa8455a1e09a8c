// Package session holds the bearer credential the storefront acts with and
// persists it between runs.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNotFound = errors.New("session not found")

// Session is the credential plus the username it was issued to.
// A non-empty Token means the user is authenticated.
type Session struct {
	Token    string
	Username string
}

func (s Session) Authenticated() bool { return s.Token != "" }

// Claims decodes the token payload without verifying its signature. The API is the
// only party that can verify it; the storefront only reads hints such as the role.
func (s Session) Claims() (jwt.MapClaims, error) {
	if s.Token == "" {
		return nil, ErrNotFound
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s Session) Role() string {
	claims, err := s.Claims()
	if err != nil {
		return ""
	}
	role, _ := claims["role"].(string)
	return role
}

func (s Session) IsAdmin() bool { return s.Role() == "admin" }

// Expired reports whether the token carries an exp claim in the past.
// Tokens that cannot be decoded or have no exp are not considered expired.
func (s Session) Expired(now time.Time) bool {
	claims, err := s.Claims()
	if err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Time)
}

// Source yields the session in effect right now. Callers read it at the start of every
// operation so that a login or logout is seen by the next call.
type Source interface {
	Current() Session
}

// Static is a fixed session.
type Static Session

func (s Static) Current() Session { return Session(s) }

// Holder is a Source whose session can be swapped at runtime.
type Holder struct {
	mu  sync.RWMutex
	cur Session
}

func NewHolder(s Session) *Holder { return &Holder{cur: s} }

func (h *Holder) Current() Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cur
}

func (h *Holder) Set(s Session) {
	h.mu.Lock()
	h.cur = s
	h.mu.Unlock()
}

func (h *Holder) Clear() { h.Set(Session{}) }
