package store

import (
	"sync"

	"github.com/rs/zerolog"
)

type Kind string

const (
	KindSuccess         Kind = "success"
	KindFailure         Kind = "failure"
	KindUnauthenticated Kind = "unauthenticated"
)

type Action string

const (
	ActionLoad               Action = "load"
	ActionAddToCart          Action = "add_to_cart"
	ActionIncrement          Action = "increment"
	ActionDecrement          Action = "decrement"
	ActionRemoveFromCart     Action = "remove_from_cart"
	ActionClearCart          Action = "clear_cart"
	ActionAddToWishlist      Action = "add_to_wishlist"
	ActionRemoveFromWishlist Action = "remove_from_wishlist"
)

// Notice is one user-visible notification.
type Notice struct {
	Kind    Kind   `json:"kind"`
	Action  Action `json:"action"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a logger. It is the default when no notifier is given.
type LogNotifier struct {
	Log zerolog.Logger
}

func (l LogNotifier) Notify(n Notice) {
	ev := l.Log.Info()
	if n.Kind != KindSuccess {
		ev = l.Log.Warn()
	}
	ev.Str("kind", string(n.Kind)).Str("action", string(n.Action)).Msg(n.Message)
}

// Queue buffers notices until they are drained, e.g. by the next rendered page.
type Queue struct {
	mu      sync.Mutex
	notices []Notice
}

func (q *Queue) Notify(n Notice) {
	q.mu.Lock()
	q.notices = append(q.notices, n)
	q.mu.Unlock()
}

// Drain returns the queued notices in arrival order and empties the queue.
func (q *Queue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.notices
	q.notices = nil
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.notices)
}

// Tee fans a notice out to every non-nil notifier.
func Tee(ns ...Notifier) Notifier {
	return NotifierFunc(func(n Notice) {
		for _, x := range ns {
			if x != nil {
				x.Notify(n)
			}
		}
	})
}

var messages = map[Action]struct{ ok, fail, login string }{
	ActionLoad:               {"", "Failed to load your cart and wishlist", ""},
	ActionAddToCart:          {"Book added to cart", "Failed to add to cart", "Please log in to add items to your cart"},
	ActionIncrement:          {"Quantity updated", "Failed to update quantity", "Please log in to update your cart"},
	ActionDecrement:          {"Quantity updated", "Failed to update quantity", "Please log in to update your cart"},
	ActionRemoveFromCart:     {"Item removed from cart", "Failed to remove item from cart", "Please log in to update your cart"},
	ActionClearCart:          {"Cart cleared", "Failed to clear cart", "Please log in to update your cart"},
	ActionAddToWishlist:      {"Book added to wishlist", "Failed to add to wishlist", "Please log in to use your wishlist"},
	ActionRemoveFromWishlist: {"Removed from wishlist", "Failed to remove from wishlist", "Please log in to use your wishlist"},
}
