// Package events publishes storefront domain events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Routing keys.
const (
	RKCartItemAdded       = "cart.item.added"
	RKCartItemUpdated     = "cart.item.updated"
	RKCartItemRemoved     = "cart.item.removed"
	RKCartCleared         = "cart.cleared"
	RKWishlistItemAdded   = "wishlist.item.added"
	RKWishlistItemRemoved = "wishlist.item.removed"
	RKOrderPlaced         = "order.placed"
	RKBookCreated         = "catalog.book.created"
	RKBookUpdated         = "catalog.book.updated"
	RKBookDeleted         = "catalog.book.deleted"
)

type CartItemPayload struct {
	Username string `json:"username"`
	ItemID   string `json:"item_id"`
	BookID   string `json:"book_id,omitempty"`
	Quantity int    `json:"quantity"`
}

type WishlistItemPayload struct {
	Username string `json:"username"`
	ItemID   string `json:"item_id"`
	BookID   string `json:"book_id,omitempty"`
}

type CartClearedPayload struct {
	Username string `json:"username"`
	Items    int    `json:"items"`
}

type OrderPlacedPayload struct {
	Username string           `json:"username"`
	UserID   string           `json:"user_id"`
	Lines    []OrderLineEvent `json:"lines"`
	Total    string           `json:"total"`
	Message  string           `json:"message,omitempty"`
}

type OrderLineEvent struct {
	BookID string `json:"book_id"`
	Title  string `json:"title"`
	Copies int    `json:"copies"`
	Line   string `json:"line_total"`
}

type Rabbit struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewRabbit connects and declares the topic exchange. An empty url disables
// publishing: it returns nil, nil and a nil *Rabbit is safe to publish on.
func NewRabbit(url, exchange string) (*Rabbit, error) {
	if url == "" {
		return nil, nil
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbit dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbit channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbit exchange %q: %w", exchange, err)
	}
	log.Info().Str("exchange", exchange).Msg("rabbit publisher ready")
	return &Rabbit{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *Rabbit) Publish(ctx context.Context, key string, body []byte) error {
	if r == nil || r.ch == nil {
		return nil
	}
	return r.ch.PublishWithContext(ctx, r.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	})
}

func (r *Rabbit) Close() error {
	if r == nil || r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Publisher is what domain code depends on.
type Publisher interface {
	Publish(ctx context.Context, key string, body []byte) error
}

// PublishJSON encodes payload and publishes it. A nil publisher is a no-op, and
// failures are logged rather than returned: events never decide the outcome of a
// user operation.
func PublishJSON(ctx context.Context, p Publisher, key string, payload any) {
	if p == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("event encode failed")
		return
	}
	if err := p.Publish(ctx, key, body); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("event publish failed")
	}
}
