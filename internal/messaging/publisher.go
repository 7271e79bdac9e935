package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// ordersExchange receives order lifecycle events, routed by restaurant
const ordersExchange = "orders"

// OrderDispatchedEvent is published when a manager dispatches an order to a
// supplier. Downstream consumers (notification senders, reporting) subscribe
// per restaurant via the routing key.
type OrderDispatchedEvent struct {
	OrderID      uint      `json:"order_id"`
	RestaurantID string    `json:"restaurant_id"`
	SupplierID   *uint     `json:"supplier_id,omitempty"`
	ItemCount    int       `json:"item_count"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// Publisher publishes order events to RabbitMQ
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger
}

// NewPublisher connects to the broker and declares the orders exchange
func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		ordersExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: ch, log: log}, nil
}

// PublishOrderDispatched publishes a dispatch event keyed by restaurant
func (p *Publisher) PublishOrderDispatched(event OrderDispatchedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	routingKey := fmt.Sprintf("order.dispatched.%s", event.RestaurantID)
	err = p.channel.Publish(
		ordersExchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	p.log.Info("Order dispatch event published",
		zap.Uint("order_id", event.OrderID),
		zap.String("restaurant_id", event.RestaurantID))
	return nil
}

// Close releases the channel and connection
func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
