package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"newslingo/internal/config"
	"newslingo/internal/models"
)

// AMQPPublisher announces newly stored articles on a RabbitMQ exchange so
// downstream consumers (notification bots, search indexers) can react.
// Publishing is best-effort: the pipeline treats failures as log-and-continue.
type AMQPPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

func NewAMQPPublisher(cfg config.PublisherConfig) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %v", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %v", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %v", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %v", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %v", err)
	}

	log.Printf("Connected to message broker (exchange=%s queue=%s routing_key=%s)",
		cfg.Exchange, cfg.QueueName, cfg.RoutingKey)

	return &AMQPPublisher{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
	}, nil
}

type articleMessage struct {
	Action    string         `json:"action"`
	Article   models.Article `json:"article"`
	Timestamp time.Time      `json:"timestamp"`
}

// PublishArticle sends a persistent create event for a newly stored article.
func (p *AMQPPublisher) PublishArticle(ctx context.Context, article *models.Article) error {
	body, err := json.Marshal(articleMessage{
		Action:    "create",
		Article:   *article,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %v", err)
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, p.routingKey, false, false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("publish message: %v", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
