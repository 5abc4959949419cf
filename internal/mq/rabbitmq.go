package mq

import (
	"Go_PanStore/config"
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeLifecycle = "panstore.lifecycle.exchange"
	ExchangeDLQ       = "panstore.dlq.exchange"

	QueueSweep  = "panstore.sweep.queue"
	QueueOrphan = "panstore.orphan.queue"
	QueueDLQ    = "panstore.dlq.queue"

	RoutingSweep  = "sweep"
	RoutingOrphan = "orphan"
	RoutingDLQ    = "dlq"
)

type Client struct {
	Conn      *amqp.Connection //tcp
	Channel   *amqp.Channel    // AMQP
	publishMu sync.Mutex
}

var publisherMu sync.Mutex
var publisher *Client

func Dial() (*Client, error) {
	conn, err := amqp.Dial(config.AppConfig.RabbitMQURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Client{Conn: conn, Channel: ch}, nil
}

// GetPublisher returns a shared publishing client, redialing when the connection dropped.
func GetPublisher() (*Client, error) {
	publisherMu.Lock()
	defer publisherMu.Unlock()
	if publisher != nil {
		if !publisher.Conn.IsClosed() && !publisher.Channel.IsClosed() {
			return publisher, nil
		}
		publisher.Close()
		publisher = nil
	}
	client, err := Dial()
	if err != nil {
		return nil, err
	}
	if err := client.DeclareTopology(); err != nil {
		client.Close()
		return nil, err
	}
	publisher = client
	return publisher, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.Channel != nil {
		_ = c.Channel.Close()
	}
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

type queueBinding struct {
	queue    string
	key      string
	exchange string
}

var topology = []queueBinding{
	{queue: QueueSweep, key: RoutingSweep, exchange: ExchangeLifecycle},
	{queue: QueueOrphan, key: RoutingOrphan, exchange: ExchangeLifecycle},
	{queue: QueueDLQ, key: RoutingDLQ, exchange: ExchangeDLQ},
}

func (c *Client) DeclareTopology() error {
	for _, exchange := range []string{ExchangeLifecycle, ExchangeDLQ} {
		if err := c.Channel.ExchangeDeclare(
			exchange,
			"direct",
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			return err
		}
	}
	for _, b := range topology {
		if _, err := c.Channel.QueueDeclare(
			b.queue,
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			return err
		}
		if err := c.Channel.QueueBind(
			b.queue,
			b.key,
			b.exchange,
			false,
			nil,
		); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) PublishSweep(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeLifecycle, RoutingSweep, body)
}

func (c *Client) PublishOrphan(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeLifecycle, RoutingOrphan, body)
}

func (c *Client) PublishDLQ(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeDLQ, RoutingDLQ, body)
}

func (c *Client) publish(ctx context.Context, exchange, key string, body []byte) error {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}
	return c.Channel.PublishWithContext(
		ctx,
		exchange,
		key,
		false,
		false,
		msg,
	)
}
