package messagequeue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/NHYCRaymond/go-anime-crawler/config"
	"github.com/NHYCRaymond/go-anime-crawler/errors"
	"github.com/NHYCRaymond/go-anime-crawler/monitoring"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const reconnectDelay = 5 * time.Second

// Handler settles one delivery. It owns the Ack/Nack/Reject decision.
type Handler func(ctx context.Context, msg amqp091.Delivery)

// ConsumeOptions selects a queue and how it is drained
type ConsumeOptions struct {
	Queue   string
	Channel string // channel class, normal when empty
	Workers int    // concurrent handlers, 1 when unset
}

// RabbitMQ is the broker adapter: a reconnecting connection, per-class
// channels with QoS, and publishing onto one topic exchange.
type RabbitMQ struct {
	config      config.RabbitMQConfig
	conn        *amqp091.Connection
	channels    map[string]*amqp091.Channel
	channelsMu  sync.Mutex
	logger      *slog.Logger
	isConnected bool
	closed      bool
	mu          sync.RWMutex
}

// NewRabbitMQ connects to the broker described by cfg
func NewRabbitMQ(cfg config.RabbitMQConfig, logger *slog.Logger) (*RabbitMQ, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "crawler"
	}

	rq := &RabbitMQ{
		config:   cfg,
		channels: make(map[string]*amqp091.Channel),
		logger:   logger.With("component", "rabbitmq"),
	}

	if err := rq.connect(); err != nil {
		return nil, err
	}

	return rq, nil
}

// DSN returns the AMQP URL for cfg
func DSN(cfg config.RabbitMQConfig) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Vhost,
	)
}

// Exchange returns the topic exchange messages are published to
func (rq *RabbitMQ) Exchange() string {
	return rq.config.Exchange
}

func (rq *RabbitMQ) connect() error {
	dsn := DSN(rq.config)

	for i := 0; i < 5; i++ {
		conn, err := amqp091.Dial(dsn)
		if err == nil {
			rq.mu.Lock()
			rq.conn = conn
			rq.isConnected = true
			rq.mu.Unlock()

			rq.logger.Info("RabbitMQ connected successfully")
			go rq.handleReconnect(dsn, conn)
			return nil
		}

		rq.logger.Error("Failed to connect to RabbitMQ, retrying", "attempt", i+1, "error", err)
		time.Sleep(reconnectDelay)
	}

	return errors.ErrBrokerFailed.WithMessage("failed to connect to RabbitMQ after 5 attempts")
}

// handleReconnect redials whenever the connection drops, until Close
func (rq *RabbitMQ) handleReconnect(dsn string, conn *amqp091.Connection) {
	for {
		reason, ok := <-conn.NotifyClose(make(chan *amqp091.Error, 1))
		if !ok || reason == nil {
			rq.logger.Info("RabbitMQ connection closed")
			return
		}

		rq.logger.Error("RabbitMQ connection lost, reconnecting", "reason", reason)

		rq.mu.Lock()
		rq.isConnected = false
		rq.mu.Unlock()
		rq.dropChannels()

		for {
			rq.mu.RLock()
			closed := rq.closed
			rq.mu.RUnlock()
			if closed {
				return
			}

			next, err := amqp091.Dial(dsn)
			if err == nil {
				rq.mu.Lock()
				rq.conn = next
				rq.isConnected = true
				rq.mu.Unlock()

				rq.logger.Info("RabbitMQ reconnected successfully")
				conn = next
				break
			}

			rq.logger.Error("Failed to reconnect to RabbitMQ, retrying", "error", err)
			time.Sleep(reconnectDelay)
		}
	}
}

func (rq *RabbitMQ) dropChannels() {
	rq.channelsMu.Lock()
	defer rq.channelsMu.Unlock()
	for name, ch := range rq.channels {
		if ch != nil {
			ch.Close()
		}
		delete(rq.channels, name)
	}
}

// channel returns the cached channel for name, opening it with prefetch
// when missing or closed
func (rq *RabbitMQ) channel(name string, prefetch int) (*amqp091.Channel, error) {
	rq.channelsMu.Lock()
	defer rq.channelsMu.Unlock()

	if ch, ok := rq.channels[name]; ok && ch != nil && !ch.IsClosed() {
		return ch, nil
	}

	rq.mu.RLock()
	conn := rq.conn
	isConnected := rq.isConnected
	rq.mu.RUnlock()

	if !isConnected || conn == nil {
		return nil, errors.ErrBrokerFailed.WithMessage("RabbitMQ connection not available")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.ErrBrokerFailed.WithCause(err)
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			ch.Close()
			return nil, errors.ErrBrokerFailed.WithCause(err)
		}
	}

	rq.channels[name] = ch
	rq.logger.Info("RabbitMQ channel created", "name", name, "prefetch", prefetch)
	return ch, nil
}

// ChannelPrefetch returns the QoS prefetch of a channel class
func (rq *RabbitMQ) ChannelPrefetch(class string) int {
	if c, ok := rq.config.Channels[class]; ok && c.Prefetch > 0 {
		return c.Prefetch
	}
	if class == ChannelFast {
		return 30
	}
	return 10
}

// DeclareTopology declares the exchange, queues and bindings of t
func (rq *RabbitMQ) DeclareTopology(t Topology) error {
	ch, err := rq.channel("setup", 0)
	if err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(t.Exchange, amqp091.ExchangeTopic, true, false, false, false, nil); err != nil {
		return errors.ErrBrokerFailed.WithMessage("declare exchange %s: %v", t.Exchange, err)
	}

	for _, b := range t.Bindings {
		if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, b.Arguments); err != nil {
			return errors.ErrBrokerFailed.WithMessage("declare queue %s: %v", b.Queue, err)
		}
		if err := ch.QueueBind(b.Queue, b.RoutingKey, t.Exchange, false, nil); err != nil {
			return errors.ErrBrokerFailed.WithMessage("bind queue %s: %v", b.Queue, err)
		}
	}

	rq.logger.Info("Topology declared", "exchange", t.Exchange, "queues", len(t.Bindings))
	return nil
}

// Publish sends a persistent JSON message to the exchange under routingKey
func (rq *RabbitMQ) Publish(ctx context.Context, routingKey string, body []byte) error {
	ch, err := rq.channel("publisher", 0)
	if err != nil {
		monitoring.RecordPublish(routingKey, err)
		return err
	}

	err = ch.PublishWithContext(ctx, rq.config.Exchange, routingKey, false, false, NewPublishing(body))
	monitoring.RecordPublish(routingKey, err)
	if err != nil {
		return errors.ErrBrokerFailed.WithCause(fmt.Errorf("publish to %s: %w", routingKey, err))
	}
	return nil
}

// NewPublishing wraps body as a persistent JSON message with a fresh id
func NewPublishing(body []byte) amqp091.Publishing {
	return amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
	}
}

// Consume drains a queue with opts.Workers concurrent handlers until ctx is
// done. A lost channel is re-opened after the connection comes back.
func (rq *RabbitMQ) Consume(ctx context.Context, opts ConsumeOptions, handler Handler) error {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Channel == "" {
		opts.Channel = ChannelNormal
	}
	logger := rq.logger.With("queue", opts.Queue, "channel", opts.Channel, "workers", opts.Workers)

	for {
		msgs, err := rq.subscribe(opts)
		if err != nil {
			logger.Error("Failed to start consumer, retrying", "error", err)
		} else {
			logger.Info("Started consuming messages")
			rq.drain(ctx, msgs, opts.Workers, handler)
		}

		select {
		case <-ctx.Done():
			logger.Info("Stopping consumer")
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (rq *RabbitMQ) subscribe(opts ConsumeOptions) (<-chan amqp091.Delivery, error) {
	name := fmt.Sprintf("consumer_%s", opts.Queue)
	ch, err := rq.channel(name, rq.ChannelPrefetch(opts.Channel))
	if err != nil {
		return nil, err
	}

	msgs, err := ch.Consume(
		opts.Queue,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, errors.ErrBrokerFailed.WithCause(err)
	}
	return msgs, nil
}

// drain runs workers over msgs until ctx is done or the delivery channel closes
func (rq *RabbitMQ) drain(ctx context.Context, msgs <-chan amqp091.Delivery, workers int, handler Handler) {
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						return
					}
					handler(ctx, msg)
				}
			}
		}()
	}
	wg.Wait()
}

// Close closes every channel and the connection
func (rq *RabbitMQ) Close() error {
	rq.mu.Lock()
	rq.closed = true
	conn := rq.conn
	rq.isConnected = false
	rq.mu.Unlock()

	rq.dropChannels()

	if conn != nil && !conn.IsClosed() {
		err := conn.Close()
		rq.logger.Info("RabbitMQ connection closed")
		return err
	}
	return nil
}

// IsConnected returns the connection status
func (rq *RabbitMQ) IsConnected() bool {
	rq.mu.RLock()
	defer rq.mu.RUnlock()
	return rq.isConnected
}

// HealthCheck reports a lost connection as an error
func (rq *RabbitMQ) HealthCheck() error {
	if !rq.IsConnected() {
		return errors.ErrBrokerFailed.WithMessage("RabbitMQ not connected")
	}
	return nil
}
