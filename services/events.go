package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing key của các sự kiện nghiệp vụ
const (
	EventAttemptStarted   = "attempt.started"
	EventAttemptCompleted = "attempt.completed"
	EventQuizPublished    = "quiz.published"
)

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	Close() error
}

type envelope struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// ErrBrokerUnavailable: mất kết nối RabbitMQ, publisher đang tự kết nối lại
var ErrBrokerUnavailable = errors.New("rabbitmq chưa kết nối")

// RabbitPublisher đẩy sự kiện lên topic exchange, tự kết nối lại khi broker đóng kết nối
type RabbitPublisher struct {
	url      string
	exchange string
	dial     func(url string) (*amqp.Connection, error)

	minBackoff time.Duration
	maxBackoff time.Duration

	mu      sync.Mutex // amqp.Channel không an toàn khi publish đồng thời
	conn    *amqp.Connection
	channel *amqp.Channel
	done    chan struct{}
	closed  bool
}

// NewEventPublisher trả về publisher no-op khi không cấu hình RABBITMQ_URL
func NewEventPublisher(amqpURL, exchange string) (EventPublisher, error) {
	if amqpURL == "" {
		log.Println("[Events] RABBITMQ_URL trống, tắt publish sự kiện")
		return NoopPublisher{}, nil
	}
	p := newRabbitPublisher(amqpURL, exchange)
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func newRabbitPublisher(url, exchange string) *RabbitPublisher {
	return &RabbitPublisher{
		url:        url,
		exchange:   exchange,
		dial:       amqp.Dial,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
		done:       make(chan struct{}),
	}
}

// connect mở connection + channel, khai báo exchange rồi theo dõi NotifyClose
func (p *RabbitPublisher) connect() error {
	conn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("kết nối rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("mở channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("khai báo exchange %s: %w", p.exchange, err)
	}

	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chanClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		ch.Close()
		conn.Close()
		return ErrBrokerUnavailable
	}
	p.conn, p.channel = conn, ch
	p.mu.Unlock()

	go p.monitor(connClosed, chanClosed)
	return nil
}

func (p *RabbitPublisher) monitor(connClosed, chanClosed <-chan *amqp.Error) {
	var reason *amqp.Error
	select {
	case <-p.done:
		return
	case reason = <-connClosed:
	case reason = <-chanClosed:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.channel = nil, nil
	p.mu.Unlock()

	log.Printf("[Events] rabbitmq đóng kết nối (%v), đang kết nối lại", reason)
	p.reconnect()
}

// reconnect thử lại với backoff tăng dần cho tới khi thành công hoặc publisher bị Close
func (p *RabbitPublisher) reconnect() {
	backoff := p.minBackoff
	for {
		select {
		case <-p.done:
			return
		case <-time.After(backoff):
		}
		err := p.connect()
		if err == nil {
			log.Println("[Events] đã kết nối lại rabbitmq")
			return
		}
		if errors.Is(err, ErrBrokerUnavailable) {
			return
		}
		log.Printf("[Events] kết nối lại rabbitmq lỗi: %v", err)
		backoff *= 2
		if backoff > p.maxBackoff {
			backoff = p.maxBackoff
		}
	}
}

func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(envelope{Type: routingKey, OccurredAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil {
		return fmt.Errorf("publish %s: %w", routingKey, ErrBrokerUnavailable)
	}
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	if p.channel != nil {
		_ = p.channel.Close()
	}
	var err error
	if p.conn != nil {
		err = p.conn.Close()
	}
	p.conn, p.channel = nil, nil
	return err
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

// publishAsync không để lỗi broker ảnh hưởng request
func publishAsync(p EventPublisher, routingKey string, payload interface{}) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Publish(ctx, routingKey, payload); err != nil {
			log.Printf("[Events] publish %s lỗi: %v", routingKey, err)
		}
	}()
}
