package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "futbol.events"

// Publisher is the subset of *amqp.Channel the sink uses.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes events to a topic exchange. Routing keys are
// "notification.<kind>" and "activity.<group>.<kind>".
type AMQPSink struct {
	ch       Publisher
	exchange string
	log      logger.Logger
	closer   func() error
}

// NewAMQPSink publishes through an already open channel.
func NewAMQPSink(ch Publisher, exchange string, l logger.Logger) *AMQPSink {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if l == nil {
		l = logger.Nop()
	}
	return &AMQPSink{ch: ch, exchange: exchange, log: l.Named("amqp"), closer: func() error { return nil }}
}

// DialAMQP connects to url, declares the exchange and returns a sink that
// owns the connection.
func DialAMQP(url, exchange string, l logger.Logger) (*AMQPSink, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Heartbeat: 30 * time.Second, Locale: "en_US"})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	s := NewAMQPSink(ch, exchange, l)
	if err := ch.ExchangeDeclare(s.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", s.exchange, err)
	}
	s.closer = conn.Close
	return s, nil
}

// Close releases the connection opened by DialAMQP.
func (s *AMQPSink) Close() error { return s.closer() }

func (s *AMQPSink) publish(ctx context.Context, key string, v any, ts time.Time) {
	body, err := json.Marshal(v)
	if err == nil {
		err = s.ch.Publish(s.exchange, key, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    ts,
			Body:         body,
		})
	}
	if err != nil {
		s.log.Warn(ctx, "amqp publish failed", logger.String("key", key), logger.Error(err))
	}
	record("amqp", err)
}

func (s *AMQPSink) Notify(ctx context.Context, n model.Notification) {
	s.publish(ctx, "notification."+string(n.Kind), n, n.CreatedAt)
}

func (s *AMQPSink) LogActivity(ctx context.Context, a model.Activity) {
	s.publish(ctx, "activity."+a.GroupID+"."+string(a.Kind), a, a.CreatedAt)
}
