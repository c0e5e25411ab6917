package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

// MQTT quality of service levels.
const (
	QoSAtMostOnce  byte = 0
	QoSAtLeastOnce byte = 1
)

const publishTimeout = 5 * time.Second

var errTimeout = errors.New("mqtt operation timed out")

// MQTTPublisher is the subset of mqtt.Client the sink uses.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes notifications to futbol/users/{id} and activities to
// futbol/groups/{id}/feed.
type MQTTSink struct {
	client MQTTPublisher
	qos    byte
	log    logger.Logger
}

// NewMQTTSink publishes through an already connected client.
func NewMQTTSink(client MQTTPublisher, l logger.Logger) *MQTTSink {
	if l == nil {
		l = logger.Nop()
	}
	return &MQTTSink{client: client, qos: QoSAtLeastOnce, log: l.Named("mqtt")}
}

// ConnectMQTT connects to broker and returns a sink plus the client so the
// caller can disconnect it on shutdown.
func ConnectMQTT(broker, clientID, username, password string, l logger.Logger) (*MQTTSink, mqtt.Client, error) {
	if l == nil {
		l = logger.Nop()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		l.Warn(context.Background(), "mqtt connection lost", logger.Error(err))
	})
	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return nil, nil, fmt.Errorf("connect %s: %w", broker, errTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", broker, err)
	}
	return NewMQTTSink(c, l), c, nil
}

// UserTopic is the topic a player's notifications are published to.
func UserTopic(id string) string { return "futbol/users/" + id }

// GroupTopic is the topic a group's activity feed is published to.
func GroupTopic(id string) string { return "futbol/groups/" + id + "/feed" }

func (s *MQTTSink) publish(ctx context.Context, topic string, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		tok := s.client.Publish(topic, s.qos, false, data)
		switch {
		case !tok.WaitTimeout(publishTimeout):
			err = errTimeout
		default:
			err = tok.Error()
		}
	}
	if err != nil {
		s.log.Warn(ctx, "mqtt publish failed", logger.String("topic", topic), logger.Error(err))
	}
	record("mqtt", err)
}

func (s *MQTTSink) Notify(ctx context.Context, n model.Notification) {
	s.publish(ctx, UserTopic(n.UserID), n)
}

func (s *MQTTSink) LogActivity(ctx context.Context, a model.Activity) {
	s.publish(ctx, GroupTopic(a.GroupID), a)
}
