// Package notify delivers user notifications and group activity events to
// the configured outlets. Delivery is best effort: failures are logged and
// counted, never returned to the caller.
package notify

import (
	"context"
	"sync"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/metrics"
)

// Sink receives notifications and activity events.
type Sink interface {
	Notify(ctx context.Context, n model.Notification)
	LogActivity(ctx context.Context, a model.Activity)
}

const (
	outcomeSent    = "sent"
	outcomeFailed  = "failed"
	outcomeDropped = "dropped"
)

func record(sink string, err error) {
	if err != nil {
		metrics.RecordNotification(sink, outcomeFailed)
		metrics.RecordErrorByComponent("notify_"+sink, "delivery")
		return
	}
	metrics.RecordNotification(sink, outcomeSent)
}

// Multi fans every event out to each sink in order.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n model.Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}

func (m Multi) LogActivity(ctx context.Context, a model.Activity) {
	for _, s := range m {
		if s != nil {
			s.LogActivity(ctx, a)
		}
	}
}

// LogSink writes events to the structured log.
type LogSink struct {
	log logger.Logger
}

// NewLogSink returns a sink that logs at info level.
func NewLogSink(l logger.Logger) *LogSink {
	if l == nil {
		l = logger.Nop()
	}
	return &LogSink{log: l.Named("notify")}
}

func (s *LogSink) Notify(ctx context.Context, n model.Notification) {
	s.log.Info(ctx, "notification",
		logger.String("user_id", n.UserID),
		logger.String("kind", string(n.Kind)),
		logger.String("title", n.Title),
		logger.String("body", n.Body),
	)
	record("log", nil)
}

func (s *LogSink) LogActivity(ctx context.Context, a model.Activity) {
	s.log.Info(ctx, "activity",
		logger.String("group_id", a.GroupID),
		logger.String("kind", string(a.Kind)),
		logger.String("message", a.Message),
	)
	record("log", nil)
}

// Recorder keeps every event in memory. Used by the simulator and tests.
type Recorder struct {
	mu            sync.Mutex
	notifications []model.Notification
	activities    []model.Activity
}

func (r *Recorder) Notify(_ context.Context, n model.Notification) {
	r.mu.Lock()
	r.notifications = append(r.notifications, n)
	r.mu.Unlock()
}

func (r *Recorder) LogActivity(_ context.Context, a model.Activity) {
	r.mu.Lock()
	r.activities = append(r.activities, a)
	r.mu.Unlock()
}

// Notifications returns a copy of the recorded notifications.
func (r *Recorder) Notifications() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notification(nil), r.notifications...)
}

// Activities returns a copy of the recorded activities.
func (r *Recorder) Activities() []model.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Activity(nil), r.activities...)
}
