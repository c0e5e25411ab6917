package model

import "time"

// NotificationKind classifies a user notification.
type NotificationKind string

// Notification kinds.
const (
	NotifyEvaluationPending NotificationKind = "evaluation_pending"
	NotifyOVRChange         NotificationKind = "ovr_change"
)

// ActivityKind classifies an activity feed event.
type ActivityKind string

// Activity kinds.
const (
	ActivityEvaluationsPending ActivityKind = "evaluations_pending"
	ActivityOVRUpdate          ActivityKind = "ovr_update"
	ActivityMatchCreated       ActivityKind = "match_created"
	ActivityMatchCompleted     ActivityKind = "match_completed"
)

// Notification is addressed to a single player.
type Notification struct {
	UserID    string           `json:"userId"`
	GroupID   string           `json:"groupId,omitempty"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Data      map[string]any   `json:"data,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Activity is a group-wide feed event.
type Activity struct {
	GroupID   string         `json:"groupId"`
	Kind      ActivityKind   `json:"kind"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
