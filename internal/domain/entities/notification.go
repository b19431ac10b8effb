package entities

import "time"

// NotificationType classifies in-app notifications
type NotificationType string

const (
	NotificationAppointment NotificationType = "appointment"
	NotificationReminder    NotificationType = "reminder"
	NotificationLabBooking  NotificationType = "lab_booking"
	NotificationOrder       NotificationType = "order"
	NotificationForum       NotificationType = "forum"
	NotificationEmergency   NotificationType = "emergency"
	NotificationOnboarding  NotificationType = "onboarding"
	NotificationInsight     NotificationType = "insight"
)

// Notification is an in-app message to one user
type Notification struct {
	Base
	UserEmail string           `json:"user_email"`
	Title     string           `json:"title"`
	Message   string           `json:"message,omitempty"`
	Type      NotificationType `json:"type"`
	Link      string           `json:"link,omitempty"`
	IsRead    bool             `json:"is_read"`
}

// EntityAction is the kind of change an EntityEvent reports
type EntityAction string

const (
	EntityActionCreate EntityAction = "create"
	EntityActionUpdate EntityAction = "update"
	EntityActionDelete EntityAction = "delete"
)

// EntityEvent is published on the event bus after every entity write
type EntityEvent struct {
	ID        string         `json:"id"`
	Entity    string         `json:"entity"`
	RecordID  string         `json:"record_id"`
	Action    EntityAction   `json:"action"`
	Owner     string         `json:"owner,omitempty"`
	Origin    string         `json:"origin,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Record    map[string]any `json:"record,omitempty"`
}
