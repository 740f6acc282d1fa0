package notifications

import (
	"time"
)

// Kind classifies a notification. The set is closed: producers must use one
// of the declared kinds, and per-kind preference toggles are keyed by it.
type Kind string

const (
	KindAchievement    Kind = "achievement"
	KindRecommendation Kind = "recommendation"
	KindReminder       Kind = "reminder"
	KindSystem         Kind = "system"
	KindProgress       Kind = "progress"
)

// Kinds returns all declared notification kinds.
func Kinds() []Kind {
	return []Kind{KindAchievement, KindRecommendation, KindReminder, KindSystem, KindProgress}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAchievement, KindRecommendation, KindReminder, KindSystem, KindProgress:
		return true
	}
	return false
}

// Priority represents the notification priority level.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// Valid reports whether p is a declared priority level.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	}
	return "unknown"
}

// Notification is the core domain model for notifications.
type Notification struct {
	ID        string         `json:"id" db:"id"`
	UserID    string         `json:"user_id" db:"user_id"`
	Kind      Kind           `json:"kind" db:"kind"`
	Priority  Priority       `json:"priority" db:"priority"`
	Title     string         `json:"title" db:"title"`
	Message   string         `json:"message" db:"message"`
	Data      map[string]any `json:"data,omitempty" db:"-"` // opaque producer payload, never inspected here
	Read      bool           `json:"read" db:"read"`
	ReadAt    *time.Time     `json:"read_at,omitempty" db:"read_at"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty" db:"expires_at"`
}

// IsExpired reports whether the notification has expired at the given time.
// Expired notifications stay stored; they are only excluded from active listings.
func (n *Notification) IsExpired(now time.Time) bool {
	if n.ExpiresAt == nil {
		return false
	}
	return now.After(*n.ExpiresAt)
}

// MarkAsRead sets the read latch. Read never transitions back to false;
// calling MarkAsRead on an already read notification is a no-op.
func (n *Notification) MarkAsRead(now time.Time) {
	if n.Read {
		return
	}
	n.Read = true
	n.ReadAt = &now
	n.UpdatedAt = now
}

// Validate checks the fields a producer controls. Storage-assigned fields
// (ID, timestamps) are not checked here.
func (n *Notification) Validate() error {
	if n.UserID == "" {
		return ErrEmptyUserID
	}
	if !n.Kind.Valid() {
		return ErrUnknownKind
	}
	if !n.Priority.Valid() {
		return ErrInvalidPriority
	}
	if n.Title == "" {
		return ErrEmptyTitle
	}
	return nil
}
