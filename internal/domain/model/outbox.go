package model

import "time"

// Outbox message statuses.
const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

// OutboxMessage is a transactional email queued for delivery. Messages are
// written in the same transaction as the business change that triggered them
// and delivered by the background dispatcher.
type OutboxMessage struct {
	ID        int64      `json:"id"                db:"id"`
	ToEmail   string     `json:"to_email"          db:"to_email"`
	Subject   string     `json:"subject"           db:"subject"`
	Body      string     `json:"body"              db:"body"`
	Status    string     `json:"status"            db:"status"`
	Attempts  int        `json:"attempts"          db:"attempts"`
	CreatedAt time.Time  `json:"created_at"        db:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty" db:"sent_at"`
}
