package model

import "time"

// ProcessedEvent records a provider event whose side effects have committed.
// The primary key on EventID is the idempotency constraint.
type ProcessedEvent struct {
	EventID     string    `gorm:"primaryKey;size:255" json:"event_id"`
	EventType   string    `gorm:"size:100;not null;index" json:"event_type"`
	ProcessedAt time.Time `gorm:"autoCreateTime" json:"processed_at"`
}

func (ProcessedEvent) TableName() string { return "processed_events" }
