package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment is one collected installment. Rows are immutable once created: a
// retry with the same idempotency key must return this row, never write a
// second one, and (TicketSeries, TicketNumber) is unique per series.
type Payment struct {
	gorm.Model
	UUID           string    `json:"uuid" gorm:"uniqueIndex;size:36;not null"`
	ClientID       uint      `json:"client_id" gorm:"not null;index"`
	Client         Client    `json:"-" gorm:"foreignKey:ClientID"`
	CollectorID    uint      `json:"collector_id" gorm:"not null;index"`
	Collector      User      `json:"-" gorm:"foreignKey:CollectorID"`
	Amount         float64   `json:"amount" gorm:"type:numeric(12,2);not null"`
	Notes          string    `json:"notes"`
	DeviceLocalTS  time.Time `json:"device_local_ts"`
	ServerTS       time.Time `json:"server_ts" gorm:"not null"`
	TicketSeries   string    `json:"ticket_series" gorm:"size:8;not null;uniqueIndex:idx_payments_series_folio"`
	TicketNumber   int       `json:"ticket_number" gorm:"not null;uniqueIndex:idx_payments_series_folio"`
	SyncState      string    `json:"sync_state" gorm:"default:SYNCED"`
	Origin         string    `json:"origin" gorm:"default:APP"`
	IdempotencyKey string    `json:"idempotency_key" gorm:"uniqueIndex;not null"`
}
