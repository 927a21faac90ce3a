// Package folio allocates sequential ticket numbers per series.
//
// Both functions operate on an already-open transaction passed in by the
// caller; the increment is serialized by a row-level exclusive lock on the
// series row and becomes visible only when that transaction commits.
package folio

import (
	"fmt"
	"os"

	"github.com/JACT-22/cobranza-funeraria/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultHeaderName = "FUNERALES CÁRDENAS"

// DefaultSeries returns the series new payments are issued under.
func DefaultSeries() string {
	if s := os.Getenv("TICKET_SERIES"); s != "" {
		return s
	}
	return "A"
}

// EnsureSeries creates the counter row for series at 0 if it does not exist
// yet. Safe to call on every payment; a concurrent insert of the same series
// is absorbed by the conflict clause.
func EnsureSeries(tx *gorm.DB, series string) error {
	cfg := models.TicketConfig{
		UUID:       uuid.NewString(),
		Series:     series,
		HeaderName: defaultHeaderName,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "series"}},
		DoNothing: true,
	}).Create(&cfg).Error
	if err != nil {
		return fmt.Errorf("ensure series %q: %w", series, err)
	}
	return nil
}

// NextNumber locks the counter row for series, increments it and returns the
// new value. The lock is held until the enclosing transaction ends, so two
// transactions can never read the same number.
func NextNumber(tx *gorm.DB, series string) (int, error) {
	var cfg models.TicketConfig
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("series = ?", series).
		First(&cfg).Error
	if err != nil {
		return 0, fmt.Errorf("lock series %q: %w", series, err)
	}

	next := cfg.CurrentNumber + 1
	if err := tx.Model(&cfg).Update("current_number", next).Error; err != nil {
		return 0, fmt.Errorf("advance series %q: %w", series, err)
	}
	return next, nil
}
