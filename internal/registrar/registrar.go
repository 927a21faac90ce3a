// Package registrar implements idempotent payment registration: exactly one
// persisted payment per idempotency key, with its folio assigned by the
// series counter inside the same transaction.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JACT-22/cobranza-funeraria/internal/folio"
	"github.com/JACT-22/cobranza-funeraria/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrValidation marks malformed input rejected before any write.
	ErrValidation = errors.New("invalid payment request")
	// ErrClientNotFound means the client reference did not resolve.
	ErrClientNotFound = errors.New("client not found")
	// ErrConflict means a duplicate key was hit but the original payment
	// could not be located afterwards. Safe to retry.
	ErrConflict = errors.New("duplicate request could not be resolved")
	// ErrTransient covers lock timeouts, deadlocks and serialization
	// failures. Safe to retry with the same idempotency key.
	ErrTransient = errors.New("transient storage failure")
)

// errDuplicateKey aborts the transaction when the idempotency key already
// exists; the caller then answers from the surviving row.
var errDuplicateKey = errors.New("idempotency key already registered")

// Bound on how long a registration waits for the series row lock before the
// caller gets a retriable failure.
const lockTimeout = "5s"

// Input is one payment registration request.
type Input struct {
	ClientUUID     string
	Amount         float64
	Notes          string
	DeviceLocalTS  time.Time
	IdempotencyKey string
	Series         string
}

// Outcome distinguishes a first-time creation from an idempotent replay.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeReplayed
)

// Result is what the caller needs to answer the request and locate the
// printable ticket: the payment identity and its series/folio pair.
type Result struct {
	PaymentUUID string
	Series      string
	Folio       int
	Outcome     Outcome
}

type Registrar struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Registrar {
	return &Registrar{db: db}
}

// Register persists the payment and returns its folio. Replays with a
// previously-seen idempotency key return the original result without writing
// anything.
//
// The losing side of a key race rolls back its folio increment, so a rare
// gap in the sequence is possible there. That gap is accepted: re-reading
// the counter from the existing row before rollback would reintroduce the
// race the lock exists to prevent.
func (r *Registrar) Register(ctx context.Context, in Input) (*Result, error) {
	if in.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", ErrValidation)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if in.ClientUUID == "" {
		return nil, fmt.Errorf("%w: client reference is required", ErrValidation)
	}

	series := in.Series
	if series == "" {
		series = folio.DefaultSeries()
	}

	var res *Result
	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SET LOCAL lock_timeout = '" + lockTimeout + "'").Error; err != nil {
			return err
		}

		if err := folio.EnsureSeries(tx, series); err != nil {
			return err
		}
		next, err := folio.NextNumber(tx, series)
		if err != nil {
			return err
		}

		var client models.Client
		if err := tx.Where("uuid = ?", in.ClientUUID).First(&client).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClientNotFound
			}
			return err
		}

		payment := models.Payment{
			UUID:           uuid.NewString(),
			ClientID:       client.ID,
			CollectorID:    client.CollectorID,
			Amount:         in.Amount,
			Notes:          in.Notes,
			DeviceLocalTS:  in.DeviceLocalTS,
			ServerTS:       time.Now().UTC(),
			TicketSeries:   series,
			TicketNumber:   next,
			SyncState:      "SYNCED",
			Origin:         "APP",
			IdempotencyKey: in.IdempotencyKey,
		}

		outcome, err := insertPayment(tx, &payment)
		if err != nil {
			return err
		}
		if outcome == duplicateKey {
			return errDuplicateKey
		}

		res = &Result{
			PaymentUUID: payment.UUID,
			Series:      series,
			Folio:       next,
			Outcome:     OutcomeCreated,
		}
		return nil
	})

	switch {
	case txErr == nil:
		return res, nil
	case errors.Is(txErr, errDuplicateKey):
		return r.resolveReplay(ctx, in.IdempotencyKey)
	case errors.Is(txErr, ErrClientNotFound):
		return nil, txErr
	case isTransient(txErr):
		return nil, fmt.Errorf("%w: %v", ErrTransient, txErr)
	default:
		return nil, txErr
	}
}

// insertOutcome is the explicit result of a payment insert, so the caller
// branches on a value instead of picking apart a driver error.
type insertOutcome int

const (
	insertedNew insertOutcome = iota
	duplicateKey
)

func insertPayment(tx *gorm.DB, p *models.Payment) (insertOutcome, error) {
	if err := tx.Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return duplicateKey, nil
		}
		return 0, err
	}
	return insertedNew, nil
}

// resolveReplay serves a retried request from the payment persisted by the
// original attempt. Runs outside the (already rolled back) transaction.
func (r *Registrar) resolveReplay(ctx context.Context, key string) (*Result, error) {
	var existing models.Payment
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return &Result{
		PaymentUUID: existing.UUID,
		Series:      existing.TicketSeries,
		Folio:       existing.TicketNumber,
		Outcome:     OutcomeReplayed,
	}, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isTransient reports whether err is a lock timeout (55P03), deadlock
// (40P01) or serialization failure (40001).
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "55P03", "40P01", "40001":
		return true
	}
	return false
}
