package registrar_test

import (
	"context"
	"testing"
	"time"

	"github.com/JACT-22/cobranza-funeraria/internal/registrar"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const testClientUUID = "0b6f9f3a-8a6e-4f1e-9f9a-6f2f3c1d2e4a"

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	return gdb, mock
}

func validInput() registrar.Input {
	return registrar.Input{
		ClientUUID:     testClientUUID,
		Amount:         100,
		Notes:          "abono semanal",
		DeviceLocalTS:  time.Now().UTC(),
		IdempotencyKey: "k1",
		Series:         "A",
	}
}

// expectTransactionPrelude covers everything up to the payment insert:
// lock timeout, series ensure, counter lock at 5, increment to 6, client
// resolution.
func expectTransactionPrelude(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO "tickets_config"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`SELECT .* FROM "tickets_config" WHERE series = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "series", "current_number"}).AddRow(1, "A", 5))
	mock.ExpectExec(`UPDATE "tickets_config" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "clients" WHERE uuid =`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "name", "collector_id"}).
			AddRow(7, testClientUUID, "María López", 3))
}

func TestRegisterCreatesPaymentWithNextFolio(t *testing.T) {
	gdb, mock := newMockDB(t)
	reg := registrar.New(gdb)

	expectTransactionPrelude(mock)
	mock.ExpectQuery(`INSERT INTO "payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectCommit()

	res, err := reg.Register(context.Background(), validInput())

	require.NoError(t, err)
	assert.Equal(t, registrar.OutcomeCreated, res.Outcome)
	assert.Equal(t, "A", res.Series)
	assert.Equal(t, 6, res.Folio)
	assert.NotEmpty(t, res.PaymentUUID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterReplaysExistingPaymentOnDuplicateKey(t *testing.T) {
	gdb, mock := newMockDB(t)
	reg := registrar.New(gdb)

	expectTransactionPrelude(mock)
	mock.ExpectQuery(`INSERT INTO "payments"`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_payments_idempotency_key"})
	mock.ExpectRollback()
	// The original row is served after the rollback.
	mock.ExpectQuery(`SELECT .* FROM "payments" WHERE idempotency_key =`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "ticket_series", "ticket_number"}).
			AddRow(41, "original-payment-uuid", "A", 6))

	res, err := reg.Register(context.Background(), validInput())

	require.NoError(t, err)
	assert.Equal(t, registrar.OutcomeReplayed, res.Outcome)
	assert.Equal(t, "original-payment-uuid", res.PaymentUUID)
	assert.Equal(t, "A", res.Series)
	assert.Equal(t, 6, res.Folio)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterConflictWhenOriginalCannotBeLocated(t *testing.T) {
	gdb, mock := newMockDB(t)
	reg := registrar.New(gdb)

	expectTransactionPrelude(mock)
	mock.ExpectQuery(`INSERT INTO "payments"`).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()
	mock.ExpectQuery(`SELECT .* FROM "payments" WHERE idempotency_key =`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "ticket_series", "ticket_number"}))

	res, err := reg.Register(context.Background(), validInput())

	require.Nil(t, res)
	assert.ErrorIs(t, err, registrar.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterRollsBackWhenClientMissing(t *testing.T) {
	gdb, mock := newMockDB(t)
	reg := registrar.New(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO "tickets_config"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`SELECT .* FROM "tickets_config" WHERE series = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "series", "current_number"}).AddRow(1, "A", 5))
	mock.ExpectExec(`UPDATE "tickets_config" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "clients" WHERE uuid =`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "name", "collector_id"}))
	// Rollback discards the folio increment: the counter stays unchanged.
	mock.ExpectRollback()

	res, err := reg.Register(context.Background(), validInput())

	require.Nil(t, res)
	assert.ErrorIs(t, err, registrar.ErrClientNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterLockTimeoutIsTransient(t *testing.T) {
	gdb, mock := newMockDB(t)
	reg := registrar.New(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO "tickets_config"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`SELECT .* FROM "tickets_config" WHERE series = .* FOR UPDATE`).
		WillReturnError(&pgconn.PgError{Code: "55P03"})
	mock.ExpectRollback()

	res, err := reg.Register(context.Background(), validInput())

	require.Nil(t, res)
	assert.ErrorIs(t, err, registrar.ErrTransient)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterValidationRejectsBeforeAnyWrite(t *testing.T) {
	gdb, mock := newMockDB(t)
	reg := registrar.New(gdb)

	tests := []struct {
		name   string
		mutate func(*registrar.Input)
	}{
		{"missing idempotency key", func(in *registrar.Input) { in.IdempotencyKey = "" }},
		{"zero amount", func(in *registrar.Input) { in.Amount = 0 }},
		{"negative amount", func(in *registrar.Input) { in.Amount = -50 }},
		{"missing client", func(in *registrar.Input) { in.ClientUUID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			res, err := reg.Register(context.Background(), in)

			require.Nil(t, res)
			assert.ErrorIs(t, err, registrar.ErrValidation)
		})
	}

	// No transaction was ever opened.
	assert.NoError(t, mock.ExpectationsWereMet())
}
