package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"collections-engine/internal/domain/customer"
	"collections-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

const pgxmockExpectationsNotMetMsg = "pgxmock expectations were not met"

var (
	testDueDate  = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	testCreated  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testCustomer = &customer.Customer{
		Phone:         "+919876543210",
		Name:          "Asha Rao",
		EMIAmount:     decimal.NewFromInt(3000),
		DueDate:       &testDueDate,
		PaymentStatus: customer.PaymentStatusPending,
		LastCallDate:  nil,
		CreatedAt:     testCreated,
		UpdatedAt:     testCreated,
	}
)

func setupCustomerRepo(t *testing.T) (context.Context, *CustomerRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}

	ctx := context.Background()
	repo := NewCustomerRepository(mockPool, logger)

	return ctx, repo, mockPool
}

func customerRow(cust *customer.Customer) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"phone", "name", "emi_amount", "due_date", "payment_status", "last_call_date", "created_at", "updated_at",
	}).AddRow(
		cust.Phone,
		cust.Name,
		cust.EMIAmount.String(),
		cust.DueDate,
		cust.PaymentStatus,
		cust.LastCallDate,
		cust.CreatedAt,
		cust.UpdatedAt,
	)
}

func TestSaveWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	query := `
        INSERT INTO customers (phone, name, emi_amount, due_date, payment_status, last_call_date, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING created_at, updated_at`

	cust := *testCustomer
	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(
		cust.Phone,
		cust.Name,
		cust.EMIAmount.String(),
		cust.DueDate,
		cust.PaymentStatus,
		cust.LastCallDate,
	).WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).
		AddRow(testCreated, testCreated))

	err := repo.Save(ctx, &cust)

	assert.NoError(t, err)
	assert.Equal(t, testCreated, cust.CreatedAt)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestSaveWhenPhoneAlreadyRegistered(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	cust := *testCustomer
	mockPool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO customers`)).WithArgs(
		cust.Phone,
		cust.Name,
		cust.EMIAmount.String(),
		cust.DueDate,
		cust.PaymentStatus,
		cust.LastCallDate,
	).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "customers_pkey"})

	err := repo.Save(ctx, &cust)

	assert.ErrorIs(t, err, customer.ErrDuplicatePhone)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindByPhoneWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	query := `SELECT ` + customerColumns + ` FROM customers WHERE phone = $1`
	mockPool.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(testCustomer.Phone).
		WillReturnRows(customerRow(testCustomer))

	got, err := repo.FindByPhone(ctx, testCustomer.Phone)

	assert.NoError(t, err)
	assert.Equal(t, testCustomer.Phone, got.Phone)
	assert.True(t, got.EMIAmount.Equal(testCustomer.EMIAmount))
	assert.Equal(t, customer.PaymentStatusPending, got.PaymentStatus)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindByPhoneWhenNotFound(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs("+910000000000").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindByPhone(ctx, "+910000000000")

	assert.ErrorIs(t, err, customer.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFetchPendingWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	second := *testCustomer
	second.Phone = "+919876543211"
	rows := customerRow(testCustomer).AddRow(
		second.Phone,
		second.Name,
		second.EMIAmount.String(),
		second.DueDate,
		second.PaymentStatus,
		second.LastCallDate,
		second.CreatedAt,
		second.UpdatedAt,
	)

	query := `SELECT ` + customerColumns + ` FROM customers WHERE payment_status = $1 ORDER BY created_at, phone`
	mockPool.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(customer.PaymentStatusPending).
		WillReturnRows(rows)

	got, err := repo.FetchPending(ctx)

	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, testCustomer.Phone, got[0].Phone)
	assert.Equal(t, second.Phone, got[1].Phone)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFetchPendingWhenEmpty(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(customer.PaymentStatusPending).
		WillReturnRows(pgxmock.NewRows([]string{
			"phone", "name", "emi_amount", "due_date", "payment_status", "last_call_date", "created_at", "updated_at",
		}))

	got, err := repo.FetchPending(ctx)

	assert.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestSetPaymentStatusWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	query := `
        UPDATE customers
        SET payment_status = $2, updated_at = NOW()
        WHERE phone = $1 AND NOT (payment_status = $3 AND $2 = $4)`

	mockPool.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs(testCustomer.Phone, customer.PaymentStatusPaid, customer.PaymentStatusPaid, customer.PaymentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.SetPaymentStatus(ctx, testCustomer.Phone, customer.PaymentStatusPaid)

	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestSetPaymentStatusWhenCustomerMissing(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE customers`)).
		WithArgs("+910000000000", customer.PaymentStatusPaid, customer.PaymentStatusPaid, customer.PaymentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM customers WHERE phone = $1)`)).
		WithArgs("+910000000000").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.SetPaymentStatus(ctx, "+910000000000", customer.PaymentStatusPaid)

	assert.ErrorIs(t, err, customer.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestSetPaymentStatusBlocksPaidToPending(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE customers`)).
		WithArgs(testCustomer.Phone, customer.PaymentStatusPending, customer.PaymentStatusPaid, customer.PaymentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM customers WHERE phone = $1)`)).
		WithArgs(testCustomer.Phone).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.SetPaymentStatus(ctx, testCustomer.Phone, customer.PaymentStatusPending)

	assert.ErrorIs(t, err, customer.ErrUpdateConflict)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestSetLastCallDateWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	day := time.Date(2026, 3, 12, 14, 30, 0, 0, time.UTC)

	query := `UPDATE customers SET last_call_date = $2, updated_at = NOW() WHERE phone = $1`
	mockPool.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs(testCustomer.Phone, customer.Day(day)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.SetLastCallDate(ctx, testCustomer.Phone, day)

	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestMarkCalledTodayWhenApplied(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	today := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

	query := `
        UPDATE customers
        SET last_call_date = $2, updated_at = NOW()
        WHERE phone = $1 AND (last_call_date IS NULL OR last_call_date < $2)`

	mockPool.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs(testCustomer.Phone, customer.Day(today)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	applied, err := repo.MarkCalledToday(ctx, testCustomer.Phone, today)

	assert.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestMarkCalledTodayWhenAnotherRunWon(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	today := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

	mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE customers`)).
		WithArgs(testCustomer.Phone, customer.Day(today)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM customers WHERE phone = $1)`)).
		WithArgs(testCustomer.Phone).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	applied, err := repo.MarkCalledToday(ctx, testCustomer.Phone, today)

	assert.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestMarkCalledTodayWhenCustomerMissing(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	today := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

	mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE customers`)).
		WithArgs("+910000000000", customer.Day(today)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM customers WHERE phone = $1)`)).
		WithArgs("+910000000000").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.MarkCalledToday(ctx, "+910000000000", today)

	assert.ErrorIs(t, err, customer.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestTranslateDBError(t *testing.T) {
	assert.ErrorIs(t, translateDBError(pgx.ErrNoRows, logger), apperrors.ErrNotFound)
	assert.ErrorIs(t, translateDBError(&pgconn.PgError{Code: "23505"}, logger), apperrors.ErrAlreadyExists)
	assert.ErrorIs(t, translateDBError(&pgconn.PgError{Code: "40001"}, logger), apperrors.ErrStore)
	assert.ErrorIs(t, translateDBError(errors.New("boom"), logger), apperrors.ErrStore)
	assert.NoError(t, translateDBError(nil, logger))
}
