package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"collections-engine/internal/domain/customer"
	"collections-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var errMsgFormat = "%w: %w"

const customerColumns = `phone, name, emi_amount::text, due_date, payment_status, last_call_date, created_at, updated_at`

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.Repository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerRepository, using default stderr handler")
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
	}
}

// Save inserts a new customer record. Records are keyed by canonical phone;
// inserting an already registered number reports ErrDuplicatePhone.
func (r *CustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	r.logger.InfoContext(ctx, "Attempting to insert new customer", slog.String("phone", cust.Phone))

	query := `
        INSERT INTO customers (phone, name, emi_amount, due_date, payment_status, last_call_date, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		cust.Phone,
		cust.Name,
		cust.EMIAmount.String(),
		cust.DueDate,
		cust.PaymentStatus,
		cust.LastCallDate,
	).Scan(
		&cust.CreatedAt,
		&cust.UpdatedAt,
	)

	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			r.logger.WarnContext(ctx, "Failed to insert customer, phone already registered", slog.String("phone", cust.Phone))
			return customer.ErrDuplicatePhone
		}
		r.logger.ErrorContext(ctx, "Failed to insert customer", slog.Any("error", err))
		return translatedErr
	}

	return nil
}

func (r *CustomerRepository) FindByPhone(ctx context.Context, phone string) (*customer.Customer, error) {
	logCtx := r.logger.With(slog.String("operation", "FindByPhone"), slog.String("phone", phone))
	logCtx.DebugContext(ctx, "Attempting to find customer by phone")

	query := `SELECT ` + customerColumns + ` FROM customers WHERE phone = $1`

	cust, err := scanCustomer(r.db.QueryRow(ctx, query, phone))
	if err != nil {
		translatedErr := translateDBError(err, logCtx)
		if errors.Is(translatedErr, apperrors.ErrNotFound) {
			logCtx.DebugContext(ctx, "Customer not found")
			return nil, customer.ErrNotFound
		}
		logCtx.ErrorContext(ctx, "Failed to query customer by phone", slog.Any("error", err))
		return nil, translatedErr
	}

	return cust, nil
}

// FetchPending returns every record with payment_status = Pending. The order
// is stable across calls so the selector's tie-break stays deterministic.
func (r *CustomerRepository) FetchPending(ctx context.Context) ([]*customer.Customer, error) {
	logCtx := r.logger.With(slog.String("operation", "FetchPending"))
	logCtx.DebugContext(ctx, "Attempting to fetch pending customers")

	query := `SELECT ` + customerColumns + ` FROM customers WHERE payment_status = $1 ORDER BY created_at, phone`

	rows, err := r.db.Query(ctx, query, customer.PaymentStatusPending)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to query pending customers", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query pending customers: %w", apperrors.ErrStore, err)
	}
	defer rows.Close()

	customers := make([]*customer.Customer, 0)
	for rows.Next() {
		cust, err := scanCustomer(rows)
		if err != nil {
			logCtx.ErrorContext(ctx, "Failed to scan pending customer row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed scanning pending customer: %w", apperrors.ErrStore, err)
		}
		customers = append(customers, cust)
	}

	if err = rows.Err(); err != nil {
		logCtx.ErrorContext(ctx, "Error iterating pending customer rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating pending customers: %w", apperrors.ErrStore, err)
	}

	logCtx.DebugContext(ctx, "Finished fetching pending customers", slog.Int("count", len(customers)))
	return customers, nil
}

// SetPaymentStatus writes the payment status for one record. The Paid status
// is terminal: a Paid record is never flipped back to Pending.
func (r *CustomerRepository) SetPaymentStatus(ctx context.Context, phone string, status customer.PaymentStatus) error {
	logCtx := r.logger.With(slog.String("operation", "SetPaymentStatus"), slog.String("phone", phone))
	logCtx.DebugContext(ctx, "Attempting to set payment status", slog.String("status", string(status)))

	query := `
        UPDATE customers
        SET payment_status = $2, updated_at = NOW()
        WHERE phone = $1 AND NOT (payment_status = $3 AND $2 = $4)`

	tag, err := r.db.Exec(ctx, query, phone, status, customer.PaymentStatusPaid, customer.PaymentStatusPending)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to update payment status", slog.Any("error", err))
		return fmt.Errorf(errMsgFormat, apperrors.ErrStore, err)
	}

	if tag.RowsAffected() == 0 {
		return r.classifyMissedUpdate(ctx, phone, customer.ErrUpdateConflict)
	}

	return nil
}

func (r *CustomerRepository) SetLastCallDate(ctx context.Context, phone string, day time.Time) error {
	logCtx := r.logger.With(slog.String("operation", "SetLastCallDate"), slog.String("phone", phone))
	logCtx.DebugContext(ctx, "Attempting to set last call date")

	query := `UPDATE customers SET last_call_date = $2, updated_at = NOW() WHERE phone = $1`

	tag, err := r.db.Exec(ctx, query, phone, customer.Day(day))
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to update last call date", slog.Any("error", err))
		return fmt.Errorf(errMsgFormat, apperrors.ErrStore, err)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}

	return nil
}

// MarkCalledToday is a conditional write: the contact attempt is only
// recorded when last_call_date is still unset or before today, so of two
// racing runs exactly one observes the update as applied.
func (r *CustomerRepository) MarkCalledToday(ctx context.Context, phone string, today time.Time) (bool, error) {
	logCtx := r.logger.With(slog.String("operation", "MarkCalledToday"), slog.String("phone", phone))
	logCtx.DebugContext(ctx, "Attempting conditional last call date update")

	query := `
        UPDATE customers
        SET last_call_date = $2, updated_at = NOW()
        WHERE phone = $1 AND (last_call_date IS NULL OR last_call_date < $2)`

	tag, err := r.db.Exec(ctx, query, phone, customer.Day(today))
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed conditional last call date update", slog.Any("error", err))
		return false, fmt.Errorf(errMsgFormat, apperrors.ErrStore, err)
	}

	if tag.RowsAffected() == 0 {
		if err := r.classifyMissedUpdate(ctx, phone, nil); err != nil {
			return false, err
		}
		// record exists, another run already stamped today
		return false, nil
	}

	return true, nil
}

// classifyMissedUpdate distinguishes "no such record" from "condition not
// met" after an UPDATE that touched zero rows.
func (r *CustomerRepository) classifyMissedUpdate(ctx context.Context, phone string, conflictErr error) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE phone = $1)`, phone).Scan(&exists)
	if err != nil {
		return fmt.Errorf(errMsgFormat, apperrors.ErrStore, err)
	}
	if !exists {
		return customer.ErrNotFound
	}
	return conflictErr
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*customer.Customer, error) {
	var (
		cust      customer.Customer
		amountStr string
	)
	err := row.Scan(
		&cust.Phone,
		&cust.Name,
		&amountStr,
		&cust.DueDate,
		&cust.PaymentStatus,
		&cust.LastCallDate,
		&cust.CreatedAt,
		&cust.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid emi_amount %q: %w", apperrors.ErrStore, amountStr, err)
	}
	cust.EMIAmount = amount

	return &cust, nil
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {

		if pgErr.Code == "23505" {
			contextLogger.Warn("Database unique constraint violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, pgErr.ConstraintName)
		}

		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrStore, pgErr.Code)
	}

	contextLogger.Error("Generic database error", "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrStore, err)
}
