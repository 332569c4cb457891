package customer

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("customer not found")

	ErrDuplicatePhone = errors.New("phone number already registered")

	ErrUpdateConflict = errors.New("update conflict detected")
)

// Repository is the customer directory as seen by the core. Every write is an
// atomic single-record operation keyed by canonical phone.
type Repository interface {
	Save(ctx context.Context, customer *Customer) error

	FindByPhone(ctx context.Context, phone string) (*Customer, error)

	// FetchPending returns every record with payment_status = Pending, in a
	// stable order.
	FetchPending(ctx context.Context) ([]*Customer, error)

	SetPaymentStatus(ctx context.Context, phone string, status PaymentStatus) error

	SetLastCallDate(ctx context.Context, phone string, day time.Time) error

	// MarkCalledToday conditionally records a contact attempt: the update only
	// lands when last_call_date is still null or before the given day. It
	// reports false when another run already won the race.
	MarkCalledToday(ctx context.Context, phone string, today time.Time) (bool, error)
}
