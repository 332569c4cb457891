package customer

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"collections-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
)

// Customer is a single installment account in the directory, keyed by its
// canonical E.164 phone number.
type Customer struct {
	Phone         string          `json:"phone"`
	Name          string          `json:"name"`
	EMIAmount     decimal.Decimal `json:"emiAmount"`
	DueDate       *time.Time      `json:"dueDate,omitempty"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	LastCallDate  *time.Time      `json:"lastCallDate,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func NewCustomer(name, phone string, emiAmount decimal.Decimal, dueDate *time.Time) (*Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name", "cannot be empty")
	}
	canonical, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if emiAmount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.NewValidationError("emiAmount", "must be positive")
	}

	now := time.Now()
	return &Customer{
		Phone:         canonical,
		Name:          name,
		EMIAmount:     emiAmount,
		DueDate:       dueDate,
		PaymentStatus: PaymentStatusPending,
		LastCallDate:  nil,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// MarkPaid flips the installment to Paid. The transition is one-way; marking
// an already paid customer is a no-op reported via ErrAlreadyPaid.
func (c *Customer) MarkPaid() error {
	if c.PaymentStatus == PaymentStatusPaid {
		return apperrors.ErrAlreadyPaid
	}
	c.PaymentStatus = PaymentStatusPaid
	c.UpdatedAt = time.Now()
	return nil
}

// IsContactCandidate reports whether the customer is eligible for an outbound
// call on the given day: still pending and not already called that day.
func (c *Customer) IsContactCandidate(today time.Time) bool {
	if c.PaymentStatus != PaymentStatusPending {
		return false
	}
	return !c.CalledOn(today)
}

// CalledOn reports whether the last successful contact attempt happened on
// the given calendar day.
func (c *Customer) CalledOn(day time.Time) bool {
	if c.LastCallDate == nil {
		return false
	}
	return Day(*c.LastCallDate).Equal(Day(day))
}

// Day truncates a timestamp to its calendar date in UTC. All scheduling
// comparisons operate on these date values.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizePhone reduces a phone number to its canonical E.164 form. Every
// lookup and comparison goes through this so formatting drift in stored or
// submitted numbers cannot cause duplicate or missed matches.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty number", apperrors.ErrInvalidPhoneNumber)
	}

	var digits strings.Builder
	for _, r := range trimmed {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// separators and the plus sign are dropped; the plus is re-added below
		default:
			return "", fmt.Errorf("%w: unexpected character %q in %q", apperrors.ErrInvalidPhoneNumber, r, raw)
		}
	}

	number := digits.String()
	// international prefix written as 00 instead of +
	number = strings.TrimPrefix(number, "00")

	if len(number) < 8 || len(number) > 15 {
		return "", fmt.Errorf("%w: %q has %d digits, want 8-15", apperrors.ErrInvalidPhoneNumber, raw, len(number))
	}
	if number[0] == '0' {
		return "", fmt.Errorf("%w: %q has no country code", apperrors.ErrInvalidPhoneNumber, raw)
	}

	return "+" + number, nil
}
