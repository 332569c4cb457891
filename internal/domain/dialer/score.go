package dialer

import (
	"time"

	"collections-engine/internal/domain/customer"

	"github.com/shopspring/decimal"
)

// One point of score per 1000 units of installment amount.
const amountScoreDivisor = 1000

// Score computes the contact-priority score for a customer on a given day.
// Pure and deterministic: one point per whole overdue day plus the
// installment amount divided by 1000. A missing due date contributes nothing,
// a future due date is clamped to zero, so the result is never negative.
func Score(cust *customer.Customer, today time.Time) float64 {
	if cust == nil {
		return 0
	}

	amount, _ := cust.EMIAmount.Div(decimal.NewFromInt(amountScoreDivisor)).Float64()
	if amount < 0 {
		amount = 0
	}

	return float64(overdueDays(cust.DueDate, today)) + amount
}

func overdueDays(dueDate *time.Time, today time.Time) int {
	if dueDate == nil {
		return 0
	}
	days := int(customer.Day(today).Sub(customer.Day(*dueDate)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
