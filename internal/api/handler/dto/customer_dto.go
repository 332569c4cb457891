package dto

import (
	"fmt"
	"strings"
	"time"

	"collections-engine/internal/domain/customer"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type CreateCustomerRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	EMIAmount string `json:"emiAmount"`
	DueDate   string `json:"dueDate,omitempty"`
}

func (r *CreateCustomerRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.TrimSpace(r.Phone) == "" {
		return fmt.Errorf("phone cannot be empty")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(r.EMIAmount))
	if err != nil {
		return fmt.Errorf("emiAmount must be a decimal number")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("emiAmount must be positive")
	}
	return nil
}

func (r *CreateCustomerRequest) Amount() decimal.Decimal {
	amount, _ := decimal.NewFromString(strings.TrimSpace(r.EMIAmount))
	return amount
}

// ParsedDueDate is lenient: a missing or unparseable due date becomes absent
// rather than an error, in which case only the installment amount drives the
// customer's risk score.
func (r *CreateCustomerRequest) ParsedDueDate() *time.Time {
	trimmed := strings.TrimSpace(r.DueDate)
	if trimmed == "" {
		return nil
	}
	parsed, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return nil
	}
	return &parsed
}

type CustomerResponse struct {
	Phone         string `json:"phone"`
	Name          string `json:"name"`
	EMIAmount     string `json:"emiAmount"`
	DueDate       string `json:"dueDate,omitempty"`
	PaymentStatus string `json:"paymentStatus"`
	LastCallDate  string `json:"lastCallDate,omitempty"`
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	if cust == nil {
		return CustomerResponse{}
	}
	resp := CustomerResponse{
		Phone:         cust.Phone,
		Name:          cust.Name,
		EMIAmount:     cust.EMIAmount.String(),
		PaymentStatus: string(cust.PaymentStatus),
	}
	if cust.DueDate != nil {
		resp.DueDate = cust.DueDate.Format(dateLayout)
	}
	if cust.LastCallDate != nil {
		resp.LastCallDate = cust.LastCallDate.Format(dateLayout)
	}
	return resp
}

type RunSummaryResponse struct {
	Called  int `json:"called"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type TokenRequest struct {
	Username string `json:"username"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
