package event

import (
	"context"
	"time"
)

type CustomerEventPayload struct {
	Phone         string     `json:"phone"`
	Name          string     `json:"name"`
	EMIAmount     string     `json:"emiAmount"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	PaymentStatus string     `json:"paymentStatus"`
	LastCallDate  *time.Time `json:"lastCallDate,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type CustomerCreatedEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

type CustomerPaidEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

// CallDispatchedEvent records the outcome of a single outbound call attempt.
type CallDispatchedEvent struct {
	Phone     string    `json:"phone"`
	Outcome   string    `json:"outcome"`
	CallID    string    `json:"callId,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RiskScore float64   `json:"riskScore"`
	Timestamp time.Time `json:"timestamp"`
}

// RunCompletedEvent summarizes one daily call run.
type RunCompletedEvent struct {
	Called    int           `json:"called"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"durationNs"`
	Timestamp time.Time     `json:"timestamp"`
}

type Publisher interface {
	PublishCustomerCreated(ctx context.Context, event CustomerCreatedEvent) error
	PublishCustomerPaid(ctx context.Context, event CustomerPaidEvent) error
	PublishCallDispatched(ctx context.Context, event CallDispatchedEvent) error
	PublishRunCompleted(ctx context.Context, event RunCompletedEvent) error
}

// NopPublisher satisfies Publisher without a broker. Used when RabbitMQ is
// disabled in configuration.
type NopPublisher struct{}

var _ Publisher = (*NopPublisher)(nil)

func (NopPublisher) PublishCustomerCreated(context.Context, CustomerCreatedEvent) error { return nil }
func (NopPublisher) PublishCustomerPaid(context.Context, CustomerPaidEvent) error       { return nil }
func (NopPublisher) PublishCallDispatched(context.Context, CallDispatchedEvent) error   { return nil }
func (NopPublisher) PublishRunCompleted(context.Context, RunCompletedEvent) error       { return nil }
