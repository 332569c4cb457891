package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"collections-engine/internal/event"
	"collections-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

const customerNotFound = "Customer not found by repository"

type Service interface {
	OnboardCustomer(ctx context.Context, name, phone string, emiAmount decimal.Decimal, dueDate *time.Time) (*Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*Customer, error)
	MarkPaid(ctx context.Context, phone string) error
}

var _ Service = (*customerService)(nil)

type customerService struct {
	repo   Repository
	pub    event.Publisher
	logger *slog.Logger
}

func NewCustomerService(repo Repository, publisher event.Publisher, logger *slog.Logger) Service {
	if repo == nil {
		panic("customer repository cannot be nil")
	}
	if publisher == nil {
		panic("event publisher cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerService, using default stderr handler")
	}

	return &customerService{
		repo:   repo,
		pub:    publisher,
		logger: logger.With(slog.String("component", "customerService")),
	}
}

func (s *customerService) OnboardCustomer(ctx context.Context, name, phone string, emiAmount decimal.Decimal, dueDate *time.Time) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to onboard new customer")

	cust, err := NewCustomer(name, phone, emiAmount, dueDate)
	if err != nil {
		s.logger.WarnContext(ctx, "Validation failed for new customer", slog.Any("error", err))
		return nil, err
	}

	logCtx := s.logger.With(slog.String("phone", cust.Phone))
	logCtx.InfoContext(ctx, "Calling repository Save")
	if err := s.repo.Save(ctx, cust); err != nil {
		logCtx.ErrorContext(ctx, "Repository failed to save new customer", slog.Any("error", err))
		if errors.Is(err, ErrDuplicatePhone) {
			return nil, ErrDuplicatePhone
		}
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}

	createdEvent := event.CustomerCreatedEvent{
		Timestamp: time.Now(),
		Payload:   newCustomerEventPayload(cust),
	}
	if pubErr := s.pub.PublishCustomerCreated(ctx, createdEvent); pubErr != nil {
		logCtx.ErrorContext(ctx, "Customer created, but FAILED to publish creation event", slog.Any("error", pubErr))
	}

	logCtx.InfoContext(ctx, "Successfully onboarded new customer")
	return cust, nil
}

func (s *customerService) GetCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	canonical, err := NormalizePhone(phone)
	if err != nil {
		s.logger.WarnContext(ctx, "Rejected malformed phone number", slog.Any("error", err))
		return nil, err
	}

	logCtx := s.logger.With(slog.String("phone", canonical))
	logCtx.InfoContext(ctx, "Calling repository FindByPhone")
	cust, err := s.repo.FindByPhone(ctx, canonical)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logCtx.WarnContext(ctx, customerNotFound)
			return nil, ErrNotFound
		}
		logCtx.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %s: %w", canonical, err)
	}

	return cust, nil
}

// MarkPaid flips the customer's installment to Paid. Repeat requests are
// absorbed: the transition is one-way and the second press of the "mark paid"
// key must not fail the caller.
func (s *customerService) MarkPaid(ctx context.Context, phone string) error {
	canonical, err := NormalizePhone(phone)
	if err != nil {
		s.logger.WarnContext(ctx, "Rejected malformed phone number", slog.Any("error", err))
		return err
	}

	logCtx := s.logger.With(slog.String("phone", canonical))
	logCtx.InfoContext(ctx, "Attempting to mark installment as paid")

	cust, err := s.repo.FindByPhone(ctx, canonical)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logCtx.WarnContext(ctx, customerNotFound)
			return ErrNotFound
		}
		logCtx.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return fmt.Errorf("cannot find customer %s to mark paid: %w", canonical, err)
	}

	if err := cust.MarkPaid(); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyPaid) {
			logCtx.InfoContext(ctx, "Installment already marked paid, nothing to do")
			return nil
		}
		return err
	}

	logCtx.InfoContext(ctx, "Calling repository SetPaymentStatus", slog.String("status", string(PaymentStatusPaid)))
	if err := s.repo.SetPaymentStatus(ctx, canonical, PaymentStatusPaid); err != nil {
		if errors.Is(err, ErrNotFound) {
			logCtx.ErrorContext(ctx, "Customer disappeared before status update completed")
			return ErrNotFound
		}
		logCtx.ErrorContext(ctx, "Repository failed to persist paid status", slog.Any("error", err))
		return fmt.Errorf("failed to mark customer %s paid: %w", canonical, err)
	}

	paidEvent := event.CustomerPaidEvent{
		Timestamp: time.Now(),
		Payload:   newCustomerEventPayload(cust),
	}
	if pubErr := s.pub.PublishCustomerPaid(ctx, paidEvent); pubErr != nil {
		logCtx.ErrorContext(ctx, "Installment marked paid, but FAILED to publish event", slog.Any("error", pubErr))
	}

	logCtx.InfoContext(ctx, "Successfully marked installment as paid")
	return nil
}

func newCustomerEventPayload(cust *Customer) event.CustomerEventPayload {
	if cust == nil {
		return event.CustomerEventPayload{}
	}
	return event.CustomerEventPayload{
		Phone:         cust.Phone,
		Name:          cust.Name,
		EMIAmount:     cust.EMIAmount.String(),
		DueDate:       cust.DueDate,
		PaymentStatus: string(cust.PaymentStatus),
		LastCallDate:  cust.LastCallDate,
		UpdatedAt:     cust.UpdatedAt,
	}
}
