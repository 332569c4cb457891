package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"collections-engine/internal/domain/customer"
	"collections-engine/internal/pkg/apperrors"
)

// VoiceGateway places an outbound call that walks the callee through the
// voice menu hosted at callbackURL. It reports the provider's call identifier.
type VoiceGateway interface {
	PlaceCall(ctx context.Context, to, callbackURL string) (callID string, err error)
}

type OutcomeStatus string

const (
	OutcomeCalled  OutcomeStatus = "CALLED"
	OutcomeSkipped OutcomeStatus = "SKIPPED"
	OutcomeFailed  OutcomeStatus = "FAILED"
)

const (
	SkipReasonAlreadyPaid   = "already paid"
	SkipReasonAlreadyCalled = "already called today"
)

// Outcome is the result of one dispatch attempt.
type Outcome struct {
	Status OutcomeStatus
	CallID string
	Reason string
	Err    error
}

func called(callID string) Outcome   { return Outcome{Status: OutcomeCalled, CallID: callID} }
func skipped(reason string) Outcome  { return Outcome{Status: OutcomeSkipped, Reason: reason} }
func failed(err error) Outcome       { return Outcome{Status: OutcomeFailed, Err: err} }

// Dispatcher places the outbound call for a single selected candidate. The
// pre-dispatch re-check plus the conditional last_call_date write form the
// idempotency boundary: a customer flipped to Paid or already contacted today
// since selection is skipped, never dialed.
type Dispatcher struct {
	repo             customer.Repository
	gateway          VoiceGateway
	voiceCallbackURL string
	logger           *slog.Logger
	now              func() time.Time
}

func NewDispatcher(repo customer.Repository, gateway VoiceGateway, voiceCallbackURL string, logger *slog.Logger) *Dispatcher {
	if repo == nil || gateway == nil {
		panic("Dispatcher dependencies cannot be nil")
	}
	if voiceCallbackURL == "" {
		panic("voice callback URL cannot be empty")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewDispatcher, using default stderr handler")
	}
	return &Dispatcher{
		repo:             repo,
		gateway:          gateway,
		voiceCallbackURL: voiceCallbackURL,
		logger:           logger.With(slog.String("component", "Dispatcher")),
		now:              time.Now,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, cust *customer.Customer) Outcome {
	if cust == nil {
		return failed(fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument))
	}

	canonical, err := customer.NormalizePhone(cust.Phone)
	if err != nil {
		d.logger.WarnContext(ctx, "Candidate has an unusable phone number", slog.Any("error", err))
		return failed(err)
	}

	logCtx := d.logger.With(slog.String("phone", canonical))
	today := customer.Day(d.now())

	// Re-check against the store: the record may have changed since selection.
	fresh, err := d.repo.FindByPhone(ctx, canonical)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			logCtx.WarnContext(ctx, "Candidate disappeared from store before dispatch")
			return failed(fmt.Errorf("%w: candidate no longer exists: %w", apperrors.ErrStore, err))
		}
		logCtx.ErrorContext(ctx, "Store re-check failed before dispatch", slog.Any("error", err))
		return failed(fmt.Errorf("%w: re-checking candidate: %w", apperrors.ErrStore, err))
	}

	if fresh.PaymentStatus == customer.PaymentStatusPaid {
		logCtx.InfoContext(ctx, "Skipping dispatch, installment paid since selection")
		return skipped(SkipReasonAlreadyPaid)
	}
	if fresh.CalledOn(today) {
		logCtx.InfoContext(ctx, "Skipping dispatch, customer already contacted today")
		return skipped(SkipReasonAlreadyCalled)
	}

	logCtx.InfoContext(ctx, "Placing outbound call", slog.String("callbackURL", d.voiceCallbackURL))
	callID, err := d.gateway.PlaceCall(ctx, canonical, d.voiceCallbackURL)
	if err != nil {
		// The customer stays eligible: last_call_date is only written after a
		// successful placement, so a failed attempt retries on a later day.
		logCtx.ErrorContext(ctx, "Gateway failed to place call", slog.Any("error", err))
		return failed(fmt.Errorf("%w: placing call: %w", apperrors.ErrGateway, err))
	}

	logCtx = logCtx.With(slog.String("callID", callID))

	updated, err := d.repo.MarkCalledToday(ctx, canonical, today)
	if err != nil {
		// The call was placed; an unrecorded attempt only risks one extra dial
		// on a later run, which the re-check bounds.
		logCtx.ErrorContext(ctx, "Call placed but failed to record last call date", slog.Any("error", err))
		return called(callID)
	}
	if !updated {
		logCtx.WarnContext(ctx, "Concurrent run recorded this customer first")
	}

	logCtx.InfoContext(ctx, "Call dispatched successfully")
	return called(callID)
}
