package batch

import (
	"context"
	"log/slog"
	"time"

	"collections-engine/internal/domain/customer"
	"collections-engine/internal/domain/dialer"
	"collections-engine/internal/event"
	"collections-engine/internal/infrastructure/monitoring"
)

// Summary aggregates the per-customer outcomes of one daily run.
type Summary struct {
	Called  int `json:"called"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// DailyCallJob is the daily run orchestrator: one sequential pass over the
// ranked candidates, dispatching each in turn. It is safe to invoke more than
// once per day; the eligibility filter and the dispatcher's re-check make the
// second pass a no-op.
type DailyCallJob struct {
	selector   *dialer.Selector
	dispatcher *dialer.Dispatcher
	pub        event.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewDailyCallJob(
	selector *dialer.Selector,
	dispatcher *dialer.Dispatcher,
	publisher event.Publisher,
	logger *slog.Logger,
) *DailyCallJob {
	if selector == nil || dispatcher == nil || publisher == nil || logger == nil {
		panic("DailyCallJob dependencies cannot be nil")
	}
	return &DailyCallJob{
		selector:   selector,
		dispatcher: dispatcher,
		pub:        publisher,
		logger:     logger.With("job", "DailyCalls"),
		now:        time.Now,
	}
}

// Run executes one daily call pass and always produces a Summary: selection
// failures report an empty run, and no single customer's failure stops the
// remaining dispatches. Cancellation is cooperative at candidate boundaries.
func (j *DailyCallJob) Run(ctx context.Context) Summary {
	startTime := j.now()
	j.logger.InfoContext(ctx, "Starting daily call run.")

	var summary Summary

	candidates, err := j.selector.SelectCandidates(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Candidate selection failed, reporting empty run.", slog.Any("error", err))
	}
	j.logger.InfoContext(ctx, "Selected call candidates.", slog.Int("count", len(candidates)))

	for _, cust := range candidates {
		if ctx.Err() != nil {
			j.logger.WarnContext(ctx, "Run cancelled, stopping before next candidate.",
				slog.Any("error", ctx.Err()))
			break
		}

		outcome := j.dispatcher.Dispatch(ctx, cust)
		j.recordOutcome(ctx, cust, outcome)

		switch outcome.Status {
		case dialer.OutcomeCalled:
			summary.Called++
		case dialer.OutcomeSkipped:
			summary.Skipped++
		case dialer.OutcomeFailed:
			summary.Failed++
		}
	}

	duration := time.Since(startTime)
	monitoring.RecordDailyRun(len(candidates), duration)

	runEvent := event.RunCompletedEvent{
		Called:    summary.Called,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
		Duration:  duration,
		Timestamp: j.now(),
	}
	if pubErr := j.pub.PublishRunCompleted(ctx, runEvent); pubErr != nil {
		j.logger.ErrorContext(ctx, "Failed to publish run completed event", slog.Any("error", pubErr))
	}

	j.logger.InfoContext(ctx, "Daily call run finished.",
		slog.Int("called", summary.Called),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Duration("duration", duration))
	return summary
}

func (j *DailyCallJob) recordOutcome(ctx context.Context, cust *customer.Customer, outcome dialer.Outcome) {
	monitoring.RecordCallOutcome(string(outcome.Status))

	logCtx := j.logger.With(slog.String("phone", cust.Phone), slog.String("outcome", string(outcome.Status)))
	switch outcome.Status {
	case dialer.OutcomeCalled:
		logCtx.InfoContext(ctx, "Customer dispatched.", slog.String("callID", outcome.CallID))
	case dialer.OutcomeSkipped:
		logCtx.InfoContext(ctx, "Customer skipped.", slog.String("reason", outcome.Reason))
	case dialer.OutcomeFailed:
		logCtx.ErrorContext(ctx, "Dispatch failed, customer stays eligible.", slog.Any("error", outcome.Err))
	}

	dispatchedEvent := event.CallDispatchedEvent{
		Phone:     cust.Phone,
		Outcome:   string(outcome.Status),
		CallID:    outcome.CallID,
		Reason:    outcome.Reason,
		RiskScore: dialer.Score(cust, j.now()),
		Timestamp: j.now(),
	}
	if outcome.Err != nil {
		dispatchedEvent.Reason = outcome.Err.Error()
	}
	if pubErr := j.pub.PublishCallDispatched(ctx, dispatchedEvent); pubErr != nil {
		logCtx.ErrorContext(ctx, "Failed to publish call dispatched event", slog.Any("error", pubErr))
	}
}
