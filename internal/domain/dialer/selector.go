package dialer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"collections-engine/internal/domain/customer"
	"collections-engine/internal/pkg/apperrors"
)

// Selector decides whom to call today: every pending customer not yet
// contacted today, ranked by descending risk score.
type Selector struct {
	repo   customer.Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewSelector(repo customer.Repository, logger *slog.Logger) *Selector {
	if repo == nil {
		panic("customer repository cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewSelector, using default stderr handler")
	}
	return &Selector{
		repo:   repo,
		logger: logger.With(slog.String("component", "Selector")),
		now:    time.Now,
	}
}

// SelectCandidates returns today's contact candidates in dispatch order. The
// list is freshly computed on every call. A store read failure yields an
// empty list plus the surfaced error so the daily run can still report a
// summary instead of crashing.
func (s *Selector) SelectCandidates(ctx context.Context) ([]*customer.Customer, error) {
	today := customer.Day(s.now())

	s.logger.InfoContext(ctx, "Fetching pending customers from store")
	pending, err := s.repo.FetchPending(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Store read failed during candidate selection", slog.Any("error", err))
		return []*customer.Customer{}, fmt.Errorf("%w: fetching pending customers: %w", apperrors.ErrStore, err)
	}

	type scored struct {
		cust  *customer.Customer
		score float64
	}

	candidates := make([]scored, 0, len(pending))
	for _, cust := range pending {
		if !cust.IsContactCandidate(today) {
			continue
		}
		candidates = append(candidates, scored{cust: cust, score: Score(cust, today)})
	}

	// Highest risk first; equal scores fall back to canonical phone so the
	// order stays deterministic across runs.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].cust.Phone < candidates[j].cust.Phone
	})

	result := make([]*customer.Customer, len(candidates))
	for i, c := range candidates {
		result[i] = c.cust
	}

	s.logger.InfoContext(ctx, "Candidate selection complete",
		slog.Int("pending", len(pending)),
		slog.Int("candidates", len(result)))
	return result, nil
}
