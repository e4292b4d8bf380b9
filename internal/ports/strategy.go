package ports

import (
	"context"

	"tradesim/internal/domain"
)

// SignalEngine turns a bar series into per-bar evaluations.
type SignalEngine interface {
	// RequiredDataPoints returns the number of bars needed before every indicator is defined.
	RequiredDataPoints() int

	// Evaluate returns one evaluation per input bar.
	Evaluate(ctx context.Context, bars []domain.Bar) ([]domain.Evaluation, error)
}
