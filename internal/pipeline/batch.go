package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/savegress/sentinel/internal/batch"
)

var errAborted = errors.New("screening aborted")

// RunBatch screens sources concurrently and returns one outcome per source
// in input order. When ctx ends, sources that were not screened get an
// ERROR_READING_PDF outcome carrying the context error, and that error is
// returned.
func (p *Pipeline) RunBatch(ctx context.Context, sources []string) ([]*Outcome, error) {
	pool, err := batch.NewPool(batch.Config{
		Workers:   p.config.Workers,
		QueueSize: p.config.QueueSize,
		ErrorHandler: func(err error) {
			p.logger.Error().Err(err).Msg("batch task failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("batch pool: %w", err)
	}
	defer pool.Stop()

	outcomes := make([]*Outcome, len(sources))

	var submitErr error
	for i, source := range sources {
		i, source := i, source
		err := pool.Submit(ctx, func(ctx context.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("screening %s panicked: %v", source, r)
					outcomes[i] = p.unscreened(source, err)
				}
			}()
			outcomes[i] = p.Run(ctx, source)
			return nil
		})
		if err != nil {
			submitErr = err
			break
		}
	}
	pool.Wait()

	reason := ctx.Err()
	if reason == nil {
		reason = errAborted
	}
	for i, outcome := range outcomes {
		if outcome == nil {
			outcomes[i] = p.unscreened(sources[i], reason)
		}
	}

	stats := pool.Stats()
	p.logger.Info().
		Int("sources", len(sources)).
		Uint64("completed", stats.CompletedTasks).
		Uint64("cancelled", stats.CancelledTasks).
		Uint64("panicked", stats.PanickedTasks).
		Dur("avg_duration", stats.AvgDuration).
		Msg("batch complete")

	if ctx.Err() != nil {
		return outcomes, ctx.Err()
	}
	if submitErr != nil {
		return outcomes, fmt.Errorf("submit: %w", submitErr)
	}
	return outcomes, nil
}

func (p *Pipeline) unscreened(source string, reason error) *Outcome {
	now := p.now()
	return &Outcome{
		ID:          uuid.NewString(),
		Source:      source,
		Decision:    DecisionErrorReadingPDF,
		Summary:     []string{},
		Error:       reason.Error(),
		StartedAt:   now,
		CompletedAt: now,
	}
}
