// Package pipeline orchestrates a screening run: extraction, risk
// assessment, routing to legal review or wealth advisory, and the final
// verdict.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/savegress/sentinel/internal/advisory"
	"github.com/savegress/sentinel/internal/extraction"
	"github.com/savegress/sentinel/internal/logger"
	"github.com/savegress/sentinel/internal/risk"
)

// Archive persists finished outcomes
type Archive interface {
	Save(ctx context.Context, outcome *Outcome) error
}

// Dependencies are the collaborators of a Pipeline. Archive is optional.
type Dependencies struct {
	Extractor extraction.Extractor
	Engine    *risk.Engine
	Legal     advisory.LegalAdvisor
	Wealth    advisory.WealthAdvisor
	Archive   Archive
	Logger    zerolog.Logger
}

// Config holds pipeline settings
type Config struct {
	Workers              int
	QueueSize            int
	ValidationPolicy     ValidationPolicy
	WealthHighRiskIncome decimal.Decimal
	StageTimeout         time.Duration // Per advisory call; zero disables
}

// DefaultConfig returns the default pipeline settings
func DefaultConfig() Config {
	return Config{
		Workers:              4,
		QueueSize:            64,
		ValidationPolicy:     PolicyManualReview,
		WealthHighRiskIncome: decimal.NewFromInt(20000),
		StageTimeout:         60 * time.Second,
	}
}

// Pipeline runs screenings. It is safe for concurrent use.
type Pipeline struct {
	deps   Dependencies
	config Config
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a pipeline
func New(deps Dependencies, config Config) (*Pipeline, error) {
	switch {
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case deps.Engine == nil:
		return nil, errors.New("pipeline: risk engine is required")
	case deps.Legal == nil:
		return nil, errors.New("pipeline: legal advisor is required")
	case deps.Wealth == nil:
		return nil, errors.New("pipeline: wealth advisor is required")
	}
	if _, err := ParseValidationPolicy(string(config.ValidationPolicy)); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if config.ValidationPolicy == "" {
		config.ValidationPolicy = PolicyManualReview
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}

	return &Pipeline{
		deps:   deps,
		config: config,
		logger: deps.Logger.With().Str("component", "pipeline").Logger(),
		now:    time.Now,
	}, nil
}

// Run screens one source. It always returns an outcome; failures are
// reported through its Decision, Error and Warnings.
func (p *Pipeline) Run(ctx context.Context, source string) *Outcome {
	outcome := &Outcome{
		ID:        uuid.NewString(),
		Source:    source,
		Summary:   []string{},
		StartedAt: p.now(),
	}

	log := logger.WithFields(p.logger, map[string]interface{}{
		"source":     source,
		"outcome_id": outcome.ID,
	})
	ctx = logger.WithContext(ctx, log)

	p.screen(ctx, log, outcome)

	outcome.CompletedAt = p.now()
	p.archive(ctx, log, outcome)

	log.Info().
		Str("decision", string(outcome.Decision)).
		Str("route", string(outcome.Route)).
		Int("warnings", len(outcome.Warnings)).
		Dur("duration", outcome.Duration()).
		Msg("screening complete")

	return outcome
}

func (p *Pipeline) screen(ctx context.Context, log zerolog.Logger, outcome *Outcome) {
	ext, err := p.deps.Extractor.Extract(ctx, outcome.Source)
	if err != nil {
		log.Error().Err(err).Msg("extraction failed")
		outcome.Decision = DecisionErrorReadingPDF
		outcome.Error = err.Error()
		return
	}
	outcome.Extraction = ext

	report, err := p.deps.Engine.Analyze(ext)
	if err != nil {
		outcome.Decision = DecisionManualReview
		if p.config.ValidationPolicy == PolicyReject {
			outcome.Decision = DecisionReject
		}
		outcome.Error = err.Error()

		var verr *risk.ValidationError
		if errors.As(err, &verr) {
			outcome.Summary = validationSummary(verr)
		}
		log.Warn().Err(err).Str("decision", string(outcome.Decision)).Msg("extraction failed validation")
		return
	}
	outcome.Report = report
	if report.DataQuality != nil {
		outcome.warn("%d transaction(s) excluded from scoring", report.DataQuality.ExcludedTransactions)
	}

	outcome.Route = Route(report)
	switch outcome.Route {
	case RouteLegalReview:
		opinion, err := p.consult(ctx, report.ComplianceAnalysis.Reasons)
		if err != nil {
			log.Warn().Err(err).Msg("legal review unavailable")
			outcome.warn("legal review: %v", err)
		}
		outcome.LegalOpinion = opinion
	default:
		profile := WealthProfile(report.MathAnalysis.Income, p.config.WealthHighRiskIncome)
		plan, err := p.recommend(ctx, report.MathAnalysis.Income, profile)
		if err != nil {
			log.Warn().Err(err).Msg("wealth advisory unavailable")
			outcome.warn("wealth advisory: %v", err)
			plan = DefaultWealthPlan
		}
		outcome.WealthPlan = plan
	}

	outcome.Decision = Decision(report.FinalDecision)
	policyLimit := p.deps.Engine.Config().MaxExpenseRatio
	outcome.Summary = Finalize(report, outcome.LegalOpinion, outcome.WealthPlan, policyLimit)
}

func (p *Pipeline) consult(ctx context.Context, reasons []string) (string, error) {
	ctx, cancel := p.stageContext(ctx)
	defer cancel()
	return p.deps.Legal.Consult(ctx, reasons)
}

func (p *Pipeline) recommend(ctx context.Context, income decimal.Decimal, profile string) (string, error) {
	ctx, cancel := p.stageContext(ctx)
	defer cancel()
	return p.deps.Wealth.Recommend(ctx, income, profile)
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.StageTimeout > 0 {
		return context.WithTimeout(ctx, p.config.StageTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *Pipeline) archive(ctx context.Context, log zerolog.Logger, outcome *Outcome) {
	if p.deps.Archive == nil {
		return
	}
	// Audit records are written even when the run's context has ended
	if err := p.deps.Archive.Save(context.WithoutCancel(ctx), outcome); err != nil {
		log.Error().Err(err).Msg("archive save failed")
		outcome.warn("archive: %v", err)
	}
}
