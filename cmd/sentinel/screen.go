package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/savegress/sentinel/internal/advisory"
	"github.com/savegress/sentinel/internal/archive"
	"github.com/savegress/sentinel/internal/config"
	"github.com/savegress/sentinel/internal/extraction"
	"github.com/savegress/sentinel/internal/logger"
	"github.com/savegress/sentinel/internal/pipeline"
	"github.com/savegress/sentinel/internal/risk"
)

const screenUsage = `Usage: sentinel screen [flags] FILE|DIR...

Screens each extraction JSON file and prints one verdict per file.
Directories are expanded to the .json files they contain. Exits non-zero
if any document could not be read.
`

const (
	formatText = "text"
	formatJSON = "json"
)

func runScreen(ctx context.Context, args []string) error {
	var common commonFlags
	flagSet := pflag.NewFlagSet("screen", pflag.ContinueOnError)
	common.register(flagSet)
	workers := flagSet.Int("workers", 0, "concurrent screenings (overrides config)")
	format := flagSet.String("format", formatText, "output format: text or json")
	noArchive := flagSet.Bool("no-archive", false, "do not archive outcomes")

	if helped, err := parseFlags(flagSet, &common, screenUsage, args); helped || err != nil {
		return err
	}
	if *format != formatText && *format != formatJSON {
		return fmt.Errorf("unknown format %q", *format)
	}
	if flagSet.NArg() == 0 {
		printHelp(flagSet, screenUsage)
		return fmt.Errorf("no input files")
	}

	ctx, cfg, err := common.load(ctx)
	if err != nil {
		return err
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}
	if *noArchive {
		cfg.Archive.Enabled = false
	}
	log := logger.FromContext(ctx)

	sources, err := extraction.ExpandSources(flagSet.Args())
	if err != nil {
		return err
	}

	p, closeFn, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	log.Info().Int("documents", len(sources)).Int("workers", cfg.Pipeline.Workers).Msg("screening started")
	outcomes, runErr := p.RunBatch(ctx, sources)

	if err := writeOutcomes(os.Stdout, *format, outcomes); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	for _, o := range outcomes {
		if o.Decision == pipeline.DecisionErrorReadingPDF {
			return errScreeningFailed
		}
	}
	return nil
}

// buildPipeline wires the pipeline from cfg. The returned func releases
// the archive, if one was opened.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	log := logger.FromContext(ctx)
	closeFn := func() {}

	engineCfg, err := cfg.Risk.EngineConfig()
	if err != nil {
		return nil, closeFn, err
	}
	engine, err := risk.NewEngine(engineCfg, log)
	if err != nil {
		return nil, closeFn, err
	}

	legal, wealth, err := buildAdvisors(ctx, cfg.Advisory)
	if err != nil {
		return nil, closeFn, err
	}

	deps := pipeline.Dependencies{
		Extractor: extraction.NewFileExtractor(extraction.DefaultMaxFileSize),
		Engine:    engine,
		Legal:     legal,
		Wealth:    wealth,
		Logger:    log,
	}

	if cfg.Archive.Enabled {
		store, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			return nil, closeFn, fmt.Errorf("open archive: %w", err)
		}
		deps.Archive = store
		closeFn = func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close archive")
			}
		}
	}

	p, err := pipeline.New(deps, pipeline.Config{
		Workers:              cfg.Pipeline.Workers,
		QueueSize:            cfg.Pipeline.QueueSize,
		ValidationPolicy:     pipeline.ValidationPolicy(cfg.Pipeline.ValidationPolicy),
		WealthHighRiskIncome: decimal.NewFromFloat(cfg.Pipeline.WealthHighRiskIncome),
		StageTimeout:         cfg.Pipeline.StageTimeout,
	})
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return p, closeFn, nil
}

func buildAdvisors(ctx context.Context, cfg config.AdvisoryConfig) (advisory.LegalAdvisor, advisory.WealthAdvisor, error) {
	if cfg.Provider != config.ProviderGemini {
		static := advisory.NewStaticAdvisor()
		return static, static, nil
	}

	gemini, err := advisory.NewGeminiAdvisor(ctx, advisory.GeminiConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: float32(cfg.Temperature),
		Retry: advisory.RetryPolicy{
			MaxRetries:   cfg.MaxRetries,
			InitialDelay: cfg.InitialDelay,
			MaxDelay:     cfg.MaxDelay,
			Multiplier:   2.0,
			Jitter:       true,
		},
	}, logger.FromContext(ctx))
	if err != nil {
		return nil, nil, err
	}
	return gemini, gemini, nil
}

func writeOutcomes(w io.Writer, format string, outcomes []*pipeline.Outcome) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	}

	for i, o := range outcomes {
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeOutcomeText(w, o)
	}
	return nil
}

func writeOutcomeText(w io.Writer, o *pipeline.Outcome) {
	header := fmt.Sprintf("%s: %s", o.Source, o.Decision)
	if name := o.ClientName(); name != "" {
		header += fmt.Sprintf(" (%s)", name)
	}
	fmt.Fprintln(w, header)

	if o.Report != nil {
		c := o.Report.ComplianceAnalysis
		m := o.Report.MathAnalysis
		fmt.Fprintf(w, "  risk: %s, score %d\n", c.Category, c.RiskScore)
		fmt.Fprintf(w, "  affordability: %s, ratio %.2f\n", m.Status, m.Ratio)
	}
	if o.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", o.Error)
	}
	for _, line := range o.Summary {
		fmt.Fprintf(w, "  %s\n", line)
	}
	for _, warning := range o.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", strings.TrimSpace(warning))
	}
}
