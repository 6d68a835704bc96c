package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/savegress/sentinel/internal/risk"
	"github.com/savegress/sentinel/pkg/models"
)

type fakeExtractor struct {
	mu      sync.Mutex
	records map[string]*models.FinancialExtraction
	delay   func(source string) time.Duration
	panicOn string
	calls   []string
}

func (f *fakeExtractor) Extract(ctx context.Context, source string) (*models.FinancialExtraction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, source)
	ext, ok := f.records[source]
	f.mu.Unlock()

	if source == f.panicOn {
		panic("corrupt page table")
	}
	if f.delay != nil {
		select {
		case <-time.After(f.delay(source)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("extract %s: unreadable document", source)
	}
	return ext, nil
}

type fakeAdvisor struct {
	mu          sync.Mutex
	memo        string
	plan        string
	err         error
	reasons     [][]string
	profiles    []string
	incomes     []decimal.Decimal
	hadDeadline bool
}

func (f *fakeAdvisor) Consult(ctx context.Context, reasons []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reasons)
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return "", f.err
	}
	return f.memo, nil
}

func (f *fakeAdvisor) Recommend(ctx context.Context, income decimal.Decimal, profile string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incomes = append(f.incomes, income)
	f.profiles = append(f.profiles, profile)
	if f.err != nil {
		return "", f.err
	}
	return f.plan, nil
}

type fakeArchive struct {
	mu    sync.Mutex
	saved []*Outcome
	err   error
}

func (f *fakeArchive) Save(ctx context.Context, outcome *Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, outcome)
	return nil
}

type fixture struct {
	extractor *fakeExtractor
	advisor   *fakeAdvisor
	archive   *fakeArchive
	pipeline  *Pipeline
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()

	engine, err := risk.NewEngine(risk.DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	f := &fixture{
		extractor: &fakeExtractor{records: map[string]*models.FinancialExtraction{}},
		advisor:   &fakeAdvisor{memo: "Rejected under MAS Notice 626.", plan: "Multiplier account"},
		archive:   &fakeArchive{},
	}
	f.pipeline, err = New(Dependencies{
		Extractor: f.extractor,
		Engine:    engine,
		Legal:     f.advisor,
		Wealth:    f.advisor,
		Archive:   f.archive,
		Logger:    zerolog.Nop(),
	}, config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func cleanExtraction(income, spending string) *models.FinancialExtraction {
	return &models.FinancialExtraction{
		ClientName:       "Jane Tan",
		TotalIncome:      dec(income),
		TotalExpenditure: dec(spending),
		SourceOfWealth:   models.SourceOfWealthSalary,
		RiskFlags:        []string{"Grab"},
		Transactions:     []models.Transaction{},
	}
}

func structuringExtraction() *models.FinancialExtraction {
	ext := cleanExtraction("10000", "2000")
	ext.ClientName = "Ali Hassan"
	ext.Transactions = []models.Transaction{
		{Date: "2024-03-01", Description: "CASH DEPOSIT", Amount: dec("4800"), Type: models.TransactionTypeCredit},
		{Date: "2024-03-04", Description: "CASH DEPOSIT", Amount: dec("4900"), Type: models.TransactionTypeCredit},
	}
	return ext
}

func TestNew_RequiresDependencies(t *testing.T) {
	engine, _ := risk.NewEngine(risk.DefaultConfig(), zerolog.Nop())
	full := Dependencies{
		Extractor: &fakeExtractor{},
		Engine:    engine,
		Legal:     &fakeAdvisor{},
		Wealth:    &fakeAdvisor{},
	}

	tests := map[string]func(d *Dependencies){
		"extractor": func(d *Dependencies) { d.Extractor = nil },
		"engine":    func(d *Dependencies) { d.Engine = nil },
		"legal":     func(d *Dependencies) { d.Legal = nil },
		"wealth":    func(d *Dependencies) { d.Wealth = nil },
	}
	for name, mutate := range tests {
		deps := full
		mutate(&deps)
		if _, err := New(deps, DefaultConfig()); err == nil {
			t.Errorf("expected error without %s", name)
		}
	}

	if _, err := New(full, DefaultConfig()); err != nil {
		t.Errorf("expected archive to be optional, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.ValidationPolicy = "ignore"
	if _, err := New(full, cfg); err == nil {
		t.Error("expected error for unknown validation policy")
	}
}

func TestPipeline_Run_HighRiskGoesToLegalReview(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.extractor.records["ali.json"] = structuringExtraction()

	outcome := f.pipeline.Run(context.Background(), "ali.json")

	if outcome.Decision != DecisionReject {
		t.Errorf("expected REJECT, got %s", outcome.Decision)
	}
	if outcome.Route != RouteLegalReview {
		t.Errorf("expected legal_review, got %s", outcome.Route)
	}
	if len(f.advisor.reasons) != 1 || len(f.advisor.profiles) != 0 {
		t.Fatalf("expected only the legal advisor to run, got %d legal and %d wealth calls", len(f.advisor.reasons), len(f.advisor.profiles))
	}
	if got := f.advisor.reasons[0]; len(got) != 1 || !strings.HasPrefix(got[0], "POTENTIAL STRUCTURING") {
		t.Errorf("expected structuring reason passed to legal review, got %v", got)
	}
	if !f.advisor.hadDeadline {
		t.Error("expected stage timeout on the advisory context")
	}
	if outcome.LegalOpinion != "Rejected under MAS Notice 626." {
		t.Errorf("expected legal opinion, got %q", outcome.LegalOpinion)
	}
	if outcome.WealthPlan != "" {
		t.Errorf("expected no wealth plan, got %q", outcome.WealthPlan)
	}

	want := []string{
		"[COMPLIANCE RISK]: AML Red Flags Detected",
		"- Flags: " + outcome.Report.ComplianceAnalysis.Reasons[0],
		"[LEGAL MEMO]: Rejected under MAS Notice 626.",
	}
	if strings.Join(outcome.Summary, "\n") != strings.Join(want, "\n") {
		t.Errorf("expected summary\n%v\ngot\n%v", want, outcome.Summary)
	}
}

func TestPipeline_Run_ApprovedGoesToWealthAdvisory(t *testing.T) {
	tests := []struct {
		name        string
		income      string
		wantProfile string
	}{
		{name: "low income", income: "8000", wantProfile: "Low Risk"},
		{name: "at threshold", income: "20000", wantProfile: "Low Risk"},
		{name: "high income", income: "25000", wantProfile: "High Risk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultConfig())
			f.extractor.records["jane.json"] = cleanExtraction(tt.income, "1000")

			outcome := f.pipeline.Run(context.Background(), "jane.json")

			if outcome.Decision != DecisionApprove {
				t.Errorf("expected APPROVE, got %s", outcome.Decision)
			}
			if outcome.Route != RouteWealthAdvisory {
				t.Errorf("expected wealth_advisory, got %s", outcome.Route)
			}
			if len(f.advisor.reasons) != 0 {
				t.Error("expected legal advisor not to run")
			}
			if len(f.advisor.profiles) != 1 || f.advisor.profiles[0] != tt.wantProfile {
				t.Errorf("expected profile %s, got %v", tt.wantProfile, f.advisor.profiles)
			}
			if !f.advisor.incomes[0].Equal(dec(tt.income)) {
				t.Errorf("expected income %s, got %s", tt.income, f.advisor.incomes[0])
			}
			if len(outcome.Summary) != 1 || outcome.Summary[0] != "Next steps: Multiplier account" {
				t.Errorf("expected next steps line, got %v", outcome.Summary)
			}
		})
	}
}

func TestPipeline_Run_AffordabilityRejectStillAdvises(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.extractor.records["spender.json"] = cleanExtraction("5000", "4000")

	outcome := f.pipeline.Run(context.Background(), "spender.json")

	if outcome.Decision != DecisionReject {
		t.Errorf("expected REJECT, got %s", outcome.Decision)
	}
	if outcome.Route != RouteWealthAdvisory {
		t.Errorf("expected wealth_advisory for a non-HIGH_RISK client, got %s", outcome.Route)
	}
	want := []string{
		"[FINANCIAL RISK]: Unsustainable Spending Patterns",
		"- Expense Ratio: 80.0% (Policy Limit: 60.0%)",
		"- Assessment: Applicant has insufficient Net Disposable Income (NDI).",
	}
	if strings.Join(outcome.Summary, "\n") != strings.Join(want, "\n") {
		t.Errorf("expected summary\n%v\ngot\n%v", want, outcome.Summary)
	}
}

func TestPipeline_Run_ExtractionFailure(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	outcome := f.pipeline.Run(context.Background(), "missing.pdf")

	if outcome.Decision != DecisionErrorReadingPDF {
		t.Errorf("expected ERROR_READING_PDF, got %s", outcome.Decision)
	}
	if outcome.Report != nil || outcome.Route != "" {
		t.Error("expected risk engine and router to be skipped")
	}
	if len(f.advisor.reasons)+len(f.advisor.profiles) != 0 {
		t.Error("expected no advisory calls")
	}
	if !strings.Contains(outcome.Error, "unreadable document") {
		t.Errorf("expected extraction error recorded, got %q", outcome.Error)
	}
	if len(f.archive.saved) != 1 {
		t.Errorf("expected failed run to be archived, got %d", len(f.archive.saved))
	}
}

func TestPipeline_Run_ValidationPolicy(t *testing.T) {
	tests := []struct {
		policy ValidationPolicy
		want   Decision
	}{
		{PolicyManualReview, DecisionManualReview},
		{PolicyReject, DecisionReject},
		{"", DecisionManualReview},
	}

	for _, tt := range tests {
		t.Run("policy="+string(tt.policy), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ValidationPolicy = tt.policy
			f := newFixture(t, cfg)
			ext := cleanExtraction("5000", "1000")
			ext.SourceOfWealth = "Lottery"
			f.extractor.records["odd.json"] = ext

			outcome := f.pipeline.Run(context.Background(), "odd.json")

			if outcome.Decision != tt.want {
				t.Errorf("expected %s, got %s", tt.want, outcome.Decision)
			}
			if outcome.Report != nil {
				t.Error("expected no report for invalid extraction")
			}
			if len(f.advisor.reasons)+len(f.advisor.profiles) != 0 {
				t.Error("expected no advisory calls")
			}
			if !strings.Contains(outcome.Error, "Lottery") {
				t.Errorf("expected validation problem in error, got %q", outcome.Error)
			}
			if len(outcome.Summary) != 2 || !strings.Contains(outcome.Summary[1], "Lottery") {
				t.Errorf("expected data quality summary, got %v", outcome.Summary)
			}
		})
	}
}

func TestPipeline_Run_GeneratorFailuresAreWarnings(t *testing.T) {
	t.Run("wealth", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.advisor.err = errors.New("quota exceeded")
		f.extractor.records["jane.json"] = cleanExtraction("8000", "1000")

		outcome := f.pipeline.Run(context.Background(), "jane.json")

		if outcome.Decision != DecisionApprove {
			t.Errorf("expected APPROVE, got %s", outcome.Decision)
		}
		if outcome.WealthPlan != DefaultWealthPlan {
			t.Errorf("expected fallback plan, got %q", outcome.WealthPlan)
		}
		if outcome.Summary[0] != "Next steps: Open Standard Account" {
			t.Errorf("expected fallback next steps, got %v", outcome.Summary)
		}
		if len(outcome.Warnings) != 1 || !strings.Contains(outcome.Warnings[0], "quota exceeded") {
			t.Errorf("expected warning, got %v", outcome.Warnings)
		}
	})

	t.Run("legal", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.advisor.err = errors.New("quota exceeded")
		f.extractor.records["ali.json"] = structuringExtraction()

		outcome := f.pipeline.Run(context.Background(), "ali.json")

		if outcome.Decision != DecisionReject {
			t.Errorf("expected REJECT, got %s", outcome.Decision)
		}
		for _, line := range outcome.Summary {
			if strings.HasPrefix(line, "[LEGAL MEMO]") {
				t.Errorf("expected no legal memo line, got %q", line)
			}
		}
		if len(outcome.Warnings) != 1 || !strings.HasPrefix(outcome.Warnings[0], "legal review:") {
			t.Errorf("expected legal warning, got %v", outcome.Warnings)
		}
	})
}

func TestPipeline_Run_DataQualityWarning(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ext := cleanExtraction("8000", "1000")
	ext.Transactions = []models.Transaction{{Description: "??", Defect: "missing amount"}}
	f.extractor.records["jane.json"] = ext

	outcome := f.pipeline.Run(context.Background(), "jane.json")

	if len(outcome.Warnings) != 1 || outcome.Warnings[0] != "1 transaction(s) excluded from scoring" {
		t.Errorf("expected data quality warning, got %v", outcome.Warnings)
	}
}

func TestPipeline_Run_Archive(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.extractor.records["jane.json"] = cleanExtraction("8000", "1000")

	outcome := f.pipeline.Run(context.Background(), "jane.json")

	if len(f.archive.saved) != 1 || f.archive.saved[0].ID != outcome.ID {
		t.Fatalf("expected outcome archived, got %v", f.archive.saved)
	}
	if outcome.ID == "" || outcome.CompletedAt.Before(outcome.StartedAt) {
		t.Errorf("expected id and timestamps, got %+v", outcome)
	}

	f.archive.err = errors.New("disk full")
	outcome = f.pipeline.Run(context.Background(), "jane.json")
	if outcome.Decision != DecisionApprove {
		t.Errorf("expected archive failure not to change decision, got %s", outcome.Decision)
	}
	if len(outcome.Warnings) != 1 || !strings.Contains(outcome.Warnings[0], "disk full") {
		t.Errorf("expected archive warning, got %v", outcome.Warnings)
	}
}

func TestPipeline_Run_UniqueIDs(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.extractor.records["jane.json"] = cleanExtraction("8000", "1000")

	first := f.pipeline.Run(context.Background(), "jane.json")
	second := f.pipeline.Run(context.Background(), "jane.json")

	if first.ID == second.ID {
		t.Error("expected distinct outcome ids")
	}
	if strings.Join(first.Summary, "|") != strings.Join(second.Summary, "|") {
		t.Error("expected identical verdicts for identical input")
	}
}

func TestPipeline_RunBatch_PreservesOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.QueueSize = 2
	f := newFixture(t, cfg)

	var sources []string
	for i := 0; i < 20; i++ {
		source := fmt.Sprintf("statement-%02d.json", i)
		sources = append(sources, source)
		if i%3 == 0 {
			f.extractor.records[source] = structuringExtraction()
		} else {
			f.extractor.records[source] = cleanExtraction("8000", "1000")
		}
	}
	sources = append(sources, "unreadable.pdf")
	f.extractor.delay = func(source string) time.Duration {
		return time.Duration(len(source)%5) * time.Millisecond
	}

	outcomes, err := f.pipeline.RunBatch(context.Background(), sources)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	if len(outcomes) != len(sources) {
		t.Fatalf("expected %d outcomes, got %d", len(sources), len(outcomes))
	}
	for i, outcome := range outcomes {
		if outcome.Source != sources[i] {
			t.Errorf("outcome %d: expected source %s, got %s", i, sources[i], outcome.Source)
		}
	}
	if outcomes[0].Decision != DecisionReject || outcomes[1].Decision != DecisionApprove {
		t.Errorf("expected per-source decisions, got %s and %s", outcomes[0].Decision, outcomes[1].Decision)
	}
	if outcomes[len(outcomes)-1].Decision != DecisionErrorReadingPDF {
		t.Errorf("expected unreadable source to fail extraction, got %s", outcomes[len(outcomes)-1].Decision)
	}
	if len(f.archive.saved) != len(sources) {
		t.Errorf("expected %d archived outcomes, got %d", len(sources), len(f.archive.saved))
	}
}

func TestPipeline_RunBatch_Cancelled(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.extractor.records["jane.json"] = cleanExtraction("8000", "1000")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := f.pipeline.RunBatch(ctx, []string{"jane.json", "jane.json", "jane.json"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for i, outcome := range outcomes {
		if outcome.Decision != DecisionErrorReadingPDF {
			t.Errorf("outcome %d: expected ERROR_READING_PDF, got %s", i, outcome.Decision)
		}
		if outcome.Error != context.Canceled.Error() {
			t.Errorf("outcome %d: expected context error, got %q", i, outcome.Error)
		}
	}
	if len(f.advisor.reasons)+len(f.advisor.profiles) != 0 {
		t.Error("expected no advisory calls after cancellation")
	}
}

func TestPipeline_RunBatch_PanicRecordedInOutcome(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.extractor.records["jane.json"] = cleanExtraction("8000", "1000")
	f.extractor.panicOn = "broken.json"

	outcomes, err := f.pipeline.RunBatch(context.Background(), []string{"jane.json", "broken.json"})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	if outcomes[0].Decision != DecisionApprove {
		t.Errorf("expected healthy source to be screened, got %s", outcomes[0].Decision)
	}
	broken := outcomes[1]
	if broken.Source != "broken.json" || broken.Decision != DecisionErrorReadingPDF {
		t.Errorf("expected ERROR_READING_PDF for broken.json, got %s for %s", broken.Decision, broken.Source)
	}
	if !strings.Contains(broken.Error, "panicked: corrupt page table") {
		t.Errorf("expected error to name the panic, got %q", broken.Error)
	}
}

func TestPipeline_RunBatch_Empty(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	outcomes, err := f.pipeline.RunBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(outcomes))
	}
}
