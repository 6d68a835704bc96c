package advisory

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestStaticAdvisor_Consult(t *testing.T) {
	advisor := NewStaticAdvisor()

	memo, err := advisor.Consult(context.Background(), []string{"High Risk Entity: Luno", "POTENTIAL STRUCTURING"})
	if err != nil {
		t.Fatalf("Consult failed: %v", err)
	}
	if !strings.Contains(memo, "High Risk Entity: Luno; POTENTIAL STRUCTURING") {
		t.Errorf("expected reasons in memo, got %q", memo)
	}

	again, _ := advisor.Consult(context.Background(), []string{"High Risk Entity: Luno", "POTENTIAL STRUCTURING"})
	if again != memo {
		t.Error("expected identical memo for identical input")
	}
}

func TestStaticAdvisor_Consult_NoReasons(t *testing.T) {
	memo, err := NewStaticAdvisor().Consult(context.Background(), nil)
	if err != nil {
		t.Fatalf("Consult failed: %v", err)
	}
	if !strings.Contains(memo, "affordability") {
		t.Errorf("expected affordability memo, got %q", memo)
	}
}

func TestStaticAdvisor_Recommend(t *testing.T) {
	advisor := NewStaticAdvisor()
	income := decimal.NewFromInt(25000)

	high, err := advisor.Recommend(context.Background(), income, ProfileHighRisk)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	low, err := advisor.Recommend(context.Background(), income, ProfileLowRisk)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if high == low {
		t.Error("expected different plans per profile")
	}
	if !strings.Contains(high, "$25000.00") {
		t.Errorf("expected income in plan, got %q", high)
	}
}

func TestStaticAdvisor_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewStaticAdvisor().Recommend(ctx, decimal.Zero, ProfileLowRisk); err == nil {
		t.Error("expected error for cancelled context")
	}
}
