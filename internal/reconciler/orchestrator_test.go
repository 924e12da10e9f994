package reconciler

import (
	"context"
	"path/filepath"
	"testing"

	"rolling-pnl-reconciler/internal/classifier"
	"rolling-pnl-reconciler/internal/models"
)

func TestService_ProgressCallbacks(t *testing.T) {
	dir := createTestFiles(t)
	service := newTestService(t, nil)

	var updates []Progress
	service.AddProgressCallback(func(p *Progress) {
		updates = append(updates, *p)
	})

	ops := newTestProject(dir, "Ops", "Ops")
	sales := newTestProject(dir, "Sales", "Sales")
	result, err := service.Run(context.Background(), &Request{
		Projects: []*models.Project{ops, sales},
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("Reconciliation failed: %v", err)
	}

	if len(updates) != 2*stepsPerProject {
		t.Fatalf("Expected %d progress updates, got %d", 2*stepsPerProject, len(updates))
	}
	for i, u := range updates {
		if u.CompletedSteps != i+1 {
			t.Errorf("Update %d: expected %d completed steps, got %d", i, i+1, u.CompletedSteps)
		}
		if u.RunID != result.RunID {
			t.Errorf("Update %d: expected run ID %s, got %s", i, result.RunID, u.RunID)
		}
	}
	if updates[0].Project != "Ops" || updates[len(updates)-1].Project != "Sales" {
		t.Errorf("Expected progress to move from Ops to Sales, got %s and %s",
			updates[0].Project, updates[len(updates)-1].Project)
	}
	last := updates[len(updates)-1]
	if last.PercentComplete != 100 || last.EstimatedRemaining != 0 {
		t.Errorf("Expected a finished run, got %.1f%% with %v remaining", last.PercentComplete, last.EstimatedRemaining)
	}
}

func TestService_ProgressSkipsFailedProjectSteps(t *testing.T) {
	dir := createTestFiles(t)
	config := DefaultConfig()
	config.ContinueOnError = true
	service := newTestService(t, config)

	var last Progress
	count := 0
	service.AddProgressCallback(func(p *Progress) {
		last = *p
		count++
	})

	broken := newTestProject(dir, "Broken", "Nope")
	sales := newTestProject(dir, "Sales", "Sales")
	_, _ = service.Run(context.Background(), &Request{
		Projects: []*models.Project{broken, sales},
		DryRun:   true,
	})

	if count != 1+stepsPerProject {
		t.Errorf("Expected %d updates, got %d", 1+stepsPerProject, count)
	}
	if last.CompletedSteps != last.TotalSteps {
		t.Errorf("Expected all %d steps completed, got %d", last.TotalSteps, last.CompletedSteps)
	}
}

func TestService_CancelledContext(t *testing.T) {
	dir := createTestFiles(t)
	service := newTestService(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := service.Run(ctx, &Request{Projects: []*models.Project{newTestProject(dir, "Ops", "Ops")}})
	if err == nil {
		t.Fatal("Expected an error for a cancelled context")
	}
	if len(result.Projects) != 0 {
		t.Errorf("Expected no projects processed, got %d", len(result.Projects))
	}
}

func TestService_Inspect(t *testing.T) {
	dir := createTestFiles(t)
	service := newTestService(t, nil)

	ins, err := service.Inspect(filepath.Join(dir, "source.xlsx"), "Ops", "A1:A60")
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}

	if len(ins.Sheets) != 3 {
		t.Errorf("Expected 3 sheets, got %v", ins.Sheets)
	}
	if ins.TargetMonth == nil || ins.TargetMonth.HeaderLabel != "Jun 2025 Actual" {
		t.Fatalf("Expected Jun 2025 Actual, got %v", ins.TargetMonth)
	}

	tests := []struct {
		label  string
		cell   string
		kind   classifier.Kind
		amount string
	}{
		{"Operating Expenses", "A1", classifier.KindHeading, ""},
		{"7350 Domain / Website", "A40", classifier.KindAccount, "1234.56"},
	}
	if len(ins.Labels) != len(tests) {
		t.Fatalf("Expected %d labels, got %+v", len(tests), ins.Labels)
	}
	for i, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := ins.Labels[i]
			if got.Label != tt.label || got.Cell != tt.cell || got.Kind != tt.kind {
				t.Errorf("Expected %s at %s (%s), got %+v", tt.label, tt.cell, tt.kind, got)
			}
			switch {
			case tt.amount == "" && got.Amount != nil:
				t.Errorf("Expected no amount, got %s", got.Amount)
			case tt.amount != "" && (got.Amount == nil || got.Amount.String() != tt.amount):
				t.Errorf("Expected amount %s, got %v", tt.amount, got.Amount)
			}
		})
	}
}

func TestService_InspectUnresolvedMonth(t *testing.T) {
	dir := createTestFiles(t)
	service := newTestService(t, nil)

	ins, err := service.Inspect(filepath.Join(dir, "source.xlsx"), "Blank", "A1:A20")
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if ins.TargetMonth != nil || ins.ResolveError == "" {
		t.Errorf("Expected an unresolved month, got %v", ins.TargetMonth)
	}
	if len(ins.Labels) != 1 || ins.Labels[0].Amount != nil {
		t.Errorf("Expected one label without an amount, got %+v", ins.Labels)
	}
}

func TestService_GenerateMappings(t *testing.T) {
	dir := createTestFiles(t)
	service := newTestService(t, nil)
	p := newTestProject(dir, "Sales", "Sales")

	added, err := service.GenerateMappings(nil, p)
	if err != nil {
		t.Fatalf("GenerateMappings failed: %v", err)
	}
	if len(added) != 1 || added[0] != "4000 Rent" {
		t.Errorf("Expected [4000 Rent], got %v", added)
	}
	if !p.Workflow.MappingsGenerated {
		t.Error("Expected the project to record generated mappings")
	}

	added, err = service.GenerateMappings(nil, p)
	if err != nil {
		t.Fatalf("Second GenerateMappings failed: %v", err)
	}
	if len(added) != 0 {
		t.Errorf("Expected nothing new on a second pass, got %v", added)
	}
}
