package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	apperrors "github.com/veritest/veritest/internal/platform/errors"
	"github.com/veritest/veritest/internal/services/tracker/domain"
)

var testTime = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open("   "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestUserRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	user := domain.User{ID: "u1", Name: "Dana", Role: domain.RoleTester, Department: "QA", Active: true}
	if err := store.PutUser(ctx, user); err != nil {
		t.Fatalf("PutUser: %v", err)
	}

	got, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !reflect.DeepEqual(got, user) {
		t.Errorf("got %+v, want %+v", got, user)
	}

	user.Active = false
	user.Role = domain.RoleTestManager
	if err := store.PutUser(ctx, user); err != nil {
		t.Fatalf("PutUser upsert: %v", err)
	}
	got, err = store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser after upsert: %v", err)
	}
	if got.Active || got.Role != domain.RoleTestManager {
		t.Errorf("upsert not applied: %+v", got)
	}

	if _, err := store.GetUser(ctx, "missing"); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Errorf("missing user: err = %v, want not found", err)
	}
}

func TestScenarioRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	endDated := testTime.Add(time.Hour)
	scenario := domain.TestScenario{
		ID:           "scn-1",
		Title:        "Login",
		Description:  "Login with expired password",
		Status:       domain.ScenarioStatusActive,
		OwnerID:      "u1",
		ReviewedByID: "mgr",
		Version:      3,
		EndDatedAt:   &endDated,
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
		Revision:     2,
	}
	if err := store.PutScenario(ctx, scenario); err != nil {
		t.Fatalf("PutScenario: %v", err)
	}

	got, err := store.GetScenario(ctx, "scn-1")
	if err != nil {
		t.Fatalf("GetScenario: %v", err)
	}
	if !reflect.DeepEqual(got, scenario) {
		t.Errorf("got %+v, want %+v", got, scenario)
	}
}

func TestUpdateScenarioRevisionConflict(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	scenario := domain.TestScenario{ID: "scn-1", Title: "Login", Status: domain.ScenarioStatusDraft, Version: 1, CreatedAt: testTime, UpdatedAt: testTime}
	if err := store.PutScenario(ctx, scenario); err != nil {
		t.Fatalf("PutScenario: %v", err)
	}

	updated := scenario
	updated.Status = domain.ScenarioStatusUnderReview
	updated.Revision = 1
	if err := store.UpdateScenario(ctx, updated); err != nil {
		t.Fatalf("UpdateScenario: %v", err)
	}

	// A writer still holding revision 0 loses.
	stale := scenario
	stale.Status = domain.ScenarioStatusUnderReview
	stale.Revision = 1
	if err := store.UpdateScenario(ctx, stale); !apperrors.Is(err, apperrors.CodeRevisionConflict) {
		t.Fatalf("stale write: err = %v, want revision conflict", err)
	}

	missing := updated
	missing.ID = "ghost"
	if err := store.UpdateScenario(ctx, missing); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Fatalf("missing row: err = %v, want not found", err)
	}
}

func TestCycleRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	plan := domain.TestPlan{ID: "pln-1", Name: "Release", Status: domain.PlanStatusApproved, CreatedAt: testTime, UpdatedAt: testTime}
	if err := store.PutPlan(ctx, plan); err != nil {
		t.Fatalf("PutPlan: %v", err)
	}

	started := testTime.Add(time.Minute)
	cycle := domain.TestCycle{
		ID:                   "cyc-1",
		Name:                 "Sprint 12",
		TestPlanID:           "pln-1",
		Status:               domain.CycleStatusInProgress,
		CreatedByID:          "mgr",
		AssignedTesterIDs:    []string{"u1", "u2"},
		CompletionPercentage: 37.5,
		StartedAt:            &started,
		CreatedAt:            testTime,
		UpdatedAt:            testTime,
	}
	if err := store.PutCycle(ctx, cycle); err != nil {
		t.Fatalf("PutCycle: %v", err)
	}

	got, err := store.GetCycle(ctx, "cyc-1")
	if err != nil {
		t.Fatalf("GetCycle: %v", err)
	}
	if !reflect.DeepEqual(got, cycle) {
		t.Errorf("got %+v, want %+v", got, cycle)
	}
}

func TestPutCycleUnknownPlan(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	cycle := domain.TestCycle{ID: "cyc-1", Name: "Sprint", TestPlanID: "ghost", Status: domain.CycleStatusPlanning, CreatedAt: testTime, UpdatedAt: testTime}
	if err := store.PutCycle(ctx, cycle); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want not found for missing plan", err)
	}
}

func TestListExecutionsByCycle(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	plan := domain.TestPlan{ID: "pln-1", Name: "Release", Status: domain.PlanStatusApproved, CreatedAt: testTime, UpdatedAt: testTime}
	if err := store.PutPlan(ctx, plan); err != nil {
		t.Fatalf("PutPlan: %v", err)
	}
	for _, cycleID := range []string{"cyc-1", "cyc-2"} {
		cycle := domain.TestCycle{ID: cycleID, Name: cycleID, TestPlanID: "pln-1", Status: domain.CycleStatusInProgress, CreatedAt: testTime, UpdatedAt: testTime}
		if err := store.PutCycle(ctx, cycle); err != nil {
			t.Fatalf("PutCycle %s: %v", cycleID, err)
		}
	}
	scenario := domain.TestScenario{ID: "scn-1", Title: "Login", Status: domain.ScenarioStatusActive, Version: 1, CreatedAt: testTime, UpdatedAt: testTime}
	if err := store.PutScenario(ctx, scenario); err != nil {
		t.Fatalf("PutScenario: %v", err)
	}

	executions := []domain.TestExecution{
		{ID: "exe-1", TestCycleID: "cyc-1", TestScenarioID: "scn-1", AssignedTesterID: "u1", Status: domain.ExecutionStatusPassed, CreatedAt: testTime, UpdatedAt: testTime},
		{ID: "exe-2", TestCycleID: "cyc-1", TestScenarioID: "scn-1", AssignedTesterID: "u1", Status: domain.ExecutionStatusNotStarted, CreatedAt: testTime.Add(time.Second), UpdatedAt: testTime.Add(time.Second)},
		{ID: "exe-3", TestCycleID: "cyc-2", TestScenarioID: "scn-1", AssignedTesterID: "u2", Status: domain.ExecutionStatusNotStarted, CreatedAt: testTime, UpdatedAt: testTime},
	}
	for _, execution := range executions {
		if err := store.PutExecution(ctx, execution); err != nil {
			t.Fatalf("PutExecution %s: %v", execution.ID, err)
		}
	}

	got, err := store.ListExecutionsByCycle(ctx, "cyc-1")
	if err != nil {
		t.Fatalf("ListExecutionsByCycle: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "exe-1" || got[1].ID != "exe-2" {
		t.Errorf("order = %s, %s, want exe-1, exe-2", got[0].ID, got[1].ID)
	}
}

func TestDefectRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	assigned := testTime.Add(time.Minute)
	resolved := testTime.Add(2 * time.Minute)
	defect := domain.Defect{
		ID:              "dft-1",
		Title:           "Crash on save",
		Description:     "NPE in handler",
		Severity:        domain.DefectSeverityCritical,
		Category:        "Backend",
		Status:          domain.DefectStatusResolved,
		ReportedByID:    "rep",
		AssignedToID:    "ts",
		AssignedGroup:   "Platform",
		ResolutionNotes: "Fixed null deref",
		RetestRequired:  true,
		RetestResult:    domain.RetestNotRetested,
		AssignedDate:    &assigned,
		ResolvedDate:    &resolved,
		CreatedAt:       testTime,
		UpdatedAt:       testTime,
		Revision:        3,
	}
	if err := store.PutDefect(ctx, defect); err != nil {
		t.Fatalf("PutDefect: %v", err)
	}

	got, err := store.GetDefect(ctx, "dft-1")
	if err != nil {
		t.Fatalf("GetDefect: %v", err)
	}
	if !reflect.DeepEqual(got, defect) {
		t.Errorf("got %+v, want %+v", got, defect)
	}

	got.Status = domain.DefectStatusPendingConfirmation
	got.Revision = 4
	if err := store.UpdateDefect(ctx, got); err != nil {
		t.Fatalf("UpdateDefect: %v", err)
	}
	reloaded, err := store.GetDefect(ctx, "dft-1")
	if err != nil {
		t.Fatalf("GetDefect after update: %v", err)
	}
	if reloaded.Status != domain.DefectStatusPendingConfirmation || reloaded.Revision != 4 {
		t.Errorf("update not applied: %+v", reloaded)
	}
}

func TestPutScenarioDuplicateID(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	scenario := domain.TestScenario{ID: "scn-1", Title: "Login", Status: domain.ScenarioStatusDraft, Version: 1, CreatedAt: testTime, UpdatedAt: testTime}
	if err := store.PutScenario(ctx, scenario); err != nil {
		t.Fatalf("PutScenario: %v", err)
	}
	if err := store.PutScenario(ctx, scenario); !apperrors.Is(err, apperrors.CodeRevisionConflict) {
		t.Fatalf("duplicate insert: err = %v, want conflict", err)
	}
}
