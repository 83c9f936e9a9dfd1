package domain

import (
	"context"
	"testing"

	apperrors "github.com/veritest/veritest/internal/platform/errors"
)

type fakeStore struct {
	users      map[string]User
	scenarios  map[string]TestScenario
	plans      map[string]TestPlan
	cycles     map[string]TestCycle
	executions map[string]TestExecution
	defects    map[string]Defect
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[string]User),
		scenarios:  make(map[string]TestScenario),
		plans:      make(map[string]TestPlan),
		cycles:     make(map[string]TestCycle),
		executions: make(map[string]TestExecution),
		defects:    make(map[string]Defect),
	}
}

var errNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
var errConflict = apperrors.New(apperrors.CodeRevisionConflict, "revision moved")

func (s *fakeStore) GetUser(_ context.Context, id string) (User, error) {
	u, ok := s.users[id]
	if !ok {
		return User{}, errNotFound
	}
	return u, nil
}

func (s *fakeStore) GetScenario(_ context.Context, id string) (TestScenario, error) {
	v, ok := s.scenarios[id]
	if !ok {
		return TestScenario{}, errNotFound
	}
	return v, nil
}

func (s *fakeStore) PutScenario(_ context.Context, v TestScenario) error {
	s.scenarios[v.ID] = v
	return nil
}

func (s *fakeStore) UpdateScenario(_ context.Context, v TestScenario) error {
	current, ok := s.scenarios[v.ID]
	if !ok {
		return errNotFound
	}
	if v.Revision != current.Revision+1 {
		return errConflict
	}
	s.scenarios[v.ID] = v
	return nil
}

func (s *fakeStore) GetPlan(_ context.Context, id string) (TestPlan, error) {
	v, ok := s.plans[id]
	if !ok {
		return TestPlan{}, errNotFound
	}
	return v, nil
}

func (s *fakeStore) PutPlan(_ context.Context, v TestPlan) error {
	s.plans[v.ID] = v
	return nil
}

func (s *fakeStore) UpdatePlan(_ context.Context, v TestPlan) error {
	current, ok := s.plans[v.ID]
	if !ok {
		return errNotFound
	}
	if v.Revision != current.Revision+1 {
		return errConflict
	}
	s.plans[v.ID] = v
	return nil
}

func (s *fakeStore) GetCycle(_ context.Context, id string) (TestCycle, error) {
	v, ok := s.cycles[id]
	if !ok {
		return TestCycle{}, errNotFound
	}
	return v, nil
}

func (s *fakeStore) PutCycle(_ context.Context, v TestCycle) error {
	s.cycles[v.ID] = v
	return nil
}

func (s *fakeStore) UpdateCycle(_ context.Context, v TestCycle) error {
	current, ok := s.cycles[v.ID]
	if !ok {
		return errNotFound
	}
	if v.Revision != current.Revision+1 {
		return errConflict
	}
	s.cycles[v.ID] = v
	return nil
}

func (s *fakeStore) GetExecution(_ context.Context, id string) (TestExecution, error) {
	v, ok := s.executions[id]
	if !ok {
		return TestExecution{}, errNotFound
	}
	return v, nil
}

func (s *fakeStore) PutExecution(_ context.Context, v TestExecution) error {
	s.executions[v.ID] = v
	return nil
}

func (s *fakeStore) UpdateExecution(_ context.Context, v TestExecution) error {
	current, ok := s.executions[v.ID]
	if !ok {
		return errNotFound
	}
	if v.Revision != current.Revision+1 {
		return errConflict
	}
	s.executions[v.ID] = v
	return nil
}

func (s *fakeStore) ListExecutionsByCycle(_ context.Context, cycleID string) ([]TestExecution, error) {
	var out []TestExecution
	for _, v := range s.executions {
		if v.TestCycleID == cycleID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *fakeStore) GetDefect(_ context.Context, id string) (Defect, error) {
	v, ok := s.defects[id]
	if !ok {
		return Defect{}, errNotFound
	}
	return v, nil
}

func (s *fakeStore) PutDefect(_ context.Context, v Defect) error {
	s.defects[v.ID] = v
	return nil
}

func (s *fakeStore) UpdateDefect(_ context.Context, v Defect) error {
	current, ok := s.defects[v.ID]
	if !ok {
		return errNotFound
	}
	if v.Revision != current.Revision+1 {
		return errConflict
	}
	s.defects[v.ID] = v
	return nil
}

type recordedEvent struct {
	kind       EntityKind
	transition Transition
	actorID    string
}

type fakeNotifier struct {
	events []recordedEvent
}

func (n *fakeNotifier) ScenarioTransitioned(transition Transition, _, _ TestScenario, actor User) {
	n.events = append(n.events, recordedEvent{KindScenario, transition, actor.ID})
}

func (n *fakeNotifier) PlanTransitioned(transition Transition, _, _ TestPlan, actor User) {
	n.events = append(n.events, recordedEvent{KindPlan, transition, actor.ID})
}

func (n *fakeNotifier) CycleTransitioned(transition Transition, _, _ TestCycle, actor User) {
	n.events = append(n.events, recordedEvent{KindCycle, transition, actor.ID})
}

func (n *fakeNotifier) ExecutionTransitioned(transition Transition, _, _ TestExecution, actor User) {
	n.events = append(n.events, recordedEvent{KindExecution, transition, actor.ID})
}

func (n *fakeNotifier) DefectTransitioned(transition Transition, _, _ Defect, actor User) {
	n.events = append(n.events, recordedEvent{KindDefect, transition, actor.ID})
}

func newTestService(store *fakeStore, notifier Notifier) *Service {
	return NewService(store, notifier, fixedClock(testTime), sequentialIDs("id"))
}

func TestServiceScenarioLifecycle(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	service := newTestService(store, notifier)
	ctx := context.Background()

	tester := User{ID: "u1", Role: RoleTester, Active: true}
	manager := User{ID: "mgr", Role: RoleTestManager, Active: true}

	scenario, err := service.CreateScenario(ctx, tester, CreateScenarioInput{Title: "Login"})
	if err != nil {
		t.Fatalf("CreateScenario: %v", err)
	}
	if scenario.OwnerID != "u1" {
		t.Errorf("OwnerID = %q, want actor", scenario.OwnerID)
	}

	submitted, err := service.SubmitScenarioForReview(ctx, tester, scenario.ID)
	if err != nil {
		t.Fatalf("SubmitScenarioForReview: %v", err)
	}
	if submitted.Status != ScenarioStatusUnderReview {
		t.Errorf("Status = %v, want UnderReview", submitted.Status)
	}
	if submitted.Revision != 1 {
		t.Errorf("Revision = %d, want 1", submitted.Revision)
	}

	approved, err := service.ApproveScenario(ctx, manager, scenario.ID)
	if err != nil {
		t.Fatalf("ApproveScenario: %v", err)
	}
	if approved.ReviewedByID != "mgr" {
		t.Errorf("ReviewedByID = %q, want mgr", approved.ReviewedByID)
	}

	if len(notifier.events) != 2 {
		t.Fatalf("events = %d, want 2", len(notifier.events))
	}
	if notifier.events[1].transition != TransitionApprove {
		t.Errorf("second event = %v, want approve", notifier.events[1].transition)
	}
}

func TestServiceDenyLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	service := newTestService(store, notifier)
	ctx := context.Background()

	store.scenarios["scn-1"] = TestScenario{ID: "scn-1", Status: ScenarioStatusUnderReview, OwnerID: "u1"}

	tester := User{ID: "u1", Role: RoleTester, Active: true}
	_, err := service.ApproveScenario(ctx, tester, "scn-1")
	if !apperrors.Is(err, apperrors.CodeTransitionDenied) {
		t.Fatalf("err = %v, want transition denied", err)
	}
	if store.scenarios["scn-1"].Status != ScenarioStatusUnderReview {
		t.Error("denied transition mutated stored state")
	}
	if len(notifier.events) != 0 {
		t.Errorf("events = %d, want none on deny", len(notifier.events))
	}
}

func TestServiceRevisionConflict(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := newTestService(store, &fakeNotifier{})
	ctx := context.Background()

	store.plans["pln-1"] = TestPlan{ID: "pln-1", Status: PlanStatusDraft, CreatedByID: "u1", Revision: 4}

	manager := User{ID: "mgr", Role: RoleTestManager, Active: true}
	submitted, err := service.SubmitPlan(ctx, manager, "pln-1")
	if err != nil {
		t.Fatalf("SubmitPlan: %v", err)
	}
	if submitted.Revision != 5 {
		t.Errorf("Revision = %d, want 5", submitted.Revision)
	}

	// A second writer loaded revision 4 and lost the race.
	stale := submitted
	stale.Revision = 5
	store.plans["pln-1"] = TestPlan{ID: "pln-1", Status: PlanStatusUnderReview, CreatedByID: "u1", Revision: 6}
	if err := store.UpdatePlan(ctx, stale); !apperrors.Is(err, apperrors.CodeRevisionConflict) {
		t.Fatalf("err = %v, want revision conflict", err)
	}
}

func TestServiceRecordExecutionResultRecomputesCycle(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	service := newTestService(store, notifier)
	ctx := context.Background()

	store.cycles["cyc-1"] = TestCycle{ID: "cyc-1", Status: CycleStatusInProgress, AssignedTesterIDs: []string{"u1"}}
	store.executions["exe-1"] = TestExecution{ID: "exe-1", TestCycleID: "cyc-1", AssignedTesterID: "u1", Status: ExecutionStatusInProgress}
	store.executions["exe-2"] = TestExecution{ID: "exe-2", TestCycleID: "cyc-1", AssignedTesterID: "u1", Status: ExecutionStatusNotStarted}

	tester := User{ID: "u1", Role: RoleTester, Active: true}
	result, err := service.RecordExecutionResult(ctx, tester, "exe-1", ExecutionStatusPassed, "")
	if err != nil {
		t.Fatalf("RecordExecutionResult: %v", err)
	}
	if result.Status != ExecutionStatusPassed {
		t.Errorf("Status = %v, want Passed", result.Status)
	}

	cycle := store.cycles["cyc-1"]
	if cycle.CompletionPercentage != 50 {
		t.Errorf("CompletionPercentage = %v, want 50", cycle.CompletionPercentage)
	}
	if len(notifier.events) != 1 || notifier.events[0].transition != TransitionRecordResult {
		t.Errorf("events = %v, want one recordResult", notifier.events)
	}
}

func TestServiceUpdatePlanCreatorOnly(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := newTestService(store, &fakeNotifier{})
	ctx := context.Background()

	store.plans["pln-1"] = TestPlan{ID: "pln-1", Status: PlanStatusDraft, Name: "Old", CreatedByID: "u1"}

	other := User{ID: "u2", Role: RoleTester, Active: true}
	if _, err := service.UpdatePlan(ctx, other, "pln-1", "Hijacked", ""); !apperrors.Is(err, apperrors.CodeTransitionDenied) {
		t.Fatalf("err = %v, want transition denied", err)
	}

	creator := User{ID: "u1", Role: RoleTester, Active: true}
	updated, err := service.UpdatePlan(ctx, creator, "pln-1", "Release 2.4", "")
	if err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}
	if updated.Name != "Release 2.4" {
		t.Errorf("Name = %q", updated.Name)
	}
	if updated.Revision != 1 {
		t.Errorf("Revision = %d, want 1", updated.Revision)
	}
}

func TestServiceUpdatePlanApprovedRejected(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := newTestService(store, &fakeNotifier{})
	ctx := context.Background()

	store.plans["pln-1"] = TestPlan{ID: "pln-1", Status: PlanStatusApproved, Name: "Old", CreatedByID: "u1"}

	creator := User{ID: "u1", Role: RoleTester, Active: true}
	if _, err := service.UpdatePlan(ctx, creator, "pln-1", "New", ""); !apperrors.Is(err, apperrors.CodePlanNotEditable) {
		t.Fatalf("err = %v, want plan not editable", err)
	}
	if store.plans["pln-1"].Name != "Old" {
		t.Error("rejected edit mutated stored state")
	}
}

// conflictCycleStore makes every cycle write lose its revision race.
type conflictCycleStore struct {
	*fakeStore
}

func (s *conflictCycleStore) UpdateCycle(context.Context, TestCycle) error {
	return errConflict
}

func TestServiceRecordResultSurvivesRecomputeConflict(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	service := NewService(&conflictCycleStore{store}, notifier, fixedClock(testTime), sequentialIDs("id"))
	ctx := context.Background()

	store.cycles["cyc-1"] = TestCycle{ID: "cyc-1", Status: CycleStatusInProgress, AssignedTesterIDs: []string{"u1"}}
	store.executions["exe-1"] = TestExecution{ID: "exe-1", TestCycleID: "cyc-1", AssignedTesterID: "u1", Status: ExecutionStatusInProgress}

	tester := User{ID: "u1", Role: RoleTester, Active: true}
	result, err := service.RecordExecutionResult(ctx, tester, "exe-1", ExecutionStatusPassed, "")
	if err != nil {
		t.Fatalf("RecordExecutionResult: %v", err)
	}
	if result.Status != ExecutionStatusPassed {
		t.Errorf("Status = %v, want Passed", result.Status)
	}
	if store.executions["exe-1"].Status != ExecutionStatusPassed {
		t.Error("committed result missing from store")
	}
	if len(notifier.events) != 1 || notifier.events[0].transition != TransitionRecordResult {
		t.Errorf("events = %v, want one recordResult", notifier.events)
	}
}

func TestServiceRecomputeSkipsStoppedCycle(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := newTestService(store, &fakeNotifier{})
	ctx := context.Background()

	store.cycles["cyc-1"] = TestCycle{ID: "cyc-1", Status: CycleStatusCompleted, CompletionPercentage: 50, Revision: 3}
	store.executions["exe-1"] = TestExecution{ID: "exe-1", TestCycleID: "cyc-1", AssignedTesterID: "u1", Status: ExecutionStatusInProgress}

	tester := User{ID: "u1", Role: RoleTester, Active: true}
	if _, err := service.RecordExecutionResult(ctx, tester, "exe-1", ExecutionStatusPassed, ""); err != nil {
		t.Fatalf("RecordExecutionResult: %v", err)
	}

	cycle := store.cycles["cyc-1"]
	if cycle.Revision != 3 {
		t.Errorf("Revision = %d, want 3 (no write for a stopped cycle)", cycle.Revision)
	}
	if cycle.CompletionPercentage != 50 {
		t.Errorf("CompletionPercentage = %v, want frozen 50", cycle.CompletionPercentage)
	}
}

func TestServiceRetestExecutionKeepsHistory(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := newTestService(store, &fakeNotifier{})
	ctx := context.Background()

	store.cycles["cyc-1"] = TestCycle{ID: "cyc-1", Status: CycleStatusInProgress}
	store.executions["exe-1"] = TestExecution{ID: "exe-1", TestCycleID: "cyc-1", TestScenarioID: "scn-1", AssignedTesterID: "u1", Status: ExecutionStatusFailed}

	tester := User{ID: "u1", Role: RoleTester, Active: true}
	attempt, err := service.RetestExecution(ctx, tester, "exe-1")
	if err != nil {
		t.Fatalf("RetestExecution: %v", err)
	}
	if attempt.ID == "exe-1" {
		t.Error("retest reused the original ID")
	}
	if store.executions["exe-1"].Status != ExecutionStatusFailed {
		t.Error("original attempt was mutated")
	}
	if store.executions[attempt.ID].RetestCount != 1 {
		t.Errorf("RetestCount = %d, want 1", store.executions[attempt.ID].RetestCount)
	}
}

func TestServiceDefectLifecycle(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	service := newTestService(store, notifier)
	ctx := context.Background()

	reporter := User{ID: "rep", Role: RoleTester, Active: true}
	troubleshooter := User{ID: "ts", Role: RoleTroubleshooter, Active: true}
	manager := User{ID: "mgr", Role: RoleTestManager, Active: true}
	store.users["ts"] = troubleshooter

	defect, err := service.CreateDefect(ctx, reporter, CreateDefectInput{Title: "Crash on save"})
	if err != nil {
		t.Fatalf("CreateDefect: %v", err)
	}
	if defect.ReportedByID != "rep" {
		t.Errorf("ReportedByID = %q, want actor", defect.ReportedByID)
	}

	assigned, err := service.AssignDefect(ctx, manager, defect.ID, "ts", "Backend")
	if err != nil {
		t.Fatalf("AssignDefect: %v", err)
	}
	if assigned.Status != DefectStatusInProgress {
		t.Errorf("Status = %v, want InProgress", assigned.Status)
	}

	resolved, err := service.ResolveDefect(ctx, troubleshooter, defect.ID, "Fixed null deref", true)
	if err != nil {
		t.Fatalf("ResolveDefect: %v", err)
	}
	if resolved.Status != DefectStatusResolved {
		t.Errorf("Status = %v, want Resolved", resolved.Status)
	}

	pending, err := service.StartDefectRetest(ctx, reporter, defect.ID)
	if err != nil {
		t.Fatalf("StartDefectRetest: %v", err)
	}
	if pending.Status != DefectStatusPendingConfirmation {
		t.Errorf("Status = %v, want PendingConfirmation", pending.Status)
	}

	closed, err := service.RecordDefectRetest(ctx, reporter, defect.ID, RetestPassed)
	if err != nil {
		t.Fatalf("RecordDefectRetest: %v", err)
	}
	if closed.Status != DefectStatusConfirmedClosed {
		t.Errorf("Status = %v, want ConfirmedClosed", closed.Status)
	}

	wantTransitions := []Transition{TransitionAssign, TransitionResolve, TransitionStartRetest, TransitionConfirmRetest}
	if len(notifier.events) != len(wantTransitions) {
		t.Fatalf("events = %d, want %d", len(notifier.events), len(wantTransitions))
	}
	for i, want := range wantTransitions {
		if notifier.events[i].transition != want {
			t.Errorf("event %d = %v, want %v", i, notifier.events[i].transition, want)
		}
	}
}

func TestServiceAssignDefectUnknownAssignee(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := newTestService(store, &fakeNotifier{})
	ctx := context.Background()

	store.defects["dft-1"] = Defect{ID: "dft-1", Status: DefectStatusOpen, ReportedByID: "rep"}
	manager := User{ID: "mgr", Role: RoleTestManager, Active: true}

	if _, err := service.AssignDefect(ctx, manager, "dft-1", "ghost", ""); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestServiceCreateCycleManagerOnly(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := newTestService(store, &fakeNotifier{})
	ctx := context.Background()

	store.plans["pln-1"] = TestPlan{ID: "pln-1", Status: PlanStatusApproved}

	tester := User{ID: "u1", Role: RoleTester, Active: true}
	if _, err := service.CreateCycle(ctx, tester, CreateCycleInput{Name: "Smoke", TestPlanID: "pln-1"}); !apperrors.Is(err, apperrors.CodeTransitionDenied) {
		t.Fatalf("err = %v, want transition denied", err)
	}

	manager := User{ID: "mgr", Role: RoleTestManager, Active: true}
	cycle, err := service.CreateCycle(ctx, manager, CreateCycleInput{Name: "Smoke", TestPlanID: "pln-1"})
	if err != nil {
		t.Fatalf("CreateCycle: %v", err)
	}
	if cycle.CreatedByID != "mgr" {
		t.Errorf("CreatedByID = %q, want mgr", cycle.CreatedByID)
	}
}
