package domain

import (
	"context"
	"fmt"
	"log"
	"time"

	apperrors "github.com/veritest/veritest/internal/platform/errors"
	"github.com/veritest/veritest/internal/platform/id"
)

// Store persists lifecycle entities. Update methods must reject writes
// whose revision does not immediately follow the stored one, so racing
// writers surface a conflict instead of silently overwriting each other.
type Store interface {
	GetUser(ctx context.Context, userID string) (User, error)

	GetScenario(ctx context.Context, scenarioID string) (TestScenario, error)
	PutScenario(ctx context.Context, scenario TestScenario) error
	UpdateScenario(ctx context.Context, scenario TestScenario) error

	GetPlan(ctx context.Context, planID string) (TestPlan, error)
	PutPlan(ctx context.Context, plan TestPlan) error
	UpdatePlan(ctx context.Context, plan TestPlan) error

	GetCycle(ctx context.Context, cycleID string) (TestCycle, error)
	PutCycle(ctx context.Context, cycle TestCycle) error
	UpdateCycle(ctx context.Context, cycle TestCycle) error

	GetExecution(ctx context.Context, executionID string) (TestExecution, error)
	PutExecution(ctx context.Context, execution TestExecution) error
	UpdateExecution(ctx context.Context, execution TestExecution) error
	ListExecutionsByCycle(ctx context.Context, cycleID string) ([]TestExecution, error)

	GetDefect(ctx context.Context, defectID string) (Defect, error)
	PutDefect(ctx context.Context, defect Defect) error
	UpdateDefect(ctx context.Context, defect Defect) error
}

// Notifier receives committed transitions for fan-out. Implementations
// must tolerate unknown recipients; delivery is fire and forget.
type Notifier interface {
	ScenarioTransitioned(transition Transition, before, after TestScenario, actor User)
	PlanTransitioned(transition Transition, before, after TestPlan, actor User)
	CycleTransitioned(transition Transition, before, after TestCycle, actor User)
	ExecutionTransitioned(transition Transition, before, after TestExecution, actor User)
	DefectTransitioned(transition Transition, before, after Defect, actor User)
}

// Service orchestrates lifecycle operations: load, authorize, apply the
// transition, persist with a revision check, then notify. Notifications
// are dispatched only after the store write commits.
type Service struct {
	store    Store
	notifier Notifier
	clock    func() time.Time
	newID    func() (string, error)
}

// NewService creates a service. A nil notifier disables dispatch; nil
// clock and idGenerator fall back to real time and random IDs.
func NewService(store Store, notifier Notifier, clock func() time.Time, idGenerator func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return &Service{store: store, notifier: notifier, clock: clock, newID: idGenerator}
}

// cycleRecomputeAttempts bounds retries when the derived completion
// update races another writer.
const cycleRecomputeAttempts = 3

// --- Scenarios ---

// CreateScenario stores a new draft scenario owned by the actor unless
// an explicit owner is given.
func (s *Service) CreateScenario(ctx context.Context, actor User, input CreateScenarioInput) (TestScenario, error) {
	if err := Authorize(actor, KindScenario, TransitionCreate, ""); err != nil {
		return TestScenario{}, err
	}
	if input.OwnerID == "" {
		input.OwnerID = actor.ID
	}
	scenario, err := CreateScenario(input, s.clock, s.newID)
	if err != nil {
		return TestScenario{}, err
	}
	if err := s.store.PutScenario(ctx, scenario); err != nil {
		return TestScenario{}, fmt.Errorf("store scenario: %w", err)
	}
	return scenario, nil
}

// GetScenario returns one scenario by ID.
func (s *Service) GetScenario(ctx context.Context, scenarioID string) (TestScenario, error) {
	return s.store.GetScenario(ctx, scenarioID)
}

// SubmitScenarioForReview moves a draft scenario into review.
func (s *Service) SubmitScenarioForReview(ctx context.Context, actor User, scenarioID string) (TestScenario, error) {
	return s.transitionScenario(ctx, actor, scenarioID, TransitionSubmitForReview)
}

// ApproveScenario activates a scenario under review and records the
// reviewer.
func (s *Service) ApproveScenario(ctx context.Context, actor User, scenarioID string) (TestScenario, error) {
	return s.transitionScenario(ctx, actor, scenarioID, TransitionApprove)
}

// EndDateScenario retires a scenario.
func (s *Service) EndDateScenario(ctx context.Context, actor User, scenarioID string) (TestScenario, error) {
	return s.transitionScenario(ctx, actor, scenarioID, TransitionEndDate)
}

// SetScenarioStatus resolves the transition implied by the requested
// target status and applies it.
func (s *Service) SetScenarioStatus(ctx context.Context, actor User, scenarioID string, target ScenarioStatus) (TestScenario, error) {
	scenario, err := s.store.GetScenario(ctx, scenarioID)
	if err != nil {
		return TestScenario{}, err
	}
	transition, ok := ScenarioTransitionForTarget(scenario.Status, target)
	if !ok {
		return TestScenario{}, invalidScenarioTransition(scenario.Status, TransitionEdit, target)
	}
	return s.transitionScenario(ctx, actor, scenarioID, transition)
}

func (s *Service) transitionScenario(ctx context.Context, actor User, scenarioID string, transition Transition) (TestScenario, error) {
	before, err := s.store.GetScenario(ctx, scenarioID)
	if err != nil {
		return TestScenario{}, err
	}
	if err := Authorize(actor, KindScenario, transition, before.OwnerID); err != nil {
		return TestScenario{}, err
	}
	after, err := TransitionScenario(before, transition, actor.ID, s.clock)
	if err != nil {
		return TestScenario{}, err
	}
	after.Revision = before.Revision + 1
	if err := s.store.UpdateScenario(ctx, after); err != nil {
		return TestScenario{}, err
	}
	if s.notifier != nil {
		s.notifier.ScenarioTransitioned(transition, before, after, actor)
	}
	return after, nil
}

// UpdateScenario applies a content edit, bumping the scenario version.
func (s *Service) UpdateScenario(ctx context.Context, actor User, scenarioID, title, description string) (TestScenario, error) {
	before, err := s.store.GetScenario(ctx, scenarioID)
	if err != nil {
		return TestScenario{}, err
	}
	if err := Authorize(actor, KindScenario, TransitionEdit, before.OwnerID); err != nil {
		return TestScenario{}, err
	}
	after, err := EditScenario(before, title, description, s.clock)
	if err != nil {
		return TestScenario{}, err
	}
	after.Revision = before.Revision + 1
	if err := s.store.UpdateScenario(ctx, after); err != nil {
		return TestScenario{}, err
	}
	return after, nil
}

// --- Plans ---

// CreatePlan stores a new draft plan created by the actor unless an
// explicit creator is given.
func (s *Service) CreatePlan(ctx context.Context, actor User, input CreatePlanInput) (TestPlan, error) {
	if err := Authorize(actor, KindPlan, TransitionCreate, ""); err != nil {
		return TestPlan{}, err
	}
	if input.CreatedByID == "" {
		input.CreatedByID = actor.ID
	}
	plan, err := CreatePlan(input, s.clock, s.newID)
	if err != nil {
		return TestPlan{}, err
	}
	if err := s.store.PutPlan(ctx, plan); err != nil {
		return TestPlan{}, fmt.Errorf("store plan: %w", err)
	}
	return plan, nil
}

// GetPlan returns one plan by ID.
func (s *Service) GetPlan(ctx context.Context, planID string) (TestPlan, error) {
	return s.store.GetPlan(ctx, planID)
}

// SubmitPlan moves a draft plan into review.
func (s *Service) SubmitPlan(ctx context.Context, actor User, planID string) (TestPlan, error) {
	return s.transitionPlan(ctx, actor, planID, TransitionSubmit)
}

// ApprovePlan approves a plan under review.
func (s *Service) ApprovePlan(ctx context.Context, actor User, planID string) (TestPlan, error) {
	return s.transitionPlan(ctx, actor, planID, TransitionApprove)
}

// RejectPlan sends a plan under review back to draft.
func (s *Service) RejectPlan(ctx context.Context, actor User, planID string) (TestPlan, error) {
	return s.transitionPlan(ctx, actor, planID, TransitionReject)
}

// StartPlan moves an approved plan into execution.
func (s *Service) StartPlan(ctx context.Context, actor User, planID string) (TestPlan, error) {
	return s.transitionPlan(ctx, actor, planID, TransitionStart)
}

// CompletePlan finishes an in-progress plan.
func (s *Service) CompletePlan(ctx context.Context, actor User, planID string) (TestPlan, error) {
	return s.transitionPlan(ctx, actor, planID, TransitionComplete)
}

// CancelPlan abandons an in-progress plan.
func (s *Service) CancelPlan(ctx context.Context, actor User, planID string) (TestPlan, error) {
	return s.transitionPlan(ctx, actor, planID, TransitionCancel)
}

// UpdatePlan applies a content edit while the plan is still editable.
func (s *Service) UpdatePlan(ctx context.Context, actor User, planID, name, description string) (TestPlan, error) {
	before, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return TestPlan{}, err
	}
	if err := Authorize(actor, KindPlan, TransitionEdit, before.CreatedByID); err != nil {
		return TestPlan{}, err
	}
	after, err := EditPlan(before, name, description, s.clock)
	if err != nil {
		return TestPlan{}, err
	}
	after.Revision = before.Revision + 1
	if err := s.store.UpdatePlan(ctx, after); err != nil {
		return TestPlan{}, err
	}
	return after, nil
}

func (s *Service) transitionPlan(ctx context.Context, actor User, planID string, transition Transition) (TestPlan, error) {
	before, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return TestPlan{}, err
	}
	if err := Authorize(actor, KindPlan, transition, before.CreatedByID); err != nil {
		return TestPlan{}, err
	}
	after, err := TransitionPlan(before, transition, actor.ID, s.clock)
	if err != nil {
		return TestPlan{}, err
	}
	after.Revision = before.Revision + 1
	if err := s.store.UpdatePlan(ctx, after); err != nil {
		return TestPlan{}, err
	}
	if s.notifier != nil {
		s.notifier.PlanTransitioned(transition, before, after, actor)
	}
	return after, nil
}

// --- Cycles ---

// CreateCycle stores a new cycle in planning. Cycle creation is manager
// only.
func (s *Service) CreateCycle(ctx context.Context, actor User, input CreateCycleInput) (TestCycle, error) {
	if err := Authorize(actor, KindCycle, TransitionCreate, ""); err != nil {
		return TestCycle{}, err
	}
	if input.CreatedByID == "" {
		input.CreatedByID = actor.ID
	}
	cycle, err := CreateCycle(input, s.clock, s.newID)
	if err != nil {
		return TestCycle{}, err
	}
	if _, err := s.store.GetPlan(ctx, cycle.TestPlanID); err != nil {
		return TestCycle{}, err
	}
	if err := s.store.PutCycle(ctx, cycle); err != nil {
		return TestCycle{}, fmt.Errorf("store cycle: %w", err)
	}
	return cycle, nil
}

// GetCycle returns one cycle by ID.
func (s *Service) GetCycle(ctx context.Context, cycleID string) (TestCycle, error) {
	return s.store.GetCycle(ctx, cycleID)
}

// AssignTesters replaces the cycle's tester set.
func (s *Service) AssignTesters(ctx context.Context, actor User, cycleID string, testerIDs []string) (TestCycle, error) {
	before, err := s.store.GetCycle(ctx, cycleID)
	if err != nil {
		return TestCycle{}, err
	}
	if err := Authorize(actor, KindCycle, TransitionEdit, before.CreatedByID); err != nil {
		return TestCycle{}, err
	}
	after, err := AssignCycleTesters(before, testerIDs, s.clock)
	if err != nil {
		return TestCycle{}, err
	}
	after.Revision = before.Revision + 1
	if err := s.store.UpdateCycle(ctx, after); err != nil {
		return TestCycle{}, err
	}
	return after, nil
}

// StartCycle moves a cycle into execution. A cycle with no assigned
// testers never starts.
func (s *Service) StartCycle(ctx context.Context, actor User, cycleID string) (TestCycle, error) {
	return s.transitionCycle(ctx, actor, cycleID, TransitionStart, func(cycle TestCycle) (TestCycle, error) {
		return StartCycle(cycle, s.clock)
	})
}

// PauseCycle suspends an in-progress cycle.
func (s *Service) PauseCycle(ctx context.Context, actor User, cycleID string) (TestCycle, error) {
	return s.transitionCycle(ctx, actor, cycleID, TransitionPause, func(cycle TestCycle) (TestCycle, error) {
		return PauseCycle(cycle, s.clock)
	})
}

// ResumeCycle returns a paused cycle to execution.
func (s *Service) ResumeCycle(ctx context.Context, actor User, cycleID string) (TestCycle, error) {
	return s.transitionCycle(ctx, actor, cycleID, TransitionResume, func(cycle TestCycle) (TestCycle, error) {
		return ResumeCycle(cycle, s.clock)
	})
}

// StopCycle ends a cycle as Completed or Cancelled, freezing its
// completion percentage.
func (s *Service) StopCycle(ctx context.Context, actor User, cycleID string, outcome CycleStatus) (TestCycle, error) {
	return s.transitionCycle(ctx, actor, cycleID, TransitionStop, func(cycle TestCycle) (TestCycle, error) {
		return StopCycle(cycle, outcome, s.clock)
	})
}

func (s *Service) transitionCycle(ctx context.Context, actor User, cycleID string, transition Transition, apply func(TestCycle) (TestCycle, error)) (TestCycle, error) {
	before, err := s.store.GetCycle(ctx, cycleID)
	if err != nil {
		return TestCycle{}, err
	}
	if err := Authorize(actor, KindCycle, transition, before.CreatedByID); err != nil {
		return TestCycle{}, err
	}
	after, err := apply(before)
	if err != nil {
		return TestCycle{}, err
	}
	after.Revision = before.Revision + 1
	if err := s.store.UpdateCycle(ctx, after); err != nil {
		return TestCycle{}, err
	}
	if s.notifier != nil {
		s.notifier.CycleTransitioned(transition, before, after, actor)
	}
	return after, nil
}

// --- Executions ---

// CreateExecution stores a new execution attempt. Manager only; testers
// receive their assignments rather than creating them.
func (s *Service) CreateExecution(ctx context.Context, actor User, input CreateExecutionInput) (TestExecution, error) {
	if err := Authorize(actor, KindExecution, TransitionCreate, ""); err != nil {
		return TestExecution{}, err
	}
	execution, err := CreateExecution(input, s.clock, s.newID)
	if err != nil {
		return TestExecution{}, err
	}
	if _, err := s.store.GetCycle(ctx, execution.TestCycleID); err != nil {
		return TestExecution{}, err
	}
	if _, err := s.store.GetScenario(ctx, execution.TestScenarioID); err != nil {
		return TestExecution{}, err
	}
	if err := s.store.PutExecution(ctx, execution); err != nil {
		return TestExecution{}, fmt.Errorf("store execution: %w", err)
	}
	return execution, nil
}

// GetExecution returns one execution attempt by ID.
func (s *Service) GetExecution(ctx context.Context, executionID string) (TestExecution, error) {
	return s.store.GetExecution(ctx, executionID)
}

// BeginExecution starts an assigned attempt.
func (s *Service) BeginExecution(ctx context.Context, actor User, executionID string) (TestExecution, error) {
	before, err := s.store.GetExecution(ctx, executionID)
	if err != nil {
		return TestExecution{}, err
	}
	if err := Authorize(actor, KindExecution, TransitionBegin, before.AssignedTesterID); err != nil {
		return TestExecution{}, err
	}
	after, err := BeginExecution(before, s.clock)
	if err != nil {
		return TestExecution{}, err
	}
	after.Revision = before.Revision + 1
	if err := s.store.UpdateExecution(ctx, after); err != nil {
		return TestExecution{}, err
	}
	if s.notifier != nil {
		s.notifier.ExecutionTransitioned(TransitionBegin, before, after, actor)
	}
	return after, nil
}

// RecordExecutionResult records a terminal result and recomputes the
// parent cycle's completion percentage.
func (s *Service) RecordExecutionResult(ctx context.Context, actor User, executionID string, result ExecutionStatus, notes string) (TestExecution, error) {
	before, err := s.store.GetExecution(ctx, executionID)
	if err != nil {
		return TestExecution{}, err
	}
	if err := Authorize(actor, KindExecution, TransitionRecordResult, before.AssignedTesterID); err != nil {
		return TestExecution{}, err
	}
	after, err := RecordExecutionResult(before, result, notes, s.clock)
	if err != nil {
		return TestExecution{}, err
	}
	after.Revision = before.Revision + 1
	if err := s.store.UpdateExecution(ctx, after); err != nil {
		return TestExecution{}, err
	}
	// The result is committed at this point; a recompute failure is not
	// the caller's error.
	if err := s.recomputeCycleCompletion(ctx, after.TestCycleID); err != nil {
		log.Printf("recompute cycle %s completion: %v", after.TestCycleID, err)
	}
	if s.notifier != nil {
		s.notifier.ExecutionTransitioned(TransitionRecordResult, before, after, actor)
	}
	return after, nil
}

// RetestExecution creates a fresh attempt superseding a failed or
// blocked one. Prior attempts stay untouched.
func (s *Service) RetestExecution(ctx context.Context, actor User, executionID string) (TestExecution, error) {
	original, err := s.store.GetExecution(ctx, executionID)
	if err != nil {
		return TestExecution{}, err
	}
	if err := Authorize(actor, KindExecution, TransitionRetest, original.AssignedTesterID); err != nil {
		return TestExecution{}, err
	}
	attempt, err := RetestExecution(original, s.clock, s.newID)
	if err != nil {
		return TestExecution{}, err
	}
	if err := s.store.PutExecution(ctx, attempt); err != nil {
		return TestExecution{}, fmt.Errorf("store execution: %w", err)
	}
	if err := s.recomputeCycleCompletion(ctx, attempt.TestCycleID); err != nil {
		log.Printf("recompute cycle %s completion: %v", attempt.TestCycleID, err)
	}
	if s.notifier != nil {
		s.notifier.ExecutionTransitioned(TransitionRetest, original, attempt, actor)
	}
	return attempt, nil
}

func (s *Service) recomputeCycleCompletion(ctx context.Context, cycleID string) error {
	var lastErr error
	for attempt := 0; attempt < cycleRecomputeAttempts; attempt++ {
		cycle, err := s.store.GetCycle(ctx, cycleID)
		if err != nil {
			return err
		}
		// A stopped cycle keeps its frozen percentage; nothing to write.
		if CycleStatusTerminal(cycle.Status) {
			return nil
		}
		executions, err := s.store.ListExecutionsByCycle(ctx, cycleID)
		if err != nil {
			return err
		}
		completed := 0
		for _, execution := range executions {
			if ExecutionStatusTerminal(execution.Status) {
				completed++
			}
		}
		updated := RecomputeCycleCompletion(cycle, completed, len(executions), s.clock)
		updated.Revision = cycle.Revision + 1
		err = s.store.UpdateCycle(ctx, updated)
		if err == nil {
			return nil
		}
		if !apperrors.Is(err, apperrors.CodeRevisionConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// --- Defects ---

// CreateDefect stores a newly reported defect.
func (s *Service) CreateDefect(ctx context.Context, actor User, input CreateDefectInput) (Defect, error) {
	if err := Authorize(actor, KindDefect, TransitionCreate, ""); err != nil {
		return Defect{}, err
	}
	if input.ReportedByID == "" {
		input.ReportedByID = actor.ID
	}
	defect, err := CreateDefect(input, s.clock, s.newID)
	if err != nil {
		return Defect{}, err
	}
	if err := s.store.PutDefect(ctx, defect); err != nil {
		return Defect{}, fmt.Errorf("store defect: %w", err)
	}
	return defect, nil
}

// GetDefect returns one defect by ID.
func (s *Service) GetDefect(ctx context.Context, defectID string) (Defect, error) {
	return s.store.GetDefect(ctx, defectID)
}

// AssignDefect hands a defect to a troubleshooter.
func (s *Service) AssignDefect(ctx context.Context, actor User, defectID, assigneeID, assignedGroup string) (Defect, error) {
	before, err := s.store.GetDefect(ctx, defectID)
	if err != nil {
		return Defect{}, err
	}
	if err := Authorize(actor, KindDefect, TransitionAssign, ""); err != nil {
		return Defect{}, err
	}
	if _, err := s.store.GetUser(ctx, assigneeID); err != nil {
		return Defect{}, err
	}
	after, err := AssignDefect(before, assigneeID, assignedGroup, s.clock)
	if err != nil {
		return Defect{}, err
	}
	after.Revision = before.Revision + 1
	if err := s.store.UpdateDefect(ctx, after); err != nil {
		return Defect{}, err
	}
	if s.notifier != nil {
		s.notifier.DefectTransitioned(TransitionAssign, before, after, actor)
	}
	return after, nil
}

// ResolveDefect records a fix. Resolution notes are mandatory.
func (s *Service) ResolveDefect(ctx context.Context, actor User, defectID, resolutionNotes string, retestRequired bool) (Defect, error) {
	before, err := s.store.GetDefect(ctx, defectID)
	if err != nil {
		return Defect{}, err
	}
	if err := Authorize(actor, KindDefect, TransitionResolve, before.AssignedToID); err != nil {
		return Defect{}, err
	}
	after, err := ResolveDefect(before, resolutionNotes, retestRequired, s.clock)
	if err != nil {
		return Defect{}, err
	}
	after.Revision = before.Revision + 1
	if err := s.store.UpdateDefect(ctx, after); err != nil {
		return Defect{}, err
	}
	if s.notifier != nil {
		s.notifier.DefectTransitioned(TransitionResolve, before, after, actor)
	}
	return after, nil
}

// StartDefectRetest moves a resolved defect into pending confirmation.
func (s *Service) StartDefectRetest(ctx context.Context, actor User, defectID string) (Defect, error) {
	before, err := s.store.GetDefect(ctx, defectID)
	if err != nil {
		return Defect{}, err
	}
	if err := Authorize(actor, KindDefect, TransitionStartRetest, before.ReportedByID); err != nil {
		return Defect{}, err
	}
	after, err := StartDefectRetest(before, s.clock)
	if err != nil {
		return Defect{}, err
	}
	after.Revision = before.Revision + 1
	if err := s.store.UpdateDefect(ctx, after); err != nil {
		return Defect{}, err
	}
	if s.notifier != nil {
		s.notifier.DefectTransitioned(TransitionStartRetest, before, after, actor)
	}
	return after, nil
}

// RecordDefectRetest records the retest outcome on a pending defect. A
// passed retest confirms the close; a failed retest reopens it.
func (s *Service) RecordDefectRetest(ctx context.Context, actor User, defectID string, result RetestResult) (Defect, error) {
	before, err := s.store.GetDefect(ctx, defectID)
	if err != nil {
		return Defect{}, err
	}
	transition := TransitionConfirmRetest
	if result == RetestFailed {
		transition = TransitionRejectRetest
	}
	if err := Authorize(actor, KindDefect, transition, before.ReportedByID); err != nil {
		return Defect{}, err
	}
	after, err := RecordDefectRetest(before, result, s.clock)
	if err != nil {
		return Defect{}, err
	}
	after.Revision = before.Revision + 1
	if err := s.store.UpdateDefect(ctx, after); err != nil {
		return Defect{}, err
	}
	if s.notifier != nil {
		s.notifier.DefectTransitioned(transition, before, after, actor)
	}
	return after, nil
}

// GetUser returns one user by ID.
func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	return s.store.GetUser(ctx, userID)
}
