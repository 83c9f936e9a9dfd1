package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/veritest/veritest/internal/platform/errors"
	"github.com/veritest/veritest/internal/platform/id"
)

// CycleStatus describes the lifecycle of a test cycle.
type CycleStatus int

const (
	// CycleStatusUnspecified represents an invalid cycle status value.
	CycleStatusUnspecified CycleStatus = iota
	// CycleStatusPlanning indicates the cycle is being prepared.
	CycleStatusPlanning
	// CycleStatusOpen indicates the cycle is ready to start.
	CycleStatusOpen
	// CycleStatusInProgress indicates testers are executing the cycle.
	CycleStatusInProgress
	// CycleStatusPaused indicates execution is temporarily suspended.
	CycleStatusPaused
	// CycleStatusCompleted indicates the cycle finished. Terminal.
	CycleStatusCompleted
	// CycleStatusCancelled indicates the cycle was abandoned. Terminal.
	CycleStatusCancelled
)

var (
	// ErrEmptyCycleName indicates a missing cycle name.
	ErrEmptyCycleName = apperrors.New(apperrors.CodeCycleNameEmpty, "cycle name is required")
	// ErrCyclePlanMissing indicates a cycle without a parent plan.
	ErrCyclePlanMissing = apperrors.New(apperrors.CodeCyclePlanMissing, "cycle test plan id is required")
	// ErrCycleNoAssignedTesters indicates a start attempt with no testers.
	ErrCycleNoAssignedTesters = apperrors.New(apperrors.CodeCycleNoAssignedTesters, "cycle cannot start without assigned testers")
)

// TestCycle represents lifecycle metadata for one test cycle.
type TestCycle struct {
	ID          string
	Name        string
	TestPlanID  string
	Status      CycleStatus
	CreatedByID string
	// AssignedTesterIDs lists the testers executing this cycle.
	AssignedTesterIDs []string
	// CompletionPercentage is derived from execution results and frozen
	// once the cycle stops.
	CompletionPercentage float64
	StartedAt            *time.Time
	EndedAt              *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Revision             int64
}

// CreateCycleInput describes the metadata needed to create a cycle.
type CreateCycleInput struct {
	Name              string
	TestPlanID        string
	CreatedByID       string
	AssignedTesterIDs []string
}

// CreateCycle creates a new cycle in Planning with a generated ID.
func CreateCycle(input CreateCycleInput, now func() time.Time, idGenerator func() (string, error)) (TestCycle, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return TestCycle{}, ErrEmptyCycleName
	}
	planID := strings.TrimSpace(input.TestPlanID)
	if planID == "" {
		return TestCycle{}, ErrCyclePlanMissing
	}

	cycleID, err := idGenerator()
	if err != nil {
		return TestCycle{}, fmt.Errorf("generate cycle id: %w", err)
	}

	createdAt := now().UTC()
	return TestCycle{
		ID:                cycleID,
		Name:              name,
		TestPlanID:        planID,
		Status:            CycleStatusPlanning,
		CreatedByID:       strings.TrimSpace(input.CreatedByID),
		AssignedTesterIDs: normalizeTesterIDs(input.AssignedTesterIDs),
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}, nil
}

type cycleRule struct {
	sources []CycleStatus
	target  CycleStatus
}

// cycleTransitions is the declarative transition table for cycles. Stop is
// handled separately because its target depends on the requested outcome.
var cycleTransitions = map[Transition]cycleRule{
	TransitionStart: {
		sources: []CycleStatus{CycleStatusPlanning, CycleStatusOpen},
		target:  CycleStatusInProgress,
	},
	TransitionPause: {
		sources: []CycleStatus{CycleStatusInProgress},
		target:  CycleStatusPaused,
	},
	TransitionResume: {
		sources: []CycleStatus{CycleStatusPaused},
		target:  CycleStatusInProgress,
	},
}

// StartCycle moves a cycle into InProgress. A cycle with no assigned
// testers cannot start, regardless of who asks.
func StartCycle(cycle TestCycle, now func() time.Time) (TestCycle, error) {
	if len(cycle.AssignedTesterIDs) == 0 {
		return TestCycle{}, ErrCycleNoAssignedTesters
	}
	updated, err := transitionCycle(cycle, TransitionStart, now)
	if err != nil {
		return TestCycle{}, err
	}
	if updated.StartedAt == nil {
		startedAt := updated.UpdatedAt
		updated.StartedAt = &startedAt
	}
	return updated, nil
}

// PauseCycle suspends an in-progress cycle.
func PauseCycle(cycle TestCycle, now func() time.Time) (TestCycle, error) {
	return transitionCycle(cycle, TransitionPause, now)
}

// ResumeCycle returns a paused cycle to InProgress.
func ResumeCycle(cycle TestCycle, now func() time.Time) (TestCycle, error) {
	return transitionCycle(cycle, TransitionResume, now)
}

// StopCycle ends an in-progress or paused cycle as Completed or Cancelled.
// The completion percentage is frozen at its last recomputed value.
func StopCycle(cycle TestCycle, outcome CycleStatus, now func() time.Time) (TestCycle, error) {
	if now == nil {
		now = time.Now
	}
	if outcome != CycleStatusCompleted && outcome != CycleStatusCancelled {
		return TestCycle{}, invalidCycleTransition(cycle.Status, TransitionStop, outcome)
	}
	if cycle.Status != CycleStatusInProgress && cycle.Status != CycleStatusPaused {
		return TestCycle{}, invalidCycleTransition(cycle.Status, TransitionStop, outcome)
	}

	updated := cycle
	updated.Status = outcome
	updatedAt := now().UTC()
	updated.UpdatedAt = updatedAt
	updated.EndedAt = &updatedAt
	return updated, nil
}

// AssignCycleTesters replaces the cycle's tester set. Terminal cycles
// cannot be reassigned.
func AssignCycleTesters(cycle TestCycle, testerIDs []string, now func() time.Time) (TestCycle, error) {
	if now == nil {
		now = time.Now
	}
	if CycleStatusTerminal(cycle.Status) {
		return TestCycle{}, invalidCycleTransition(cycle.Status, TransitionEdit, cycle.Status)
	}

	updated := cycle
	updated.AssignedTesterIDs = normalizeTesterIDs(testerIDs)
	updated.UpdatedAt = now().UTC()
	return updated, nil
}

// RecomputeCycleCompletion derives the completion percentage from execution
// counts. Terminal cycles keep their frozen value.
func RecomputeCycleCompletion(cycle TestCycle, completed int, total int, now func() time.Time) TestCycle {
	if now == nil {
		now = time.Now
	}
	if CycleStatusTerminal(cycle.Status) {
		return cycle
	}

	updated := cycle
	if total <= 0 {
		updated.CompletionPercentage = 0
	} else {
		updated.CompletionPercentage = float64(completed) / float64(total) * 100
	}
	updated.UpdatedAt = now().UTC()
	return updated
}

// CycleStatusTerminal reports whether a cycle status accepts no further
// transitions.
func CycleStatusTerminal(status CycleStatus) bool {
	return status == CycleStatusCompleted || status == CycleStatusCancelled
}

func transitionCycle(cycle TestCycle, transition Transition, now func() time.Time) (TestCycle, error) {
	if now == nil {
		now = time.Now
	}
	rule, ok := cycleTransitions[transition]
	if !ok || !cycleStatusIn(cycle.Status, rule.sources) {
		return TestCycle{}, invalidCycleTransition(cycle.Status, transition, rule.target)
	}

	updated := cycle
	updated.Status = rule.target
	updated.UpdatedAt = now().UTC()
	return updated, nil
}

func normalizeTesterIDs(ids []string) []string {
	normalized := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

func cycleStatusIn(status CycleStatus, set []CycleStatus) bool {
	for _, candidate := range set {
		if status == candidate {
			return true
		}
	}
	return false
}

func invalidCycleTransition(from CycleStatus, transition Transition, target CycleStatus) *apperrors.Error {
	fromLabel := CycleStatusLabel(from)
	toLabel := CycleStatusLabel(target)
	return apperrors.WithMetadata(
		apperrors.CodeCycleInvalidStatusTransition,
		fmt.Sprintf("cycle transition %s not allowed: %s -> %s", transition, fromLabel, toLabel),
		map[string]string{"FromStatus": fromLabel, "ToStatus": toLabel, "Transition": string(transition)},
	)
}

// CycleStatusLabel returns a stable label for a cycle status.
func CycleStatusLabel(status CycleStatus) string {
	switch status {
	case CycleStatusPlanning:
		return "PLANNING"
	case CycleStatusOpen:
		return "OPEN"
	case CycleStatusInProgress:
		return "IN_PROGRESS"
	case CycleStatusPaused:
		return "PAUSED"
	case CycleStatusCompleted:
		return "COMPLETED"
	case CycleStatusCancelled:
		return "CANCELLED"
	default:
		return "UNSPECIFIED"
	}
}

// CycleStatusFromLabel parses a string label into a CycleStatus.
func CycleStatusFromLabel(value string) (CycleStatus, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return CycleStatusUnspecified, fmt.Errorf("cycle status is required")
	}
	upper := strings.ToUpper(strings.ReplaceAll(trimmed, " ", "_"))
	switch upper {
	case "PLANNING", "CYCLE_STATUS_PLANNING":
		return CycleStatusPlanning, nil
	case "OPEN", "CYCLE_STATUS_OPEN":
		return CycleStatusOpen, nil
	case "IN_PROGRESS", "CYCLE_STATUS_IN_PROGRESS":
		return CycleStatusInProgress, nil
	case "PAUSED", "CYCLE_STATUS_PAUSED":
		return CycleStatusPaused, nil
	case "COMPLETED", "CYCLE_STATUS_COMPLETED":
		return CycleStatusCompleted, nil
	case "CANCELLED", "CYCLE_STATUS_CANCELLED":
		return CycleStatusCancelled, nil
	default:
		return CycleStatusUnspecified, fmt.Errorf("unknown cycle status: %s", trimmed)
	}
}
