package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/veritest/veritest/internal/platform/errors"
	"github.com/veritest/veritest/internal/platform/id"
)

// ExecutionStatus describes the lifecycle of a test execution attempt.
type ExecutionStatus int

const (
	// ExecutionStatusUnspecified represents an invalid execution status value.
	ExecutionStatusUnspecified ExecutionStatus = iota
	// ExecutionStatusNotStarted indicates the attempt has not begun.
	ExecutionStatusNotStarted
	// ExecutionStatusInProgress indicates the tester is executing.
	ExecutionStatusInProgress
	// ExecutionStatusPassed indicates a successful result. Terminal.
	ExecutionStatusPassed
	// ExecutionStatusFailed indicates a failed result. Terminal.
	ExecutionStatusFailed
	// ExecutionStatusBlocked indicates execution was blocked. Terminal.
	ExecutionStatusBlocked
	// ExecutionStatusSkipped indicates the attempt was skipped. Terminal.
	ExecutionStatusSkipped
)

var (
	// ErrExecutionCycleMissing indicates an execution without a parent cycle.
	ErrExecutionCycleMissing = apperrors.New(apperrors.CodeExecutionCycleMissing, "execution test cycle id is required")
	// ErrExecutionScenarioMissing indicates an execution without a scenario.
	ErrExecutionScenarioMissing = apperrors.New(apperrors.CodeExecutionScenarioMissing, "execution test scenario id is required")
	// ErrExecutionTesterMissing indicates an execution without a tester.
	ErrExecutionTesterMissing = apperrors.New(apperrors.CodeExecutionTesterMissing, "execution assigned tester is required")
	// ErrExecutionInvalidResult indicates a non-terminal recorded result.
	ErrExecutionInvalidResult = apperrors.New(apperrors.CodeExecutionInvalidResult, "execution result must be PASSED, FAILED, BLOCKED or SKIPPED")
)

// TestExecution represents one attempt at executing a scenario within a
// cycle. Terminal attempts are never mutated; a retest creates a fresh
// attempt instead.
type TestExecution struct {
	ID               string
	TestCycleID      string
	TestScenarioID   string
	AssignedTesterID string
	Status           ExecutionStatus
	Notes            string
	ExecutionDate    *time.Time
	CompletionDate   *time.Time
	// RetestCount is how many prior attempts this attempt supersedes.
	RetestCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Revision    int64
}

// CreateExecutionInput describes the metadata needed to create an execution.
type CreateExecutionInput struct {
	TestCycleID      string
	TestScenarioID   string
	AssignedTesterID string
}

// CreateExecution creates a new execution attempt in NotStarted.
func CreateExecution(input CreateExecutionInput, now func() time.Time, idGenerator func() (string, error)) (TestExecution, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	cycleID := strings.TrimSpace(input.TestCycleID)
	if cycleID == "" {
		return TestExecution{}, ErrExecutionCycleMissing
	}
	scenarioID := strings.TrimSpace(input.TestScenarioID)
	if scenarioID == "" {
		return TestExecution{}, ErrExecutionScenarioMissing
	}
	testerID := strings.TrimSpace(input.AssignedTesterID)
	if testerID == "" {
		return TestExecution{}, ErrExecutionTesterMissing
	}

	executionID, err := idGenerator()
	if err != nil {
		return TestExecution{}, fmt.Errorf("generate execution id: %w", err)
	}

	createdAt := now().UTC()
	return TestExecution{
		ID:               executionID,
		TestCycleID:      cycleID,
		TestScenarioID:   scenarioID,
		AssignedTesterID: testerID,
		Status:           ExecutionStatusNotStarted,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}, nil
}

// BeginExecution moves an attempt from NotStarted to InProgress and stamps
// the execution date.
func BeginExecution(execution TestExecution, now func() time.Time) (TestExecution, error) {
	if now == nil {
		now = time.Now
	}
	if execution.Status != ExecutionStatusNotStarted {
		return TestExecution{}, invalidExecutionTransition(execution.Status, TransitionBegin, ExecutionStatusInProgress)
	}

	updated := execution
	updated.Status = ExecutionStatusInProgress
	updatedAt := now().UTC()
	updated.UpdatedAt = updatedAt
	updated.ExecutionDate = &updatedAt
	return updated, nil
}

// RecordExecutionResult records a terminal result on an in-progress attempt.
// The parent cycle's completion percentage must be recomputed afterwards.
func RecordExecutionResult(execution TestExecution, result ExecutionStatus, notes string, now func() time.Time) (TestExecution, error) {
	if now == nil {
		now = time.Now
	}
	if !ExecutionStatusTerminal(result) {
		return TestExecution{}, ErrExecutionInvalidResult
	}
	if execution.Status != ExecutionStatusInProgress {
		return TestExecution{}, invalidExecutionTransition(execution.Status, TransitionRecordResult, result)
	}

	updated := execution
	updated.Status = result
	updatedAt := now().UTC()
	updated.UpdatedAt = updatedAt
	updated.CompletionDate = &updatedAt
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		updated.Notes = trimmed
	}
	return updated, nil
}

// RetestExecution creates a fresh NotStarted attempt superseding a Failed or
// Blocked one. The original attempt is returned unchanged: execution history
// is immutable.
func RetestExecution(execution TestExecution, now func() time.Time, idGenerator func() (string, error)) (TestExecution, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if execution.Status != ExecutionStatusFailed && execution.Status != ExecutionStatusBlocked {
		return TestExecution{}, invalidExecutionTransition(execution.Status, TransitionRetest, ExecutionStatusNotStarted)
	}

	attemptID, err := idGenerator()
	if err != nil {
		return TestExecution{}, fmt.Errorf("generate execution id: %w", err)
	}

	createdAt := now().UTC()
	return TestExecution{
		ID:               attemptID,
		TestCycleID:      execution.TestCycleID,
		TestScenarioID:   execution.TestScenarioID,
		AssignedTesterID: execution.AssignedTesterID,
		Status:           ExecutionStatusNotStarted,
		RetestCount:      execution.RetestCount + 1,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}, nil
}

// ExecutionStatusTerminal reports whether a result concludes the attempt.
func ExecutionStatusTerminal(status ExecutionStatus) bool {
	switch status {
	case ExecutionStatusPassed, ExecutionStatusFailed, ExecutionStatusBlocked, ExecutionStatusSkipped:
		return true
	default:
		return false
	}
}

func invalidExecutionTransition(from ExecutionStatus, transition Transition, target ExecutionStatus) *apperrors.Error {
	fromLabel := ExecutionStatusLabel(from)
	toLabel := ExecutionStatusLabel(target)
	return apperrors.WithMetadata(
		apperrors.CodeExecutionInvalidStatusTransition,
		fmt.Sprintf("execution transition %s not allowed: %s -> %s", transition, fromLabel, toLabel),
		map[string]string{"FromStatus": fromLabel, "ToStatus": toLabel, "Transition": string(transition)},
	)
}

// ExecutionStatusLabel returns a stable label for an execution status.
func ExecutionStatusLabel(status ExecutionStatus) string {
	switch status {
	case ExecutionStatusNotStarted:
		return "NOT_STARTED"
	case ExecutionStatusInProgress:
		return "IN_PROGRESS"
	case ExecutionStatusPassed:
		return "PASSED"
	case ExecutionStatusFailed:
		return "FAILED"
	case ExecutionStatusBlocked:
		return "BLOCKED"
	case ExecutionStatusSkipped:
		return "SKIPPED"
	default:
		return "UNSPECIFIED"
	}
}

// ExecutionStatusFromLabel parses a string label into an ExecutionStatus.
func ExecutionStatusFromLabel(value string) (ExecutionStatus, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ExecutionStatusUnspecified, fmt.Errorf("execution status is required")
	}
	upper := strings.ToUpper(strings.ReplaceAll(trimmed, " ", "_"))
	switch upper {
	case "NOT_STARTED", "EXECUTION_STATUS_NOT_STARTED":
		return ExecutionStatusNotStarted, nil
	case "IN_PROGRESS", "EXECUTION_STATUS_IN_PROGRESS":
		return ExecutionStatusInProgress, nil
	case "PASSED", "EXECUTION_STATUS_PASSED":
		return ExecutionStatusPassed, nil
	case "FAILED", "EXECUTION_STATUS_FAILED":
		return ExecutionStatusFailed, nil
	case "BLOCKED", "EXECUTION_STATUS_BLOCKED":
		return ExecutionStatusBlocked, nil
	case "SKIPPED", "EXECUTION_STATUS_SKIPPED":
		return ExecutionStatusSkipped, nil
	default:
		return ExecutionStatusUnspecified, fmt.Errorf("unknown execution status: %s", trimmed)
	}
}
