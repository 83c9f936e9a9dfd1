// Package errors provides structured error handling for the tracker.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeScenarioTitleEmpty        Code = "SCENARIO_TITLE_EMPTY"
	CodePlanNameEmpty             Code = "PLAN_NAME_EMPTY"
	CodeCycleNameEmpty            Code = "CYCLE_NAME_EMPTY"
	CodeCyclePlanMissing          Code = "CYCLE_PLAN_MISSING"
	CodeExecutionCycleMissing     Code = "EXECUTION_CYCLE_MISSING"
	CodeExecutionScenarioMissing  Code = "EXECUTION_SCENARIO_MISSING"
	CodeExecutionTesterMissing    Code = "EXECUTION_TESTER_MISSING"
	CodeExecutionInvalidResult    Code = "EXECUTION_INVALID_RESULT"
	CodeDefectTitleEmpty          Code = "DEFECT_TITLE_EMPTY"
	CodeDefectReporterMissing     Code = "DEFECT_REPORTER_MISSING"
	CodeDefectAssigneeMissing     Code = "DEFECT_ASSIGNEE_MISSING"
	CodeDefectResolutionRequired  Code = "DEFECT_RESOLUTION_NOTES_REQUIRED"
	CodeDefectInvalidRetestResult Code = "DEFECT_INVALID_RETEST_RESULT"
	CodeUserInvalidRole           Code = "USER_INVALID_ROLE"
	CodeScenarioEditEmpty         Code = "SCENARIO_EDIT_EMPTY"
	CodePlanEditEmpty             Code = "PLAN_EDIT_EMPTY"

	// Transition errors - current state is not a valid source
	CodeScenarioInvalidStatusTransition  Code = "SCENARIO_INVALID_STATUS_TRANSITION"
	CodePlanInvalidStatusTransition      Code = "PLAN_INVALID_STATUS_TRANSITION"
	CodeCycleInvalidStatusTransition     Code = "CYCLE_INVALID_STATUS_TRANSITION"
	CodeExecutionInvalidStatusTransition Code = "EXECUTION_INVALID_STATUS_TRANSITION"
	CodeDefectInvalidStatusTransition    Code = "DEFECT_INVALID_STATUS_TRANSITION"
	CodeCycleNoAssignedTesters           Code = "CYCLE_NO_ASSIGNED_TESTERS"
	CodeScenarioNotEditable              Code = "SCENARIO_NOT_EDITABLE"
	CodePlanNotEditable                  Code = "PLAN_NOT_EDITABLE"
	CodeDefectRetestNotPending           Code = "DEFECT_RETEST_NOT_PENDING"
	CodeRevisionConflict                 Code = "REVISION_CONFLICT"

	// Authorization errors
	CodeTransitionDenied Code = "TRANSITION_DENIED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, malformed input
	case CodeScenarioTitleEmpty,
		CodePlanNameEmpty,
		CodeCycleNameEmpty,
		CodeCyclePlanMissing,
		CodeExecutionCycleMissing,
		CodeExecutionScenarioMissing,
		CodeExecutionTesterMissing,
		CodeExecutionInvalidResult,
		CodeDefectTitleEmpty,
		CodeDefectReporterMissing,
		CodeDefectAssigneeMissing,
		CodeDefectResolutionRequired,
		CodeDefectInvalidRetestResult,
		CodeUserInvalidRole,
		CodeScenarioEditEmpty,
		CodePlanEditEmpty:
		return http.StatusBadRequest

	// Conflict - current state does not allow the transition
	case CodeScenarioInvalidStatusTransition,
		CodePlanInvalidStatusTransition,
		CodeCycleInvalidStatusTransition,
		CodeExecutionInvalidStatusTransition,
		CodeDefectInvalidStatusTransition,
		CodeCycleNoAssignedTesters,
		CodeScenarioNotEditable,
		CodePlanNotEditable,
		CodeDefectRetestNotPending,
		CodeRevisionConflict:
		return http.StatusConflict

	// Forbidden - action guard denial
	case CodeTransitionDenied:
		return http.StatusForbidden

	// Not found - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}
