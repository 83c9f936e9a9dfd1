// Package domain holds the QA artifact lifecycles: entity status state
// machines, the role and ownership guard, and the orchestration service
// that applies transitions and hands committed changes to the notifier.
package domain

// EntityKind identifies which lifecycle a transition belongs to.
type EntityKind string

const (
	KindScenario  EntityKind = "test_scenario"
	KindPlan      EntityKind = "test_plan"
	KindCycle     EntityKind = "test_cycle"
	KindExecution EntityKind = "test_execution"
	KindDefect    EntityKind = "defect"
)

// Transition is a named, guarded status change on one entity.
type Transition string

const (
	// TestScenario transitions
	TransitionSubmitForReview Transition = "submitForReview"
	TransitionEndDate         Transition = "endDate"

	// TestPlan transitions (approve and reject are shared with scenarios)
	TransitionSubmit   Transition = "submit"
	TransitionApprove  Transition = "approve"
	TransitionReject   Transition = "reject"
	TransitionStart    Transition = "start"
	TransitionComplete Transition = "complete"
	TransitionCancel   Transition = "cancel"

	// TestCycle transitions (start is shared with plans)
	TransitionPause  Transition = "pause"
	TransitionResume Transition = "resume"
	TransitionStop   Transition = "stop"

	// TestExecution transitions
	TransitionBegin        Transition = "begin"
	TransitionRecordResult Transition = "recordResult"
	TransitionRetest       Transition = "retest"

	// Defect transitions
	TransitionAssign        Transition = "assign"
	TransitionResolve       Transition = "resolve"
	TransitionStartRetest   Transition = "startRetest"
	TransitionConfirmRetest Transition = "confirmRetest"
	TransitionRejectRetest  Transition = "rejectRetest"

	// Content edits are guarded like transitions but change no status.
	TransitionEdit Transition = "edit"

	// Creation is guarded like a transition into the initial status.
	TransitionCreate Transition = "create"
)
