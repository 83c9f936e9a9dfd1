package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/veritest/veritest/internal/platform/errors"
	"github.com/veritest/veritest/internal/platform/id"
)

// PlanStatus describes the lifecycle of a test plan.
type PlanStatus int

const (
	// PlanStatusUnspecified represents an invalid plan status value.
	PlanStatusUnspecified PlanStatus = iota
	// PlanStatusDraft indicates the plan is being authored.
	PlanStatusDraft
	// PlanStatusUnderReview indicates the plan awaits approval.
	PlanStatusUnderReview
	// PlanStatusApproved indicates the plan has been approved.
	PlanStatusApproved
	// PlanStatusInProgress indicates the plan is being executed.
	PlanStatusInProgress
	// PlanStatusCompleted indicates the plan finished. Terminal.
	PlanStatusCompleted
	// PlanStatusCancelled indicates the plan was abandoned. Terminal.
	PlanStatusCancelled
)

var (
	// ErrEmptyPlanName indicates a missing plan name.
	ErrEmptyPlanName = apperrors.New(apperrors.CodePlanNameEmpty, "plan name is required")
	// ErrEmptyPlanEdit indicates an edit that changes nothing.
	ErrEmptyPlanEdit = apperrors.New(apperrors.CodePlanEditEmpty, "plan edit requires a name or description")
)

// TestPlan represents lifecycle metadata for one test plan.
type TestPlan struct {
	ID          string
	Name        string
	Description string
	Status      PlanStatus
	CreatedByID string
	// ApprovedByID and ApprovedAt are set when the plan enters Approved.
	ApprovedByID string
	ApprovedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Revision     int64
}

// CreatePlanInput describes the metadata needed to create a plan.
type CreatePlanInput struct {
	Name        string
	Description string
	CreatedByID string
}

// CreatePlan creates a new plan in Draft with a generated ID.
func CreatePlan(input CreatePlanInput, now func() time.Time, idGenerator func() (string, error)) (TestPlan, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return TestPlan{}, ErrEmptyPlanName
	}

	planID, err := idGenerator()
	if err != nil {
		return TestPlan{}, fmt.Errorf("generate plan id: %w", err)
	}

	createdAt := now().UTC()
	return TestPlan{
		ID:          planID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Status:      PlanStatusDraft,
		CreatedByID: strings.TrimSpace(input.CreatedByID),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

type planRule struct {
	sources []PlanStatus
	target  PlanStatus
}

// planTransitions is the declarative transition table for plans.
var planTransitions = map[Transition]planRule{
	TransitionSubmit: {
		sources: []PlanStatus{PlanStatusDraft},
		target:  PlanStatusUnderReview,
	},
	TransitionApprove: {
		sources: []PlanStatus{PlanStatusUnderReview},
		target:  PlanStatusApproved,
	},
	TransitionReject: {
		sources: []PlanStatus{PlanStatusUnderReview},
		target:  PlanStatusDraft,
	},
	TransitionStart: {
		sources: []PlanStatus{PlanStatusApproved},
		target:  PlanStatusInProgress,
	},
	TransitionComplete: {
		sources: []PlanStatus{PlanStatusInProgress},
		target:  PlanStatusCompleted,
	},
	TransitionCancel: {
		sources: []PlanStatus{PlanStatusInProgress},
		target:  PlanStatusCancelled,
	},
}

// TransitionPlan applies a named transition and updates timestamps.
// Approval records the approver; rejection clears any previous approval.
func TransitionPlan(plan TestPlan, transition Transition, actorID string, now func() time.Time) (TestPlan, error) {
	if now == nil {
		now = time.Now
	}
	rule, ok := planTransitions[transition]
	if !ok || !planStatusIn(plan.Status, rule.sources) {
		return TestPlan{}, invalidPlanTransition(plan.Status, transition, rule.target)
	}

	updated := plan
	updated.Status = rule.target
	updatedAt := now().UTC()
	updated.UpdatedAt = updatedAt
	switch transition {
	case TransitionApprove:
		updated.ApprovedByID = strings.TrimSpace(actorID)
		updated.ApprovedAt = &updatedAt
	case TransitionReject:
		updated.ApprovedByID = ""
		updated.ApprovedAt = nil
	}
	return updated, nil
}

// PlanEditable reports whether plan content may still change.
func PlanEditable(status PlanStatus) bool {
	return status == PlanStatusDraft || status == PlanStatusUnderReview
}

// EditPlan applies a content edit. Plans are editable only while in
// Draft or UnderReview; an edit that supplies neither a name nor a
// description is rejected.
func EditPlan(plan TestPlan, name string, description string, now func() time.Time) (TestPlan, error) {
	if now == nil {
		now = time.Now
	}
	if !PlanEditable(plan.Status) {
		return TestPlan{}, apperrors.WithMetadata(
			apperrors.CodePlanNotEditable,
			fmt.Sprintf("plan is not editable in status %s", PlanStatusLabel(plan.Status)),
			map[string]string{"Status": PlanStatusLabel(plan.Status)},
		)
	}
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" && description == "" {
		return TestPlan{}, ErrEmptyPlanEdit
	}

	updated := plan
	if name != "" {
		updated.Name = name
	}
	if description != "" {
		updated.Description = description
	}
	updated.UpdatedAt = now().UTC()
	return updated, nil
}

func planStatusIn(status PlanStatus, set []PlanStatus) bool {
	for _, candidate := range set {
		if status == candidate {
			return true
		}
	}
	return false
}

func invalidPlanTransition(from PlanStatus, transition Transition, target PlanStatus) *apperrors.Error {
	fromLabel := PlanStatusLabel(from)
	toLabel := PlanStatusLabel(target)
	return apperrors.WithMetadata(
		apperrors.CodePlanInvalidStatusTransition,
		fmt.Sprintf("plan transition %s not allowed: %s -> %s", transition, fromLabel, toLabel),
		map[string]string{"FromStatus": fromLabel, "ToStatus": toLabel, "Transition": string(transition)},
	)
}

// PlanStatusLabel returns a stable label for a plan status.
func PlanStatusLabel(status PlanStatus) string {
	switch status {
	case PlanStatusDraft:
		return "DRAFT"
	case PlanStatusUnderReview:
		return "UNDER_REVIEW"
	case PlanStatusApproved:
		return "APPROVED"
	case PlanStatusInProgress:
		return "IN_PROGRESS"
	case PlanStatusCompleted:
		return "COMPLETED"
	case PlanStatusCancelled:
		return "CANCELLED"
	default:
		return "UNSPECIFIED"
	}
}

// PlanStatusFromLabel parses a string label into a PlanStatus.
func PlanStatusFromLabel(value string) (PlanStatus, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return PlanStatusUnspecified, fmt.Errorf("plan status is required")
	}
	upper := strings.ToUpper(strings.ReplaceAll(trimmed, " ", "_"))
	switch upper {
	case "DRAFT", "PLAN_STATUS_DRAFT":
		return PlanStatusDraft, nil
	case "UNDER_REVIEW", "PLAN_STATUS_UNDER_REVIEW":
		return PlanStatusUnderReview, nil
	case "APPROVED", "PLAN_STATUS_APPROVED":
		return PlanStatusApproved, nil
	case "IN_PROGRESS", "PLAN_STATUS_IN_PROGRESS":
		return PlanStatusInProgress, nil
	case "COMPLETED", "PLAN_STATUS_COMPLETED":
		return PlanStatusCompleted, nil
	case "CANCELLED", "PLAN_STATUS_CANCELLED":
		return PlanStatusCancelled, nil
	default:
		return PlanStatusUnspecified, fmt.Errorf("unknown plan status: %s", trimmed)
	}
}
