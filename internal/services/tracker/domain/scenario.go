package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/veritest/veritest/internal/platform/errors"
	"github.com/veritest/veritest/internal/platform/id"
)

// ScenarioStatus describes the lifecycle of a test scenario.
type ScenarioStatus int

const (
	// ScenarioStatusUnspecified represents an invalid scenario status value.
	ScenarioStatusUnspecified ScenarioStatus = iota
	// ScenarioStatusDraft indicates the scenario is being authored.
	ScenarioStatusDraft
	// ScenarioStatusUnderReview indicates the scenario awaits review.
	ScenarioStatusUnderReview
	// ScenarioStatusActive indicates the scenario is approved for execution.
	ScenarioStatusActive
	// ScenarioStatusEndDated indicates the scenario is retired. Terminal.
	ScenarioStatusEndDated
)

var (
	// ErrEmptyScenarioTitle indicates a missing scenario title.
	ErrEmptyScenarioTitle = apperrors.New(apperrors.CodeScenarioTitleEmpty, "scenario title is required")
	// ErrEmptyScenarioEdit indicates an edit that changes nothing.
	ErrEmptyScenarioEdit = apperrors.New(apperrors.CodeScenarioEditEmpty, "scenario edit requires a title or description")
)

// TestScenario represents lifecycle metadata for one test scenario.
type TestScenario struct {
	ID          string
	Title       string
	Description string
	Status      ScenarioStatus
	OwnerID     string
	// ReviewedByID records who approved the scenario into Active.
	ReviewedByID string
	// Version increments on content-significant edits, never on approval.
	Version    int
	EndDatedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// Revision guards concurrent updates; the store rejects stale writes.
	Revision int64
}

// CreateScenarioInput describes the metadata needed to create a scenario.
type CreateScenarioInput struct {
	Title       string
	Description string
	OwnerID     string
}

// CreateScenario creates a new scenario in Draft with a generated ID.
func CreateScenario(input CreateScenarioInput, now func() time.Time, idGenerator func() (string, error)) (TestScenario, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return TestScenario{}, ErrEmptyScenarioTitle
	}

	scenarioID, err := idGenerator()
	if err != nil {
		return TestScenario{}, fmt.Errorf("generate scenario id: %w", err)
	}

	createdAt := now().UTC()
	return TestScenario{
		ID:          scenarioID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      ScenarioStatusDraft,
		OwnerID:     strings.TrimSpace(input.OwnerID),
		Version:     1,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

type scenarioRule struct {
	sources []ScenarioStatus
	target  ScenarioStatus
}

// scenarioTransitions is the declarative transition table for scenarios.
var scenarioTransitions = map[Transition]scenarioRule{
	TransitionSubmitForReview: {
		sources: []ScenarioStatus{ScenarioStatusDraft},
		target:  ScenarioStatusUnderReview,
	},
	TransitionApprove: {
		sources: []ScenarioStatus{ScenarioStatusUnderReview},
		target:  ScenarioStatusActive,
	},
	TransitionEndDate: {
		sources: []ScenarioStatus{ScenarioStatusActive, ScenarioStatusUnderReview},
		target:  ScenarioStatusEndDated,
	},
}

// TransitionScenario applies a named transition and updates timestamps.
// Approving records the reviewer and leaves Version unchanged.
func TransitionScenario(scenario TestScenario, transition Transition, actorID string, now func() time.Time) (TestScenario, error) {
	if now == nil {
		now = time.Now
	}
	rule, ok := scenarioTransitions[transition]
	if !ok || !scenarioStatusIn(scenario.Status, rule.sources) {
		return TestScenario{}, invalidScenarioTransition(scenario.Status, transition, rule.target)
	}

	updated := scenario
	updated.Status = rule.target
	updatedAt := now().UTC()
	updated.UpdatedAt = updatedAt
	switch transition {
	case TransitionApprove:
		updated.ReviewedByID = strings.TrimSpace(actorID)
	case TransitionEndDate:
		if updated.EndDatedAt == nil {
			updated.EndDatedAt = &updatedAt
		}
	}
	return updated, nil
}

// EditScenario applies a content-significant edit and bumps Version.
// Only Draft and UnderReview scenarios are editable; an edit that
// supplies neither a title nor a description is rejected.
func EditScenario(scenario TestScenario, title string, description string, now func() time.Time) (TestScenario, error) {
	if now == nil {
		now = time.Now
	}
	if scenario.Status != ScenarioStatusDraft && scenario.Status != ScenarioStatusUnderReview {
		return TestScenario{}, apperrors.WithMetadata(
			apperrors.CodeScenarioNotEditable,
			fmt.Sprintf("scenario is not editable in status %s", ScenarioStatusLabel(scenario.Status)),
			map[string]string{"Status": ScenarioStatusLabel(scenario.Status)},
		)
	}
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" && description == "" {
		return TestScenario{}, ErrEmptyScenarioEdit
	}

	updated := scenario
	if title != "" {
		updated.Title = title
	}
	if description != "" {
		updated.Description = description
	}
	updated.Version++
	updated.UpdatedAt = now().UTC()
	return updated, nil
}

// ScenarioTransitionForTarget resolves the transition that moves a scenario
// from its current status to the requested target status.
func ScenarioTransitionForTarget(from, to ScenarioStatus) (Transition, bool) {
	for transition, rule := range scenarioTransitions {
		if rule.target == to && scenarioStatusIn(from, rule.sources) {
			return transition, true
		}
	}
	return "", false
}

func scenarioStatusIn(status ScenarioStatus, set []ScenarioStatus) bool {
	for _, candidate := range set {
		if status == candidate {
			return true
		}
	}
	return false
}

func invalidScenarioTransition(from ScenarioStatus, transition Transition, target ScenarioStatus) *apperrors.Error {
	fromLabel := ScenarioStatusLabel(from)
	toLabel := ScenarioStatusLabel(target)
	return apperrors.WithMetadata(
		apperrors.CodeScenarioInvalidStatusTransition,
		fmt.Sprintf("scenario transition %s not allowed: %s -> %s", transition, fromLabel, toLabel),
		map[string]string{"FromStatus": fromLabel, "ToStatus": toLabel, "Transition": string(transition)},
	)
}

// ScenarioStatusLabel returns a stable label for a scenario status.
func ScenarioStatusLabel(status ScenarioStatus) string {
	switch status {
	case ScenarioStatusDraft:
		return "DRAFT"
	case ScenarioStatusUnderReview:
		return "UNDER_REVIEW"
	case ScenarioStatusActive:
		return "ACTIVE"
	case ScenarioStatusEndDated:
		return "END_DATED"
	default:
		return "UNSPECIFIED"
	}
}

// ScenarioStatusFromLabel parses a string label into a ScenarioStatus.
// It trims whitespace and matches case-insensitively. Both short ("DRAFT")
// and prefixed ("SCENARIO_STATUS_DRAFT") forms are accepted.
func ScenarioStatusFromLabel(value string) (ScenarioStatus, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ScenarioStatusUnspecified, fmt.Errorf("scenario status is required")
	}
	upper := strings.ToUpper(strings.ReplaceAll(trimmed, " ", "_"))
	switch upper {
	case "DRAFT", "SCENARIO_STATUS_DRAFT":
		return ScenarioStatusDraft, nil
	case "UNDER_REVIEW", "SCENARIO_STATUS_UNDER_REVIEW":
		return ScenarioStatusUnderReview, nil
	case "ACTIVE", "SCENARIO_STATUS_ACTIVE":
		return ScenarioStatusActive, nil
	case "END_DATED", "SCENARIO_STATUS_END_DATED":
		return ScenarioStatusEndDated, nil
	default:
		return ScenarioStatusUnspecified, fmt.Errorf("unknown scenario status: %s", trimmed)
	}
}
