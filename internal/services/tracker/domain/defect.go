package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/veritest/veritest/internal/platform/errors"
	"github.com/veritest/veritest/internal/platform/id"
)

// DefectStatus describes the lifecycle of a defect.
type DefectStatus int

const (
	// DefectStatusUnspecified represents an invalid defect status value.
	DefectStatusUnspecified DefectStatus = iota
	// DefectStatusOpen indicates the defect awaits assignment.
	DefectStatusOpen
	// DefectStatusAssigned indicates a troubleshooter has been picked but
	// has not started work. Assignment lands on InProgress directly; this
	// state is kept for records written by earlier importers.
	DefectStatusAssigned
	// DefectStatusInProgress indicates the assignee is investigating.
	DefectStatusInProgress
	// DefectStatusResolved indicates a fix was recorded.
	DefectStatusResolved
	// DefectStatusPendingConfirmation indicates the reporter is retesting.
	DefectStatusPendingConfirmation
	// DefectStatusConfirmedClosed indicates the retest passed. Terminal.
	DefectStatusConfirmedClosed
	// DefectStatusReopened indicates the retest failed.
	DefectStatusReopened
)

// DefectSeverity describes the impact of a defect.
type DefectSeverity int

const (
	// DefectSeverityUnspecified represents an invalid severity value.
	DefectSeverityUnspecified DefectSeverity = iota
	DefectSeverityLow
	DefectSeverityMedium
	DefectSeverityHigh
	DefectSeverityCritical
	DefectSeverityBlocker
)

// RetestResult describes the outcome of a defect retest.
type RetestResult int

const (
	// RetestNotRetested indicates no retest has been recorded yet.
	RetestNotRetested RetestResult = iota
	// RetestPassed indicates the fix was verified.
	RetestPassed
	// RetestFailed indicates the fix did not hold.
	RetestFailed
)

var (
	// ErrEmptyDefectTitle indicates a missing defect title.
	ErrEmptyDefectTitle = apperrors.New(apperrors.CodeDefectTitleEmpty, "defect title is required")
	// ErrDefectReporterMissing indicates a defect without a reporter.
	ErrDefectReporterMissing = apperrors.New(apperrors.CodeDefectReporterMissing, "defect reporter is required")
	// ErrDefectAssigneeMissing indicates an assignment without an assignee.
	ErrDefectAssigneeMissing = apperrors.New(apperrors.CodeDefectAssigneeMissing, "defect assignee is required")
	// ErrDefectResolutionRequired indicates a resolve without notes.
	ErrDefectResolutionRequired = apperrors.New(apperrors.CodeDefectResolutionRequired, "resolution notes are required")
	// ErrDefectRetestNotPending indicates a retest result outside
	// PendingConfirmation.
	ErrDefectRetestNotPending = apperrors.New(apperrors.CodeDefectRetestNotPending, "retest result is only writable while pending confirmation")
)

// Defect represents lifecycle metadata for one defect.
type Defect struct {
	ID            string
	Title         string
	Description   string
	Severity      DefectSeverity
	Category      string
	Status        DefectStatus
	ReportedByID  string
	AssignedToID  string
	AssignedGroup string
	// ResolutionNotes is required when resolving.
	ResolutionNotes string
	// RetestRequired defaults to true on resolution.
	RetestRequired bool
	// RetestResult is only writable while status is PendingConfirmation.
	RetestResult RetestResult
	AssignedDate *time.Time
	ResolvedDate *time.Time
	RetestDate   *time.Time
	ClosedDate   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Revision     int64
}

// CreateDefectInput describes the metadata needed to report a defect.
type CreateDefectInput struct {
	Title        string
	Description  string
	Severity     DefectSeverity
	Category     string
	ReportedByID string
}

// CreateDefect creates a new defect in Open with a generated ID.
func CreateDefect(input CreateDefectInput, now func() time.Time, idGenerator func() (string, error)) (Defect, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Defect{}, ErrEmptyDefectTitle
	}
	reporterID := strings.TrimSpace(input.ReportedByID)
	if reporterID == "" {
		return Defect{}, ErrDefectReporterMissing
	}
	severity := input.Severity
	if severity == DefectSeverityUnspecified {
		severity = DefectSeverityMedium
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = "Functional"
	}

	defectID, err := idGenerator()
	if err != nil {
		return Defect{}, fmt.Errorf("generate defect id: %w", err)
	}

	createdAt := now().UTC()
	return Defect{
		ID:           defectID,
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		Severity:     severity,
		Category:     category,
		Status:       DefectStatusOpen,
		ReportedByID: reporterID,
		RetestResult: RetestNotRetested,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

// AssignDefect hands an open or reopened defect to a troubleshooter. The
// defect lands on InProgress with the assignment date stamped.
func AssignDefect(defect Defect, assigneeID string, assignedGroup string, now func() time.Time) (Defect, error) {
	if now == nil {
		now = time.Now
	}
	trimmedAssignee := strings.TrimSpace(assigneeID)
	if trimmedAssignee == "" {
		return Defect{}, ErrDefectAssigneeMissing
	}
	if defect.Status != DefectStatusOpen && defect.Status != DefectStatusReopened {
		return Defect{}, invalidDefectTransition(defect.Status, TransitionAssign, DefectStatusInProgress)
	}

	updated := defect
	updated.Status = DefectStatusInProgress
	updated.AssignedToID = trimmedAssignee
	if trimmed := strings.TrimSpace(assignedGroup); trimmed != "" {
		updated.AssignedGroup = trimmed
	}
	updatedAt := now().UTC()
	updated.UpdatedAt = updatedAt
	updated.AssignedDate = &updatedAt
	return updated, nil
}

// ResolveDefect records a fix on an assigned or in-progress defect.
// Resolution notes are mandatory; retestRequired defaults to true.
func ResolveDefect(defect Defect, resolutionNotes string, retestRequired bool, now func() time.Time) (Defect, error) {
	if now == nil {
		now = time.Now
	}
	notes := strings.TrimSpace(resolutionNotes)
	if notes == "" {
		return Defect{}, ErrDefectResolutionRequired
	}
	if defect.Status != DefectStatusAssigned && defect.Status != DefectStatusInProgress {
		return Defect{}, invalidDefectTransition(defect.Status, TransitionResolve, DefectStatusResolved)
	}

	updated := defect
	updated.Status = DefectStatusResolved
	updated.ResolutionNotes = notes
	updated.RetestRequired = retestRequired
	updatedAt := now().UTC()
	updated.UpdatedAt = updatedAt
	updated.ResolvedDate = &updatedAt
	return updated, nil
}

// StartDefectRetest moves a resolved defect into PendingConfirmation so the
// reporter can record the retest outcome.
func StartDefectRetest(defect Defect, now func() time.Time) (Defect, error) {
	if now == nil {
		now = time.Now
	}
	if defect.Status != DefectStatusResolved || !defect.RetestRequired {
		return Defect{}, invalidDefectTransition(defect.Status, TransitionStartRetest, DefectStatusPendingConfirmation)
	}

	updated := defect
	updated.Status = DefectStatusPendingConfirmation
	updated.UpdatedAt = now().UTC()
	return updated, nil
}

// RecordDefectRetest records the retest outcome on a pending defect.
// A passed retest closes the defect; a failed retest forces Reopened.
func RecordDefectRetest(defect Defect, result RetestResult, now func() time.Time) (Defect, error) {
	if now == nil {
		now = time.Now
	}
	if result != RetestPassed && result != RetestFailed {
		return Defect{}, apperrors.New(apperrors.CodeDefectInvalidRetestResult, "retest result must be PASSED or FAILED")
	}
	if defect.Status != DefectStatusPendingConfirmation {
		return Defect{}, ErrDefectRetestNotPending
	}

	updated := defect
	updated.RetestResult = result
	updatedAt := now().UTC()
	updated.UpdatedAt = updatedAt
	updated.RetestDate = &updatedAt
	if result == RetestPassed {
		updated.Status = DefectStatusConfirmedClosed
		updated.ClosedDate = &updatedAt
	} else {
		updated.Status = DefectStatusReopened
	}
	return updated, nil
}

func invalidDefectTransition(from DefectStatus, transition Transition, target DefectStatus) *apperrors.Error {
	fromLabel := DefectStatusLabel(from)
	toLabel := DefectStatusLabel(target)
	return apperrors.WithMetadata(
		apperrors.CodeDefectInvalidStatusTransition,
		fmt.Sprintf("defect transition %s not allowed: %s -> %s", transition, fromLabel, toLabel),
		map[string]string{"FromStatus": fromLabel, "ToStatus": toLabel, "Transition": string(transition)},
	)
}

// DefectStatusLabel returns a stable label for a defect status.
func DefectStatusLabel(status DefectStatus) string {
	switch status {
	case DefectStatusOpen:
		return "OPEN"
	case DefectStatusAssigned:
		return "ASSIGNED"
	case DefectStatusInProgress:
		return "IN_PROGRESS"
	case DefectStatusResolved:
		return "RESOLVED"
	case DefectStatusPendingConfirmation:
		return "PENDING_CONFIRMATION"
	case DefectStatusConfirmedClosed:
		return "CONFIRMED_CLOSED"
	case DefectStatusReopened:
		return "REOPENED"
	default:
		return "UNSPECIFIED"
	}
}

// DefectStatusFromLabel parses a string label into a DefectStatus.
func DefectStatusFromLabel(value string) (DefectStatus, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return DefectStatusUnspecified, fmt.Errorf("defect status is required")
	}
	upper := strings.ToUpper(strings.ReplaceAll(trimmed, " ", "_"))
	switch upper {
	case "OPEN", "DEFECT_STATUS_OPEN":
		return DefectStatusOpen, nil
	case "ASSIGNED", "DEFECT_STATUS_ASSIGNED":
		return DefectStatusAssigned, nil
	case "IN_PROGRESS", "DEFECT_STATUS_IN_PROGRESS":
		return DefectStatusInProgress, nil
	case "RESOLVED", "DEFECT_STATUS_RESOLVED":
		return DefectStatusResolved, nil
	case "PENDING_CONFIRMATION", "DEFECT_STATUS_PENDING_CONFIRMATION":
		return DefectStatusPendingConfirmation, nil
	case "CONFIRMED_CLOSED", "DEFECT_STATUS_CONFIRMED_CLOSED":
		return DefectStatusConfirmedClosed, nil
	case "REOPENED", "DEFECT_STATUS_REOPENED":
		return DefectStatusReopened, nil
	default:
		return DefectStatusUnspecified, fmt.Errorf("unknown defect status: %s", trimmed)
	}
}

// DefectSeverityLabel returns a stable label for a defect severity.
func DefectSeverityLabel(severity DefectSeverity) string {
	switch severity {
	case DefectSeverityLow:
		return "LOW"
	case DefectSeverityMedium:
		return "MEDIUM"
	case DefectSeverityHigh:
		return "HIGH"
	case DefectSeverityCritical:
		return "CRITICAL"
	case DefectSeverityBlocker:
		return "BLOCKER"
	default:
		return "UNSPECIFIED"
	}
}

// DefectSeverityFromLabel parses a string label into a DefectSeverity.
// Empty and unrecognized values default to Medium.
func DefectSeverityFromLabel(value string) DefectSeverity {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "LOW":
		return DefectSeverityLow
	case "MEDIUM", "":
		return DefectSeverityMedium
	case "HIGH":
		return DefectSeverityHigh
	case "CRITICAL":
		return DefectSeverityCritical
	case "BLOCKER":
		return DefectSeverityBlocker
	default:
		return DefectSeverityMedium
	}
}

// RetestResultLabel returns a stable label for a retest result.
func RetestResultLabel(result RetestResult) string {
	switch result {
	case RetestPassed:
		return "PASSED"
	case RetestFailed:
		return "FAILED"
	default:
		return "NOT_RETESTED"
	}
}

// RetestResultFromLabel parses a string label into a RetestResult.
func RetestResultFromLabel(value string) (RetestResult, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "PASSED":
		return RetestPassed, nil
	case "FAILED":
		return RetestFailed, nil
	case "NOT_RETESTED", "":
		return RetestNotRetested, nil
	default:
		return RetestNotRetested, fmt.Errorf("unknown retest result: %s", value)
	}
}
