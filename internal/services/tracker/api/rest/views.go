package rest

import (
	"time"

	"github.com/veritest/veritest/internal/services/tracker/domain"
)

// The view types are the wire representation of the lifecycle entities.
// Statuses travel as labels so clients never see internal enum values.

type scenarioView struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status"`
	OwnerID      string     `json:"ownerId"`
	ReviewedByID string     `json:"reviewedById,omitempty"`
	Version      int        `json:"version"`
	EndDatedAt   *time.Time `json:"endDatedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	Revision     int64      `json:"revision"`
}

func newScenarioView(scenario domain.TestScenario) scenarioView {
	return scenarioView{
		ID:           scenario.ID,
		Title:        scenario.Title,
		Description:  scenario.Description,
		Status:       domain.ScenarioStatusLabel(scenario.Status),
		OwnerID:      scenario.OwnerID,
		ReviewedByID: scenario.ReviewedByID,
		Version:      scenario.Version,
		EndDatedAt:   scenario.EndDatedAt,
		CreatedAt:    scenario.CreatedAt,
		UpdatedAt:    scenario.UpdatedAt,
		Revision:     scenario.Revision,
	}
}

type planView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status"`
	CreatedByID  string     `json:"createdById"`
	ApprovedByID string     `json:"approvedById,omitempty"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	Revision     int64      `json:"revision"`
}

func newPlanView(plan domain.TestPlan) planView {
	return planView{
		ID:           plan.ID,
		Name:         plan.Name,
		Description:  plan.Description,
		Status:       domain.PlanStatusLabel(plan.Status),
		CreatedByID:  plan.CreatedByID,
		ApprovedByID: plan.ApprovedByID,
		ApprovedAt:   plan.ApprovedAt,
		CreatedAt:    plan.CreatedAt,
		UpdatedAt:    plan.UpdatedAt,
		Revision:     plan.Revision,
	}
}

type cycleView struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	TestPlanID           string     `json:"testPlanId"`
	Status               string     `json:"status"`
	CreatedByID          string     `json:"createdById"`
	AssignedTesterIDs    []string   `json:"assignedTesterIds"`
	CompletionPercentage float64    `json:"completionPercentage"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	EndedAt              *time.Time `json:"endedAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
	Revision             int64      `json:"revision"`
}

func newCycleView(cycle domain.TestCycle) cycleView {
	testerIDs := cycle.AssignedTesterIDs
	if testerIDs == nil {
		testerIDs = []string{}
	}
	return cycleView{
		ID:                   cycle.ID,
		Name:                 cycle.Name,
		TestPlanID:           cycle.TestPlanID,
		Status:               domain.CycleStatusLabel(cycle.Status),
		CreatedByID:          cycle.CreatedByID,
		AssignedTesterIDs:    testerIDs,
		CompletionPercentage: cycle.CompletionPercentage,
		StartedAt:            cycle.StartedAt,
		EndedAt:              cycle.EndedAt,
		CreatedAt:            cycle.CreatedAt,
		UpdatedAt:            cycle.UpdatedAt,
		Revision:             cycle.Revision,
	}
}

type executionView struct {
	ID               string     `json:"id"`
	TestCycleID      string     `json:"testCycleId"`
	TestScenarioID   string     `json:"testScenarioId"`
	AssignedTesterID string     `json:"assignedTesterId"`
	Status           string     `json:"status"`
	Notes            string     `json:"notes,omitempty"`
	ExecutionDate    *time.Time `json:"executionDate,omitempty"`
	CompletionDate   *time.Time `json:"completionDate,omitempty"`
	RetestCount      int        `json:"retestCount"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	Revision         int64      `json:"revision"`
}

func newExecutionView(execution domain.TestExecution) executionView {
	return executionView{
		ID:               execution.ID,
		TestCycleID:      execution.TestCycleID,
		TestScenarioID:   execution.TestScenarioID,
		AssignedTesterID: execution.AssignedTesterID,
		Status:           domain.ExecutionStatusLabel(execution.Status),
		Notes:            execution.Notes,
		ExecutionDate:    execution.ExecutionDate,
		CompletionDate:   execution.CompletionDate,
		RetestCount:      execution.RetestCount,
		CreatedAt:        execution.CreatedAt,
		UpdatedAt:        execution.UpdatedAt,
		Revision:         execution.Revision,
	}
}

type defectView struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Severity        string     `json:"severity"`
	Category        string     `json:"category"`
	Status          string     `json:"status"`
	ReportedByID    string     `json:"reportedById"`
	AssignedToID    string     `json:"assignedToId,omitempty"`
	AssignedGroup   string     `json:"assignedGroup,omitempty"`
	ResolutionNotes string     `json:"resolutionNotes,omitempty"`
	RetestRequired  bool       `json:"retestRequired"`
	RetestResult    string     `json:"retestResult"`
	AssignedDate    *time.Time `json:"assignedDate,omitempty"`
	ResolvedDate    *time.Time `json:"resolvedDate,omitempty"`
	RetestDate      *time.Time `json:"retestDate,omitempty"`
	ClosedDate      *time.Time `json:"closedDate,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Revision        int64      `json:"revision"`
}

func newDefectView(defect domain.Defect) defectView {
	return defectView{
		ID:              defect.ID,
		Title:           defect.Title,
		Description:     defect.Description,
		Severity:        domain.DefectSeverityLabel(defect.Severity),
		Category:        defect.Category,
		Status:          domain.DefectStatusLabel(defect.Status),
		ReportedByID:    defect.ReportedByID,
		AssignedToID:    defect.AssignedToID,
		AssignedGroup:   defect.AssignedGroup,
		ResolutionNotes: defect.ResolutionNotes,
		RetestRequired:  defect.RetestRequired,
		RetestResult:    domain.RetestResultLabel(defect.RetestResult),
		AssignedDate:    defect.AssignedDate,
		ResolvedDate:    defect.ResolvedDate,
		RetestDate:      defect.RetestDate,
		ClosedDate:      defect.ClosedDate,
		CreatedAt:       defect.CreatedAt,
		UpdatedAt:       defect.UpdatedAt,
		Revision:        defect.Revision,
	}
}
