package notify

import (
	"fmt"
	"log"
	"time"

	"github.com/veritest/veritest/internal/services/tracker/domain"
)

// Dispatcher computes notification fan-out for committed transitions
// and hands events to the sender. It implements domain.Notifier.
type Dispatcher struct {
	sender Sender
	clock  func() time.Time
}

// NewDispatcher creates a dispatcher. A nil clock falls back to real
// time.
func NewDispatcher(sender Sender, clock func() time.Time) *Dispatcher {
	if clock == nil {
		clock = time.Now
	}
	return &Dispatcher{sender: sender, clock: clock}
}

func (d *Dispatcher) event(eventType, message, target string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		Message:   message,
		Target:    target,
		Payload:   payload,
		Timestamp: d.clock().UTC(),
	}
}

func (d *Dispatcher) toUser(userID string, event Event) {
	if userID == "" {
		return
	}
	if !d.sender.SendToUser(userID, event) {
		log.Printf("notify: user %s not connected, dropping %s", userID, event.Type)
	}
}

// ScenarioTransitioned notifies the owner and test managers when a
// scenario is approved or retired.
func (d *Dispatcher) ScenarioTransitioned(transition domain.Transition, _, after domain.TestScenario, actor domain.User) {
	if transition != domain.TransitionApprove && transition != domain.TransitionEndDate {
		return
	}
	payload := map[string]any{
		"scenarioId": after.ID,
		"title":      after.Title,
		"status":     domain.ScenarioStatusLabel(after.Status),
		"version":    after.Version,
	}
	message := fmt.Sprintf("Test scenario %q is now %s", after.Title, domain.ScenarioStatusLabel(after.Status))
	if after.OwnerID != actor.ID {
		d.toUser(after.OwnerID, d.event("scenario-updated", message, after.OwnerID, payload))
	}
	room := RoleRoom(domain.RoleTestManager)
	d.sender.SendToRoom(room, d.event("scenario-updated", message, room, payload))
}

// PlanTransitioned notifies the creator and test managers of approval
// decisions.
func (d *Dispatcher) PlanTransitioned(transition domain.Transition, _, after domain.TestPlan, actor domain.User) {
	var eventType, message string
	switch transition {
	case domain.TransitionApprove:
		eventType = "test-plan-approved"
		message = fmt.Sprintf("Test plan %q was approved", after.Name)
	case domain.TransitionReject:
		eventType = "test-plan-rejected"
		message = fmt.Sprintf("Test plan %q was rejected and returned to draft", after.Name)
	default:
		return
	}
	payload := map[string]any{
		"planId": after.ID,
		"name":   after.Name,
		"status": domain.PlanStatusLabel(after.Status),
	}
	if after.CreatedByID != actor.ID {
		d.toUser(after.CreatedByID, d.event(eventType, message, after.CreatedByID, payload))
	}
	room := RoleRoom(domain.RoleTestManager)
	d.sender.SendToRoom(room, d.event(eventType, message, room, payload))
}

// CycleTransitioned notifies assigned testers and the cycle room of
// lifecycle changes; stop outcomes also reach test managers.
func (d *Dispatcher) CycleTransitioned(transition domain.Transition, _, after domain.TestCycle, _ domain.User) {
	var eventType, message string
	switch transition {
	case domain.TransitionStart:
		eventType = "test-cycle-started"
		message = fmt.Sprintf("Test cycle %q has started", after.Name)
	case domain.TransitionPause:
		eventType = "test-cycle-paused"
		message = fmt.Sprintf("Test cycle %q is paused", after.Name)
	case domain.TransitionResume:
		eventType = "test-cycle-resumed"
		message = fmt.Sprintf("Test cycle %q has resumed", after.Name)
	case domain.TransitionStop:
		if after.Status == domain.CycleStatusCompleted {
			eventType = "test-cycle-completed"
			message = fmt.Sprintf("Test cycle %q completed at %.0f%%", after.Name, after.CompletionPercentage)
		} else {
			eventType = "test-cycle-cancelled"
			message = fmt.Sprintf("Test cycle %q was cancelled", after.Name)
		}
	default:
		return
	}
	payload := map[string]any{
		"cycleId":              after.ID,
		"name":                 after.Name,
		"status":               domain.CycleStatusLabel(after.Status),
		"completionPercentage": after.CompletionPercentage,
	}
	for _, testerID := range after.AssignedTesterIDs {
		d.toUser(testerID, d.event(eventType, message, testerID, payload))
	}
	room := CycleRoom(after.ID)
	d.sender.SendToRoom(room, d.event(eventType, message, room, payload))
	if transition == domain.TransitionStop {
		managers := RoleRoom(domain.RoleTestManager)
		d.sender.SendToRoom(managers, d.event(eventType, message, managers, payload))
	}
}

// ExecutionTransitioned announces terminal results to the cycle room.
func (d *Dispatcher) ExecutionTransitioned(transition domain.Transition, _, after domain.TestExecution, _ domain.User) {
	if transition != domain.TransitionRecordResult {
		return
	}
	payload := map[string]any{
		"executionId": after.ID,
		"cycleId":     after.TestCycleID,
		"scenarioId":  after.TestScenarioID,
		"status":      domain.ExecutionStatusLabel(after.Status),
	}
	message := fmt.Sprintf("Test execution finished: %s", domain.ExecutionStatusLabel(after.Status))
	room := CycleRoom(after.TestCycleID)
	d.sender.SendToRoom(room, d.event("test-execution-completed", message, room, payload))
}

// DefectTransitioned routes defect events to the assignee, reporter and
// category room depending on the transition.
func (d *Dispatcher) DefectTransitioned(transition domain.Transition, _, after domain.Defect, actor domain.User) {
	payload := map[string]any{
		"defectId": after.ID,
		"title":    after.Title,
		"severity": domain.DefectSeverityLabel(after.Severity),
		"category": after.Category,
		"status":   domain.DefectStatusLabel(after.Status),
	}
	switch transition {
	case domain.TransitionAssign:
		message := fmt.Sprintf("Defect %q was assigned to you", after.Title)
		if after.AssignedToID != actor.ID {
			d.toUser(after.AssignedToID, d.event("defect-assigned", message, after.AssignedToID, payload))
		}
		room := CategoryRoom(after.Category)
		roomMessage := fmt.Sprintf("Defect %q was assigned in category %s", after.Title, after.Category)
		d.sender.SendToRoom(room, d.event("defect-assigned-to-category", roomMessage, room, payload))
	case domain.TransitionResolve:
		message := fmt.Sprintf("Defect %q was resolved", after.Title)
		if after.RetestRequired {
			message += "; please retest to confirm the fix"
		}
		if after.ReportedByID != actor.ID {
			d.toUser(after.ReportedByID, d.event("defect-closed", message, after.ReportedByID, payload))
		}
	case domain.TransitionConfirmRetest:
		message := fmt.Sprintf("Defect %q was confirmed fixed and closed", after.Title)
		if after.AssignedToID != actor.ID {
			d.toUser(after.AssignedToID, d.event("defect-confirmed", message, after.AssignedToID, payload))
		}
	case domain.TransitionRejectRetest:
		message := fmt.Sprintf("Defect %q failed retest and was reopened", after.Title)
		if after.AssignedToID != actor.ID {
			d.toUser(after.AssignedToID, d.event("defect-reopened", message, after.AssignedToID, payload))
		}
	}
}
