package rest

import (
	"context"
	"net/http"

	"github.com/veritest/veritest/internal/services/tracker/domain"
)

type createCycleRequest struct {
	Name              string   `json:"name"`
	TestPlanID        string   `json:"testPlanId"`
	AssignedTesterIDs []string `json:"assignedTesterIds"`
}

func (h *Handler) createCycle(w http.ResponseWriter, r *http.Request) {
	var req createCycleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cycle, err := h.service.CreateCycle(r.Context(), actorFrom(r), domain.CreateCycleInput{
		Name:              req.Name,
		TestPlanID:        req.TestPlanID,
		AssignedTesterIDs: req.AssignedTesterIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCycleView(cycle))
}

func (h *Handler) getCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.service.GetCycle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCycleView(cycle))
}

type assignTestersRequest struct {
	TesterIDs []string `json:"testerIds"`
}

func (h *Handler) assignTesters(w http.ResponseWriter, r *http.Request) {
	var req assignTestersRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cycle, err := h.service.AssignTesters(r.Context(), actorFrom(r), r.PathValue("id"), req.TesterIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCycleView(cycle))
}

func (h *Handler) startCycle(w http.ResponseWriter, r *http.Request) {
	h.cycleTransition(w, r, h.service.StartCycle)
}

func (h *Handler) pauseCycle(w http.ResponseWriter, r *http.Request) {
	h.cycleTransition(w, r, h.service.PauseCycle)
}

func (h *Handler) resumeCycle(w http.ResponseWriter, r *http.Request) {
	h.cycleTransition(w, r, h.service.ResumeCycle)
}

type stopCycleRequest struct {
	Outcome string `json:"outcome"`
}

// stopCycle ends a cycle; the body names the outcome, Completed or
// Cancelled.
func (h *Handler) stopCycle(w http.ResponseWriter, r *http.Request) {
	var req stopCycleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	outcome, err := domain.CycleStatusFromLabel(req.Outcome)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	cycle, err := h.service.StopCycle(r.Context(), actorFrom(r), r.PathValue("id"), outcome)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCycleView(cycle))
}

func (h *Handler) cycleTransition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, actor domain.User, cycleID string) (domain.TestCycle, error)) {
	cycle, err := apply(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCycleView(cycle))
}
