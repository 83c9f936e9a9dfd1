package rest

import (
	"net/http"

	"github.com/veritest/veritest/internal/services/tracker/domain"
)

type createExecutionRequest struct {
	TestCycleID      string `json:"testCycleId"`
	TestScenarioID   string `json:"testScenarioId"`
	AssignedTesterID string `json:"assignedTesterId"`
}

func (h *Handler) createExecution(w http.ResponseWriter, r *http.Request) {
	var req createExecutionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	execution, err := h.service.CreateExecution(r.Context(), actorFrom(r), domain.CreateExecutionInput{
		TestCycleID:      req.TestCycleID,
		TestScenarioID:   req.TestScenarioID,
		AssignedTesterID: req.AssignedTesterID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newExecutionView(execution))
}

func (h *Handler) getExecution(w http.ResponseWriter, r *http.Request) {
	execution, err := h.service.GetExecution(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newExecutionView(execution))
}

func (h *Handler) beginExecution(w http.ResponseWriter, r *http.Request) {
	execution, err := h.service.BeginExecution(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newExecutionView(execution))
}

type recordResultRequest struct {
	Result string `json:"result"`
	Notes  string `json:"notes"`
}

func (h *Handler) recordExecutionResult(w http.ResponseWriter, r *http.Request) {
	var req recordResultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := domain.ExecutionStatusFromLabel(req.Result)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	execution, err := h.service.RecordExecutionResult(r.Context(), actorFrom(r), r.PathValue("id"), result, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newExecutionView(execution))
}

// retestExecution creates a fresh attempt superseding a failed or
// blocked one; the response carries the new attempt.
func (h *Handler) retestExecution(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.RetestExecution(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newExecutionView(attempt))
}
