package rest

import (
	"context"
	"net/http"

	"github.com/veritest/veritest/internal/services/tracker/domain"
)

type createScenarioRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	OwnerID     string `json:"ownerId"`
}

func (h *Handler) createScenario(w http.ResponseWriter, r *http.Request) {
	var req createScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	scenario, err := h.service.CreateScenario(r.Context(), actorFrom(r), domain.CreateScenarioInput{
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     req.OwnerID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newScenarioView(scenario))
}

func (h *Handler) getScenario(w http.ResponseWriter, r *http.Request) {
	scenario, err := h.service.GetScenario(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newScenarioView(scenario))
}

type updateScenarioRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// updateScenario applies content edits and, when the body carries a
// status, the transition that lands on it. Content changes apply first
// so a draft can be edited and submitted in one request.
func (h *Handler) updateScenario(w http.ResponseWriter, r *http.Request) {
	var req updateScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor := actorFrom(r)
	scenarioID := r.PathValue("id")

	if req.Status == "" {
		scenario, err := h.service.UpdateScenario(r.Context(), actor, scenarioID, req.Title, req.Description)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newScenarioView(scenario))
		return
	}

	target, err := domain.ScenarioStatusFromLabel(req.Status)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.Title != "" || req.Description != "" {
		if _, err := h.service.UpdateScenario(r.Context(), actor, scenarioID, req.Title, req.Description); err != nil {
			writeError(w, err)
			return
		}
	}
	scenario, err := h.service.SetScenarioStatus(r.Context(), actor, scenarioID, target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newScenarioView(scenario))
}

func (h *Handler) submitScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioTransition(w, r, h.service.SubmitScenarioForReview)
}

func (h *Handler) approveScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioTransition(w, r, h.service.ApproveScenario)
}

func (h *Handler) endDateScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioTransition(w, r, h.service.EndDateScenario)
}

func (h *Handler) scenarioTransition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, actor domain.User, scenarioID string) (domain.TestScenario, error)) {
	scenario, err := apply(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newScenarioView(scenario))
}

type setScenarioStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) setScenarioStatus(w http.ResponseWriter, r *http.Request) {
	var req setScenarioStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	target, err := domain.ScenarioStatusFromLabel(req.Status)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	scenario, err := h.service.SetScenarioStatus(r.Context(), actorFrom(r), r.PathValue("id"), target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newScenarioView(scenario))
}
