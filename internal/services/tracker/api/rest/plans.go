package rest

import (
	"context"
	"net/http"

	"github.com/veritest/veritest/internal/services/tracker/domain"
)

type createPlanRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedByID string `json:"createdById"`
}

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	plan, err := h.service.CreatePlan(r.Context(), actorFrom(r), domain.CreatePlanInput{
		Name:        req.Name,
		Description: req.Description,
		CreatedByID: req.CreatedByID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPlanView(plan))
}

type updatePlanRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) updatePlan(w http.ResponseWriter, r *http.Request) {
	var req updatePlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	plan, err := h.service.UpdatePlan(r.Context(), actorFrom(r), r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlanView(plan))
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlanView(plan))
}

func (h *Handler) submitPlan(w http.ResponseWriter, r *http.Request) {
	h.planTransition(w, r, h.service.SubmitPlan)
}

func (h *Handler) approvePlan(w http.ResponseWriter, r *http.Request) {
	h.planTransition(w, r, h.service.ApprovePlan)
}

func (h *Handler) rejectPlan(w http.ResponseWriter, r *http.Request) {
	h.planTransition(w, r, h.service.RejectPlan)
}

func (h *Handler) startPlan(w http.ResponseWriter, r *http.Request) {
	h.planTransition(w, r, h.service.StartPlan)
}

func (h *Handler) completePlan(w http.ResponseWriter, r *http.Request) {
	h.planTransition(w, r, h.service.CompletePlan)
}

func (h *Handler) cancelPlan(w http.ResponseWriter, r *http.Request) {
	h.planTransition(w, r, h.service.CancelPlan)
}

func (h *Handler) planTransition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, actor domain.User, planID string) (domain.TestPlan, error)) {
	plan, err := apply(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlanView(plan))
}
