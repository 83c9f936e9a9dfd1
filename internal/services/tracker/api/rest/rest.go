// Package rest exposes the lifecycle operations over HTTP. Every route
// requires a bearer token; the guard decision itself uses the stored
// user, not the token claims.
package rest

import (
	"context"
	"net/http"

	"github.com/veritest/veritest/internal/services/tracker/auth"
	"github.com/veritest/veritest/internal/services/tracker/domain"
)

const maxRequestBodyBytes = 64 * 1024

// Handler serves the tracker REST surface.
type Handler struct {
	service  *domain.Service
	verifier *auth.Verifier
	mux      *http.ServeMux
}

// NewHandler builds the REST handler and mounts its routes.
func NewHandler(service *domain.Service, verifier *auth.Verifier) *Handler {
	h := &Handler{
		service:  service,
		verifier: verifier,
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /test-scenarios", h.createScenario)
	h.mux.HandleFunc("GET /test-scenarios/{id}", h.getScenario)
	h.mux.HandleFunc("PUT /test-scenarios/{id}", h.updateScenario)
	h.mux.HandleFunc("POST /test-scenarios/{id}/submit", h.submitScenario)
	h.mux.HandleFunc("POST /test-scenarios/{id}/approve", h.approveScenario)
	h.mux.HandleFunc("POST /test-scenarios/{id}/end-date", h.endDateScenario)
	h.mux.HandleFunc("PUT /test-scenarios/{id}/status", h.setScenarioStatus)

	h.mux.HandleFunc("POST /test-plans", h.createPlan)
	h.mux.HandleFunc("GET /test-plans/{id}", h.getPlan)
	h.mux.HandleFunc("PUT /test-plans/{id}", h.updatePlan)
	h.mux.HandleFunc("POST /test-plans/{id}/submit", h.submitPlan)
	h.mux.HandleFunc("POST /test-plans/{id}/approve", h.approvePlan)
	h.mux.HandleFunc("POST /test-plans/{id}/reject", h.rejectPlan)
	h.mux.HandleFunc("POST /test-plans/{id}/start", h.startPlan)
	h.mux.HandleFunc("POST /test-plans/{id}/complete", h.completePlan)
	h.mux.HandleFunc("POST /test-plans/{id}/cancel", h.cancelPlan)

	h.mux.HandleFunc("POST /test-cycles", h.createCycle)
	h.mux.HandleFunc("GET /test-cycles/{id}", h.getCycle)
	h.mux.HandleFunc("PUT /test-cycles/{id}/testers", h.assignTesters)
	h.mux.HandleFunc("POST /test-cycles/{id}/start", h.startCycle)
	h.mux.HandleFunc("POST /test-cycles/{id}/pause", h.pauseCycle)
	h.mux.HandleFunc("POST /test-cycles/{id}/resume", h.resumeCycle)
	h.mux.HandleFunc("POST /test-cycles/{id}/stop", h.stopCycle)

	h.mux.HandleFunc("POST /test-executions", h.createExecution)
	h.mux.HandleFunc("GET /test-executions/{id}", h.getExecution)
	h.mux.HandleFunc("POST /test-executions/{id}/begin", h.beginExecution)
	h.mux.HandleFunc("POST /test-executions/{id}/result", h.recordExecutionResult)
	h.mux.HandleFunc("POST /test-executions/{id}/retest", h.retestExecution)

	h.mux.HandleFunc("POST /defects", h.createDefect)
	h.mux.HandleFunc("GET /defects/{id}", h.getDefect)
	h.mux.HandleFunc("POST /defects/{id}/assign", h.assignDefect)
	h.mux.HandleFunc("POST /defects/{id}/resolve", h.resolveDefect)
	h.mux.HandleFunc("POST /defects/{id}/start-retest", h.startDefectRetest)
	h.mux.HandleFunc("POST /defects/{id}/retest", h.recordDefectRetest)

	return h
}

// ServeHTTP authenticates the request and dispatches to the route.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r.Header.Get("Authorization"), "")
	if token == "" {
		writeUnauthorized(w)
		return
	}
	identity, err := h.verifier.Verify(token)
	if err != nil {
		writeUnauthorized(w)
		return
	}
	actor, err := h.service.GetUser(r.Context(), identity.UserID)
	if err != nil || !actor.Active {
		writeUnauthorized(w)
		return
	}

	ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

type actorContextKey struct{}

func actorFrom(r *http.Request) domain.User {
	actor, _ := r.Context().Value(actorContextKey{}).(domain.User)
	return actor
}
