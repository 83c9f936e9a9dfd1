package rest

import (
	"net/http"

	"github.com/veritest/veritest/internal/services/tracker/domain"
)

type createDefectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
}

func (h *Handler) createDefect(w http.ResponseWriter, r *http.Request) {
	var req createDefectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	defect, err := h.service.CreateDefect(r.Context(), actorFrom(r), domain.CreateDefectInput{
		Title:       req.Title,
		Description: req.Description,
		Severity:    domain.DefectSeverityFromLabel(req.Severity),
		Category:    req.Category,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newDefectView(defect))
}

func (h *Handler) getDefect(w http.ResponseWriter, r *http.Request) {
	defect, err := h.service.GetDefect(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDefectView(defect))
}

type assignDefectRequest struct {
	AssigneeID    string `json:"assigneeId"`
	AssignedGroup string `json:"assignedGroup"`
}

func (h *Handler) assignDefect(w http.ResponseWriter, r *http.Request) {
	var req assignDefectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	defect, err := h.service.AssignDefect(r.Context(), actorFrom(r), r.PathValue("id"), req.AssigneeID, req.AssignedGroup)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDefectView(defect))
}

type resolveDefectRequest struct {
	ResolutionNotes string `json:"resolutionNotes"`
	RetestRequired  *bool  `json:"retestRequired"`
}

// resolveDefect records a fix. Retest defaults to required when the
// body omits the flag.
func (h *Handler) resolveDefect(w http.ResponseWriter, r *http.Request) {
	var req resolveDefectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	retestRequired := true
	if req.RetestRequired != nil {
		retestRequired = *req.RetestRequired
	}
	defect, err := h.service.ResolveDefect(r.Context(), actorFrom(r), r.PathValue("id"), req.ResolutionNotes, retestRequired)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDefectView(defect))
}

func (h *Handler) startDefectRetest(w http.ResponseWriter, r *http.Request) {
	defect, err := h.service.StartDefectRetest(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDefectView(defect))
}

type recordRetestRequest struct {
	Result string `json:"result"`
}

func (h *Handler) recordDefectRetest(w http.ResponseWriter, r *http.Request) {
	var req recordRetestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := domain.RetestResultFromLabel(req.Result)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	defect, err := h.service.RecordDefectRetest(r.Context(), actorFrom(r), r.PathValue("id"), result)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDefectView(defect))
}
