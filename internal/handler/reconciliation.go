package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/jx"
)

func badQueryParam(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, func(e *jx.Encoder) {
		encodeErrorBody(e, "invalid_query", message)
	})
}

func (h *Handler) dailyReport(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		badQueryParam(w, "date must be formatted YYYY-MM-DD")
		return
	}

	rep, err := h.recon.GenerateDailyReport(r.Context(), r.PathValue("agentID"), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDailyReport(e, rep) })
}

func (h *Handler) monthlySummary(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		badQueryParam(w, "year must be an integer")
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		badQueryParam(w, "month must be an integer between 1 and 12")
		return
	}

	sum, err := h.recon.GenerateMonthlySummary(r.Context(), r.PathValue("agentID"), year, time.Month(month))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeMonthlySummary(e, sum) })
}

type createReconciliationRequest struct {
	AgentID             string `json:"agent_id"`
	Date                string `json:"date"`
	ReportedAmountCents int64  `json:"reported_amount_cents"`
}

func (h *Handler) createReconciliation(w http.ResponseWriter, r *http.Request) {
	var req createReconciliationRequest
	if !readJSON(w, r, &req) {
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, func(e *jx.Encoder) {
			encodeErrorBody(e, "invalid_date", "date must be formatted YYYY-MM-DD")
		})
		return
	}

	rec, err := h.recon.CreateReconciliation(r.Context(), req.AgentID, date, req.ReportedAmountCents)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeReconciliation(e, rec) })
}

func (h *Handler) verifyReconciliation(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recon.Verify(r.Context(), r.PathValue("id"), r.Header.Get(headerActorID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeReconciliation(e, rec) })
}

type addNotesRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) addReconciliationNotes(w http.ResponseWriter, r *http.Request) {
	var req addNotesRequest
	if !readJSON(w, r, &req) {
		return
	}

	rec, err := h.recon.AddNotes(r.Context(), r.PathValue("id"), req.Notes, r.Header.Get(headerActorID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeReconciliation(e, rec) })
}
