package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/vendora/marketplace-core/internal/domain/order"
)

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.cod.Confirm(r.Context(), r.PathValue("number"), r.Header.Get(headerActorID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) startProcessing(w http.ResponseWriter, r *http.Request) {
	o, err := h.cod.StartProcessing(r.Context(), r.PathValue("number"), r.Header.Get(headerActorID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

type outForDeliveryRequest struct {
	AgentID string `json:"agent_id"`
	// ScheduledDate applies on the reschedule path, format 2006-01-02.
	ScheduledDate string `json:"scheduled_date"`
}

func (h *Handler) markOutForDelivery(w http.ResponseWriter, r *http.Request) {
	var req outForDeliveryRequest
	if !readJSON(w, r, &req) {
		return
	}

	var scheduled *time.Time
	if req.ScheduledDate != "" {
		d, err := time.Parse("2006-01-02", req.ScheduledDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, func(e *jx.Encoder) {
				encodeErrorBody(e, "invalid_date", "scheduled_date must be formatted YYYY-MM-DD")
			})
			return
		}
		scheduled = &d
	}

	o, err := h.cod.MarkOutForDelivery(r.Context(), r.PathValue("number"), req.AgentID, scheduled, r.Header.Get(headerActorID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

type markDeliveredRequest struct {
	AmountCollectedCents int64 `json:"amount_collected_cents"`
}

func (h *Handler) markDelivered(w http.ResponseWriter, r *http.Request) {
	var req markDeliveredRequest
	if !readJSON(w, r, &req) {
		return
	}

	o, err := h.cod.MarkDelivered(r.Context(), r.PathValue("number"), req.AmountCollectedCents, r.Header.Get(headerActorID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

type deliveryFailedRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) markDeliveryFailed(w http.ResponseWriter, r *http.Request) {
	var req deliveryFailedRequest
	if !readJSON(w, r, &req) {
		return
	}

	o, err := h.cod.MarkDeliveryFailed(r.Context(), r.PathValue("number"), req.Reason, r.Header.Get(headerActorID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if !readJSON(w, r, &req) {
		return
	}

	o, err := h.cod.Cancel(r.Context(), r.PathValue("number"), req.Reason, r.Header.Get(headerActorID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

type updateItemStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateItemStatus(w http.ResponseWriter, r *http.Request) {
	var req updateItemStatusRequest
	if !readJSON(w, r, &req) {
		return
	}

	o, err := h.items.UpdateStatus(r.Context(),
		r.PathValue("number"), r.PathValue("itemID"),
		order.VendorStatus(req.Status), r.Header.Get(headerActorID),
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}
