package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/vendora/marketplace-core/internal/domain/payout"
)

func (h *Handler) vendorBalance(w http.ResponseWriter, r *http.Request) {
	vendorID := r.PathValue("vendorID")
	balance, err := h.payouts.AvailableBalance(r.Context(), vendorID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("vendor_id", func(e *jx.Encoder) { e.Str(vendorID) })
			e.Field("available_cents", func(e *jx.Encoder) { e.Int64(balance) })
		})
	})
}

func (h *Handler) vendorCommissions(w http.ResponseWriter, r *http.Request) {
	list, err := h.payouts.UnattachedCommissions(r.Context(), r.PathValue("vendorID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("commissions", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, c := range list {
						e.Obj(func(e *jx.Encoder) {
							e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
							e.Field("order_item_id", func(e *jx.Encoder) { e.Str(c.OrderItemID) })
							e.Field("vendor_amount_cents", func(e *jx.Encoder) { e.Int64(c.VendorAmountCents) })
							e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, c.CreatedAt) })
						})
					}
				})
			})
		})
	})
}

type createPayoutRequest struct {
	VendorID      string   `json:"vendor_id"`
	CommissionIDs []string `json:"commission_ids"`
}

func (h *Handler) createPayout(w http.ResponseWriter, r *http.Request) {
	var req createPayoutRequest
	if !readJSON(w, r, &req) {
		return
	}

	p, err := h.payouts.Create(r.Context(), req.VendorID, req.CommissionIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodePayout(e, p) })
}

type processPayoutRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (h *Handler) processPayout(w http.ResponseWriter, r *http.Request) {
	var req processPayoutRequest
	if !readJSON(w, r, &req) {
		return
	}

	p, err := h.payouts.Process(r.Context(), r.PathValue("id"), req.TransactionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePayout(e, p) })
}

type cancelPayoutRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelPayout(w http.ResponseWriter, r *http.Request) {
	var req cancelPayoutRequest
	if !readJSON(w, r, &req) {
		return
	}

	p, err := h.payouts.Cancel(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePayout(e, p) })
}

type failPayoutRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) failPayout(w http.ResponseWriter, r *http.Request) {
	var req failPayoutRequest
	if !readJSON(w, r, &req) {
		return
	}

	p, err := h.payouts.MarkFailed(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePayout(e, p) })
}

func (h *Handler) retryPayout(w http.ResponseWriter, r *http.Request) {
	var req processPayoutRequest
	if !readJSON(w, r, &req) {
		return
	}

	p, err := h.payouts.Retry(r.Context(), r.PathValue("id"), req.TransactionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePayout(e, p) })
}

type processPayoutBatchRequest struct {
	PayoutIDs []string `json:"payout_ids"`
}

// processPayoutBatch runs a bulk payout cycle. An empty payout_ids list means
// every pending payout. Each payout gets a fresh generated transaction id;
// per-payout failures are reported in the body, never as a request-level error.
func (h *Handler) processPayoutBatch(w http.ResponseWriter, r *http.Request) {
	var req processPayoutBatchRequest
	if !readJSON(w, r, &req) {
		return
	}

	txnID := func(string) string { return "txn-" + uuid.New().String() }

	var results []payout.BatchResult
	if len(req.PayoutIDs) == 0 {
		var err error
		results, err = h.payouts.ProcessPending(r.Context(), txnID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
	} else {
		results = h.payouts.ProcessBatch(r.Context(), req.PayoutIDs, txnID)
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("results", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, res := range results {
						e.Obj(func(e *jx.Encoder) {
							e.Field("payout_id", func(e *jx.Encoder) { e.Str(res.PayoutID) })
							e.Field("ok", func(e *jx.Encoder) { e.Bool(res.Err == nil) })
							if res.Err != nil {
								e.Field("error", func(e *jx.Encoder) { e.Str(res.Err.Error()) })
							}
						})
					}
				})
			})
		})
	})
}
