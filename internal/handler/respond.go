package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/vendora/marketplace-core/internal/domain/cart"
	"github.com/vendora/marketplace-core/internal/domain/commission"
	"github.com/vendora/marketplace-core/internal/domain/inventory"
	"github.com/vendora/marketplace-core/internal/domain/order"
	"github.com/vendora/marketplace-core/internal/domain/payout"
	"github.com/vendora/marketplace-core/internal/domain/reconciliation"
)

// writeJSON encodes a response body with jx and writes it with the status.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := &jx.Encoder{}
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// readJSON decodes the request body into dst, responding 400 on malformed
// input. Returns false when the request has already been answered.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, func(e *jx.Encoder) {
			encodeErrorBody(e, "invalid_json", "request body is not valid JSON")
		})
		return false
	}
	return true
}

func encodeErrorBody(e *jx.Encoder, code, message string) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
}

// writeError maps a domain error to an HTTP response. Unknown errors are
// logged and reported as a bare 500 so internals never leak.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		message = "internal error"
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		encodeErrorBody(e, code, message)
	})
}

// errorStatus classifies domain errors into HTTP statuses. Conflict-class
// errors (stock races, state machine guards) are 409; input the caller can
// correct is 400/422; everything unclassified is a 500.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, inventory.ErrUnitNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, commission.ErrNotFound),
		errors.Is(err, payout.ErrNotFound),
		errors.Is(err, reconciliation.ErrNotFound):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, payout.ErrNoCommissions):
		return http.StatusBadRequest, "invalid_request"

	case errors.Is(err, order.ErrPhoneUnverified):
		return http.StatusUnprocessableEntity, "phone_unverified"

	case errors.Is(err, order.ErrNotCodOrder):
		return http.StatusUnprocessableEntity, "not_cod_order"

	case errors.Is(err, reconciliation.ErrAlreadyExists):
		return http.StatusConflict, "already_reconciled"
	}

	var stockErr *inventory.InsufficientStockError
	if errors.As(err, &stockErr) {
		return http.StatusConflict, "insufficient_stock"
	}

	var codAmountErr *order.CodAmountError
	if errors.As(err, &codAmountErr) {
		return http.StatusUnprocessableEntity, "cod_amount_out_of_range"
	}

	var transitionErr *order.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return http.StatusConflict, "invalid_transition"
	}

	var cancelErr *order.CannotCancelError
	if errors.As(err, &cancelErr) {
		return http.StatusConflict, "cannot_cancel"
	}

	var vendorErr *order.VendorStatusError
	if errors.As(err, &vendorErr) {
		return http.StatusConflict, "invalid_item_transition"
	}

	var stateErr *payout.StateError
	if errors.As(err, &stateErr) {
		return http.StatusConflict, "invalid_payout_state"
	}

	var commErr *payout.CommissionError
	if errors.As(err, &commErr) {
		return http.StatusUnprocessableEntity, "ineligible_commission"
	}

	return http.StatusInternalServerError, "internal"
}
