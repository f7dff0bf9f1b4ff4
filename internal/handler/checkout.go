package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/vendora/marketplace-core/internal/domain/order"
)

type placeOrderRequest struct {
	ShippingAddress order.Address `json:"shipping_address"`
	BillingAddress  order.Address `json:"billing_address"`
	PaymentMethod   string        `json:"payment_method"`
	PhoneVerified   bool          `json:"phone_verified"`
	DiscountCents   int64         `json:"discount_cents"`
	Payment         struct {
		Succeeded     bool   `json:"succeeded"`
		TransactionID string `json:"transaction_id"`
	} `json:"payment"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !readJSON(w, r, &req) {
		return
	}

	customerID := r.Header.Get(headerUserID)
	o, err := h.checkout.PlaceOrder(r.Context(), customerID, order.PlaceOrderRequest{
		CustomerID:      customerID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
		PhoneVerified:   req.PhoneVerified,
		DiscountCents:   req.DiscountCents,
		Payment: order.PaymentOutcome{
			Succeeded:     req.Payment.Succeeded,
			TransactionID: req.Payment.TransactionID,
		},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("number"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}
