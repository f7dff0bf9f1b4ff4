// Package handler is the HTTP boundary. Handlers decode requests, pull the
// caller identity from gateway-resolved headers, delegate to the domain
// services, and map domain errors to status codes. No business rules live
// here.
package handler

import (
	"net/http"

	"github.com/vendora/marketplace-core/internal/domain/cart"
	"github.com/vendora/marketplace-core/internal/domain/order"
	"github.com/vendora/marketplace-core/internal/domain/payout"
	"github.com/vendora/marketplace-core/internal/domain/reconciliation"
)

// Identity headers set by the API gateway after authentication. The core
// trusts them; token verification is the gateway's problem.
const (
	headerUserID  = "X-User-Id"
	headerActorID = "X-Actor-Id"
)

// Handler wires the domain services behind the HTTP routes.
type Handler struct {
	carts    *cart.Service
	checkout *order.Checkout
	cod      *order.CodWorkflow
	items    *order.Items
	orders   order.Repository
	payouts  *payout.Service
	recon    *reconciliation.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	carts *cart.Service,
	checkout *order.Checkout,
	cod *order.CodWorkflow,
	items *order.Items,
	orders order.Repository,
	payouts *payout.Service,
	recon *reconciliation.Service,
) *Handler {
	return &Handler{
		carts:    carts,
		checkout: checkout,
		cod:      cod,
		items:    items,
		orders:   orders,
		payouts:  payouts,
		recon:    recon,
	}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/cart", h.getCart)
	mux.HandleFunc("POST /v1/cart/items", h.addCartItem)
	mux.HandleFunc("PATCH /v1/cart/items/{variantID}", h.updateCartItem)
	mux.HandleFunc("DELETE /v1/cart/items/{variantID}", h.removeCartItem)
	mux.HandleFunc("DELETE /v1/cart", h.clearCart)

	mux.HandleFunc("POST /v1/checkout", h.placeOrder)
	mux.HandleFunc("GET /v1/orders/{number}", h.getOrder)

	mux.HandleFunc("POST /v1/orders/{number}/confirm", h.confirmOrder)
	mux.HandleFunc("POST /v1/orders/{number}/processing", h.startProcessing)
	mux.HandleFunc("POST /v1/orders/{number}/out-for-delivery", h.markOutForDelivery)
	mux.HandleFunc("POST /v1/orders/{number}/delivered", h.markDelivered)
	mux.HandleFunc("POST /v1/orders/{number}/delivery-failed", h.markDeliveryFailed)
	mux.HandleFunc("POST /v1/orders/{number}/cancel", h.cancelOrder)
	mux.HandleFunc("PATCH /v1/orders/{number}/items/{itemID}", h.updateItemStatus)

	mux.HandleFunc("GET /v1/vendors/{vendorID}/balance", h.vendorBalance)
	mux.HandleFunc("GET /v1/vendors/{vendorID}/commissions", h.vendorCommissions)
	mux.HandleFunc("POST /v1/payouts", h.createPayout)
	mux.HandleFunc("POST /v1/payouts/batch", h.processPayoutBatch)
	mux.HandleFunc("POST /v1/payouts/{id}/process", h.processPayout)
	mux.HandleFunc("POST /v1/payouts/{id}/cancel", h.cancelPayout)
	mux.HandleFunc("POST /v1/payouts/{id}/fail", h.failPayout)
	mux.HandleFunc("POST /v1/payouts/{id}/retry", h.retryPayout)

	mux.HandleFunc("GET /v1/agents/{agentID}/daily-report", h.dailyReport)
	mux.HandleFunc("GET /v1/agents/{agentID}/monthly-summary", h.monthlySummary)
	mux.HandleFunc("POST /v1/reconciliations", h.createReconciliation)
	mux.HandleFunc("POST /v1/reconciliations/{id}/verify", h.verifyReconciliation)
	mux.HandleFunc("POST /v1/reconciliations/{id}/notes", h.addReconciliationNotes)
}
