//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"regexp"
	"testing"
	"time"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-[0-9A-F]{8}$`)

func placeCodOrder(t *testing.T, user string, lines map[string]int) orderResponse {
	t.Helper()

	for variantID, qty := range lines {
		resp := doJSONAs(t, http.MethodPost, "/v1/cart/items",
			map[string]any{"variant_id": variantID, "quantity": qty}, user)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("add %s to cart: expected 200, got %d", variantID, resp.StatusCode)
		}
	}

	resp := doJSONAs(t, http.MethodPost, "/v1/checkout", checkoutRequest{
		ShippingAddress: testAddress(),
		BillingAddress:  testAddress(),
		PaymentMethod:   "cod",
		PhoneVerified:   true,
	}, user)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d", resp.StatusCode)
	}
	return decodeJSON[orderResponse](t, resp)
}

func transitionOrder(t *testing.T, number, action string, body any, actorID string) orderResponse {
	t.Helper()

	resp := doJSONAsActor(t, http.MethodPost, fmt.Sprintf("/v1/orders/%s/%s", number, action), body, actorID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s %s: expected 200, got %d", number, action, resp.StatusCode)
	}
	return decodeJSON[orderResponse](t, resp)
}

func TestCheckout_CodOrder(t *testing.T) {
	o := placeCodOrder(t, "buyer-checkout", map[string]int{"var-espresso": 2, "var-mug": 1})

	if !orderNumberPattern.MatchString(o.OrderNumber) {
		t.Errorf("order number %q does not match ORD-date-suffix format", o.OrderNumber)
	}
	if o.Status != "pending" {
		t.Errorf("status: got %q, want pending", o.Status)
	}
	if o.PaymentStatus != "unpaid" {
		t.Errorf("payment status: got %q, want unpaid", o.PaymentStatus)
	}

	// 2x1299 + 2599 = 5197; per-line 10% tax floors to 259 + 259.
	if o.SubtotalCents != 5197 {
		t.Errorf("subtotal: got %d, want 5197", o.SubtotalCents)
	}
	if o.TaxCents != 518 {
		t.Errorf("tax: got %d, want 518", o.TaxCents)
	}
	want := o.SubtotalCents + o.TaxCents + o.ShippingCents - o.DiscountCents + o.CodFeeCents
	if o.TotalCents != want {
		t.Errorf("total: got %d, want %d", o.TotalCents, want)
	}
	if o.CodFeeCents == 0 {
		t.Error("cod fee not applied")
	}
	if len(o.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(o.Items))
	}

	// Checkout consumed the cart.
	resp := doGetAs(t, "/v1/cart", "buyer-checkout")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cart after checkout: expected 404, got %d", resp.StatusCode)
	}
}

func TestCheckout_CodRequiresVerifiedPhone(t *testing.T) {
	user := "buyer-unverified"
	resp := doJSONAs(t, http.MethodPost, "/v1/cart/items",
		map[string]any{"variant_id": "var-espresso", "quantity": 1}, user)
	resp.Body.Close()

	resp = doJSONAs(t, http.MethodPost, "/v1/checkout", checkoutRequest{
		ShippingAddress: testAddress(),
		BillingAddress:  testAddress(),
		PaymentMethod:   "cod",
		PhoneVerified:   false,
	}, user)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Code != "phone_unverified" {
		t.Errorf("error code: got %q, want phone_unverified", body.Code)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	resp := doJSONAs(t, http.MethodPost, "/v1/checkout", checkoutRequest{
		ShippingAddress: testAddress(),
		BillingAddress:  testAddress(),
		PaymentMethod:   "cod",
		PhoneVerified:   true,
	}, "buyer-empty-cart")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// TestCodLifecycle_DeliveredAndSettled drives one multi-vendor COD order
// from checkout to delivery, then follows the money: commissions become
// payable, a payout is created and processed, and the agent's cash is
// reconciled.
func TestCodLifecycle_DeliveredAndSettled(t *testing.T) {
	const (
		admin = "admin-ops-1"
		agent = "agent-settle"
	)

	o := placeCodOrder(t, "buyer-settle", map[string]int{"var-espresso": 2, "var-mug": 1})
	number := o.OrderNumber

	o = transitionOrder(t, number, "confirm", map[string]any{}, admin)
	if o.Status != "confirmed" {
		t.Fatalf("after confirm: status %q", o.Status)
	}

	o = transitionOrder(t, number, "processing", map[string]any{}, admin)
	if o.Status != "processing" {
		t.Fatalf("after processing: status %q", o.Status)
	}

	o = transitionOrder(t, number, "out-for-delivery", map[string]any{"agent_id": agent}, admin)
	if o.Status != "out_for_delivery" || o.DeliveryAgentID != agent {
		t.Fatalf("after out-for-delivery: status %q agent %q", o.Status, o.DeliveryAgentID)
	}

	o = transitionOrder(t, number, "delivered",
		map[string]any{"amount_collected_cents": o.TotalCents}, agent)
	if o.Status != "delivered" {
		t.Fatalf("after delivered: status %q", o.Status)
	}
	if o.PaymentStatus != "paid" {
		t.Errorf("payment status: got %q, want paid", o.PaymentStatus)
	}
	if o.CodAmountCollected == nil || *o.CodAmountCollected != o.TotalCents {
		t.Errorf("collected amount not recorded")
	}

	// Delivery settles the commissions: the ceramics vendor's share of its
	// item total (10% platform cut) is now payable.
	resp := doGet(t, "/v1/vendors/vendor-ceramics/commissions")
	list := decodeJSON[commissionListResponse](t, resp)
	resp.Body.Close()
	if len(list.Commissions) == 0 {
		t.Fatal("no payable commissions for vendor-ceramics")
	}

	var commissionIDs []string
	var gross int64
	for _, c := range list.Commissions {
		commissionIDs = append(commissionIDs, c.ID)
		gross += c.VendorAmountCents
	}

	resp = doGet(t, "/v1/vendors/vendor-ceramics/balance")
	balance := decodeJSON[balanceResponse](t, resp)
	resp.Body.Close()
	if balance.AvailableCents != gross {
		t.Errorf("balance %d != sum of payable commissions %d", balance.AvailableCents, gross)
	}

	resp = doJSONAsActor(t, http.MethodPost, "/v1/payouts",
		map[string]any{"vendor_id": "vendor-ceramics", "commission_ids": commissionIDs}, admin)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create payout: expected 201, got %d", resp.StatusCode)
	}
	p := decodeJSON[payoutResponse](t, resp)
	resp.Body.Close()
	if p.AmountCents != gross {
		t.Errorf("payout gross: got %d, want %d", p.AmountCents, gross)
	}
	if p.NetAmountCents != p.AmountCents-p.ProcessingFeeCents {
		t.Errorf("net %d != gross %d - fee %d", p.NetAmountCents, p.AmountCents, p.ProcessingFeeCents)
	}

	// Batching removed the commissions from the available balance.
	resp = doGet(t, "/v1/vendors/vendor-ceramics/balance")
	balance = decodeJSON[balanceResponse](t, resp)
	resp.Body.Close()
	if balance.AvailableCents != 0 {
		t.Errorf("balance after batching: got %d, want 0", balance.AvailableCents)
	}

	resp = doJSONAsActor(t, http.MethodPost, "/v1/payouts/"+p.ID+"/process",
		map[string]any{"transaction_id": "txn-settle-1"}, admin)
	p = decodeJSON[payoutResponse](t, resp)
	resp.Body.Close()
	if p.Status != "completed" || p.TransactionID != "txn-settle-1" {
		t.Fatalf("processed payout: status %q txn %q", p.Status, p.TransactionID)
	}

	// A completed payout cannot be processed again.
	resp = doJSONAsActor(t, http.MethodPost, "/v1/payouts/"+p.ID+"/process",
		map[string]any{"transaction_id": "txn-settle-2"}, admin)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("reprocess: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The agent's day reconciles cleanly: collected matches reported.
	today := time.Now().UTC().Format("2006-01-02")
	resp = doGet(t, "/v1/agents/"+agent+"/daily-report?date="+today)
	report := decodeJSON[dailyReportResponse](t, resp)
	resp.Body.Close()
	if report.SuccessfulDeliveries != 1 || report.TotalCollectedCents != o.TotalCents {
		t.Fatalf("daily report: %+v", report)
	}

	resp = doJSONAsActor(t, http.MethodPost, "/v1/reconciliations",
		map[string]any{"agent_id": agent, "date": today, "reported_amount_cents": o.TotalCents}, admin)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create reconciliation: expected 201, got %d", resp.StatusCode)
	}
	rec := decodeJSON[reconciliationResponse](t, resp)
	resp.Body.Close()
	if rec.Status != "verified" || rec.HasDiscrepancy {
		t.Errorf("matching count should auto-verify: %+v", rec)
	}

	// One reconciliation per agent per day.
	resp = doJSONAsActor(t, http.MethodPost, "/v1/reconciliations",
		map[string]any{"agent_id": agent, "date": today, "reported_amount_cents": o.TotalCents}, admin)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate reconciliation: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// TestCodLifecycle_FailedDeliveryAndDiscrepancy exercises the reschedule
// path and a short cash report.
func TestCodLifecycle_FailedDeliveryAndDiscrepancy(t *testing.T) {
	const (
		admin = "admin-ops-2"
		agent = "agent-short"
	)

	o := placeCodOrder(t, "buyer-reschedule", map[string]int{"var-filter": 1})
	number := o.OrderNumber

	transitionOrder(t, number, "confirm", map[string]any{}, admin)
	transitionOrder(t, number, "processing", map[string]any{}, admin)
	transitionOrder(t, number, "out-for-delivery", map[string]any{"agent_id": agent}, admin)

	o = transitionOrder(t, number, "delivery-failed",
		map[string]any{"reason": "customer unreachable"}, agent)
	if o.Status != "delivery_failed" || o.DeliveryAttempts != 1 {
		t.Fatalf("after failed attempt: status %q attempts %d", o.Status, o.DeliveryAttempts)
	}

	// Cancellation window closed at out_for_delivery; reschedule is the
	// only way forward.
	resp := doJSONAsActor(t, http.MethodPost, "/v1/orders/"+number+"/cancel",
		map[string]any{"reason": "giving up"}, admin)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("cancel after out-for-delivery: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	tomorrow := time.Now().UTC().Add(24 * time.Hour).Format("2006-01-02")
	o = transitionOrder(t, number, "out-for-delivery",
		map[string]any{"agent_id": agent, "scheduled_date": tomorrow}, admin)
	if o.Status != "out_for_delivery" || o.ScheduledDeliveryDate != tomorrow {
		t.Fatalf("after reschedule: status %q scheduled %q", o.Status, o.ScheduledDeliveryDate)
	}

	// Partial collection on the second attempt.
	partial := o.TotalCents - 500
	o = transitionOrder(t, number, "delivered",
		map[string]any{"amount_collected_cents": partial}, agent)
	if o.PaymentStatus != "partially_paid" {
		t.Errorf("payment status: got %q, want partially_paid", o.PaymentStatus)
	}

	// The day's report shows both the failure and the delivery; the agent
	// reports even less cash than collected, which flags a discrepancy.
	today := time.Now().UTC().Format("2006-01-02")
	resp = doGet(t, "/v1/agents/"+agent+"/daily-report?date="+today)
	report := decodeJSON[dailyReportResponse](t, resp)
	resp.Body.Close()
	if report.TotalDeliveries != 2 || report.SuccessfulDeliveries != 1 || report.FailedDeliveries != 1 {
		t.Fatalf("daily report: %+v", report)
	}
	if report.TotalCollectedCents != partial {
		t.Fatalf("collected: got %d, want %d", report.TotalCollectedCents, partial)
	}

	resp = doJSONAsActor(t, http.MethodPost, "/v1/reconciliations",
		map[string]any{"agent_id": agent, "date": today, "reported_amount_cents": partial - 200}, admin)
	rec := decodeJSON[reconciliationResponse](t, resp)
	resp.Body.Close()
	if rec.Status != "pending_review" || !rec.HasDiscrepancy || rec.DiscrepancyAmountCents != 200 {
		t.Fatalf("reconciliation: %+v", rec)
	}

	// An explanatory note resolves the review without a separate verify.
	resp = doJSONAsActor(t, http.MethodPost, "/v1/reconciliations/"+rec.ID+"/notes",
		map[string]any{"notes": "agent reports torn banknote rejected by customer"}, admin)
	rec = decodeJSON[reconciliationResponse](t, resp)
	resp.Body.Close()
	if rec.Status != "verified" || rec.VerifiedByID != admin {
		t.Fatalf("noted reconciliation: %+v", rec)
	}

	// Verifying an already-closed record is a no-op.
	resp = doJSONAsActor(t, http.MethodPost, "/v1/reconciliations/"+rec.ID+"/verify", map[string]any{}, admin)
	rec = decodeJSON[reconciliationResponse](t, resp)
	resp.Body.Close()
	if rec.Status != "verified" || rec.VerifiedByID != admin {
		t.Fatalf("verified reconciliation: %+v", rec)
	}
}

func TestCodTransitions_Guarded(t *testing.T) {
	o := placeCodOrder(t, "buyer-guards", map[string]int{"var-espresso": 1})

	// delivered straight from pending is not a legal move.
	resp := doJSONAsActor(t, http.MethodPost, "/v1/orders/"+o.OrderNumber+"/delivered",
		map[string]any{"amount_collected_cents": o.TotalCents}, "admin-ops-3")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Code != "invalid_transition" {
		t.Errorf("error code: got %q, want invalid_transition", body.Code)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGetAs(t, "/v1/orders/ORD-19700101-DEADBEEF", "buyer-anyone")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
