//go:build integration

package integration

import (
	"net/http"
	"testing"
)

// Seeded catalog (tests/integration/testdata/catalog.jsonl.gz):
//
//	var-espresso  vendor-beans     1299 cents  stock 50
//	var-filter    vendor-beans     1199 cents  stock 40
//	var-mug       vendor-ceramics  2599 cents  stock 8
//	var-grinder   vendor-ceramics  8999 cents  stock 1
//
// The API runs with the default 10% tax rate.

func TestCart_EmptyForNewUser(t *testing.T) {
	resp := doGetAs(t, "/v1/cart", "cart-user-fresh")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCart_AddItemComputesTotals(t *testing.T) {
	resp := doJSONAs(t, http.MethodPost, "/v1/cart/items",
		map[string]any{"variant_id": "var-espresso", "quantity": 2}, "cart-user-totals")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	c := decodeJSON[cartResponse](t, resp)
	if len(c.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(c.Items))
	}
	if c.Items[0].UnitPriceCents != 1299 {
		t.Errorf("unit price: got %d, want 1299", c.Items[0].UnitPriceCents)
	}
	if c.SubtotalCents != 2598 {
		t.Errorf("subtotal: got %d, want 2598", c.SubtotalCents)
	}
	// floor(2598 * 10%) = 259
	if c.TaxCents != 259 {
		t.Errorf("tax: got %d, want 259", c.TaxCents)
	}
	if c.TotalCents != 2857 {
		t.Errorf("total: got %d, want 2857", c.TotalCents)
	}
}

func TestCart_DuplicateVariantMergesLine(t *testing.T) {
	user := "cart-user-merge"

	resp := doJSONAs(t, http.MethodPost, "/v1/cart/items",
		map[string]any{"variant_id": "var-filter", "quantity": 1}, user)
	resp.Body.Close()

	resp = doJSONAs(t, http.MethodPost, "/v1/cart/items",
		map[string]any{"variant_id": "var-filter", "quantity": 2}, user)
	defer resp.Body.Close()

	c := decodeJSON[cartResponse](t, resp)
	if len(c.Items) != 1 {
		t.Fatalf("expected 1 line after merge, got %d", len(c.Items))
	}
	if c.Items[0].Quantity != 3 {
		t.Errorf("quantity: got %d, want 3", c.Items[0].Quantity)
	}
}

func TestCart_InvalidQuantity(t *testing.T) {
	resp := doJSONAs(t, http.MethodPost, "/v1/cart/items",
		map[string]any{"variant_id": "var-espresso", "quantity": 0}, "cart-user-invalid")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCart_UnknownVariant(t *testing.T) {
	resp := doJSONAs(t, http.MethodPost, "/v1/cart/items",
		map[string]any{"variant_id": "var-nonexistent", "quantity": 1}, "cart-user-unknown")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCart_InsufficientStock(t *testing.T) {
	// var-grinder has exactly 1 unit in stock.
	resp := doJSONAs(t, http.MethodPost, "/v1/cart/items",
		map[string]any{"variant_id": "var-grinder", "quantity": 2}, "cart-user-stock")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Code != "insufficient_stock" {
		t.Errorf("error code: got %q, want %q", body.Code, "insufficient_stock")
	}
}

func TestCart_UpdateRemoveClear(t *testing.T) {
	user := "cart-user-lifecycle"

	resp := doJSONAs(t, http.MethodPost, "/v1/cart/items",
		map[string]any{"variant_id": "var-espresso", "quantity": 3}, user)
	resp.Body.Close()
	resp = doJSONAs(t, http.MethodPost, "/v1/cart/items",
		map[string]any{"variant_id": "var-mug", "quantity": 1}, user)
	resp.Body.Close()

	resp = doJSONAs(t, http.MethodPatch, "/v1/cart/items/var-espresso",
		map[string]any{"quantity": 1}, user)
	c := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	// 1299 + 2599
	if c.SubtotalCents != 3898 {
		t.Errorf("subtotal after update: got %d, want 3898", c.SubtotalCents)
	}

	resp = doJSONAs(t, http.MethodDelete, "/v1/cart/items/var-mug", nil, user)
	c = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if len(c.Items) != 1 || c.SubtotalCents != 1299 {
		t.Errorf("after remove: %d lines, subtotal %d; want 1 line, 1299", len(c.Items), c.SubtotalCents)
	}

	resp = doJSONAs(t, http.MethodDelete, "/v1/cart", nil, user)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear: expected 204, got %d", resp.StatusCode)
	}

	resp = doGetAs(t, "/v1/cart", user)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("after clear: expected 404, got %d", resp.StatusCode)
	}
}
