package handler

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/vendora/marketplace-core/internal/domain/cart"
	"github.com/vendora/marketplace-core/internal/domain/order"
	"github.com/vendora/marketplace-core/internal/domain/payout"
	"github.com/vendora/marketplace-core/internal/domain/reconciliation"
)

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("owner_id", func(e *jx.Encoder) { e.Str(c.OwnerID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range c.Items {
					encodeCartItem(e, it)
				}
			})
		})
		e.Field("subtotal_cents", func(e *jx.Encoder) { e.Int64(c.SubtotalCents) })
		e.Field("tax_cents", func(e *jx.Encoder) { e.Int64(c.TaxCents) })
		e.Field("total_cents", func(e *jx.Encoder) { e.Int64(c.TotalCents) })
	})
}

func encodeCartItem(e *jx.Encoder, it cart.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID) })
		e.Field("variant_id", func(e *jx.Encoder) { e.Str(it.VariantID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("unit_price_cents", func(e *jx.Encoder) { e.Int64(it.UnitPriceCents) })
	})
}

func encodeAddress(e *jx.Encoder, a order.Address) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(a.Name) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(a.Phone) })
		e.Field("line1", func(e *jx.Encoder) { e.Str(a.Line1) })
		if a.Line2 != "" {
			e.Field("line2", func(e *jx.Encoder) { e.Str(a.Line2) })
		}
		e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
		if a.Region != "" {
			e.Field("region", func(e *jx.Encoder) { e.Str(a.Region) })
		}
		e.Field("postal_code", func(e *jx.Encoder) { e.Str(a.PostalCode) })
		e.Field("country", func(e *jx.Encoder) { e.Str(a.Country) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("order_number", func(e *jx.Encoder) { e.Str(o.OrderNumber) })
		e.Field("customer_id", func(e *jx.Encoder) { e.Str(o.CustomerID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("payment_status", func(e *jx.Encoder) { e.Str(string(o.PaymentStatus)) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		if o.PaymentTransactionID != "" {
			e.Field("payment_transaction_id", func(e *jx.Encoder) { e.Str(o.PaymentTransactionID) })
		}
		e.Field("subtotal_cents", func(e *jx.Encoder) { e.Int64(o.SubtotalCents) })
		e.Field("tax_cents", func(e *jx.Encoder) { e.Int64(o.TaxCents) })
		e.Field("shipping_cents", func(e *jx.Encoder) { e.Int64(o.ShippingCents) })
		e.Field("discount_cents", func(e *jx.Encoder) { e.Int64(o.DiscountCents) })
		e.Field("cod_fee_cents", func(e *jx.Encoder) { e.Int64(o.CodFeeCents) })
		e.Field("total_cents", func(e *jx.Encoder) { e.Int64(o.TotalCents) })
		e.Field("shipping_address", func(e *jx.Encoder) { encodeAddress(e, o.ShippingAddress) })
		e.Field("billing_address", func(e *jx.Encoder) { encodeAddress(e, o.BillingAddress) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					encodeOrderItem(e, it)
				}
			})
		})
		if o.CodAmountCollected != nil {
			e.Field("cod_amount_collected_cents", func(e *jx.Encoder) { e.Int64(*o.CodAmountCollected) })
		}
		e.Field("delivery_attempts", func(e *jx.Encoder) { e.Int(o.DeliveryAttempts) })
		if o.ScheduledDeliveryDate != nil {
			e.Field("scheduled_delivery_date", func(e *jx.Encoder) {
				e.Str(o.ScheduledDeliveryDate.UTC().Format("2006-01-02"))
			})
		}
		if o.DeliveryAgentID != "" {
			e.Field("delivery_agent_id", func(e *jx.Encoder) { e.Str(o.DeliveryAgentID) })
		}
		if o.DeliveredAt != nil {
			e.Field("delivered_at", func(e *jx.Encoder) { encodeTime(e, *o.DeliveredAt) })
		}
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
	})
}

func encodeOrderItem(e *jx.Encoder, it order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
		e.Field("vendor_id", func(e *jx.Encoder) { e.Str(it.VendorID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID) })
		e.Field("variant_id", func(e *jx.Encoder) { e.Str(it.VariantID) })
		e.Field("product_name", func(e *jx.Encoder) { e.Str(it.ProductName) })
		if len(it.VariantAttributes) > 0 {
			e.Field("variant_attributes", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					for k, v := range it.VariantAttributes {
						e.Field(k, func(e *jx.Encoder) { e.Str(v) })
					}
				})
			})
		}
		e.Field("unit_price_cents", func(e *jx.Encoder) { e.Int64(it.UnitPriceCents) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("subtotal_cents", func(e *jx.Encoder) { e.Int64(it.SubtotalCents) })
		e.Field("tax_cents", func(e *jx.Encoder) { e.Int64(it.TaxCents) })
		e.Field("total_cents", func(e *jx.Encoder) { e.Int64(it.TotalCents) })
		e.Field("vendor_status", func(e *jx.Encoder) { e.Str(string(it.VendorStatus)) })
	})
}

func encodePayout(e *jx.Encoder, p *payout.Payout) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("vendor_id", func(e *jx.Encoder) { e.Str(p.VendorID) })
		e.Field("amount_cents", func(e *jx.Encoder) { e.Int64(p.AmountCents) })
		e.Field("processing_fee_cents", func(e *jx.Encoder) { e.Int64(p.ProcessingFeeCents) })
		e.Field("net_amount_cents", func(e *jx.Encoder) { e.Int64(p.NetAmountCents) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(p.Status)) })
		if p.TransactionID != "" {
			e.Field("transaction_id", func(e *jx.Encoder) { e.Str(p.TransactionID) })
		}
		if p.FailureReason != "" {
			e.Field("failure_reason", func(e *jx.Encoder) { e.Str(p.FailureReason) })
		}
		if p.ProcessedAt != nil {
			e.Field("processed_at", func(e *jx.Encoder) { encodeTime(e, *p.ProcessedAt) })
		}
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, p.CreatedAt) })
	})
}

func encodeReconciliation(e *jx.Encoder, r *reconciliation.Reconciliation) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(r.ID) })
		e.Field("agent_id", func(e *jx.Encoder) { e.Str(r.AgentID) })
		e.Field("date", func(e *jx.Encoder) { e.Str(r.Date.UTC().Format("2006-01-02")) })
		e.Field("total_deliveries", func(e *jx.Encoder) { e.Int(r.TotalDeliveries) })
		e.Field("successful_deliveries", func(e *jx.Encoder) { e.Int(r.SuccessfulDeliveries) })
		e.Field("failed_deliveries", func(e *jx.Encoder) { e.Int(r.FailedDeliveries) })
		e.Field("total_collected_cents", func(e *jx.Encoder) { e.Int64(r.TotalCollectedCents) })
		e.Field("reported_amount_cents", func(e *jx.Encoder) { e.Int64(r.ReportedAmountCents) })
		e.Field("has_discrepancy", func(e *jx.Encoder) { e.Bool(r.HasDiscrepancy) })
		e.Field("discrepancy_amount_cents", func(e *jx.Encoder) { e.Int64(r.DiscrepancyAmountCents) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(r.Status)) })
		if r.Notes != "" {
			e.Field("notes", func(e *jx.Encoder) { e.Str(r.Notes) })
		}
		if r.VerifiedByID != "" {
			e.Field("verified_by_id", func(e *jx.Encoder) { e.Str(r.VerifiedByID) })
		}
		if r.VerifiedAt != nil {
			e.Field("verified_at", func(e *jx.Encoder) { encodeTime(e, *r.VerifiedAt) })
		}
	})
}

func encodeDailyReport(e *jx.Encoder, rep *reconciliation.DailyReport) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("agent_id", func(e *jx.Encoder) { e.Str(rep.AgentID) })
		e.Field("date", func(e *jx.Encoder) { e.Str(rep.Date.UTC().Format("2006-01-02")) })
		e.Field("total_deliveries", func(e *jx.Encoder) { e.Int(rep.TotalDeliveries) })
		e.Field("successful_deliveries", func(e *jx.Encoder) { e.Int(rep.SuccessfulDeliveries) })
		e.Field("failed_deliveries", func(e *jx.Encoder) { e.Int(rep.FailedDeliveries) })
		e.Field("total_collected_cents", func(e *jx.Encoder) { e.Int64(rep.TotalCollectedCents) })
	})
}

func encodeMonthlySummary(e *jx.Encoder, sum *reconciliation.MonthlySummary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("agent_id", func(e *jx.Encoder) { e.Str(sum.AgentID) })
		e.Field("year", func(e *jx.Encoder) { e.Int(sum.Year) })
		e.Field("month", func(e *jx.Encoder) { e.Int(int(sum.Month)) })
		e.Field("days_worked", func(e *jx.Encoder) { e.Int(sum.DaysWorked) })
		e.Field("total_deliveries", func(e *jx.Encoder) { e.Int(sum.TotalDeliveries) })
		e.Field("total_collected_cents", func(e *jx.Encoder) { e.Int64(sum.TotalCollectedCents) })
		e.Field("discrepancy_days", func(e *jx.Encoder) { e.Int(sum.DiscrepancyDays) })
	})
}
