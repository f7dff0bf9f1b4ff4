// Package payout batches confirmed vendor commissions into disbursements
// and drives them through their settlement lifecycle.
package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Status is the payout lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// ErrNotFound is returned when a payout id does not exist.
var ErrNotFound = errors.New("payout not found")

// ErrNoCommissions is returned when Create is given an empty commission set.
var ErrNoCommissions = errors.New("at least one commission is required")

// StateError reports a payout operation attempted in the wrong state.
type StateError struct {
	PayoutID string
	Current  Status
	Required Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("payout %s is %q, operation requires %q", e.PayoutID, e.Current, e.Required)
}

// CommissionError reports a commission that cannot join a payout because
// it is not confirmed or is already attached elsewhere.
type CommissionError struct {
	CommissionID string
	Reason       string
}

func (e *CommissionError) Error() string {
	return fmt.Sprintf("commission %s: %s", e.CommissionID, e.Reason)
}

// Payout is one batched disbursement to a vendor.
// net_amount = amount - processing_fee.
type Payout struct {
	ID                 string
	VendorID           string
	AmountCents        int64
	ProcessingFeeCents int64
	NetAmountCents     int64
	Status             Status
	TransactionID      string
	FailureReason      string
	ProcessedAt        *time.Time
	CreatedAt          time.Time
}

// Repository defines persistence for payouts. Each state transition runs
// in its own transaction together with the commission status updates it
// implies, so a bulk run tolerates partial failure.
type Repository interface {
	Get(ctx context.Context, id string) (*Payout, error)

	// CreateWithCommissions inserts the payout and attaches the given
	// commissions in one transaction. It returns *CommissionError when any
	// commission is not confirmed or already belongs to a payout.
	CreateWithCommissions(ctx context.Context, p *Payout, commissionIDs []string) error

	// Complete moves the payout to completed and its commissions to paid.
	Complete(ctx context.Context, p *Payout) error

	// CancelAndDetach moves the payout to cancelled and detaches its
	// commissions back to confirmed, returning the amounts to the vendor's
	// available balance.
	CancelAndDetach(ctx context.Context, p *Payout) error

	// Update persists status/failure fields without touching commissions.
	Update(ctx context.Context, p *Payout) error

	// ConfirmedUnattachedTotal sums vendor_amount_cents of the vendor's
	// confirmed commissions not yet attached to any payout.
	ConfirmedUnattachedTotal(ctx context.Context, vendorID string) (int64, error)

	// ListPending returns ids of payouts currently in pending state.
	ListPending(ctx context.Context) ([]string, error)
}
