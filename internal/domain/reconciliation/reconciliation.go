// Package reconciliation matches system-computed COD cash totals against
// each delivery agent's self-reported collection. A discrepancy is not an
// error: it is a flagged state requiring human review.
package reconciliation

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Status of a reconciliation record.
type Status string

const (
	// StatusVerified: the numbers match (or an admin signed off).
	StatusVerified Status = "verified"
	// StatusPendingReview: the agent's report disagrees with the system.
	StatusPendingReview Status = "pending_review"
)

// ErrNotFound is returned when a reconciliation id does not exist.
var ErrNotFound = errors.New("reconciliation not found")

// ErrAlreadyExists is returned when the agent/date pair is already reconciled.
var ErrAlreadyExists = errors.New("reconciliation already exists for agent and date")

// DailyReport is the system-computed cash position of one agent for one day.
type DailyReport struct {
	AgentID              string
	Date                 time.Time
	TotalDeliveries      int
	SuccessfulDeliveries int
	FailedDeliveries     int
	TotalCollectedCents  int64
}

// Reconciliation is the per-agent, per-day settlement record.
type Reconciliation struct {
	ID                     string
	AgentID                string
	Date                   time.Time
	TotalDeliveries        int
	SuccessfulDeliveries   int
	FailedDeliveries       int
	TotalCollectedCents    int64
	ReportedAmountCents    int64
	HasDiscrepancy         bool
	DiscrepancyAmountCents int64
	Status                 Status
	Notes                  string
	VerifiedByID           string
	VerifiedAt             *time.Time
	CreatedAt              time.Time
}

// MonthlySummary is the additive rollup of a month of daily records. It
// never re-derives anything from raw orders.
type MonthlySummary struct {
	AgentID             string
	Year                int
	Month               time.Month
	DaysWorked          int
	TotalDeliveries     int
	TotalCollectedCents int64
	DiscrepancyDays     int
}

// Discrepancy computes the absolute difference between collected and
// reported amounts and the resulting status: exact agreement auto-verifies,
// anything else requires review.
func Discrepancy(collectedCents, reportedCents int64) (amountCents int64, has bool, status Status) {
	d := collectedCents - reportedCents
	if d < 0 {
		d = -d
	}
	if d == 0 {
		return 0, false, StatusVerified
	}
	return d, true, StatusPendingReview
}

// OrderSource supplies the delivered/failed order aggregates the daily
// report is computed from.
type OrderSource interface {
	// AgentDailyTotals returns the count of orders delivered by the agent
	// on the given day, the cash collected across them, and the count of
	// failed attempts recorded against the agent that day.
	AgentDailyTotals(ctx context.Context, agentID string, date time.Time) (delivered int, collectedCents int64, failed int, err error)
}

// Repository defines persistence for reconciliation records.
type Repository interface {
	Create(ctx context.Context, r *Reconciliation) error
	Get(ctx context.Context, id string) (*Reconciliation, error)
	Update(ctx context.Context, r *Reconciliation) error
	// ListForMonth returns the agent's daily records within the month.
	ListForMonth(ctx context.Context, agentID string, year int, month time.Month) ([]Reconciliation, error)
}
