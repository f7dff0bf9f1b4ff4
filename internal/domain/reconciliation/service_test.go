package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dayTotals struct {
	delivered int
	collected int64
	failed    int
}

type mockOrderSource struct {
	totals map[string]dayTotals // agentID|yyyy-mm-dd
	err    error
}

func (m *mockOrderSource) AgentDailyTotals(_ context.Context, agentID string, date time.Time) (int, int64, int, error) {
	if m.err != nil {
		return 0, 0, 0, m.err
	}
	t := m.totals[agentID+"|"+date.Format("2006-01-02")]
	return t.delivered, t.collected, t.failed, nil
}

type mockReconRepo struct {
	records map[string]*Reconciliation
	byDay   map[string]string // agentID|yyyy-mm-dd -> record id
}

func newMockReconRepo() *mockReconRepo {
	return &mockReconRepo{
		records: make(map[string]*Reconciliation),
		byDay:   make(map[string]string),
	}
}

func dayKey(agentID string, date time.Time) string {
	return agentID + "|" + date.Format("2006-01-02")
}

func (m *mockReconRepo) Create(_ context.Context, r *Reconciliation) error {
	key := dayKey(r.AgentID, r.Date)
	if _, ok := m.byDay[key]; ok {
		return ErrAlreadyExists
	}
	cp := *r
	m.records[r.ID] = &cp
	m.byDay[key] = r.ID
	return nil
}

func (m *mockReconRepo) Get(_ context.Context, id string) (*Reconciliation, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockReconRepo) Update(_ context.Context, r *Reconciliation) error {
	if _, ok := m.records[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *mockReconRepo) ListForMonth(_ context.Context, agentID string, year int, month time.Month) ([]Reconciliation, error) {
	var out []Reconciliation
	for _, r := range m.records {
		if r.AgentID == agentID && r.Date.Year() == year && r.Date.Month() == month {
			out = append(out, *r)
		}
	}
	return out, nil
}

var _ Repository = (*mockReconRepo)(nil)

var reportDate = time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

func newTestService(src *mockOrderSource, repo *mockReconRepo) *Service {
	svc := NewService(src, repo)
	svc.now = func() time.Time {
		return time.Date(2026, 8, 29, 21, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestGenerateDailyReport(t *testing.T) {
	src := &mockOrderSource{totals: map[string]dayTotals{
		dayKey("agent-7", reportDate): {delivered: 8, collected: 45_500, failed: 2},
	}}
	svc := newTestService(src, newMockReconRepo())

	rep, err := svc.GenerateDailyReport(context.Background(), "agent-7", reportDate)
	require.NoError(t, err)

	assert.Equal(t, 10, rep.TotalDeliveries)
	assert.Equal(t, 8, rep.SuccessfulDeliveries)
	assert.Equal(t, 2, rep.FailedDeliveries)
	assert.Equal(t, int64(45_500), rep.TotalCollectedCents)

	// Read-only: a second run over unchanged orders is identical.
	again, err := svc.GenerateDailyReport(context.Background(), "agent-7", reportDate)
	require.NoError(t, err)
	assert.Equal(t, rep, again)
}

func TestDiscrepancy(t *testing.T) {
	tests := []struct {
		name       string
		collected  int64
		reported   int64
		wantAmount int64
		wantHas    bool
		wantStatus Status
	}{
		{"exact match verifies", 45_500, 45_500, 0, false, StatusVerified},
		{"short report flags", 45_500, 44_000, 1500, true, StatusPendingReview},
		{"over report flags", 45_500, 46_000, 500, true, StatusPendingReview},
		{"zero day matches", 0, 0, 0, false, StatusVerified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, has, status := Discrepancy(tt.collected, tt.reported)
			assert.Equal(t, tt.wantAmount, amount)
			assert.Equal(t, tt.wantHas, has)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestCreateReconciliation_MatchAutoVerifies(t *testing.T) {
	src := &mockOrderSource{totals: map[string]dayTotals{
		dayKey("agent-7", reportDate): {delivered: 8, collected: 45_500, failed: 2},
	}}
	repo := newMockReconRepo()
	svc := newTestService(src, repo)

	r, err := svc.CreateReconciliation(context.Background(), "agent-7", reportDate, 45_500)
	require.NoError(t, err)

	assert.Equal(t, StatusVerified, r.Status)
	assert.False(t, r.HasDiscrepancy)
	assert.Zero(t, r.DiscrepancyAmountCents)
	assert.Equal(t, 10, r.TotalDeliveries)
	assert.Equal(t, int64(45_500), r.TotalCollectedCents)
	assert.Equal(t, int64(45_500), r.ReportedAmountCents)
	assert.NotEmpty(t, r.ID)
}

func TestCreateReconciliation_MismatchPendsReview(t *testing.T) {
	src := &mockOrderSource{totals: map[string]dayTotals{
		dayKey("agent-7", reportDate): {delivered: 8, collected: 45_500, failed: 2},
	}}
	svc := newTestService(src, newMockReconRepo())

	r, err := svc.CreateReconciliation(context.Background(), "agent-7", reportDate, 44_000)
	require.NoError(t, err)

	assert.Equal(t, StatusPendingReview, r.Status)
	assert.True(t, r.HasDiscrepancy)
	assert.Equal(t, int64(1500), r.DiscrepancyAmountCents)
}

func TestCreateReconciliation_OncePerAgentDay(t *testing.T) {
	src := &mockOrderSource{totals: map[string]dayTotals{}}
	repo := newMockReconRepo()
	svc := newTestService(src, repo)

	_, err := svc.CreateReconciliation(context.Background(), "agent-7", reportDate, 0)
	require.NoError(t, err)

	_, err = svc.CreateReconciliation(context.Background(), "agent-7", reportDate, 0)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestVerify(t *testing.T) {
	src := &mockOrderSource{totals: map[string]dayTotals{
		dayKey("agent-7", reportDate): {delivered: 1, collected: 5000},
	}}
	repo := newMockReconRepo()
	svc := newTestService(src, repo)

	r, err := svc.CreateReconciliation(context.Background(), "agent-7", reportDate, 4000)
	require.NoError(t, err)
	require.Equal(t, StatusPendingReview, r.Status)

	got, err := svc.Verify(context.Background(), r.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, got.Status)
	assert.Equal(t, "admin-1", got.VerifiedByID)
	require.NotNil(t, got.VerifiedAt)

	// Verifying again keeps the first sign-off.
	again, err := svc.Verify(context.Background(), r.ID, "admin-2")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", again.VerifiedByID)
}

func TestVerify_NotFound(t *testing.T) {
	svc := newTestService(&mockOrderSource{}, newMockReconRepo())

	_, err := svc.Verify(context.Background(), "nope", "admin-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAddNotes_Appends(t *testing.T) {
	src := &mockOrderSource{totals: map[string]dayTotals{
		dayKey("agent-7", reportDate): {delivered: 1, collected: 5000},
	}}
	repo := newMockReconRepo()
	svc := newTestService(src, repo)

	r, err := svc.CreateReconciliation(context.Background(), "agent-7", reportDate, 4000)
	require.NoError(t, err)

	got, err := svc.AddNotes(context.Background(), r.ID, "agent reports a customer refund", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "agent reports a customer refund", got.Notes)

	// An explanatory note resolves the review.
	assert.Equal(t, StatusVerified, got.Status)
	assert.Equal(t, "admin-1", got.VerifiedByID)
	require.NotNil(t, got.VerifiedAt)

	// Further notes annotate without reassigning the verifier.
	got, err = svc.AddNotes(context.Background(), r.ID, "refund receipt attached", "admin-2")
	require.NoError(t, err)
	assert.Equal(t, "agent reports a customer refund\nrefund receipt attached", got.Notes)
	assert.Equal(t, "admin-1", got.VerifiedByID)
}

func TestGenerateMonthlySummary(t *testing.T) {
	repo := newMockReconRepo()
	src := &mockOrderSource{totals: map[string]dayTotals{}}
	svc := newTestService(src, repo)

	days := []struct {
		date      time.Time
		delivered int
		collected int64
		reported  int64
	}{
		{time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), 5, 20_000, 20_000},
		{time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC), 3, 12_000, 11_500},
		{time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), 7, 31_000, 31_000},
		// Outside the month; must not count.
		{time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC), 4, 9_000, 9_000},
	}
	for _, d := range days {
		src.totals[dayKey("agent-7", d.date)] = dayTotals{delivered: d.delivered, collected: d.collected}
		_, err := svc.CreateReconciliation(context.Background(), "agent-7", d.date, d.reported)
		require.NoError(t, err)
	}

	sum, err := svc.GenerateMonthlySummary(context.Background(), "agent-7", 2026, time.August)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.DaysWorked)
	assert.Equal(t, 15, sum.TotalDeliveries)
	assert.Equal(t, int64(63_000), sum.TotalCollectedCents)
	assert.Equal(t, 1, sum.DiscrepancyDays)

	// No records for another agent.
	empty, err := svc.GenerateMonthlySummary(context.Background(), "agent-9", 2026, time.August)
	require.NoError(t, err)
	assert.Zero(t, empty.DaysWorked)
}
