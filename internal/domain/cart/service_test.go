package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/marketplace-core/internal/domain/inventory"
)

// --- Mock implementations ---

type mockCartRepo struct {
	carts map[string]*Cart
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]*Cart)}
}

func (m *mockCartRepo) GetByOwner(_ context.Context, ownerID string) (*Cart, error) {
	c, ok := m.carts[ownerID]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockCartRepo) Save(_ context.Context, c *Cart) error {
	m.carts[c.OwnerID] = c
	return nil
}

func (m *mockCartRepo) Delete(_ context.Context, ownerID string) error {
	delete(m.carts, ownerID)
	return nil
}

// mockLedger tracks stock and active reservations in memory, mirroring the
// additive upsert semantics of the real implementation.
type mockLedger struct {
	units    map[string]*inventory.SellableUnit
	reserved map[uuid.UUID]map[string]int
	released []uuid.UUID
}

func newMockLedger(units ...inventory.SellableUnit) *mockLedger {
	m := &mockLedger{
		units:    make(map[string]*inventory.SellableUnit),
		reserved: make(map[uuid.UUID]map[string]int),
	}
	for i := range units {
		m.units[units[i].ID] = &units[i]
	}
	return m
}

func (m *mockLedger) GetUnit(_ context.Context, unitID string) (*inventory.SellableUnit, error) {
	u, ok := m.units[unitID]
	if !ok {
		return nil, inventory.ErrUnitNotFound
	}
	return u, nil
}

func (m *mockLedger) AvailableQuantity(_ context.Context, unitID string) (int, error) {
	return m.available(unitID), nil
}

func (m *mockLedger) available(unitID string) int {
	held := 0
	for _, holds := range m.reserved {
		held += holds[unitID]
	}
	return inventory.Available(m.units[unitID].StockQuantity, held)
}

func (m *mockLedger) Reserve(_ context.Context, unitID string, qty int, groupID uuid.UUID, _ time.Duration) (*inventory.Reservation, error) {
	if avail := m.available(unitID); avail < qty {
		return nil, &inventory.InsufficientStockError{UnitID: unitID, Requested: qty, Available: avail}
	}
	if m.reserved[groupID] == nil {
		m.reserved[groupID] = make(map[string]int)
	}
	m.reserved[groupID][unitID] += qty
	return &inventory.Reservation{GroupID: groupID, UnitID: unitID, Quantity: m.reserved[groupID][unitID]}, nil
}

func (m *mockLedger) Commit(_ context.Context, groupID uuid.UUID) error {
	for unitID, qty := range m.reserved[groupID] {
		m.units[unitID].StockQuantity -= qty
	}
	delete(m.reserved, groupID)
	return nil
}

func (m *mockLedger) ReduceReservation(_ context.Context, groupID uuid.UUID, unitID string, qty int) error {
	m.reserved[groupID][unitID] -= qty
	if m.reserved[groupID][unitID] <= 0 {
		delete(m.reserved[groupID], unitID)
	}
	return nil
}

func (m *mockLedger) Release(_ context.Context, groupID uuid.UUID) error {
	m.released = append(m.released, groupID)
	delete(m.reserved, groupID)
	return nil
}

func (m *mockLedger) SweepExpired(_ context.Context) (int, error) { return 0, nil }

var _ inventory.Ledger = (*mockLedger)(nil)

// --- Helpers ---

func newTestService(ledger *mockLedger) (*Service, *mockCartRepo) {
	repo := newMockCartRepo()
	svc := NewService(repo, ledger, Config{
		TaxRatePercent: decimal.RequireFromString("10"),
		ReservationTTL: 30 * time.Minute,
	})
	return svc, repo
}

func testUnit(id string, price int64, stock int) inventory.SellableUnit {
	return inventory.SellableUnit{
		ID:            id,
		VendorID:      "vendor-1",
		ProductID:     "prod-" + id,
		SKU:           "SKU-" + id,
		Name:          "Unit " + id,
		PriceCents:    price,
		StockQuantity: stock,
	}
}

// --- Tests ---

func TestAddItem_CreatesCartAndReserves(t *testing.T) {
	ledger := newMockLedger(testUnit("v1", 1000, 5))
	svc, _ := newTestService(ledger)

	c, err := svc.AddItem(context.Background(), "alice", "v1", 2)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, int64(1000), c.Items[0].UnitPriceCents)
	assert.Equal(t, int64(2000), c.SubtotalCents)
	assert.Equal(t, int64(200), c.TaxCents)
	assert.Equal(t, int64(2200), c.TotalCents)
	assert.Equal(t, 2, ledger.reserved[c.ReservationGroupID]["v1"])
}

func TestAddItem_InsufficientStock(t *testing.T) {
	ledger := newMockLedger(testUnit("v1", 1000, 2))
	svc, repo := newTestService(ledger)

	_, err := svc.AddItem(context.Background(), "alice", "v1", 3)

	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "v1", stockErr.UnitID)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)

	// Failed reservation leaves no cart behind.
	assert.Empty(t, repo.carts)
}

func TestAddItem_MergesDuplicateVariant(t *testing.T) {
	ledger := newMockLedger(testUnit("v1", 500, 10))
	svc, _ := newTestService(ledger)

	_, err := svc.AddItem(context.Background(), "alice", "v1", 2)
	require.NoError(t, err)
	c, err := svc.AddItem(context.Background(), "alice", "v1", 3)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, 5, ledger.reserved[c.ReservationGroupID]["v1"])
}

func TestAddItem_OwnReservationIsAdditive(t *testing.T) {
	// Stock 5, own hold 3: adding 2 more grows the same hold to 5. A sixth
	// unit would push the total hold past stock and must fail.
	ledger := newMockLedger(testUnit("v1", 500, 5))
	svc, _ := newTestService(ledger)

	_, err := svc.AddItem(context.Background(), "alice", "v1", 3)
	require.NoError(t, err)
	c, err := svc.AddItem(context.Background(), "alice", "v1", 2)
	require.NoError(t, err)

	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, 5, ledger.reserved[c.ReservationGroupID]["v1"])

	_, err = svc.AddItem(context.Background(), "alice", "v1", 1)
	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 0, stockErr.Available)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	svc, _ := newTestService(newMockLedger(testUnit("v1", 500, 5)))

	_, err := svc.AddItem(context.Background(), "alice", "v1", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateQuantity_AdjustsReservationByDelta(t *testing.T) {
	ledger := newMockLedger(testUnit("v1", 1000, 10))
	svc, _ := newTestService(ledger)

	c, err := svc.AddItem(context.Background(), "alice", "v1", 4)
	require.NoError(t, err)

	c, err = svc.UpdateQuantity(context.Background(), "alice", "v1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, 2, ledger.reserved[c.ReservationGroupID]["v1"])
	assert.Equal(t, int64(2200), c.TotalCents)

	c, err = svc.UpdateQuantity(context.Background(), "alice", "v1", 6)
	require.NoError(t, err)
	assert.Equal(t, 6, c.Items[0].Quantity)
	assert.Equal(t, 6, ledger.reserved[c.ReservationGroupID]["v1"])
}

func TestUpdateQuantity_ItemNotInCart(t *testing.T) {
	ledger := newMockLedger(testUnit("v1", 1000, 10), testUnit("v2", 2000, 10))
	svc, _ := newTestService(ledger)

	_, err := svc.AddItem(context.Background(), "alice", "v1", 1)
	require.NoError(t, err)

	_, err = svc.UpdateQuantity(context.Background(), "alice", "v2", 2)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemoveItem_ReleasesHoldAndRecomputes(t *testing.T) {
	ledger := newMockLedger(testUnit("v1", 1000, 10), testUnit("v2", 2000, 10))
	svc, _ := newTestService(ledger)

	_, err := svc.AddItem(context.Background(), "alice", "v1", 2)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), "alice", "v2", 1)
	require.NoError(t, err)

	c, err := svc.RemoveItem(context.Background(), "alice", "v1")
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, "v2", c.Items[0].VariantID)
	assert.Equal(t, int64(2000), c.SubtotalCents)
	assert.Zero(t, ledger.reserved[c.ReservationGroupID]["v1"])
}

func TestClear_ReleasesGroupAndDeletesCart(t *testing.T) {
	ledger := newMockLedger(testUnit("v1", 1000, 10))
	svc, repo := newTestService(ledger)

	c, err := svc.AddItem(context.Background(), "alice", "v1", 2)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(context.Background(), "alice"))
	assert.Empty(t, repo.carts)
	assert.Contains(t, ledger.released, c.ReservationGroupID)
}

func TestClear_NoCartIsNoop(t *testing.T) {
	svc, _ := newTestService(newMockLedger())
	require.NoError(t, svc.Clear(context.Background(), "nobody"))
}
