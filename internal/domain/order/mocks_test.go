package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vendora/marketplace-core/internal/domain/cart"
	"github.com/vendora/marketplace-core/internal/domain/event"
)

type mockCartRepo struct {
	carts map[string]*cart.Cart
}

func newMockCartRepo(carts ...*cart.Cart) *mockCartRepo {
	m := &mockCartRepo{carts: make(map[string]*cart.Cart)}
	for _, c := range carts {
		m.carts[c.OwnerID] = c
	}
	return m
}

func (m *mockCartRepo) GetByOwner(_ context.Context, ownerID string) (*cart.Cart, error) {
	c, ok := m.carts[ownerID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return c, nil
}

func (m *mockCartRepo) Save(_ context.Context, c *cart.Cart) error {
	m.carts[c.OwnerID] = c
	return nil
}

func (m *mockCartRepo) Delete(_ context.Context, ownerID string) error {
	delete(m.carts, ownerID)
	return nil
}

type mockCheckoutStore struct {
	created *Order
	err     error
}

func (m *mockCheckoutStore) CreateOrder(_ context.Context, o *Order, _ *cart.Cart) error {
	if m.err != nil {
		return m.err
	}
	m.created = o
	return nil
}

type mockOrderRepo struct {
	orders map[string]*Order
	logs   []StatusLog
	err    error
}

func newMockOrderRepo(orders ...*Order) *mockOrderRepo {
	m := &mockOrderRepo{orders: make(map[string]*Order)}
	for _, o := range orders {
		m.orders[o.OrderNumber] = o
	}
	return m
}

func (m *mockOrderRepo) Get(_ context.Context, orderNumber string) (*Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orders[orderNumber]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, o *Order, log StatusLog) error {
	m.orders[o.OrderNumber] = o
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockOrderRepo) UpdateItemStatus(_ context.Context, o *Order, _ string, log StatusLog) error {
	m.orders[o.OrderNumber] = o
	m.logs = append(m.logs, log)
	return nil
}

type mockPublisher struct {
	events []event.Event
}

func (m *mockPublisher) Publish(_ context.Context, ev event.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *mockPublisher) lastType() event.Type {
	if len(m.events) == 0 {
		return ""
	}
	return m.events[len(m.events)-1].Type
}

type mockFinalizer struct {
	finalized []string
	settled   []string
	err       error
}

func (m *mockFinalizer) FinalizeOrder(_ context.Context, o *Order) error {
	if m.err != nil {
		return m.err
	}
	m.finalized = append(m.finalized, o.OrderNumber)
	return nil
}

func (m *mockFinalizer) SettleOrder(_ context.Context, o *Order) error {
	if m.err != nil {
		return m.err
	}
	m.settled = append(m.settled, o.OrderNumber)
	return nil
}

func testCart(ownerID string, items ...cart.Item) *cart.Cart {
	return &cart.Cart{
		ID:                 uuid.New().String(),
		OwnerID:            ownerID,
		ReservationGroupID: uuid.New(),
		Items:              items,
	}
}

func testCodOrder(number string, status Status, totalCents int64) *Order {
	return &Order{
		OrderNumber:   number,
		CustomerID:    "cust-1",
		Status:        status,
		PaymentStatus: PaymentUnpaid,
		PaymentMethod: PaymentMethodCOD,
		TotalCents:    totalCents,
		Items: []Item{
			{ID: "item-1", OrderNumber: number, VendorID: "vendor-1", TotalCents: totalCents, VendorStatus: VendorPending},
		},
		CreatedAt: time.Now().UTC(),
	}
}
