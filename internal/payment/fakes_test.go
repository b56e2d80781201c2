package payment

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/KromaEnergia/api-pagos/internal/settlement"
	"github.com/KromaEnergia/api-pagos/internal/student"
)

var fixedNow = time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)

func today() time.Time { return time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC) }

/* ============================== Store ============================== */

type memStore struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]Payment
	saves  int

	SaveErr error
}

func newMemStore() *memStore { return &memStore{nextID: 1, rows: map[uint]Payment{}} }

func (m *memStore) Create(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID
	m.nextID++
	m.rows[p.ID] = *p
	return nil
}

func (m *memStore) Get(_ context.Context, id uint) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *memStore) ListAll(_ context.Context) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Payment, 0, len(m.rows))
	for _, p := range m.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListByOwner(ctx context.Context, studentID uint) ([]Payment, error) {
	all, _ := m.ListAll(ctx)
	out := []Payment{}
	for _, p := range all {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) Save(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.rows[p.ID] = *p
	return nil
}

func (m *memStore) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memStore) put(p Payment) *Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.nextID
	}
	if p.ID >= m.nextID {
		m.nextID = p.ID + 1
	}
	m.rows[p.ID] = p
	return &p
}

/* ============================== Directory ============================== */

type fakeDirectory map[uint]student.Student

func (d fakeDirectory) FindByID(_ context.Context, id uint) (*student.Student, error) {
	s, ok := d[id]
	if !ok {
		return nil, student.ErrNotFound
	}
	return &s, nil
}

/* ============================== Gateway ============================== */

type mockGateway struct {
	CreateOrderFunc  func(ctx context.Context, in settlement.OrderInput) (*settlement.Order, error)
	CaptureOrderFunc func(ctx context.Context, orderID string) (*settlement.CaptureResult, error)

	creates  []settlement.OrderInput
	captures []string
}

func (g *mockGateway) CreateOrder(ctx context.Context, in settlement.OrderInput) (*settlement.Order, error) {
	g.creates = append(g.creates, in)
	if g.CreateOrderFunc != nil {
		return g.CreateOrderFunc(ctx, in)
	}
	return &settlement.Order{ID: "ORDER-1", ApprovalURL: "https://paypal.test/approve?token=ORDER-1"}, nil
}

func (g *mockGateway) CaptureOrder(ctx context.Context, orderID string) (*settlement.CaptureResult, error) {
	g.captures = append(g.captures, orderID)
	if g.CaptureOrderFunc != nil {
		return g.CaptureOrderFunc(ctx, orderID)
	}
	return capturedWith(orderID, "CAPT123"), nil
}

func capturedWith(orderID, txID string) *settlement.CaptureResult {
	raw, _ := json.Marshal(map[string]any{
		"id":     orderID,
		"status": "COMPLETED",
		"purchase_units": []any{map[string]any{
			"payments": map[string]any{"captures": []any{map[string]any{"id": txID, "status": "COMPLETED"}}},
		}},
	})
	return &settlement.CaptureResult{OrderID: orderID, Status: "COMPLETED", TransactionID: txID, Raw: raw}
}

/* ============================== EventLog ============================== */

type memEvents struct {
	events    []settlement.Event
	RecordErr error
}

func (m *memEvents) Record(_ context.Context, e *settlement.Event) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	if e.CaptureKey != nil {
		for _, prev := range m.events {
			if prev.CaptureKey != nil && *prev.CaptureKey == *e.CaptureKey {
				return nil
			}
		}
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *memEvents) ClearReconciliation(_ context.Context, orderID string) error {
	for i := range m.events {
		e := &m.events[i]
		if e.OrderID == orderID && e.Kind == settlement.KindCapture {
			e.NeedsReconciliation = false
		}
	}
	return nil
}

func (m *memEvents) FindCapture(_ context.Context, orderID string) (*settlement.Event, error) {
	key := settlement.CaptureKey(orderID)
	for _, e := range m.events {
		if e.CaptureKey != nil && *e.CaptureKey == key {
			ev := e
			return &ev, nil
		}
	}
	return nil, nil
}

/* ============================== Helpers ============================== */

type fixture struct {
	svc     *Service
	store   *memStore
	gateway *mockGateway
	events  *memEvents
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{store: newMemStore(), gateway: &mockGateway{}, events: &memEvents{}}
	d := Deps{
		Store:     f.store,
		Directory: fakeDirectory{7: {ID: 7, Name: "Ana Pérez", Grade: "3A"}, 8: {ID: 8, Name: "Luis Díaz"}},
		Gateway:   f.gateway,
		Events:    f.events,
		Checkout: CheckoutURLs{
			CaptureURL: "http://api.test/api/payments/{id}/paypal-capture",
			CancelURL:  "http://front.test/payments",
			SuccessURL: "http://front.test/success",
		},
		Now:      func() time.Time { return fixedNow },
		Location: time.UTC,
	}
	for _, o := range opts {
		o(&d)
	}
	f.svc = NewService(d)
	return f
}

func mustUpdateReq(t *testing.T, body string) UpdateRequest {
	t.Helper()
	var req UpdateRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal update request: %v", err)
	}
	return req
}

func mustCreateReq(t *testing.T, body string) CreateRequest {
	t.Helper()
	var req CreateRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal create request: %v", err)
	}
	return req
}

func ptr[T any](v T) *T { return &v }

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
