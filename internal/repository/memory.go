package repository

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"cycleworks/internal/domain"
)

// MemoryStore объединённое in-memory хранилище для локального запуска и тестов.
// Идентификаторы генерируются так же, как их генерирует MongoDB.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	products map[primitive.ObjectID]domain.Product
	orders   map[primitive.ObjectID]domain.Order
	reviews  []domain.Review
	payments []domain.Payment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		products: make(map[primitive.ObjectID]domain.Product),
		orders:   make(map[primitive.ObjectID]domain.Order),
	}
}

// Repositories exposes the memory store behind the repository interfaces.
func (m *MemoryStore) Repositories() Store {
	return Store{
		Users:    memoryUsers{m},
		Products: memoryProducts{m},
		Orders:   memoryOrders{m},
		Reviews:  memoryReviews{m},
		Payments: memoryPayments{m},
	}
}

// Ensure interfaces
var (
	_ UserRepository    = memoryUsers{}
	_ ProductRepository = memoryProducts{}
	_ OrderRepository   = memoryOrders{}
	_ ReviewRepository  = memoryReviews{}
	_ PaymentRepository = memoryPayments{}
)

// UserRepository implementation
type memoryUsers struct{ m *MemoryStore }

func (r memoryUsers) Upsert(_ context.Context, email string, profile domain.UserProfile) (domain.WriteResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[email]
	if !ok {
		id := primitive.NewObjectID()
		r.m.users[email] = domain.User{ID: id, Email: email, Name: profile.Name, Image: profile.Image, Role: domain.RoleUser}
		return domain.Updated(0, 0, &id), nil
	}
	// $set пропускает пустые поля так же, как omitempty в bson
	next := u
	if profile.Name != "" {
		next.Name = profile.Name
	}
	if profile.Image != "" {
		next.Image = profile.Image
	}
	var modified int64
	if next != u {
		modified = 1
	}
	r.m.users[email] = next
	return domain.Updated(1, modified, nil), nil
}

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	u, ok := r.m.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := u
	return &cp, nil
}

func (r memoryUsers) List(_ context.Context) ([]domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]domain.User, 0, len(r.m.users))
	for _, u := range r.m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (r memoryUsers) SetRole(_ context.Context, email string, role domain.Role) (domain.WriteResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[email]
	if !ok {
		return domain.Updated(0, 0, nil), nil
	}
	if u.Role == role {
		return domain.Updated(1, 0, nil), nil
	}
	u.Role = role
	r.m.users[email] = u
	return domain.Updated(1, 1, nil), nil
}

// ProductRepository implementation
type memoryProducts struct{ m *MemoryStore }

func (r memoryProducts) Create(_ context.Context, p *domain.Product) (domain.WriteResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p.ID = primitive.NewObjectID()
	r.m.products[p.ID] = *p
	return domain.Inserted(p.ID), nil
}

func (r memoryProducts) List(_ context.Context) ([]domain.Product, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]domain.Product, 0, len(r.m.products))
	for _, p := range r.m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (r memoryProducts) Delete(_ context.Context, id primitive.ObjectID) (domain.WriteResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.products[id]; !ok {
		return domain.Deleted(0), nil
	}
	delete(r.m.products, id)
	return domain.Deleted(1), nil
}

// OrderRepository implementation
type memoryOrders struct{ m *MemoryStore }

func (r memoryOrders) Create(_ context.Context, o *domain.Order) (domain.WriteResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	o.ID = primitive.NewObjectID()
	r.m.orders[o.ID] = *o
	return domain.Inserted(o.ID), nil
}

func (r memoryOrders) List(ctx context.Context) ([]domain.Order, error) {
	return r.filter(func(domain.Order) bool { return true }), nil
}

func (r memoryOrders) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Order, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	o, ok := r.m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (r memoryOrders) ListByEmail(_ context.Context, email string) ([]domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.Email == email }), nil
}

func (r memoryOrders) MarkPaid(_ context.Context, id primitive.ObjectID, transactionID string) (domain.WriteResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	o, ok := r.m.orders[id]
	if !ok || o.Paid {
		return domain.Updated(0, 0, nil), nil
	}
	o.Paid = true
	o.TransactionID = transactionID
	r.m.orders[id] = o
	return domain.Updated(1, 1, nil), nil
}

func (r memoryOrders) filter(keep func(domain.Order) bool) []domain.Order {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]domain.Order, 0)
	for _, o := range r.m.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out
}

// ReviewRepository implementation
type memoryReviews struct{ m *MemoryStore }

func (r memoryReviews) Create(_ context.Context, rv *domain.Review) (domain.WriteResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rv.ID = primitive.NewObjectID()
	r.m.reviews = append(r.m.reviews, *rv)
	return domain.Inserted(rv.ID), nil
}

func (r memoryReviews) List(_ context.Context) ([]domain.Review, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]domain.Review, len(r.m.reviews))
	copy(out, r.m.reviews)
	return out, nil
}

// PaymentRepository implementation
type memoryPayments struct{ m *MemoryStore }

func (r memoryPayments) Create(_ context.Context, p *domain.Payment) (domain.WriteResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.findPayment(p.TransactionID); ok {
		return domain.WriteResult{}, ErrDuplicate
	}
	p.ID = primitive.NewObjectID()
	r.m.payments = append(r.m.payments, *p)
	return domain.Inserted(p.ID), nil
}

func (r memoryPayments) FindByTransaction(_ context.Context, transactionID string) (*domain.Payment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	p, ok := r.m.findPayment(transactionID)
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// findPayment expects m.mu to be held.
func (m *MemoryStore) findPayment(transactionID string) (domain.Payment, bool) {
	for _, p := range m.payments {
		if p.TransactionID == transactionID {
			return p, true
		}
	}
	return domain.Payment{}, false
}

// Payments returns a copy of the payment journal.
func (m *MemoryStore) Payments() []domain.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Payment, len(m.payments))
	copy(out, m.payments)
	return out
}
