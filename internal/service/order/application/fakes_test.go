package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chomp/internal/service/order/domain"
)

// fakeOrderRepo 是内存版 OrderRepository，语义与 GORM 实现对齐：
// 乐观锁、条件扣减、CAS 取消都按真实仓储的契约模拟。
type fakeOrderRepo struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*domain.Order
	products *fakeProductRepo // CompleteAndDecrementStock 需要扣它的库存

	saveErr error // 注入 Save 失败
	failOps map[string]error
}

func newFakeOrderRepo(products *fakeProductRepo) *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:   make(map[uuid.UUID]*domain.Order),
		products: products,
		failOps:  make(map[string]error),
	}
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOps["Create"]; err != nil {
		return err
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.NewOrderNotFound(id)
	}
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	current, ok := r.orders[order.ID]
	if !ok {
		return domain.NewOrderNotFound(order.ID)
	}
	if current.Version != order.Version {
		return domain.ErrOptimisticLock
	}
	order.Version++
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *fakeOrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return domain.NewOrderNotFound(id)
	}
	delete(r.orders, id)
	return nil
}

func (r *fakeOrderRepo) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeOrderRepo) CancelAllForCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, o := range r.orders {
		if o.CustomerID == customerID && !o.Status.Terminal() {
			o.Status = domain.StatusCancelled
			o.Version++
			n++
		}
	}
	return n, nil
}

func (r *fakeOrderRepo) FindConfirmedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.Status == domain.StatusConfirmed && o.UpdatedAt.Before(cutoff) {
			out = append(out, cloneOrder(o))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) CompleteAndDecrementStock(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOps["CompleteAndDecrementStock"]; err != nil {
		return nil, err
	}
	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.NewOrderNotFound(orderID)
	}
	if o.Status != domain.StatusConfirmed {
		return nil, domain.ErrAlreadySettled
	}
	for _, it := range o.Items {
		if r.products.stockOf(it.ProductID) < it.Quantity {
			return nil, domain.ErrInsufficientStock
		}
	}
	for _, it := range o.Items {
		r.products.decrement(it.ProductID, it.Quantity)
	}
	o.Status = domain.StatusCompleted
	o.Version++
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) CancelIfConfirmed(ctx context.Context, orderID uuid.UUID) (*domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, false, domain.NewOrderNotFound(orderID)
	}
	if o.Status != domain.StatusConfirmed {
		return cloneOrder(o), false, nil
	}
	o.Status = domain.StatusCancelled
	o.Version++
	return cloneOrder(o), true, nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]domain.Product
}

func newFakeProductRepo(products ...domain.Product) *fakeProductRepo {
	m := make(map[uuid.UUID]domain.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &fakeProductRepo{products: m}
}

func (r *fakeProductRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) Create(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = *product
	return nil
}

func (r *fakeProductRepo) Save(ctx context.Context, product *domain.Product) error {
	return r.Create(ctx, product)
}

func (r *fakeProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	return nil
}

func (r *fakeProductRepo) stockOf(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].Stock
}

func (r *fakeProductRepo) decrement(id uuid.UUID, qty int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.products[id]
	p.Stock -= qty
	r.products[id] = p
}

// fakeBus 记录发布的事件。
type fakeBus struct {
	mu        sync.Mutex
	published []publishedEvent
	err       error
}

type publishedEvent struct {
	Topic   string
	Key     string
	Payload any
}

func (b *fakeBus) Publish(ctx context.Context, topic, key string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, publishedEvent{Topic: topic, Key: key, Payload: payload})
	return nil
}

func (b *fakeBus) topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.published))
	for i, e := range b.published {
		out[i] = e.Topic
	}
	return out
}

func (b *fakeBus) last() publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[len(b.published)-1]
}

// fakeDedup 是内存版 idempotency.Store。
type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{seen: make(map[string]bool)}
}

func (d *fakeDedup) FirstSeen(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *fakeDedup) Forget(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}
