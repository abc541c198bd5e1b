// internal/service/order/application/service.go
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chomp/internal/contracts"
	"chomp/internal/pkg/logger"
	"chomp/internal/service/order/domain"
)

// EventPublisher 是应用层对事件总线的出站端口，由 mq.Publisher 满足。
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// OrderService 是订单生命周期的唯一写入方：创建、编辑、确认、删除
// 以及批量取消都经过这里。所有操作接收/返回纯数据，不感知传输层。
type OrderService struct {
	orders  domain.OrderRepository
	catalog domain.ProductRepository
	bus     EventPublisher
	tracer  trace.Tracer
}

func NewOrderService(orders domain.OrderRepository, catalog domain.ProductRepository, bus EventPublisher, tracer trace.Tracer) *OrderService {
	return &OrderService{orders: orders, catalog: catalog, bus: bus, tracer: tracer}
}

// CreateOrder 创建一个 Pending 订单。
// 库存校验只是检查，不是预留：这里不扣减也不锁定任何库存。
func (s *OrderService) CreateOrder(ctx context.Context, customerID uuid.UUID, paymentType contracts.PaymentType, items []domain.ItemSpec) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.CreateOrder")
	defer span.End()

	if !paymentType.Valid() {
		return nil, domain.NewValidationError("unknown payment type %q", paymentType)
	}
	specs := mergeSpecs(items)
	if len(specs) == 0 {
		return nil, domain.NewValidationError("order must contain at least one item with quantity greater than 0")
	}

	products, err := s.resolveProducts(ctx, specs)
	if err != nil {
		return nil, err
	}

	// 库存校验：收集所有不足项，一次性报告，不在第一个错误上失败
	var shortfalls []string
	for _, spec := range specs {
		p := products[spec.ProductID]
		if p.Stock < spec.Quantity {
			shortfalls = append(shortfalls, fmt.Sprintf("product %q: requested %d, available %d", p.Name, spec.Quantity, p.Stock))
		}
	}
	if len(shortfalls) > 0 {
		return nil, domain.NewConflictError("insufficient stock for the following products", shortfalls...)
	}

	// 按当前目录价快照单价
	orderItems := make([]domain.OrderItem, 0, len(specs))
	for _, spec := range specs {
		orderItems = append(orderItems, domain.OrderItem{
			ID:             uuid.New(),
			ProductID:      spec.ProductID,
			Quantity:       spec.Quantity,
			UnitPriceCents: products[spec.ProductID].PriceCents,
		})
	}

	order, err := domain.NewOrder(customerID, paymentType, orderItems)
	if err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist order")
		return nil, err
	}

	s.publish(ctx, contracts.TopicOrderPlaced, order.ID.String(), contracts.OrderPlacedEvent{
		OrderID:         order.ID,
		CustomerID:      order.CustomerID,
		TotalPriceCents: order.TotalPriceCents(),
		CreatedAt:       order.CreatedAt,
		Items:           eventItems(order, products),
	})

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID.String()).
		Int64("total_cents", order.TotalPriceCents()).
		Msg("order created")
	return order, nil
}

// EditOrder 把 desired 当作期望的最终行项目集合做 smart merge。
// 与创建不同，改单会把被提及商品的单价刷新为当前目录价。
func (s *OrderService) EditOrder(ctx context.Context, orderID uuid.UUID, desired []domain.ItemSpec) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.EditOrder")
	defer span.End()

	order, err := s.loadEditable(ctx, orderID, "edited")
	if err != nil {
		return nil, err
	}

	specs := mergeSpecs(desired)
	if len(specs) == 0 {
		return nil, domain.NewValidationError("no valid order items provided, productId and quantity greater than 0 are required")
	}
	products, err := s.resolveProducts(ctx, specs)
	if err != nil {
		return nil, err
	}

	prices := make(map[uuid.UUID]int64, len(products))
	for id, p := range products {
		prices[id] = p.PriceCents
	}
	diff := domain.DiffItems(order.Items, specs, prices)
	if diff.Empty() {
		// 纯 no-op：返回原订单，不发事件
		logger.Ctx(ctx).Info().Str("order_id", orderID.String()).Msg("no changes detected, skipping update")
		return order, nil
	}

	applyDiff(order, diff)
	if err := s.orders.Save(ctx, order); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.publishUpdated(ctx, order)
	logger.Ctx(ctx).Info().
		Str("order_id", orderID.String()).
		Int("deleted", len(diff.ToDelete)).
		Int("updated", len(diff.ToUpdate)).
		Int("inserted", len(diff.ToInsert)).
		Msg("order edited")
	return order, nil
}

// AddItems 是改单的纯增量变体：已有商品数量累加（单价刷新为当前目录
// 价），新商品插入。从不删除行项目。
func (s *OrderService) AddItems(ctx context.Context, orderID uuid.UUID, items []domain.ItemSpec) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.AddItems")
	defer span.End()

	order, err := s.loadEditable(ctx, orderID, "modified")
	if err != nil {
		return nil, err
	}
	specs := mergeSpecs(items)
	if len(specs) == 0 {
		return nil, domain.NewValidationError("all items must have quantity greater than 0")
	}
	products, err := s.resolveProducts(ctx, specs)
	if err != nil {
		return nil, err
	}

	for _, spec := range specs {
		price := products[spec.ProductID].PriceCents
		if existing := order.ItemByProduct(spec.ProductID); existing != nil {
			existing.Quantity += spec.Quantity
			existing.UnitPriceCents = price
		} else {
			order.Items = append(order.Items, domain.OrderItem{
				ID:             uuid.New(),
				ProductID:      spec.ProductID,
				Quantity:       spec.Quantity,
				UnitPriceCents: price,
			})
		}
	}
	if err := s.orders.Save(ctx, order); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.publishUpdated(ctx, order)
	logger.Ctx(ctx).Info().Str("order_id", orderID.String()).Int("items", len(specs)).Msg("items added to order")
	return order, nil
}

// RemoveItems 逐项扣数量：要移除的数量 >= 当前数量时整行删除。
// 所有行项目都被移掉时，整个订单删除并发布 OrderCancelled（而不是
// OrderUpdated）。
func (s *OrderService) RemoveItems(ctx context.Context, orderID uuid.UUID, items []domain.ItemSpec) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.RemoveItems")
	defer span.End()

	order, err := s.loadEditable(ctx, orderID, "modified")
	if err != nil {
		return nil, err
	}
	specs := mergeSpecs(items)
	if len(specs) == 0 {
		return nil, domain.NewValidationError("all items must have quantity greater than 0")
	}

	changed := false
	for _, spec := range specs {
		existing := order.ItemByProduct(spec.ProductID)
		if existing == nil {
			// 订单里没有这个商品，跳过而不是报错
			logger.Ctx(ctx).Warn().
				Str("order_id", orderID.String()).
				Str("product_id", spec.ProductID.String()).
				Msg("product not in order, skipping removal")
			continue
		}
		if spec.Quantity >= existing.Quantity {
			order.RemoveItem(spec.ProductID)
		} else {
			existing.Quantity -= spec.Quantity
		}
		changed = true
	}
	if !changed {
		return nil, domain.NewConflictError("no matching items found to remove")
	}

	if len(order.Items) == 0 {
		// 空订单不允许存在：删除整单，发布取消事件
		if err := s.orders.Delete(ctx, orderID); err != nil {
			span.RecordError(err)
			return nil, err
		}
		s.publish(ctx, contracts.TopicOrderCancelled, orderID.String(), contracts.OrderCancelledEvent{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			Reason:      "all items removed from order",
			CancelledAt: time.Now().UTC(),
		})
		logger.Ctx(ctx).Info().Str("order_id", orderID.String()).Msg("all items removed, order auto-deleted")
		return order, nil
	}

	if err := s.orders.Save(ctx, order); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.publishUpdated(ctx, order)
	logger.Ctx(ctx).Info().Str("order_id", orderID.String()).Msg("items removed from order")
	return order, nil
}

// ConfirmOrder 执行 Pending→Confirmed。纯状态写入，没有库存副作用。
// 发布的 OrderConfirmedEvent 是交给支付侧的唯一交接物。
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.ConfirmOrder")
	defer span.End()

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.Confirm(); err != nil {
		return nil, err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.publish(ctx, contracts.TopicOrderConfirmed, order.ID.String(), contracts.OrderConfirmedEvent{
		OrderID:         order.ID,
		CustomerID:      order.CustomerID,
		PaymentType:     order.PaymentType,
		TotalPriceCents: order.TotalPriceCents(),
		CompletedAt:     time.Now().UTC(),
	})
	logger.Ctx(ctx).Info().
		Str("order_id", orderID.String()).
		Str("payment_type", string(order.PaymentType)).
		Int64("total_cents", order.TotalPriceCents()).
		Msg("order confirmed, awaiting payment")
	return order, nil
}

// DeleteOrder 只允许删除 Pending 订单。
func (s *OrderService) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "order.DeleteOrder")
	defer span.End()

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Editable() {
		return domain.NewConflictError("order is already " + string(order.Status) + ", only pending orders can be deleted")
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		span.RecordError(err)
		return err
	}

	s.publish(ctx, contracts.TopicOrderCancelled, orderID.String(), contracts.OrderCancelledEvent{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		Reason:      "order deleted by user request",
		CancelledAt: time.Now().UTC(),
	})
	logger.Ctx(ctx).Info().Str("order_id", orderID.String()).Msg("order deleted")
	return nil
}

// CancelOrdersForUser 把该客户所有非终态订单一次性置为 Cancelled。
// 必须是单条集合更新，避免并发下的部分生效。
func (s *OrderService) CancelOrdersForUser(ctx context.Context, customerID uuid.UUID) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "order.CancelOrdersForUser")
	defer span.End()

	count, err := s.orders.CancelAllForCustomer(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	logger.Ctx(ctx).Info().
		Str("customer_id", customerID.String()).
		Int64("orders_cancelled", count).
		Msg("cancelled orders for deleted user")
	return count, nil
}

// GetOrder 加载订单及行项目。
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.orders.FindByID(ctx, orderID)
}

// ListOrders 返回客户的全部订单，按创建时间倒序。
func (s *OrderService) ListOrders(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	return s.orders.FindByCustomer(ctx, customerID)
}

// --- helpers ---

// mergeSpecs 过滤掉数量 <= 0 的行并把重复商品按数量合并。
func mergeSpecs(items []domain.ItemSpec) []domain.ItemSpec {
	merged := make(map[uuid.UUID]int, len(items))
	ordered := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		if _, ok := merged[it.ProductID]; !ok {
			ordered = append(ordered, it.ProductID)
		}
		merged[it.ProductID] += it.Quantity
	}
	out := make([]domain.ItemSpec, 0, len(ordered))
	for _, id := range ordered {
		out = append(out, domain.ItemSpec{ProductID: id, Quantity: merged[id]})
	}
	return out
}

// resolveProducts 批量加载商品并把所有缺失的 ID 合并成一个
// NotFoundError 报告。
func (s *OrderService) resolveProducts(ctx context.Context, specs []domain.ItemSpec) (map[uuid.UUID]domain.Product, error) {
	ids := make([]uuid.UUID, len(specs))
	for i, spec := range specs {
		ids[i] = spec.ProductID
	}
	products, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, domain.NewProductsNotFound(missing)
	}
	return byID, nil
}

func applyDiff(order *domain.Order, diff domain.ItemDiff) {
	for _, productID := range diff.ToDelete {
		order.RemoveItem(productID)
	}
	for _, change := range diff.ToUpdate {
		item := order.ItemByProduct(change.ProductID)
		item.Quantity = change.Quantity
		item.UnitPriceCents = change.UnitPriceCents
	}
	for _, change := range diff.ToInsert {
		order.Items = append(order.Items, domain.OrderItem{
			ID:             uuid.New(),
			ProductID:      change.ProductID,
			Quantity:       change.Quantity,
			UnitPriceCents: change.UnitPriceCents,
		})
	}
}

// publishUpdated 发布 OrderUpdatedEvent（携带 merge 后的完整快照）。
func (s *OrderService) publishUpdated(ctx context.Context, order *domain.Order) {
	products, err := s.productsOf(ctx, order)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to load products for event snapshot")
		products = map[uuid.UUID]domain.Product{}
	}
	s.publish(ctx, contracts.TopicOrderUpdated, order.ID.String(), contracts.OrderUpdatedEvent{
		OrderID:         order.ID,
		CustomerID:      order.CustomerID,
		PaymentType:     order.PaymentType,
		TotalPriceCents: order.TotalPriceCents(),
		UpdatedAt:       order.UpdatedAt,
		Items:           eventItems(order, products),
	})
}

func (s *OrderService) productsOf(ctx context.Context, order *domain.Order) (map[uuid.UUID]domain.Product, error) {
	ids := make([]uuid.UUID, len(order.Items))
	for i, it := range order.Items {
		ids[i] = it.ProductID
	}
	products, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// eventItems 构造事件携带的行项目快照（冗余商品名，消费方无需回查）。
func eventItems(order *domain.Order, products map[uuid.UUID]domain.Product) []contracts.OrderItem {
	items := make([]contracts.OrderItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, contracts.OrderItem{
			OrderItemID:    it.ID,
			ProductID:      it.ProductID,
			ProductName:    products[it.ProductID].Name,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	return items
}

// loadEditable 加载订单并做 Pending 可编辑性检查，verb 用于错误文案。
func (s *OrderService) loadEditable(ctx context.Context, orderID uuid.UUID, verb string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Editable() {
		return nil, domain.NewConflictError("order is already " + string(order.Status) + ", only pending orders can be " + verb)
	}
	return order, nil
}

// publish 发布事件。发布失败记错误日志但不让主操作失败：broker 短暂
// 不可用时业务写入已提交，对账任务兜底。
func (s *OrderService) publish(ctx context.Context, topic, key string, payload any) {
	if err := s.bus.Publish(ctx, topic, key, payload); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("failed to publish event")
	}
}
