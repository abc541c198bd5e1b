// internal/service/order/infrastructure/mapper.go
package infrastructure

import (
	"github.com/google/uuid"

	"chomp/internal/contracts"
	"chomp/internal/service/order/domain"
)

func toOrderModel(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:          o.ID.String(),
		CustomerID:  o.CustomerID.String(),
		PaymentType: string(o.PaymentType),
		Status:      string(o.Status),
		Version:     o.Version,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	for _, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			ID:             it.ID.String(),
			OrderID:        o.ID.String(),
			ProductID:      it.ProductID.String(),
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	return m
}

func toDomainOrder(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:          uuid.MustParse(m.ID),
		CustomerID:  uuid.MustParse(m.CustomerID),
		PaymentType: contracts.PaymentType(m.PaymentType),
		Status:      domain.Status(m.Status),
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	for _, it := range m.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ID:             uuid.MustParse(it.ID),
			ProductID:      uuid.MustParse(it.ProductID),
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	return o
}

func toProductModel(p *domain.Product) *ProductModel {
	return &ProductModel{
		ID:         p.ID.String(),
		Name:       p.Name,
		PriceCents: p.PriceCents,
		Stock:      p.Stock,
		CreatedAt:  p.CreatedAt,
	}
}

func toDomainProduct(m *ProductModel) domain.Product {
	return domain.Product{
		ID:         uuid.MustParse(m.ID),
		Name:       m.Name,
		PriceCents: m.PriceCents,
		Stock:      m.Stock,
		CreatedAt:  m.CreatedAt,
	}
}
