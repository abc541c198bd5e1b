// internal/service/order/infrastructure/models.go
package infrastructure

import (
	"time"
)

// 数据库模型与领域模型分离，转换在 mapper.go。
// 金额一律为分（int64），订单总价不落库。

type OrderModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	CustomerID  string `gorm:"size:36;index;not null"`
	PaymentType string `gorm:"size:32;not null"`
	Status      string `gorm:"size:16;index;not null"`
	Version     int    `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Items []OrderItemModel `gorm:"foreignKey:OrderID;references:ID;constraint:OnDelete:CASCADE"`
}

func (OrderModel) TableName() string { return "orders" }

type OrderItemModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	OrderID        string `gorm:"size:36;index;uniqueIndex:uniq_order_product;not null"`
	ProductID      string `gorm:"size:36;uniqueIndex:uniq_order_product;not null"`
	Quantity       int    `gorm:"not null"`
	UnitPriceCents int64  `gorm:"not null"`
}

func (OrderItemModel) TableName() string { return "order_items" }

type ProductModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	Name       string `gorm:"size:255;uniqueIndex;not null"`
	PriceCents int64  `gorm:"not null"`
	Stock      int    `gorm:"not null"`
	CreatedAt  time.Time
}

func (ProductModel) TableName() string { return "products" }
