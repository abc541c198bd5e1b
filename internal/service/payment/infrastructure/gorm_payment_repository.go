// internal/service/payment/infrastructure/gorm_payment_repository.go
package infrastructure

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"chomp/internal/contracts"
	"chomp/internal/service/payment/domain"
)

// PaymentModel 的 order_id 唯一索引承载"一单一付"不变量，
// 数据库需以 TranslateError 打开，唯一键冲突才会映射成 ErrDuplicatedKey。
type PaymentModel struct {
	ID            string `gorm:"type:varchar(36);primaryKey"`
	OrderID       string `gorm:"type:varchar(36);uniqueIndex:uniq_payment_order;not null"`
	CustomerID    string `gorm:"type:varchar(36);index;not null"`
	AmountCents   int64  `gorm:"not null"`
	Method        string `gorm:"type:varchar(32);not null"`
	Status        string `gorm:"type:varchar(16);index;not null"`
	FailureReason string `gorm:"type:varchar(255)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (PaymentModel) TableName() string { return "payments" }

type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	model := toPaymentModel(payment)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicatePayment
		}
		return errors.Wrap(err, "create payment")
	}
	return nil
}

func (r *GormPaymentRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	var model PaymentModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID.String()).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find payment by order")
	}
	return toDomainPayment(&model), nil
}

func (r *GormPaymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	if err := r.db.WithContext(ctx).Save(toPaymentModel(payment)).Error; err != nil {
		return errors.Wrap(err, "save payment")
	}
	return nil
}

func toPaymentModel(p *domain.Payment) *PaymentModel {
	return &PaymentModel{
		ID:            p.ID.String(),
		OrderID:       p.OrderID.String(),
		CustomerID:    p.CustomerID.String(),
		AmountCents:   p.AmountCents,
		Method:        string(p.Method),
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toDomainPayment(m *PaymentModel) *domain.Payment {
	return &domain.Payment{
		ID:            uuid.MustParse(m.ID),
		OrderID:       uuid.MustParse(m.OrderID),
		CustomerID:    uuid.MustParse(m.CustomerID),
		AmountCents:   m.AmountCents,
		Method:        contracts.PaymentType(m.Method),
		Status:        domain.Status(m.Status),
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
