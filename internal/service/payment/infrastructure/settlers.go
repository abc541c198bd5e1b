// internal/service/payment/infrastructure/settlers.go
//
// 四种支付方式的结算实现。真实网关不在范围内（模拟结算），但每种
// 方式的成功/失败语义是真实的，订单侧据此推进 saga。
package infrastructure

import (
	"context"
	"fmt"
	"time"

	"chomp/internal/contracts"
	"chomp/internal/pkg/logger"
	"chomp/internal/service/payment/domain"
)

// WalletBalanceSettler 从 Redis 钱包原子扣款。余额不足是业务性失败。
type WalletBalanceSettler struct {
	wallet *RedisWallet
}

func NewWalletBalanceSettler(wallet *RedisWallet) *WalletBalanceSettler {
	return &WalletBalanceSettler{wallet: wallet}
}

func (s *WalletBalanceSettler) Method() contracts.PaymentType { return contracts.PaymentWalletBalance }

func (s *WalletBalanceSettler) Settle(ctx context.Context, req domain.SettleRequest) (domain.Outcome, error) {
	remaining, ok, err := s.wallet.Debit(ctx, req.CustomerID, req.AmountCents)
	if err != nil {
		return domain.Outcome{}, err
	}
	if !ok {
		return domain.Failed(fmt.Sprintf("insufficient wallet balance for charge of %d cents", req.AmountCents)), nil
	}
	logger.Ctx(ctx).Info().
		Str("customer_id", req.CustomerID.String()).
		Int64("amount_cents", req.AmountCents).
		Int64("remaining_cents", remaining).
		Msg("💰 wallet debited")
	return domain.Succeeded(), nil
}

// CashOnDeliverySettler 总是成功：货到付款的收款发生在履约时，
// 不属于结算环节。
type CashOnDeliverySettler struct{}

func NewCashOnDeliverySettler() *CashOnDeliverySettler { return &CashOnDeliverySettler{} }

func (s *CashOnDeliverySettler) Method() contracts.PaymentType {
	return contracts.PaymentCashOnDelivery
}

func (s *CashOnDeliverySettler) Settle(ctx context.Context, req domain.SettleRequest) (domain.Outcome, error) {
	logger.Ctx(ctx).Info().
		Str("order_id", req.OrderID.String()).
		Msg("📦 cash on delivery, collection deferred to fulfilment")
	return domain.Succeeded(), nil
}

// ExternalWalletSettler 模拟三方钱包：单笔超过限额即拒绝。
type ExternalWalletSettler struct {
	capCents int64
}

func NewExternalWalletSettler(capCents int64) *ExternalWalletSettler {
	return &ExternalWalletSettler{capCents: capCents}
}

func (s *ExternalWalletSettler) Method() contracts.PaymentType {
	return contracts.PaymentExternalWallet
}

func (s *ExternalWalletSettler) Settle(ctx context.Context, req domain.SettleRequest) (domain.Outcome, error) {
	if req.AmountCents > s.capCents {
		return domain.Failed(fmt.Sprintf("amount %d cents exceeds external wallet per-transaction cap of %d cents", req.AmountCents, s.capCents)), nil
	}
	return domain.Succeeded(), nil
}

// BankTransferSettler 模拟银行转账：短暂延迟后成功。
type BankTransferSettler struct {
	delay time.Duration
}

func NewBankTransferSettler(delay time.Duration) *BankTransferSettler {
	return &BankTransferSettler{delay: delay}
}

func (s *BankTransferSettler) Method() contracts.PaymentType { return contracts.PaymentBankTransfer }

func (s *BankTransferSettler) Settle(ctx context.Context, req domain.SettleRequest) (domain.Outcome, error) {
	if req.AmountCents <= 0 {
		return domain.Failed("bank transfer requires a positive charge amount"), nil
	}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	}
	return domain.Succeeded(), nil
}
