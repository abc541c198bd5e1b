// internal/service/payment/infrastructure/redis_wallet.go
package infrastructure

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// debitScript 在一个原子步骤里完成"不存在则开户、余额够则扣减"。
// 返回扣减后的余额，余额不足返回 -1。分两条命令做 GET+DECRBY 会在
// 并发结算下把余额扣成负数，必须用脚本。
var debitScript = redis.NewScript(`
-- KEYS[1]: 钱包余额 Key, 例如: wallet:balance:{customer_123}
-- ARGV[1]: 本次扣减金额（分）
-- ARGV[2]: 新钱包的初始余额（分）

local balance = redis.call('get', KEYS[1])
if balance == false then
    redis.call('set', KEYS[1], ARGV[2])
    balance = ARGV[2]
end

if tonumber(balance) < tonumber(ARGV[1]) then
    return -1
end

return redis.call('decrby', KEYS[1], ARGV[1])
`)

// RedisWallet 是余额支付的钱包存储。生产里这会是独立的账务服务，
// 这里按模拟网关的定位用 Redis 承载。
type RedisWallet struct {
	client       *redis.Client
	initialCents int64
}

func NewRedisWallet(client *redis.Client, initialCents int64) *RedisWallet {
	return &RedisWallet{client: client, initialCents: initialCents}
}

func walletKey(customerID uuid.UUID) string {
	return fmt.Sprintf("wallet:balance:{%s}", customerID)
}

// Debit 原子扣减余额。余额不足时 ok=false，余额不动。
func (w *RedisWallet) Debit(ctx context.Context, customerID uuid.UUID, amountCents int64) (remaining int64, ok bool, err error) {
	result, err := debitScript.Run(ctx, w.client, []string{walletKey(customerID)}, amountCents, w.initialCents).Result()
	if err != nil {
		return 0, false, errors.Wrap(err, "run wallet debit script")
	}
	balance, isInt := result.(int64)
	if !isInt {
		return 0, false, errors.Errorf("unexpected result type from wallet script: %T", result)
	}
	if balance < 0 {
		return 0, false, nil
	}
	return balance, true, nil
}
