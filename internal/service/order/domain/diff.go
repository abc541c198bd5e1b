// internal/service/order/domain/diff.go
package domain

import (
	"github.com/google/uuid"
)

// ItemChange 描述一条需要写入的行项目变更。
type ItemChange struct {
	ProductID      uuid.UUID
	Quantity       int
	UnitPriceCents int64
}

// ItemDiff 是 smart merge 的输出：把提交的"期望最终状态"对账成
// 删除、更新、插入三类。
type ItemDiff struct {
	ToDelete []uuid.UUID // 现有行里 desired 未提及的 ProductID
	ToUpdate []ItemChange
	ToInsert []ItemChange
}

// Empty 报告 diff 是否为纯 no-op（没有任何字段变化）。
func (d ItemDiff) Empty() bool {
	return len(d.ToDelete) == 0 && len(d.ToUpdate) == 0 && len(d.ToInsert) == 0
}

// DiffItems 计算 smart merge：desired 被当作期望的最终行项目集合。
//  1. 现有行的 ProductID 不在 desired 里 → 删除；
//  2. 在 desired 里且已存在 → 数量改为 desired 值、价格刷新为当前
//     目录价（改单时重新快照），任一字段无变化则不算更新；
//  3. 不存在 → 按当前目录价插入。
//
// desired 中同一商品的重复行按数量合并，不追加。prices 是当前目录价
// （分）。纯函数，不触达持久化，调用方保证 desired 数量 > 0 且商品都
// 存在于 prices。
func DiffItems(current []OrderItem, desired []ItemSpec, prices map[uuid.UUID]int64) ItemDiff {
	merged := make(map[uuid.UUID]int, len(desired))
	ordered := make([]uuid.UUID, 0, len(desired))
	for _, spec := range desired {
		if _, ok := merged[spec.ProductID]; !ok {
			ordered = append(ordered, spec.ProductID)
		}
		merged[spec.ProductID] += spec.Quantity
	}

	currentByProduct := make(map[uuid.UUID]OrderItem, len(current))
	for _, it := range current {
		currentByProduct[it.ProductID] = it
	}

	var diff ItemDiff
	for _, it := range current {
		if _, keep := merged[it.ProductID]; !keep {
			diff.ToDelete = append(diff.ToDelete, it.ProductID)
		}
	}
	for _, productID := range ordered {
		quantity := merged[productID]
		price := prices[productID]
		existing, ok := currentByProduct[productID]
		if !ok {
			diff.ToInsert = append(diff.ToInsert, ItemChange{ProductID: productID, Quantity: quantity, UnitPriceCents: price})
			continue
		}
		if existing.Quantity != quantity || existing.UnitPriceCents != price {
			diff.ToUpdate = append(diff.ToUpdate, ItemChange{ProductID: productID, Quantity: quantity, UnitPriceCents: price})
		}
	}
	return diff
}
