package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// 触发器为纯函数：检查领域对象快照，产出零或一个候选通知请求。
// 所有 I/O（如查询商家默认阈值）在调用前完成，以参数形式传入。

// ProductSnapshot 触发评估所需的商品字段快照
type ProductSnapshot struct {
	ProductID string
	VendorID  string
	Name      string
	// Stock 当前库存
	Stock int
	// LowStockThreshold 商品级低库存阈值，未配置为 nil
	LowStockThreshold *int
	// Length/Breadth/Height 尺寸（cm），未配置为 nil
	Length  *float64
	Breadth *float64
	Height  *float64
	// CubicWeight 预计算体积重（kg），提供时优先于几何公式
	CubicWeight *float64
}

// EffectiveLowStockThreshold 低库存有效阈值：商品级 > 商家默认 > 系统默认
func EffectiveLowStockThreshold(p ProductSnapshot, vendorDefault *int, systemDefault int) int {
	if p.LowStockThreshold != nil {
		return *p.LowStockThreshold
	}
	if vendorDefault != nil {
		return *vendorDefault
	}
	return systemDefault
}

// EvaluateLowStock 低库存触发器。
// 库存落入 (0, threshold] 区间时触发；stock=0 属于缺货，是另一种状态，不触发。
// 提供 prevStock 时仅在进入低库存区间的瞬间触发，库存持续走低不反复告警；
// 未提供 prevStock（如创建流程）时只要条件满足即触发。
func EvaluateLowStock(p ProductSnapshot, prevStock *int, vendorDefault *int, systemDefault int) *NotificationRequest {
	threshold := EffectiveLowStockThreshold(p, vendorDefault, systemDefault)

	inBand := p.Stock > 0 && p.Stock <= threshold
	if !inBand {
		return nil
	}

	if prevStock != nil {
		prevInBand := *prevStock > 0 && *prevStock <= threshold
		if prevInBand {
			return nil
		}
	}

	return &NotificationRequest{
		UserID:   p.VendorID,
		Type:     TypeLowStock,
		Category: CategoryProduct,
		Priority: PriorityHigh,
		Title:    fmt.Sprintf("低库存告警：%s", p.Name),
		Message:  fmt.Sprintf("商品 %s 当前库存 %d，已低于阈值 %d，请及时补货。", p.Name, p.Stock, threshold),
		Metadata: map[string]any{
			"product_id": p.ProductID,
			"stock":      p.Stock,
			"threshold":  threshold,
		},
	}
}

// CubicWeight 体积重（kg）= 长 × 宽 × 高 (cm) / 6000。
// 任一尺寸缺失按 0 计，结果为 0，永不触发
func CubicWeight(length, breadth, height *float64) float64 {
	if length == nil || breadth == nil || height == nil {
		return 0
	}
	return (*length) * (*breadth) * (*height) / 6000
}

// DimensionChange 更新流程中尺寸字段的实际变化情况。
// 仅字段出现在更新负载中不算变化，取值必须与原值不同
type DimensionChange struct {
	LengthChanged  bool
	BreadthChanged bool
	HeightChanged  bool
}

// Any 是否有任一尺寸实际变化
func (d DimensionChange) Any() bool {
	return d.LengthChanged || d.BreadthChanged || d.HeightChanged
}

// EvaluateCubicVolume 体积重触发器。
// 预计算体积重优先于几何公式；超限判定为严格大于阈值。
// 更新流程（changed 非 nil）要求至少一个尺寸实际变化且新体积重超限；
// 尺寸被移除或未变化不得重复触发。创建流程（changed 为 nil）只看新值。
func EvaluateCubicVolume(p ProductSnapshot, changed *DimensionChange, threshold float64) *NotificationRequest {
	if changed != nil && !changed.Any() {
		return nil
	}

	weight := CubicWeight(p.Length, p.Breadth, p.Height)
	if p.CubicWeight != nil {
		weight = *p.CubicWeight
	}

	if weight <= threshold {
		return nil
	}

	return &NotificationRequest{
		UserID:   p.VendorID,
		Type:     TypeCubicVolumeAlert,
		Category: CategoryProduct,
		Priority: PriorityMedium,
		Title:    fmt.Sprintf("体积重超限：%s", p.Name),
		Message:  fmt.Sprintf("商品 %s 体积重 %.2f kg，超过阈值 %.2f kg，物流费用将按体积重计费。", p.Name, weight, threshold),
		Metadata: map[string]any{
			"product_id":   p.ProductID,
			"cubic_weight": weight,
			"threshold":    threshold,
		},
	}
}

// OrderSnapshot 新订单触发所需字段
type OrderSnapshot struct {
	OrderID     string
	OrderNumber string
	VendorID    string
	CustomerID  string
	Total       decimal.Decimal
	Currency    string
	ItemCount   int
}

// TriggerNewOrder 新订单触发器。是否调用由业务方决定，调用即触发
func TriggerNewOrder(o OrderSnapshot) *NotificationRequest {
	return &NotificationRequest{
		UserID:   o.VendorID,
		Type:     TypeNewOrder,
		Category: CategoryOrder,
		Priority: PriorityHigh,
		Title:    fmt.Sprintf("新订单 %s", o.OrderNumber),
		Message:  fmt.Sprintf("收到新订单 %s，共 %d 件商品，金额 %s %s。", o.OrderNumber, o.ItemCount, o.Total.StringFixed(2), o.Currency),
		Metadata: map[string]any{
			"order_id":     o.OrderID,
			"order_number": o.OrderNumber,
			"customer_id":  o.CustomerID,
			"total":        o.Total.String(),
			"currency":     o.Currency,
			"item_count":   o.ItemCount,
		},
	}
}

// CommissionChange 佣金费率变更触发所需字段
type CommissionChange struct {
	VendorID    string
	OldRate     decimal.Decimal
	NewRate     decimal.Decimal
	EffectiveAt time.Time
}

// TriggerCommissionUpdate 佣金变更触发器，调用即触发
func TriggerCommissionUpdate(c CommissionChange) *NotificationRequest {
	delta := c.NewRate.Sub(c.OldRate)
	return &NotificationRequest{
		UserID:   c.VendorID,
		Type:     TypeCommissionUpdate,
		Category: CategoryCommission,
		Priority: PriorityHigh,
		Title:    "佣金费率变更",
		Message: fmt.Sprintf("您的佣金费率由 %s%% 调整为 %s%%，%s 起生效。",
			c.OldRate.StringFixed(2), c.NewRate.StringFixed(2), c.EffectiveAt.Format("2006-01-02")),
		Metadata: map[string]any{
			"old_rate":     c.OldRate.String(),
			"new_rate":     c.NewRate.String(),
			"delta":        delta.String(),
			"effective_at": c.EffectiveAt.Format(time.RFC3339),
		},
	}
}

// VendorStatusChange 商家状态变更触发所需字段
type VendorStatusChange struct {
	VendorID  string
	OldStatus string
	NewStatus string
	Reason    string
}

// TriggerVendorStatusChange 商家状态变更触发器，调用即触发
func TriggerVendorStatusChange(v VendorStatusChange) *NotificationRequest {
	return &NotificationRequest{
		UserID:   v.VendorID,
		Type:     TypeVendorStatusChange,
		Category: CategoryAccount,
		Priority: PriorityUrgent,
		Title:    "商家状态变更",
		Message:  fmt.Sprintf("您的商家状态由 %s 变更为 %s。%s", v.OldStatus, v.NewStatus, v.Reason),
		Metadata: map[string]any{
			"old_status": v.OldStatus,
			"new_status": v.NewStatus,
			"reason":     v.Reason,
		},
	}
}

// SystemAlert 系统告警触发所需字段
type SystemAlert struct {
	Component string
	Severity  string
	Detail    string
}

// TriggerSystemAlert 系统告警触发器，面向指定接收者，调用即触发
func TriggerSystemAlert(a SystemAlert, recipientID string) *NotificationRequest {
	priority := PriorityMedium
	switch a.Severity {
	case "critical":
		priority = PriorityUrgent
	case "warning":
		priority = PriorityHigh
	}

	return &NotificationRequest{
		UserID:   recipientID,
		Type:     TypeSystemAlert,
		Category: CategorySystem,
		Priority: priority,
		Title:    fmt.Sprintf("系统告警：%s", a.Component),
		Message:  a.Detail,
		Metadata: map[string]any{
			"component": a.Component,
			"severity":  a.Severity,
		},
	}
}
