// Package consumer 消费业务域事件并驱动通知触发器
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/marketnotify/internal/notification/application"
	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/config"
	"github.com/wyfcoding/marketnotify/pkg/logger"
)

// 触发事件主题
const (
	TopicProductCreated      = "product.created"
	TopicProductUpdated      = "product.updated"
	TopicOrderCreated        = "order.created"
	TopicCommissionUpdated   = "commission.updated"
	TopicVendorStatusChanged = "vendor.status_changed"
	TopicSystemAlert         = "system.alert"
)

// TriggerHandler 将业务域事件送入触发评估，产出的候选通知交由管线裁决
type TriggerHandler struct {
	app    *application.Service
	notify config.NotifyConfig
}

// NewTriggerHandler 创建触发事件处理器
func NewTriggerHandler(app *application.Service, notify config.NotifyConfig) *TriggerHandler {
	return &TriggerHandler{app: app, notify: notify}
}

// productPayload 商品创建/更新事件负载。更新事件携带变更前取值
type productPayload struct {
	ProductID              string   `json:"product_id"`
	VendorID               string   `json:"vendor_id"`
	Name                   string   `json:"name"`
	Stock                  int      `json:"stock"`
	PrevStock              *int     `json:"prev_stock,omitempty"`
	LowStockThreshold      *int     `json:"low_stock_threshold,omitempty"`
	VendorDefaultThreshold *int     `json:"vendor_default_threshold,omitempty"`
	Length                 *float64 `json:"length,omitempty"`
	Breadth                *float64 `json:"breadth,omitempty"`
	Height                 *float64 `json:"height,omitempty"`
	PrevLength             *float64 `json:"prev_length,omitempty"`
	PrevBreadth            *float64 `json:"prev_breadth,omitempty"`
	PrevHeight             *float64 `json:"prev_height,omitempty"`
	CubicWeight            *float64 `json:"cubic_weight,omitempty"`
}

func (p productPayload) snapshot() domain.ProductSnapshot {
	return domain.ProductSnapshot{
		ProductID:         p.ProductID,
		VendorID:          p.VendorID,
		Name:              p.Name,
		Stock:             p.Stock,
		LowStockThreshold: p.LowStockThreshold,
		Length:            p.Length,
		Breadth:           p.Breadth,
		Height:            p.Height,
		CubicWeight:       p.CubicWeight,
	}
}

// dimensionChange 比对变更前后的尺寸取值
func (p productPayload) dimensionChange() *domain.DimensionChange {
	return &domain.DimensionChange{
		LengthChanged:  floatChanged(p.PrevLength, p.Length),
		BreadthChanged: floatChanged(p.PrevBreadth, p.Breadth),
		HeightChanged:  floatChanged(p.PrevHeight, p.Height),
	}
}

func floatChanged(prev, cur *float64) bool {
	if prev == nil && cur == nil {
		return false
	}
	if prev == nil || cur == nil {
		return true
	}
	return *prev != *cur
}

// Handle 按主题分派事件。管线的拒绝/限流/抑制是正常终态，
// 记录后即消费成功，不触发消息重试
func (h *TriggerHandler) Handle(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case TopicProductCreated:
		var payload productPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error(ctx, "failed to unmarshal product created event", "error", err)
			return err
		}
		return h.evaluateProduct(ctx, payload, false)

	case TopicProductUpdated:
		var payload productPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error(ctx, "failed to unmarshal product updated event", "error", err)
			return err
		}
		return h.evaluateProduct(ctx, payload, true)

	case TopicOrderCreated:
		var payload struct {
			OrderID     string          `json:"order_id"`
			OrderNumber string          `json:"order_number"`
			VendorID    string          `json:"vendor_id"`
			CustomerID  string          `json:"customer_id"`
			Total       decimal.Decimal `json:"total"`
			Currency    string          `json:"currency"`
			ItemCount   int             `json:"item_count"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error(ctx, "failed to unmarshal order created event", "error", err)
			return err
		}
		return h.process(ctx, domain.TriggerNewOrder(domain.OrderSnapshot{
			OrderID:     payload.OrderID,
			OrderNumber: payload.OrderNumber,
			VendorID:    payload.VendorID,
			CustomerID:  payload.CustomerID,
			Total:       payload.Total,
			Currency:    payload.Currency,
			ItemCount:   payload.ItemCount,
		}))

	case TopicCommissionUpdated:
		var payload struct {
			VendorID    string          `json:"vendor_id"`
			OldRate     decimal.Decimal `json:"old_rate"`
			NewRate     decimal.Decimal `json:"new_rate"`
			EffectiveAt time.Time       `json:"effective_at"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error(ctx, "failed to unmarshal commission updated event", "error", err)
			return err
		}
		return h.process(ctx, domain.TriggerCommissionUpdate(domain.CommissionChange{
			VendorID:    payload.VendorID,
			OldRate:     payload.OldRate,
			NewRate:     payload.NewRate,
			EffectiveAt: payload.EffectiveAt,
		}))

	case TopicVendorStatusChanged:
		var payload struct {
			VendorID  string `json:"vendor_id"`
			OldStatus string `json:"old_status"`
			NewStatus string `json:"new_status"`
			Reason    string `json:"reason"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error(ctx, "failed to unmarshal vendor status event", "error", err)
			return err
		}
		return h.process(ctx, domain.TriggerVendorStatusChange(domain.VendorStatusChange{
			VendorID:  payload.VendorID,
			OldStatus: payload.OldStatus,
			NewStatus: payload.NewStatus,
			Reason:    payload.Reason,
		}))

	case TopicSystemAlert:
		var payload struct {
			Component  string   `json:"component"`
			Severity   string   `json:"severity"`
			Detail     string   `json:"detail"`
			Recipients []string `json:"recipients"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error(ctx, "failed to unmarshal system alert event", "error", err)
			return err
		}
		alert := domain.SystemAlert{
			Component: payload.Component,
			Severity:  payload.Severity,
			Detail:    payload.Detail,
		}
		for _, recipient := range payload.Recipients {
			if err := h.process(ctx, domain.TriggerSystemAlert(alert, recipient)); err != nil {
				return err
			}
		}
		return nil

	default:
		logger.Warn(ctx, "unknown trigger topic", "topic", msg.Topic)
		return nil
	}
}

// evaluateProduct 对商品快照跑库存与体积重两个触发器
func (h *TriggerHandler) evaluateProduct(ctx context.Context, payload productPayload, isUpdate bool) error {
	snapshot := payload.snapshot()

	var prevStock *int
	var changed *domain.DimensionChange
	if isUpdate {
		prevStock = payload.PrevStock
		changed = payload.dimensionChange()
	}

	if req := domain.EvaluateLowStock(snapshot, prevStock, payload.VendorDefaultThreshold, h.notify.LowStockDefaultThreshold); req != nil {
		if err := h.process(ctx, req); err != nil {
			return err
		}
	}

	if req := domain.EvaluateCubicVolume(snapshot, changed, h.notify.CubicWeightThreshold); req != nil {
		if err := h.process(ctx, req); err != nil {
			return err
		}
	}

	return nil
}

// process 将候选通知送入管线。触发器产生的通知以接收者为限流主体
func (h *TriggerHandler) process(ctx context.Context, req *domain.NotificationRequest) error {
	if req == nil {
		return nil
	}

	_, err := h.app.Process(ctx, application.Identity{ID: req.UserID}, req)
	if err != nil {
		// 拒绝/限流/抑制是管线的正常裁决结果，消费成功
		if errors.Is(err, domain.ErrValidationRejected) ||
			errors.Is(err, domain.ErrThrottled) ||
			errors.Is(err, domain.ErrSuppressed) {
			logger.Warn(ctx, "trigger notification suppressed by pipeline",
				"user_id", req.UserID, "type", req.Type, "reason", err.Error())
			return nil
		}
		return err
	}
	return nil
}
