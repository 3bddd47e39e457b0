package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestEffectiveLowStockThreshold(t *testing.T) {
	tests := []struct {
		name          string
		product       *int
		vendorDefault *int
		systemDefault int
		want          int
	}{
		{"商品级阈值优先", intPtr(5), intPtr(20), 10, 5},
		{"无商品级回落商家默认", nil, intPtr(20), 10, 20},
		{"无商家默认回落系统默认", nil, nil, 10, 10},
		{"商品级为零也生效", intPtr(0), intPtr(20), 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ProductSnapshot{LowStockThreshold: tt.product}
			if got := EffectiveLowStockThreshold(p, tt.vendorDefault, tt.systemDefault); got != tt.want {
				t.Errorf("EffectiveLowStockThreshold() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEvaluateLowStock(t *testing.T) {
	product := ProductSnapshot{
		ProductID:         "p-1",
		VendorID:          "v-1",
		Name:              "保温杯",
		LowStockThreshold: intPtr(5),
	}

	tests := []struct {
		name      string
		stock     int
		prevStock *int
		wantFire  bool
	}{
		{"库存等于阈值触发", 5, nil, true},
		{"库存低于阈值触发", 3, nil, true},
		{"库存高于阈值不触发", 6, nil, false},
		{"缺货不触发", 0, nil, false},
		{"进入低库存区间触发", 4, intPtr(10), true},
		{"区间内继续走低不重复触发", 3, intPtr(4), false},
		{"从缺货回升到区间内触发", 2, intPtr(0), true},
		{"区间内回升仍在区间不触发", 5, intPtr(3), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := product
			p.Stock = tt.stock
			req := EvaluateLowStock(p, tt.prevStock, nil, 10)
			if (req != nil) != tt.wantFire {
				t.Fatalf("EvaluateLowStock() fired = %v, want %v", req != nil, tt.wantFire)
			}
			if req != nil {
				if req.UserID != "v-1" {
					t.Errorf("recipient = %q, want vendor v-1", req.UserID)
				}
				if req.Type != TypeLowStock {
					t.Errorf("type = %q, want %q", req.Type, TypeLowStock)
				}
				if req.Metadata["threshold"] != 5 {
					t.Errorf("metadata threshold = %v, want 5", req.Metadata["threshold"])
				}
			}
		})
	}
}

func TestCubicWeight(t *testing.T) {
	tests := []struct {
		name                    string
		length, breadth, height *float64
		want                    float64
	}{
		{"标准公式", floatPtr(100), floatPtr(60), floatPtr(50), 50},
		{"长度缺失按零计", nil, floatPtr(60), floatPtr(50), 0},
		{"高度缺失按零计", floatPtr(100), floatPtr(60), nil, 0},
		{"全部缺失", nil, nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CubicWeight(tt.length, tt.breadth, tt.height); got != tt.want {
				t.Errorf("CubicWeight() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateCubicVolume(t *testing.T) {
	base := ProductSnapshot{
		ProductID: "p-1",
		VendorID:  "v-1",
		Name:      "行李箱",
		Length:    floatPtr(100),
		Breadth:   floatPtr(60),
		Height:    floatPtr(50),
	}

	t.Run("创建流程超限触发", func(t *testing.T) {
		req := EvaluateCubicVolume(base, nil, 32)
		if req == nil {
			t.Fatal("cubic weight 50 exceeds threshold 32, should fire")
		}
		if req.Type != TypeCubicVolumeAlert {
			t.Errorf("type = %q, want %q", req.Type, TypeCubicVolumeAlert)
		}
	})

	t.Run("等于阈值不触发", func(t *testing.T) {
		if req := EvaluateCubicVolume(base, nil, 50); req != nil {
			t.Fatal("equal to threshold must not fire, limit is strict greater-than")
		}
	})

	t.Run("预计算体积重优先于公式", func(t *testing.T) {
		p := base
		p.CubicWeight = floatPtr(10)
		if req := EvaluateCubicVolume(p, nil, 32); req != nil {
			t.Fatal("precomputed cubic weight 10 is under threshold, must not fire")
		}
	})

	t.Run("更新流程无尺寸变化不触发", func(t *testing.T) {
		if req := EvaluateCubicVolume(base, &DimensionChange{}, 32); req != nil {
			t.Fatal("no dimension actually changed, must not fire on update")
		}
	})

	t.Run("更新流程尺寸变化且超限触发", func(t *testing.T) {
		changed := &DimensionChange{HeightChanged: true}
		if req := EvaluateCubicVolume(base, changed, 32); req == nil {
			t.Fatal("height changed and weight exceeds threshold, should fire")
		}
	})

	t.Run("尺寸被移除后不触发", func(t *testing.T) {
		p := base
		p.Height = nil
		changed := &DimensionChange{HeightChanged: true}
		if req := EvaluateCubicVolume(p, changed, 32); req != nil {
			t.Fatal("missing dimension yields weight 0, must not fire")
		}
	})
}

func TestTriggerNewOrder(t *testing.T) {
	req := TriggerNewOrder(OrderSnapshot{
		OrderID:     "o-1",
		OrderNumber: "SO-20250601",
		VendorID:    "v-1",
		CustomerID:  "c-1",
		Total:       decimal.NewFromFloat(199.90),
		Currency:    "CNY",
		ItemCount:   3,
	})

	if req.UserID != "v-1" {
		t.Errorf("recipient = %q, want v-1", req.UserID)
	}
	if req.Type != TypeNewOrder || req.Category != CategoryOrder {
		t.Errorf("type/category = %q/%q", req.Type, req.Category)
	}
	if req.Metadata["total"] != "199.9" {
		t.Errorf("metadata total = %v, want 199.9", req.Metadata["total"])
	}
}

func TestTriggerCommissionUpdate(t *testing.T) {
	req := TriggerCommissionUpdate(CommissionChange{
		VendorID:    "v-1",
		OldRate:     decimal.NewFromFloat(5),
		NewRate:     decimal.NewFromFloat(7.5),
		EffectiveAt: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	})

	if req.Type != TypeCommissionUpdate {
		t.Errorf("type = %q, want %q", req.Type, TypeCommissionUpdate)
	}
	if req.Metadata["delta"] != "2.5" {
		t.Errorf("metadata delta = %v, want 2.5", req.Metadata["delta"])
	}
}

func TestTriggerSystemAlertSeverity(t *testing.T) {
	tests := []struct {
		severity string
		want     Priority
	}{
		{"critical", PriorityUrgent},
		{"warning", PriorityHigh},
		{"info", PriorityMedium},
		{"", PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			req := TriggerSystemAlert(SystemAlert{Component: "payments", Severity: tt.severity, Detail: "latency"}, "admin-1")
			if req.Priority != tt.want {
				t.Errorf("priority = %q, want %q", req.Priority, tt.want)
			}
			if req.UserID != "admin-1" {
				t.Errorf("recipient = %q, want admin-1", req.UserID)
			}
		})
	}
}
