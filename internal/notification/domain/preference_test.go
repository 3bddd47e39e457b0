package domain

import (
	"testing"
	"time"
)

func TestChannelPreferencePrecedence(t *testing.T) {
	tests := []struct {
		name string
		pref ChannelPreference
		want bool
	}{
		{
			"类型覆写优先于分类覆写",
			ChannelPreference{
				Enabled:    true,
				Categories: map[Category]bool{CategoryProduct: false},
				Types:      map[NotificationType]bool{TypeLowStock: true},
			},
			true,
		},
		{
			"分类覆写优先于渠道默认",
			ChannelPreference{
				Enabled:    true,
				Categories: map[Category]bool{CategoryProduct: false},
			},
			false,
		},
		{
			"无覆写取渠道默认",
			ChannelPreference{Enabled: false},
			false,
		},
		{
			"类型覆写可关闭已开启的分类",
			ChannelPreference{
				Enabled:    false,
				Categories: map[Category]bool{CategoryProduct: true},
				Types:      map[NotificationType]bool{TypeLowStock: false},
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pref.resolve(TypeLowStock, CategoryProduct); got != tt.want {
				t.Errorf("resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuietHoursContains(t *testing.T) {
	at := func(hour, minute int) time.Time {
		return time.Date(2025, 6, 1, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name  string
		quiet QuietHours
		now   time.Time
		want  bool
	}{
		{"同日时段内", QuietHours{Enabled: true, Start: "09:00", End: "17:00"}, at(12, 0), true},
		{"同日时段起点含", QuietHours{Enabled: true, Start: "09:00", End: "17:00"}, at(9, 0), true},
		{"同日时段终点不含", QuietHours{Enabled: true, Start: "09:00", End: "17:00"}, at(17, 0), false},
		{"跨夜时段深夜命中", QuietHours{Enabled: true, Start: "22:00", End: "08:00"}, at(23, 0), true},
		{"跨夜时段凌晨命中", QuietHours{Enabled: true, Start: "22:00", End: "08:00"}, at(3, 0), true},
		{"跨夜时段白天不命中", QuietHours{Enabled: true, Start: "22:00", End: "08:00"}, at(9, 0), false},
		{"跨夜时段临界不命中", QuietHours{Enabled: true, Start: "22:00", End: "08:00"}, at(21, 59), false},
		{"起止相同视为空窗口", QuietHours{Enabled: true, Start: "08:00", End: "08:00"}, at(8, 0), false},
		{"未启用不命中", QuietHours{Enabled: false, Start: "00:00", End: "23:59"}, at(12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.quiet.Contains(tt.now)
			if err != nil {
				t.Fatalf("Contains() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestQuietHoursTimezone(t *testing.T) {
	quiet := QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "Asia/Shanghai"}

	// UTC 15:00 = 北京时间 23:00，命中跨夜静默
	inside := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	got, err := quiet.Contains(inside)
	if err != nil {
		t.Fatalf("Contains() error = %v", err)
	}
	if !got {
		t.Error("23:00 local time should be inside overnight quiet hours")
	}

	// 非法时区返回错误
	broken := QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "Mars/Olympus"}
	if _, err := broken.Contains(inside); err == nil {
		t.Error("invalid timezone should return an error")
	}
}

func TestResolveChannels(t *testing.T) {
	req := &NotificationRequest{
		UserID:   "v-1",
		Type:     TypeLowStock,
		Category: CategoryProduct,
	}
	day := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	night := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)

	t.Run("全局关闭所有渠道关闭", func(t *testing.T) {
		profile := &PreferenceProfile{Enabled: false}
		decision, err := profile.ResolveChannels(req, day)
		if err != nil {
			t.Fatalf("ResolveChannels() error = %v", err)
		}
		if decision.Store || decision.Email || decision.Realtime {
			t.Errorf("globally disabled profile produced decision %+v", decision)
		}
	})

	t.Run("默认偏好全渠道投递", func(t *testing.T) {
		decision, err := DefaultProfile().ResolveChannels(req, day)
		if err != nil {
			t.Fatalf("ResolveChannels() error = %v", err)
		}
		if !decision.Store || !decision.Email || !decision.Realtime || decision.Deferred {
			t.Errorf("default profile decision = %+v", decision)
		}
	})

	t.Run("静默时段标记延迟但照常落库", func(t *testing.T) {
		profile := DefaultProfile()
		profile.Quiet = QuietHours{Enabled: true, Start: "22:00", End: "08:00"}
		decision, err := profile.ResolveChannels(req, night)
		if err != nil {
			t.Fatalf("ResolveChannels() error = %v", err)
		}
		if !decision.Store {
			t.Error("quiet hours must not block the store channel")
		}
		if !decision.Deferred {
			t.Error("inside quiet hours decision should be deferred")
		}
	})

	t.Run("渠道覆写只影响对应渠道", func(t *testing.T) {
		profile := DefaultProfile()
		profile.Email.Types = map[NotificationType]bool{TypeLowStock: false}
		decision, err := profile.ResolveChannels(req, day)
		if err != nil {
			t.Fatalf("ResolveChannels() error = %v", err)
		}
		if decision.Email {
			t.Error("email should be disabled by type override")
		}
		if !decision.Realtime || !decision.Store {
			t.Error("realtime and store must be unaffected by the email override")
		}
	})
}
