package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/metrics"
	"github.com/wyfcoding/marketnotify/pkg/ratelimit"
)

func newTestHub() *Hub {
	return NewHub(ratelimit.Limit{Rate: 100, Period: time.Minute}, metrics.New("test"))
}

func TestPublishWithoutConnection(t *testing.T) {
	hub := newTestHub()

	delivered, err := hub.Publish(context.Background(), "u-1", &domain.Notification{
		NotificationID: "n-1",
		UserID:         "u-1",
		Title:          "标题",
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if delivered {
		t.Error("no connection is registered, delivered should be false")
	}
	if hub.Online("u-1") {
		t.Error("Online() should report false for a user with no connections")
	}
}

func TestPublishReachesRegisteredConnection(t *testing.T) {
	hub := newTestHub()

	conn := &connection{
		id:     "c-1",
		userID: "u-1",
		send:   make(chan []byte, 1),
	}
	hub.register(conn)
	defer hub.unregister(conn)

	if !hub.Online("u-1") {
		t.Fatal("Online() should report true after registration")
	}

	delivered, err := hub.Publish(context.Background(), "u-1", &domain.Notification{
		NotificationID: "n-1",
		UserID:         "u-1",
		Title:          "标题",
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !delivered {
		t.Fatal("delivered should be true with an online connection")
	}

	select {
	case payload := <-conn.send:
		if len(payload) == 0 {
			t.Error("payload should not be empty")
		}
	default:
		t.Error("payload should be queued on the connection")
	}
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestShutdownReleasesConnectionGauge(t *testing.T) {
	hub := newTestHub()

	hub.register(&connection{id: "c-1", userID: "u-1", send: make(chan []byte, 1)})
	hub.register(&connection{id: "c-2", userID: "u-2", send: make(chan []byte, 1)})
	if got := gaugeValue(t, hub.metrics.RealtimeConnections); got != 2 {
		t.Fatalf("connection gauge = %v, want 2", got)
	}

	hub.Shutdown()

	if got := gaugeValue(t, hub.metrics.RealtimeConnections); got != 0 {
		t.Errorf("connection gauge after shutdown = %v, want 0", got)
	}
	if hub.Online("u-1") || hub.Online("u-2") {
		t.Error("no connection should remain online after shutdown")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	hub := newTestHub()

	conn := &connection{
		id:     "c-1",
		userID: "u-1",
		send:   make(chan []byte), // 无缓冲且无人消费
	}
	hub.register(conn)
	defer hub.unregister(conn)

	// at-most-once：缓冲满立即丢弃，不阻塞调用方
	delivered, err := hub.Publish(context.Background(), "u-1", &domain.Notification{NotificationID: "n-1", UserID: "u-1"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if delivered {
		t.Error("full buffer should drop the message and report not delivered")
	}
}
