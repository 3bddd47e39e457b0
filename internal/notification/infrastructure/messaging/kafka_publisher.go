// Package messaging 通知生命周期事件的消息队列发布实现
package messaging

import (
	"context"
	"fmt"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/mq"
)

// KafkaEventPublisher 将生命周期事件发布到 Kafka，
// 供下游（审计归档、推送统计等）订阅消费
type KafkaEventPublisher struct {
	producer *mq.Producer
	topic    string
}

// NewKafkaEventPublisher 创建 Kafka 事件发布器
func NewKafkaEventPublisher(producer *mq.Producer, topic string) domain.EventPublisher {
	return &KafkaEventPublisher{
		producer: producer,
		topic:    topic,
	}
}

// Publish 发布事件。以用户 ID 作为分区键，保证同一用户的事件有序
func (p *KafkaEventPublisher) Publish(ctx context.Context, event *domain.LifecycleEvent) error {
	if err := p.producer.Publish(ctx, p.topic, event.UserID, event); err != nil {
		return fmt.Errorf("failed to publish lifecycle event: %w", err)
	}
	return nil
}

// NoopEventPublisher Kafka 未启用时的空实现
type NoopEventPublisher struct{}

// NewNoopEventPublisher 创建空事件发布器
func NewNoopEventPublisher() domain.EventPublisher {
	return &NoopEventPublisher{}
}

// Publish 丢弃事件
func (p *NoopEventPublisher) Publish(_ context.Context, _ *domain.LifecycleEvent) error {
	return nil
}
