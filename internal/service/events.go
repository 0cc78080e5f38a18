package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fnordcredit/internal/model"
	"fnordcredit/internal/repository"
	"fnordcredit/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Event 写入 outbox 的变更事件
type Event struct {
	EventNo     string           `json:"event_no"`
	Type        string           `json:"type"`
	UserID      int64            `json:"user_id"`
	Name        string           `json:"name"`
	Credit      decimal.Decimal  `json:"credit"`
	Delta       *decimal.Decimal `json:"delta,omitempty"`
	Description string           `json:"description,omitempty"`
	OldName     string           `json:"old_name,omitempty"`
	Time        time.Time        `json:"time"`
}

// eventRecorder 与业务写入处于同一事务，由 OutboxSender 异步投递到 Kafka
type eventRecorder struct {
	outboxRepo *repository.OutboxRepository
	ids        *idgen.Snowflake
	topic      string
}

func newEventRecorder(db *gorm.DB, ids *idgen.Snowflake, topic string) *eventRecorder {
	return &eventRecorder{
		outboxRepo: repository.NewOutboxRepository(db),
		ids:        ids,
		topic:      topic,
	}
}

func (r *eventRecorder) record(ctx context.Context, tx *gorm.DB, event Event) error {
	event.EventNo = r.ids.EventNo()
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	return r.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: fmt.Sprintf("user:%d", event.UserID),
		Topic:      r.topic,
		EventType:  event.Type,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}

func userEvent(eventType string, user *model.User) Event {
	return Event{
		Type:   eventType,
		UserID: user.ID,
		Name:   user.Name,
		Credit: user.Credit,
	}
}
