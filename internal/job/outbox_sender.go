package job

import (
	"context"
	"time"

	"fnordcredit/internal/config"
	"fnordcredit/internal/infrastructure/mq"
	"fnordcredit/internal/model"
	"fnordcredit/internal/repository"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// OutboxSender 把本地消息表中待发送的事件投递到 Kafka
//
// 事件与业务数据在同一事务内写入，这里只负责至少一次地发送出去
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	logger     zerolog.Logger
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	maxRetry   int
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, cfg *config.Config, logger zerolog.Logger) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		logger:     logger.With().Str("job", "outbox_sender").Logger(),
		stopCh:     make(chan struct{}),
		interval:   cfg.Ledger.OutboxInterval,
		batchSize:  cfg.Ledger.OutboxBatchSize,
		maxRetry:   cfg.Ledger.OutboxMaxRetry,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// processPendingMessages 发送一批待发送消息，返回发送成功的条数
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("查询消息失败")
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			s.logger.Error().Err(updateErr).Int64("id", msg.ID).Msg("更新消息状态失败")
			return false
		}
		s.logger.Debug().
			Int64("id", msg.ID).
			Str("topic", msg.Topic).
			Str("key", msg.MessageKey).
			Str("event", msg.EventType).
			Msg("消息发送成功")
		return true
	}

	s.logger.Warn().Err(err).Int64("id", msg.ID).Int("retry", msg.RetryCount).Msg("消息发送失败")

	exhausted, recordErr := s.outboxRepo.RecordFailure(ctx, msg, s.maxRetry)
	if recordErr != nil {
		s.logger.Error().Err(recordErr).Int64("id", msg.ID).Msg("记录发送失败次数失败")
		return false
	}
	if exhausted {
		s.logger.Error().Int64("id", msg.ID).Str("event", msg.EventType).Msg("消息超过最大重试次数，标记为失败")
	}
	return false
}
