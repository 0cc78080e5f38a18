package job

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fnordcredit/internal/config"
	"fnordcredit/internal/model"
	"fnordcredit/internal/repository"
	"fnordcredit/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentMessage struct {
	topic, key, value string
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

func (p *fakePublisher) SendMessage(topic, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{topic, key, value})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func seedOutbox(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	repo := repository.NewOutboxRepository(db)
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Create(context.Background(), nil, &model.OutboxMessage{
			MessageKey: "user:1",
			Topic:      "credit_events",
			EventType:  model.EventCreditChanged,
			Payload:    `{"user_id":1}`,
			Status:     model.OutboxStatusPending,
		}))
	}
}

func newSender(db *gorm.DB, pub *fakePublisher, tweak func(*config.Config)) *OutboxSender {
	cfg := testutil.Config()
	if tweak != nil {
		tweak(cfg)
	}
	return NewOutboxSender(db, pub, cfg, zerolog.Nop())
}

func TestOutboxSenderDelivers(t *testing.T) {
	db := testutil.NewDB(t)
	seedOutbox(t, db, 3)

	pub := &fakePublisher{}
	sender := newSender(db, pub, nil)

	assert.Equal(t, 3, sender.processPendingMessages(context.Background()))
	require.Len(t, pub.sent, 3)
	assert.Equal(t, "credit_events", pub.sent[0].topic)
	assert.Equal(t, "user:1", pub.sent[0].key)

	// 已发送的消息不会重复发送
	assert.Equal(t, 0, sender.processPendingMessages(context.Background()))
	assert.Len(t, pub.sent, 3)
}

func TestOutboxSenderBatchSize(t *testing.T) {
	db := testutil.NewDB(t)
	seedOutbox(t, db, 5)

	pub := &fakePublisher{}
	sender := newSender(db, pub, func(cfg *config.Config) {
		cfg.Ledger.OutboxBatchSize = 2
	})

	assert.Equal(t, 2, sender.processPendingMessages(context.Background()))
	assert.Equal(t, 2, sender.processPendingMessages(context.Background()))
	assert.Equal(t, 1, sender.processPendingMessages(context.Background()))
}

func TestOutboxSenderMarksFailedAfterMaxRetry(t *testing.T) {
	db := testutil.NewDB(t)
	seedOutbox(t, db, 1)

	pub := &fakePublisher{err: errors.New("broker down")}
	sender := newSender(db, pub, func(cfg *config.Config) {
		cfg.Ledger.OutboxMaxRetry = 2
	})
	ctx := context.Background()
	repo := repository.NewOutboxRepository(db)

	assert.Equal(t, 0, sender.processPendingMessages(ctx))
	pending, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)

	assert.Equal(t, 0, sender.processPendingMessages(ctx))
	pending, err = repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	failed, err := repo.GetByStatus(ctx, model.OutboxStatusFailed, 10)
	require.NoError(t, err)
	assert.Len(t, failed, 1)
}

func TestOutboxSenderStop(t *testing.T) {
	db := testutil.NewDB(t)
	sender := newSender(db, &fakePublisher{}, nil)

	done := make(chan struct{})
	go func() {
		sender.Start(context.Background())
		close(done)
	}()
	sender.Stop()
	<-done
}
