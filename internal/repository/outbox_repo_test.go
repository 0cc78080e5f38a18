package repository

import (
	"context"
	"testing"

	"fnordcredit/internal/model"
	"fnordcredit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRepositoryLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, nil, &model.OutboxMessage{
			MessageKey: "user:1",
			Topic:      "credit_events",
			EventType:  model.EventCreditChanged,
			Payload:    "{}",
			Status:     model.OutboxStatusPending,
		}))
	}

	pending, err := repo.GetPendingMessages(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Less(t, pending[0].ID, pending[1].ID)

	require.NoError(t, repo.MarkAsSent(ctx, pending[0].ID))

	exhausted, err := repo.RecordFailure(ctx, pending[1], 2)
	require.NoError(t, err)
	assert.False(t, exhausted)

	pending[1].RetryCount = 1
	exhausted, err = repo.RecordFailure(ctx, pending[1], 2)
	require.NoError(t, err)
	assert.True(t, exhausted)

	sent, err := repo.GetByStatus(ctx, model.OutboxStatusSent, 10)
	require.NoError(t, err)
	require.Len(t, sent, 1)

	failed, err := repo.GetByStatus(ctx, model.OutboxStatusFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].RetryCount)

	pending, err = repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
