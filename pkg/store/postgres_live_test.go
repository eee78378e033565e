package store

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampay-hq/streampay-engine/pkg/logger"
	"github.com/streampay-hq/streampay-engine/pkg/models"
)

// newLiveStore connects to the database named by TEST_DATABASE_URL, or skips
// the test when it is not set.
func newLiveStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping live store tests: TEST_DATABASE_URL is not set")
	}

	st, err := NewPostgresStore(context.Background(), dsn, &logger.EmptyLogger{})
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func liveParams(userID string) models.CreateIntentParams {
	return models.CreateIntentParams{
		UserID:        userID,
		Name:          "Rent",
		Recipient:     "0x1111111111111111111111111111111111111111",
		Amount:        "1000",
		Token:         "USDC",
		TokenAddress:  "0x2222222222222222222222222222222222222222",
		WalletAddress: "0x3333333333333333333333333333333333333333",
		Frequency:     "MONTHLY",
		SafetyBuffer:  "100",
	}
}

func TestLiveIntentLifecycle(t *testing.T) {
	st := newLiveStore(t)
	ctx := context.Background()
	userID := "live-user-" + time.Now().Format("150405.000000000")

	due := time.Now().Add(-time.Minute)
	intent, err := st.CreateIntent(ctx, liveParams(userID), &due)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusActive, intent.Status)
	assert.Equal(t, "1000", intent.Amount.String())
	assert.Equal(t, "100", intent.SafetyBuffer.String())
	require.NotNil(t, intent.NextExecution)

	// The intent is due now.
	dueIntents, err := st.FindDueIntents(ctx, time.Now())
	require.NoError(t, err)
	found := false
	for _, i := range dueIntents {
		if i.ID == intent.ID {
			found = true
		}
	}
	assert.True(t, found, "freshly created past-due intent must be selected")

	// A success advances the schedule and the counters atomically.
	next := time.Now().AddDate(0, 1, 0)
	err = st.RecordSuccess(ctx, intent.ID, models.Execution{
		IntentID:    intent.ID,
		Status:      models.ExecutionStatusSuccess,
		Amount:      big.NewInt(1000),
		TxHash:      "0xabc",
		GasUsed:     big.NewInt(21000),
		GasPrice:    big.NewInt(2000000000),
		BlockNumber: 123,
		ExecutedAt:  time.Now(),
	}, &next)
	require.NoError(t, err)

	reloaded, err := st.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.ExecutionCount)
	assert.Zero(t, reloaded.FailureCount)
	require.NotNil(t, reloaded.LastExecution)
	require.NotNil(t, reloaded.NextExecution)
	assert.WithinDuration(t, next, *reloaded.NextExecution, time.Second)

	execs, err := st.RecentExecutions(ctx, intent.ID, 10)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, "0xabc", execs[0].TxHash)
	assert.Equal(t, "21000", execs[0].GasUsed.String())
}

func TestLiveRecordFailureHaltsIntent(t *testing.T) {
	st := newLiveStore(t)
	ctx := context.Background()
	userID := "live-user-" + time.Now().Format("150405.000000001")

	due := time.Now().Add(-time.Minute)
	intent, err := st.CreateIntent(ctx, liveParams(userID), &due)
	require.NoError(t, err)

	err = st.RecordFailure(ctx, intent.ID, models.Execution{
		IntentID:     intent.ID,
		Status:       models.ExecutionStatusFailed,
		Amount:       big.NewInt(0),
		ErrorMessage: "on-chain execution failed: execution reverted",
		ExecutedAt:   time.Now(),
	})
	require.NoError(t, err)

	reloaded, err := st.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusFailed, reloaded.Status)
	assert.Equal(t, 1, reloaded.FailureCount)

	// A FAILED intent is never selected, even past due.
	dueIntents, err := st.FindDueIntents(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	for _, i := range dueIntents {
		assert.NotEqual(t, intent.ID, i.ID)
	}

	// Reactivation restores it and clears the failure streak.
	next := time.Now().Add(time.Minute)
	require.NoError(t, st.Reactivate(ctx, intent.ID, userID, next))

	reloaded, err = st.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusActive, reloaded.Status)
	assert.Zero(t, reloaded.FailureCount)
}

func TestLiveRecordDelayKeepsIntentActive(t *testing.T) {
	st := newLiveStore(t)
	ctx := context.Background()
	userID := "live-user-" + time.Now().Format("150405.000000002")

	due := time.Now().Add(-time.Minute)
	intent, err := st.CreateIntent(ctx, liveParams(userID), &due)
	require.NoError(t, err)

	retry := time.Now().Add(5 * time.Minute)
	err = st.RecordDelay(ctx, intent.ID, models.Execution{
		IntentID:    intent.ID,
		Status:      models.ExecutionStatusDelayed,
		Amount:      big.NewInt(0),
		DelayReason: "Insufficient balance",
		ExecutedAt:  time.Now(),
	}, retry)
	require.NoError(t, err)

	reloaded, err := st.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusActive, reloaded.Status)
	assert.Zero(t, reloaded.ExecutionCount, "a delay is not a success")
	require.NotNil(t, reloaded.NextExecution)
	assert.WithinDuration(t, retry, *reloaded.NextExecution, time.Second)
}

func TestLiveStatusTransitions(t *testing.T) {
	st := newLiveStore(t)
	ctx := context.Background()
	userID := "live-user-" + time.Now().Format("150405.000000003")

	due := time.Now().Add(time.Hour)
	intent, err := st.CreateIntent(ctx, liveParams(userID), &due)
	require.NoError(t, err)

	// ACTIVE -> PAUSED -> ACTIVE -> CANCELLED.
	require.NoError(t, st.SetStatus(ctx, intent.ID, userID, models.IntentStatusPaused))
	require.NoError(t, st.SetStatus(ctx, intent.ID, userID, models.IntentStatusActive))
	require.NoError(t, st.SetStatus(ctx, intent.ID, userID, models.IntentStatusCancelled))

	// CANCELLED is terminal.
	err = st.SetStatus(ctx, intent.ID, userID, models.IntentStatusActive)
	assert.ErrorIs(t, err, ErrNotFound)
	err = st.SetStatus(ctx, intent.ID, userID, models.IntentStatusPaused)
	assert.ErrorIs(t, err, ErrNotFound)

	// Another user cannot touch the intent.
	intent2, err := st.CreateIntent(ctx, liveParams(userID+"-b"), &due)
	require.NoError(t, err)
	err = st.SetStatus(ctx, intent2.ID, "someone-else", models.IntentStatusPaused)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLiveNotificationsAndTelegramLinks(t *testing.T) {
	st := newLiveStore(t)
	ctx := context.Background()
	userID := "live-user-" + time.Now().Format("150405.000000004")

	err := st.InsertNotification(ctx, userID, models.Notification{
		Type:    models.NotificationExecutionSuccess,
		Title:   "Payment Sent Successfully",
		Message: "Rent: 1000 USDC sent",
		Data:    map[string]string{"intentId": "intent-1"},
	})
	require.NoError(t, err)

	chatID, err := st.TelegramChatID(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, chatID, "unlinked user has no chat")
}
