package transactions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-invoice-importflow/internal/aws/awstest"
)

const table = "invoices"

func newTestStore(now time.Time) (*Store, *awstest.FakeDynamo) {
	db := awstest.NewFakeDynamo()
	s := NewStore(db, table)
	s.nowFunc = func() time.Time { return now }
	return s, db
}

func sample(id string, now time.Time) Transaction {
	return Transaction{
		TransactionID: id,
		TTL:           now.Add(5 * time.Minute).Unix(),
		RequestID:     "req-1",
		ExpiresIn:     300,
		ConnectionID:  "conn-1",
		Endpoint:      "https://ws.example.com/prod",
		Status:        StatusGenerated,
	}
}

func TestCreateAndGet(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s, _ := newTestStore(now)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, sample("tx-1", now)))

	got, err := s.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, Partition, got.PK)
	assert.Equal(t, StatusGenerated, got.Status)
	assert.Equal(t, "conn-1", got.ConnectionID)
	assert.Equal(t, now.UnixMilli(), got.Timestamp)
	assert.Equal(t, now.Add(5*time.Minute).Unix(), got.ExpiresAt().Unix())
}

func TestCreateNeverOverwrites(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s, _ := newTestStore(now)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, sample("tx-1", now)))
	_, err := s.UpdateStatus(ctx, "tx-1", StatusReceived)
	require.NoError(t, err)

	err = s.Create(ctx, sample("tx-1", now))
	require.ErrorIs(t, err, ErrDuplicateKey)

	got, err := s.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, got.Status)
}

func TestGetMissing(t *testing.T) {
	s, _ := newTestStore(time.Now())
	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetPropagatesStoreErrors(t *testing.T) {
	s, db := newTestStore(time.Now())
	db.FailOn("GetItem", errors.New("throttled"))
	_, err := s.Get(context.Background(), "tx-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestUpdateStatusMissingRecord(t *testing.T) {
	s, db := newTestStore(time.Now())
	ok, err := s.UpdateStatus(context.Background(), "gone", StatusTimeout)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, db.Len(table), "update must not recreate a purged record")
}

func TestTransitionIsConditional(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s, _ := newTestStore(now)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, sample("tx-1", now)))

	ok, err := s.Transition(ctx, "tx-1", StatusGenerated, StatusReceived)
	require.NoError(t, err)
	assert.True(t, ok)

	// second writer still believes the record is GENERATED
	ok, err = s.Transition(ctx, "tx-1", StatusGenerated, StatusReceived)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Transition(ctx, "tx-1", StatusProcessed, StatusReceived)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s, _ := newTestStore(now)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, sample("tx-1", now)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Transition(ctx, "tx-1", StatusGenerated, StatusReceived)
			if err != nil {
				t.Errorf("transition: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestTransitionItemRejectsInvalidMove(t *testing.T) {
	s, _ := newTestStore(time.Now())
	_, err := s.TransitionItem("tx-1", StatusTimeout, StatusProcessed)
	require.ErrorIs(t, err, ErrInvalidTransition)

	item, err := s.TransitionItem("tx-1", StatusReceived, StatusProcessed)
	require.NoError(t, err)
	require.NotNil(t, item.Update)
	assert.Equal(t, table, *item.Update.TableName)
}

func TestListExpired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s, _ := newTestStore(now)
	ctx := context.Background()

	expired := sample("tx-old", now)
	expired.TTL = now.Add(-time.Minute).Unix()
	require.NoError(t, s.Create(ctx, expired))

	done := sample("tx-done", now)
	done.TTL = now.Add(-time.Minute).Unix()
	done.Status = StatusProcessed
	require.NoError(t, s.Create(ctx, done))

	require.NoError(t, s.Create(ctx, sample("tx-live", now)))

	got, err := s.ListExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tx-old", got[0].TransactionID)
}

func TestListExpiredHonoursLimit(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s, _ := newTestStore(now)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		tx := sample(id, now)
		tx.TTL = now.Add(-time.Second).Unix()
		require.NoError(t, s.Create(ctx, tx))
	}

	got, err := s.ListExpired(ctx, now, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
