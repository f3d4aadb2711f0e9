package broadcaster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"exchange/infra/outbox"
)

type fakePublisher struct {
	mu     sync.Mutex
	fail   bool
	failOn string
	keys   []string
	bodies []string
	closed bool
}

func (f *fakePublisher) Publish(_ context.Context, key string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || string(payload) == f.failOn {
		return errors.New("broker unavailable")
	}
	f.keys = append(f.keys, key)
	f.bodies = append(f.bodies, string(payload))
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

func newTestEnv(t *testing.T) (*outbox.Outbox, *fakePublisher) {
	t.Helper()
	ob, err := outbox.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ob.Close() })
	return ob, &fakePublisher{}
}

func TestReplayOnce_PublishesInOrderAndAcks(t *testing.T) {
	ob, pub := newTestEnv(t)
	require.NoError(t, ob.Put(1, "FAPPL", []byte("a")))
	require.NoError(t, ob.Put(2, "FMETA", []byte("b")))
	require.NoError(t, ob.Put(3, "FAPPL", []byte("c")))

	b := New(ob, pub, Config{}, zaptest.NewLogger(t))
	n, err := b.ReplayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []string{"a", "b", "c"}, pub.bodies)
	assert.Equal(t, []string{"FAPPL", "FMETA", "FAPPL"}, pub.keys)

	left, err := ob.Len()
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestReplayOnce_FailureMarksFailedAndRetries(t *testing.T) {
	ob, pub := newTestEnv(t)
	require.NoError(t, ob.Put(1, "FAPPL", []byte("a")))
	pub.fail = true

	b := New(ob, pub, Config{MaxRetries: 2}, zaptest.NewLogger(t))

	n, err := b.ReplayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	rec, err := ob.Get(1)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateFailed, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)

	pub.fail = false
	n, err = b.ReplayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = ob.Get(1)
	assert.ErrorIs(t, err, outbox.ErrNotFound)
}

func TestReplayOnce_SkipsExhaustedEntries(t *testing.T) {
	ob, pub := newTestEnv(t)
	require.NoError(t, ob.Put(1, "FAPPL", []byte("dead")))
	require.NoError(t, ob.Put(2, "FAPPL", []byte("live")))
	require.NoError(t, ob.MarkFailed(1))
	require.NoError(t, ob.MarkFailed(1))

	b := New(ob, pub, Config{MaxRetries: 2}, zaptest.NewLogger(t))
	n, err := b.ReplayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"live"}, pub.bodies)

	rec, err := ob.Get(1)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateFailed, rec.State)
}

func TestReplayOnce_RespectsBatchSize(t *testing.T) {
	ob, pub := newTestEnv(t)
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, ob.Put(i, "k", []byte{byte('0' + i)}))
	}

	b := New(ob, pub, Config{BatchSize: 2}, zaptest.NewLogger(t))
	n, err := b.ReplayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := ob.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, left)
}

func TestRun_DrainsUntilCancelled(t *testing.T) {
	ob, pub := newTestEnv(t)
	require.NoError(t, ob.Put(1, "FAPPL", []byte("x")))

	b := New(ob, pub, Config{Interval: 5 * time.Millisecond}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return pub.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.NoError(t, b.Close())
	assert.True(t, pub.closed)
}

type fakeJournal struct {
	mu      sync.Mutex
	through []uint64
}

func (j *fakeJournal) TruncateBefore(seq uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.through = append(j.through, seq)
	return nil
}

func (j *fakeJournal) calls() []uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]uint64(nil), j.through...)
}

func TestReplayOnce_FailureHoldsBackSameKey(t *testing.T) {
	ob, pub := newTestEnv(t)
	require.NoError(t, ob.Put(1, "FAPPL", []byte("a1")))
	require.NoError(t, ob.Put(2, "FAPPL", []byte("a2")))
	require.NoError(t, ob.Put(3, "FMETA", []byte("m1")))
	pub.failOn = "a1"

	b := New(ob, pub, Config{MaxRetries: 3}, zaptest.NewLogger(t))
	n, err := b.ReplayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"m1"}, pub.bodies)

	rec, err := ob.Get(2)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateNew, rec.State)

	pub.failOn = ""
	n, err = b.ReplayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"m1", "a1", "a2"}, pub.bodies)
}

func TestRecover_RequeuesSentEntries(t *testing.T) {
	ob, pub := newTestEnv(t)
	require.NoError(t, ob.Put(1, "FAPPL", []byte("a")))
	require.NoError(t, ob.Put(2, "FAPPL", []byte("b")))
	require.NoError(t, ob.MarkSent(1))

	b := New(ob, pub, Config{}, zaptest.NewLogger(t))
	require.NoError(t, b.Recover())

	rec, err := ob.Get(1)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateFailed, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)

	rec, err = ob.Get(2)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateNew, rec.State)
}

func TestDeliveredThrough(t *testing.T) {
	ob, pub := newTestEnv(t)
	b := New(ob, pub, Config{}, zaptest.NewLogger(t))

	through, err := b.DeliveredThrough()
	require.NoError(t, err)
	assert.Zero(t, through)

	require.NoError(t, ob.Put(4, "k", nil))
	require.NoError(t, ob.Put(5, "k", nil))
	require.NoError(t, ob.MarkAcked(4))
	through, err = b.DeliveredThrough()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), through)

	require.NoError(t, ob.MarkAcked(5))
	through, err = b.DeliveredThrough()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), through)
}

func TestRun_TruncatesJournalBehindDelivered(t *testing.T) {
	ob, pub := newTestEnv(t)
	require.NoError(t, ob.Put(1, "FAPPL", []byte("a")))
	require.NoError(t, ob.Put(2, "FAPPL", []byte("b")))

	j := &fakeJournal{}
	b := New(ob, pub, Config{Interval: 5 * time.Millisecond}, zaptest.NewLogger(t), WithRetention(j))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(j.calls()) > 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, uint64(2), j.calls()[0])
}
