package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	o, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestOutbox_PutGet(t *testing.T) {
	o := newTestOutbox(t)

	require.NoError(t, o.Put(7, "FAPPL", []byte(`{"event":"orderCreated"}`)))

	rec, err := o.Get(7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), rec.Seq)
	assert.Equal(t, StateNew, rec.State)
	assert.Equal(t, "FAPPL", rec.Key)
	assert.Equal(t, `{"event":"orderCreated"}`, string(rec.Payload))
	assert.Zero(t, rec.Retries)
}

func TestOutbox_GetMissing(t *testing.T) {
	o := newTestOutbox(t)
	_, err := o.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, o.MarkSent(1), ErrNotFound)
}

func TestOutbox_StateMachine(t *testing.T) {
	o := newTestOutbox(t)
	require.NoError(t, o.Put(1, "k", []byte("p")))

	require.NoError(t, o.MarkSent(1))
	rec, err := o.Get(1)
	require.NoError(t, err)
	assert.Equal(t, StateSent, rec.State)
	assert.NotZero(t, rec.LastAttempt)

	require.NoError(t, o.MarkFailed(1))
	require.NoError(t, o.MarkFailed(1))
	rec, err = o.Get(1)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, uint32(2), rec.Retries)
	assert.Equal(t, []byte("p"), rec.Payload)

	require.NoError(t, o.MarkAcked(1))
	_, err = o.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOutbox_ScanOrderAndStates(t *testing.T) {
	o := newTestOutbox(t)
	for _, seq := range []uint64{10, 2, 33, 4} {
		require.NoError(t, o.Put(seq, "k", nil))
	}
	require.NoError(t, o.MarkFailed(33))

	var pending []uint64
	require.NoError(t, o.ScanPending(func(r Record) error {
		pending = append(pending, r.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{2, 4, 10, 33}, pending)

	var failed []uint64
	require.NoError(t, o.ScanByState(StateFailed, func(r Record) error {
		failed = append(failed, r.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{33}, failed)

	var first []uint64
	require.NoError(t, o.ScanPending(func(r Record) error {
		first = append(first, r.Seq)
		if len(first) == 2 {
			return ErrStop
		}
		return nil
	}))
	assert.Equal(t, []uint64{2, 4}, first)

	last, err := o.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(33), last)

	n, err := o.Len()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestOutbox_LastSeqEmpty(t *testing.T) {
	o := newTestOutbox(t)
	last, err := o.LastSeq()
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestOutbox_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	o, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, o.Put(5, "FMETA", []byte("x")))
	require.NoError(t, o.Close())

	o, err = Open(dir)
	require.NoError(t, err)
	defer o.Close()

	rec, err := o.Get(5)
	require.NoError(t, err)
	assert.Equal(t, "FMETA", rec.Key)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "NEW", StateNew.String())
	assert.Equal(t, "FAILED", StateFailed.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
}

func TestOutbox_LastSeqSurvivesAck(t *testing.T) {
	dir := t.TempDir()
	o, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, o.Put(8, "FAPPL", []byte("a")))
	require.NoError(t, o.Put(9, "FAPPL", []byte("b")))
	require.NoError(t, o.MarkAcked(8))
	require.NoError(t, o.MarkAcked(9))

	n, err := o.Len()
	require.NoError(t, err)
	require.Zero(t, n)

	last, err := o.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), last)
	require.NoError(t, o.Close())

	o, err = Open(dir)
	require.NoError(t, err)
	defer o.Close()
	last, err = o.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), last)
}

func TestOutbox_FirstSeq(t *testing.T) {
	o := newTestOutbox(t)

	_, ok, err := o.FirstSeq()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, o.Put(12, "k", nil))
	require.NoError(t, o.Put(7, "k", nil))

	first, ok, err := o.FirstSeq()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(7), first)

	require.NoError(t, o.MarkAcked(7))
	first, ok, err = o.FirstSeq()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(12), first)
}
