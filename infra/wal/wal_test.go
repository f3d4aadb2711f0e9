package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAL_AppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)

	const n = 100
	for i := 1; i <= n; i++ {
		rec := NewRecord(RecordOrderCreated, uint64(i), []byte(fmt.Sprintf("event-%d", i)))
		require.NoError(t, w.Append(rec))
		if i%20 == 0 {
			require.NoError(t, w.Sync())
		}
	}
	require.NoError(t, w.Close())

	count := 0
	last, err := Replay(dir, func(r *Record) error {
		count++
		assert.Equal(t, RecordOrderCreated, r.Type)
		assert.Equal(t, fmt.Sprintf("event-%d", r.Seq), string(r.Data))
		assert.NotZero(t, r.Time)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, n, count)
	assert.Equal(t, uint64(n), last)
}

func TestWAL_RejectsNonMonotonicAppend(t *testing.T) {
	w, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(NewRecord(RecordTradeExecuted, 5, nil)))
	err = w.Append(NewRecord(RecordTradeExecuted, 5, nil))
	assert.ErrorIs(t, err, ErrNonMonotonic)
}

func TestWAL_Rotation(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	require.NoError(t, err)
	for i := 1; i <= 10; i++ {
		require.NoError(t, w.Append(NewRecord(RecordOrderFilled, uint64(i), []byte("0123456789abcdef0123456789abcdef"))))
	}
	require.NoError(t, w.Close())

	files, err := listSegments(dir)
	require.NoError(t, err)
	assert.Greater(t, len(files), 1)

	last, err := Replay(dir, func(*Record) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(10), last)
}

func TestWAL_ReopenContinuesSequence(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordOrderCreated, 1, []byte("a"))))
	require.NoError(t, w.Append(NewRecord(RecordOrderCreated, 2, []byte("b"))))
	require.NoError(t, w.Close())

	w, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), w.LastSeq())
	assert.ErrorIs(t, w.Append(NewRecord(RecordOrderCreated, 2, nil)), ErrNonMonotonic)
	require.NoError(t, w.Append(NewRecord(RecordOrderCreated, 3, []byte("c"))))
	require.NoError(t, w.Close())

	var seen []string
	_, err = Replay(dir, func(r *Record) error {
		seen = append(seen, string(r.Data))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestWAL_CRCIntegrity(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordOrderCancelled, 1, []byte("valid-record"))))
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "segment-000000.wal")
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	// flip bytes inside the body so the checksum no longer matches
	_, err = f.WriteAt([]byte{0xFF, 0xFF, 0xFF, 0xFF}, frameHeader+2)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Replay(dir, func(*Record) error {
		t.Fatal("corrupt record delivered")
		return nil
	})
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestWAL_TruncateBefore(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1})
	require.NoError(t, err)
	defer w.Close()

	// every append seals its own segment
	for i := 1; i <= 4; i++ {
		require.NoError(t, w.Append(NewRecord(RecordOrderCreated, uint64(i), nil)))
	}
	require.NoError(t, w.TruncateBefore(2))

	var seqs []uint64
	_, err = Replay(dir, func(r *Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 4}, seqs)
}

func TestWAL_ReopenAfterRotation(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir, SegmentSize: 1})
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		require.NoError(t, w.Append(NewRecord(RecordOrderCreated, uint64(i), nil)))
	}
	require.NoError(t, w.Close())

	// the newest segment is the empty one opened by the last rotation
	w, err = Open(Config{Dir: dir, SegmentSize: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), w.LastSeq())
	assert.ErrorIs(t, w.Append(NewRecord(RecordOrderCreated, 1, nil)), ErrNonMonotonic)
	assert.ErrorIs(t, w.Append(NewRecord(RecordOrderCreated, 3, nil)), ErrNonMonotonic)
	require.NoError(t, w.Append(NewRecord(RecordOrderCreated, 4, nil)))
	require.NoError(t, w.Close())

	last, err := Replay(dir, func(*Record) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(4), last)
}

func TestWAL_TruncateKeepsLastRecord(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir, SegmentSize: 1})
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		require.NoError(t, w.Append(NewRecord(RecordOrderCreated, uint64(i), nil)))
	}
	require.NoError(t, w.TruncateBefore(3))
	require.NoError(t, w.Close())

	w, err = Open(Config{Dir: dir, SegmentSize: 1})
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, uint64(3), w.LastSeq())

	var seqs []uint64
	_, err = Replay(dir, func(r *Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, seqs)
}
