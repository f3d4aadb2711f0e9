package wal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	ErrClosed        = errors.New("wal: closed")
	ErrNonMonotonic  = errors.New("wal: non-monotonic seq")
	defaultSegmentSz = int64(4 << 20)
)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
}

// WAL is an append-only journal of emitted events, split into numbered
// segments. It is an audit trail and is never read back into a book.
type WAL struct {
	mu sync.Mutex

	dir         string
	segSize     int64
	segDuration time.Duration
	current     *segment
	segIndex    int
	lastRotate  time.Time
	lastSeq     uint64
	closed      bool
}

// Open resumes appending to the newest segment in cfg.Dir. The last
// sequence is taken from the newest segment holding any record, since a
// rotation leaves an empty segment behind.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = defaultSegmentSz
	}

	files, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}

	w := &WAL{
		dir:         cfg.Dir,
		segSize:     cfg.SegmentSize,
		segDuration: cfg.SegmentDuration,
		lastRotate:  time.Now(),
	}
	if n := len(files); n > 0 {
		last := files[n-1]
		if w.segIndex, err = segmentIndex(last); err != nil {
			return nil, fmt.Errorf("wal: bad segment name %s: %w", last, err)
		}
		if w.lastSeq, err = lastSeqIn(files); err != nil {
			return nil, err
		}
	}

	if w.current, err = openSegment(cfg.Dir, w.segIndex); err != nil {
		return nil, err
	}
	return w, nil
}

// Append writes one framed record. Sequence numbers must increase.
func (w *WAL) Append(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if r.Seq <= w.lastSeq {
		return fmt.Errorf("%w: %d after %d", ErrNonMonotonic, r.Seq, w.lastSeq)
	}

	if err := w.current.append(encodeFrame(r)); err != nil {
		return err
	}
	w.lastSeq = r.Seq

	if w.shouldRotate() {
		return w.rotate()
	}
	return nil
}

func (w *WAL) LastSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeq
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.current.sync()
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return err
	}
	return w.current.close()
}

func (w *WAL) shouldRotate() bool {
	if w.current.offset >= w.segSize {
		return true
	}
	return w.segDuration > 0 && time.Since(w.lastRotate) >= w.segDuration
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

// TruncateBefore removes sealed segments whose records are all <= seq.
// The segment holding the last record is always kept so a reopen
// resumes from it.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := listSegments(w.dir)
	if err != nil {
		return err
	}

	current := segmentPath(w.dir, w.segIndex)
	for _, path := range files {
		if path == current {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			return fmt.Errorf("wal: scan %s: %w", path, err)
		}
		if maxSeq <= seq && maxSeq < w.lastSeq {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}
	return nil
}

// lastSeqIn scans segments newest first and returns the first non-zero
// maximum.
func lastSeqIn(files []string) (uint64, error) {
	for i := len(files) - 1; i >= 0; i-- {
		seq, err := maxSeqInSegment(files[i])
		if err != nil {
			return 0, fmt.Errorf("wal: scan %s: %w", files[i], err)
		}
		if seq > 0 {
			return seq, nil
		}
	}
	return 0, nil
}

// maxSeqInSegment returns the highest sequence stored in one segment.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var max uint64
	for {
		rec, err := readFrame(f)
		if err != nil {
			if err == io.EOF {
				return max, nil
			}
			return max, err
		}
		if rec.Seq > max {
			max = rec.Seq
		}
	}
}
