package outbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrNotFound = errors.New("outbox: entry not found")
	ErrStop     = errors.New("outbox: stop scan")
)

// -------------------- Record --------------------

// Record is one event waiting to leave the process. Key is the broker
// partition key (the instrument id).
type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Key         string
	Payload     []byte
}

const recordHeader = 1 + 4 + 8 + 2

// binary encoding: [state:1][retries:4][lastAttempt:8][keyLen:2][key][payload]
func encodeRecord(r Record) []byte {
	buf := make([]byte, recordHeader+len(r.Key)+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	binary.BigEndian.PutUint16(buf[13:15], uint16(len(r.Key)))
	n := copy(buf[recordHeader:], r.Key)
	copy(buf[recordHeader+n:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < recordHeader {
		return Record{}, fmt.Errorf("outbox: record %d too short (%d bytes)", seq, len(b))
	}
	keyLen := int(binary.BigEndian.Uint16(b[13:15]))
	if len(b) < recordHeader+keyLen {
		return Record{}, fmt.Errorf("outbox: record %d key overruns value", seq)
	}
	body := b[recordHeader:]
	return Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Key:         string(body[:keyLen]),
		Payload:     append([]byte(nil), body[keyLen:]...),
	}, nil
}

// -------------------- Outbox --------------------

// Outbox is a pebble-backed store of events awaiting broker delivery.
// Entries are removed once acknowledged; the highest sequence ever put
// is kept under its own key so numbering survives a drained outbox.
type Outbox struct {
	db  *pebble.DB
	now func() time.Time

	mu   sync.Mutex
	high uint64
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("outbox: open %s: %w", dir, err)
	}
	o := &Outbox{db: db, now: time.Now}
	if o.high, err = o.loadHigh(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return o, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// -------------------- API --------------------

// Put inserts a NEW entry (called by the event dispatcher) and raises
// the high-water mark in the same batch.
func (o *Outbox) Put(seq uint64, key string, payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec := Record{Seq: seq, State: StateNew, Key: key, Payload: payload}

	b := o.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyFor(seq), encodeRecord(rec), nil); err != nil {
		return fmt.Errorf("outbox: put %d: %w", seq, err)
	}
	if seq > o.high {
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], seq)
		if err := b.Set([]byte(highKey), v[:], nil); err != nil {
			return fmt.Errorf("outbox: put %d: %w", seq, err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("outbox: put %d: %w", seq, err)
	}
	o.high = max(o.high, seq)
	return nil
}

func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, fmt.Errorf("%w: %d", ErrNotFound, seq)
	}
	if err != nil {
		return Record{}, fmt.Errorf("outbox: get %d: %w", seq, err)
	}
	defer closer.Close()

	return decodeRecord(seq, val)
}

// MarkSent records a delivery attempt in progress.
func (o *Outbox) MarkSent(seq uint64) error {
	return o.update(seq, func(r *Record) {
		r.State = StateSent
		r.LastAttempt = o.now().UnixNano()
	})
}

// MarkFailed records a failed delivery attempt.
func (o *Outbox) MarkFailed(seq uint64) error {
	return o.update(seq, func(r *Record) {
		r.State = StateFailed
		r.Retries++
		r.LastAttempt = o.now().UnixNano()
	})
}

// MarkAcked removes a delivered entry.
func (o *Outbox) MarkAcked(seq uint64) error {
	if err := o.db.Delete(keyFor(seq), pebble.Sync); err != nil {
		return fmt.Errorf("outbox: ack %d: %w", seq, err)
	}
	return nil
}

func (o *Outbox) update(seq uint64, fn func(*Record)) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	fn(&rec)
	if err := o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync); err != nil {
		return fmt.Errorf("outbox: update %d: %w", seq, err)
	}
	return nil
}

// -------------------- Scan --------------------

// ScanByState iterates, in sequence order, all records in the given state.
func (o *Outbox) ScanByState(state State, fn func(Record) error) error {
	return o.scan(func(rec Record) error {
		if rec.State != state {
			return nil
		}
		return fn(rec)
	})
}

// ScanPending iterates, in sequence order, every record still awaiting
// delivery: NEW, FAILED, and SENT entries left by an interrupted attempt.
// fn may return ErrStop to end the scan early.
func (o *Outbox) ScanPending(fn func(Record) error) error {
	return o.scan(fn)
}

// LastSeq returns the highest sequence ever put, including entries
// already acknowledged, or 0 for a fresh outbox.
func (o *Outbox) LastSeq() (uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.high, nil
}

// FirstSeq returns the lowest sequence still stored. ok is false when
// every entry has been acknowledged.
func (o *Outbox) FirstSeq() (seq uint64, ok bool, err error) {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return 0, false, err
	}
	defer iter.Close()

	if !iter.First() {
		return 0, false, iter.Error()
	}
	seq, err = parseKey(iter.Key())
	return seq, err == nil, err
}

// loadHigh reads the high-water mark, falling back to the newest entry
// for stores written before the mark existed.
func (o *Outbox) loadHigh() (uint64, error) {
	val, closer, err := o.db.Get([]byte(highKey))
	switch {
	case err == nil:
		defer closer.Close()
		if len(val) != 8 {
			return 0, fmt.Errorf("outbox: bad high-water mark (%d bytes)", len(val))
		}
		return binary.BigEndian.Uint64(val), nil
	case !errors.Is(err, pebble.ErrNotFound):
		return 0, fmt.Errorf("outbox: read high-water mark: %w", err)
	}

	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// Len counts stored records.
func (o *Outbox) Len() (int, error) {
	n := 0
	err := o.scan(func(Record) error {
		n++
		return nil
	})
	return n, err
}

func (o *Outbox) scan(fn func(Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}

		if err := fn(rec); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const (
	keyPrefix = "event/"
	keyUpper  = "event/~"
	highKey   = "meta/high-water"
)

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &seq)
	return seq, err
}
