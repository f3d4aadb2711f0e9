package wal

import "time"

// RecordType mirrors the kind of event a journal entry carries.
type RecordType uint8

const (
	RecordOrderCreated RecordType = iota + 1
	RecordOrderPartiallyFilled
	RecordOrderFilled
	RecordOrderCancelled
	RecordTradeExecuted
)

// Record is an immutable journal entry. Data is opaque to the journal.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
