package service

import (
	"exchange/domain/orderbook"
	"exchange/infra/outbox"
	"exchange/infra/wal"
)

// OutboxStore queues envelopes for the broadcaster, keyed by instrument.
type OutboxStore struct {
	Outbox *outbox.Outbox
}

func (OutboxStore) Name() string { return "outbox" }

func (s OutboxStore) Store(env Envelope, data []byte) error {
	return s.Outbox.Put(env.Seq, env.Instrument, data)
}

// JournalStore appends envelopes to the audit journal.
type JournalStore struct {
	WAL *wal.WAL
}

func (JournalStore) Name() string { return "journal" }

func (s JournalStore) Store(env Envelope, data []byte) error {
	return s.WAL.Append(&wal.Record{
		Type: recordType(env.Event),
		Seq:  env.Seq,
		Time: env.Time.UnixNano(),
		Data: data,
	})
}

func recordType(t orderbook.EventType) wal.RecordType {
	switch t {
	case orderbook.EventOrderCreated:
		return wal.RecordOrderCreated
	case orderbook.EventOrderPartiallyFilled:
		return wal.RecordOrderPartiallyFilled
	case orderbook.EventOrderFilled:
		return wal.RecordOrderFilled
	case orderbook.EventOrderCancelled:
		return wal.RecordOrderCancelled
	default:
		return wal.RecordTradeExecuted
	}
}
