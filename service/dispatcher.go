package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"exchange/domain/orderbook"
	"exchange/infra/metrics"
	"exchange/infra/sequence"
)

// Envelope is the wire form of one lifecycle event.
type Envelope struct {
	Seq        uint64              `json:"seq"`
	Event      orderbook.EventType `json:"event"`
	Instrument string              `json:"instrument"`
	Time       time.Time           `json:"time"`
	Payload    any                 `json:"payload"`
}

func NewEnvelope(seq uint64, ev orderbook.Event, now time.Time) Envelope {
	env := Envelope{
		Seq:        seq,
		Event:      ev.Type,
		Instrument: ev.Instrument,
		Time:       now,
	}
	if ev.Trade != nil {
		env.Payload = ev.Trade
	} else {
		env.Payload = ev.Order
	}
	return env
}

// EventStore persists encoded envelopes. Store is called from the
// dispatcher goroutine only.
type EventStore interface {
	Name() string
	Store(env Envelope, data []byte) error
}

// Dispatcher decouples event delivery from the command path. Emit never
// blocks: when the buffer is full the event is dropped and counted.
type Dispatcher struct {
	ch     chan orderbook.Event
	seq    *sequence.Sequencer
	stores []EventStore
	log    *zap.Logger
	now    func() time.Time
}

func NewDispatcher(buffer int, seq *sequence.Sequencer, logger *zap.Logger, stores ...EventStore) *Dispatcher {
	if buffer <= 0 {
		buffer = 1024
	}
	if seq == nil {
		seq = sequence.New(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		ch:     make(chan orderbook.Event, buffer),
		seq:    seq,
		stores: stores,
		log:    logger.Named("dispatcher"),
		now:    time.Now,
	}
}

func (d *Dispatcher) Emit(events ...orderbook.Event) {
	for _, ev := range events {
		select {
		case d.ch <- ev:
			metrics.EventsEmitted.Inc()
		default:
			metrics.EventsDropped.Inc()
			d.log.Warn("event buffer full, dropping event",
				zap.Stringer("event", ev.Type),
				zap.String("instrument", ev.Instrument),
			)
		}
	}
}

// Run delivers events until ctx is done, then flushes what is buffered.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info("started", zap.Int("buffer", cap(d.ch)), zap.Int("stores", len(d.stores)))
	for {
		select {
		case <-ctx.Done():
			d.drain()
			d.log.Info("stopped")
			return
		case ev := <-d.ch:
			d.deliver(ev)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.ch:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev orderbook.Event) {
	env := NewEnvelope(d.seq.Next(), ev, d.now())

	data, err := json.Marshal(env)
	if err != nil {
		d.log.Error("encode envelope", zap.Uint64("seq", env.Seq), zap.Error(err))
		return
	}

	for _, st := range d.stores {
		if err := st.Store(env, data); err != nil {
			metrics.EventStoreErrors.WithLabelValues(st.Name()).Inc()
			d.log.Error("store event",
				zap.String("store", st.Name()),
				zap.Uint64("seq", env.Seq),
				zap.Error(err),
			)
		}
	}
}
