package broadcaster

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"exchange/infra/metrics"
	"exchange/infra/outbox"
)

// Publisher delivers one encoded event to a broker. key is the
// instrument id and selects the partition or subject.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

// Truncater drops journal history up to and including seq.
type Truncater interface {
	TruncateBefore(seq uint64) error
}

type Config struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries uint32
}

// Broadcaster drains the outbox to a Publisher on a fixed tick.
type Broadcaster struct {
	outbox   *outbox.Outbox
	pub      Publisher
	cfg      Config
	log      *zap.Logger
	retained Truncater
}

type Option func(*Broadcaster)

// WithRetention truncates the journal behind the delivered prefix of
// the outbox after every pass that acknowledged something.
func WithRetention(t Truncater) Option {
	return func(b *Broadcaster) { b.retained = t }
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(ob *outbox.Outbox, pub Publisher, cfg Config, logger *zap.Logger, opts ...Option) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Broadcaster{
		outbox: ob,
		pub:    pub,
		cfg:    cfg,
		log:    logger.Named("broadcaster"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run publishes pending entries every Interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("started", zap.Duration("interval", b.cfg.Interval))

	if err := b.Recover(); err != nil {
		b.log.Error("recover interrupted deliveries", zap.Error(err))
	}

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("stopped")
			return
		case <-ticker.C:
			n, err := b.ReplayOnce(ctx)
			if err != nil && ctx.Err() == nil {
				b.log.Error("replay failed", zap.Error(err))
			}
			if n > 0 {
				b.truncate()
			}
		}
	}
}

// ------------------------------------------------
// REPLAY
// ------------------------------------------------

// Recover marks entries left SENT by an interrupted process as FAILED,
// counting the unconfirmed attempt against their retries.
func (b *Broadcaster) Recover() error {
	var seqs []uint64
	err := b.outbox.ScanByState(outbox.StateSent, func(rec outbox.Record) error {
		seqs = append(seqs, rec.Seq)
		return nil
	})
	if err != nil {
		return err
	}
	for _, seq := range seqs {
		if err := b.outbox.MarkFailed(seq); err != nil {
			return err
		}
	}
	if len(seqs) > 0 {
		b.log.Warn("requeued interrupted deliveries", zap.Int("count", len(seqs)))
	}
	return nil
}

// ReplayOnce publishes up to BatchSize pending entries and returns how
// many were acknowledged. Entries that exhausted their retries stay in
// the outbox as FAILED and are skipped. After a failed publish, later
// entries with the same key wait for the next pass so a key's events
// reach the broker in order.
func (b *Broadcaster) ReplayOnce(ctx context.Context) (int, error) {
	attempted, acked := 0, 0
	blocked := make(map[string]struct{})

	err := b.outbox.ScanPending(func(rec outbox.Record) error {
		if ctx.Err() != nil {
			return outbox.ErrStop
		}
		if rec.State == outbox.StateFailed && rec.Retries >= b.cfg.MaxRetries {
			return nil
		}
		if _, ok := blocked[rec.Key]; ok {
			return nil
		}
		if attempted >= b.cfg.BatchSize {
			return outbox.ErrStop
		}
		attempted++

		// 1. mark SENT so an interrupted attempt is visible
		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return err
		}

		// 2. publish
		if err := b.pub.Publish(ctx, rec.Key, rec.Payload); err != nil {
			metrics.BroadcastResults.WithLabelValues("failed").Inc()
			b.log.Warn("publish failed",
				zap.Uint64("seq", rec.Seq),
				zap.Uint32("retries", rec.Retries+1),
				zap.Error(err),
			)
			if rec.Retries+1 >= b.cfg.MaxRetries {
				b.log.Error("giving up on event", zap.Uint64("seq", rec.Seq))
			} else {
				blocked[rec.Key] = struct{}{}
			}
			return b.outbox.MarkFailed(rec.Seq)
		}

		// 3. ack
		metrics.BroadcastResults.WithLabelValues("published").Inc()
		acked++
		return b.outbox.MarkAcked(rec.Seq)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return acked, err
	}
	return acked, nil
}

// ------------------------------------------------
// RETENTION
// ------------------------------------------------

// DeliveredThrough returns the sequence up to which every event has
// left the outbox.
func (b *Broadcaster) DeliveredThrough() (uint64, error) {
	first, ok, err := b.outbox.FirstSeq()
	if err != nil {
		return 0, err
	}
	if ok {
		return first - 1, nil
	}
	return b.outbox.LastSeq()
}

func (b *Broadcaster) truncate() {
	if b.retained == nil {
		return
	}
	through, err := b.DeliveredThrough()
	if err != nil {
		b.log.Error("delivered watermark", zap.Error(err))
		return
	}
	if through == 0 {
		return
	}
	if err := b.retained.TruncateBefore(through); err != nil {
		b.log.Error("journal truncate", zap.Uint64("through", through), zap.Error(err))
	}
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
