package service

import (
	"fmt"

	"go.uber.org/zap"

	"exchange/domain/orderbook"
)

// Exchange routes commands to the book of each configured instrument.
// The routing table is fixed at construction.
type Exchange struct {
	books       map[string]*BookService
	instruments []Instrument
	log         *zap.Logger
}

// NewExchange creates one book per instrument. opts are applied to every
// book, so a WithSequencer option makes the books share one stamp source.
func NewExchange(
	instruments []Instrument,
	sink Sink,
	logger *zap.Logger,
	opts ...orderbook.Option,
) (*Exchange, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ex := &Exchange{
		books:       make(map[string]*BookService, len(instruments)),
		instruments: make([]Instrument, 0, len(instruments)),
		log:         logger,
	}
	for _, inst := range instruments {
		if inst.ID == "" {
			return nil, fmt.Errorf("%w: empty id", ErrBadRequest)
		}
		if _, dup := ex.books[inst.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInstrument, inst.ID)
		}
		book := orderbook.New(inst.ID, opts...)
		ex.books[inst.ID] = NewBookService(book, sink, logger.Named("book"))
		ex.instruments = append(ex.instruments, inst)
	}

	logger.Info("exchange ready", zap.Int("instruments", len(ex.instruments)))
	return ex, nil
}

// Book returns the service for an instrument.
func (e *Exchange) Book(id string) (*BookService, error) {
	b, ok := e.books[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstrument, id)
	}
	return b, nil
}

// Instruments lists the configured instruments in configuration order.
func (e *Exchange) Instruments() []Instrument {
	out := make([]Instrument, len(e.instruments))
	copy(out, e.instruments)
	return out
}
