package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"exchange/api/grpcserver"
	"exchange/api/natsrpc"
	"exchange/api/rpc"
	"exchange/config"
	"exchange/domain/orderbook"
	"exchange/infra/logging"
	"exchange/infra/metrics"
	"exchange/infra/natsbus"
	"exchange/infra/outbox"
	"exchange/infra/sequence"
	"exchange/infra/wal"
	"exchange/jobs/broadcaster"
	"exchange/service"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// ---------------- Config ----------------

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---------------- Logger ----------------

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.MustRegister(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	metricsSrv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server exited", zap.Error(err))
		}
	}()

	// ---------------- Outbox ----------------

	ob, err := outbox.Open(cfg.Outbox.Dir)
	if err != nil {
		logger.Fatal("outbox init failed", zap.Error(err))
	}
	defer ob.Close()

	envelopeSeq := sequence.New(0)
	outboxSeq, err := ob.LastSeq()
	if err != nil {
		logger.Fatal("outbox scan failed", zap.Error(err))
	}
	envelopeSeq.Advance(outboxSeq)
	stores := []service.EventStore{service.OutboxStore{Outbox: ob}}

	// ---------------- Journal ----------------

	var journal *wal.WAL
	if cfg.Journal.Enabled {
		journal, err = wal.Open(wal.Config{
			Dir:             cfg.Journal.Dir,
			SegmentSize:     cfg.Journal.SegmentSize,
			SegmentDuration: cfg.Journal.SegmentDuration,
		})
		if err != nil {
			logger.Fatal("journal init failed", zap.Error(err))
		}
		defer journal.Close()

		envelopeSeq.Advance(journal.LastSeq())
		stores = append(stores, service.JournalStore{WAL: journal})
	}
	logger.Info("event sequence resumed", zap.Uint64("seq", envelopeSeq.Current()))

	// ---------------- Dispatcher ----------------

	// The dispatcher and the broadcaster outlive the signal context: they
	// are stopped only after the command servers have drained.
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()

	dispatcher := service.NewDispatcher(cfg.Events.Buffer, envelopeSeq, logger, stores...)

	dispatchDone := make(chan struct{})
	go func() {
		dispatcher.Run(dispatchCtx)
		close(dispatchDone)
	}()

	// ---------------- Domain ----------------

	ex, err := service.NewExchange(
		cfg.Instruments,
		dispatcher,
		logger,
		orderbook.WithSequencer(sequence.New(0)),
	)
	if err != nil {
		logger.Fatal("exchange init failed", zap.Error(err))
	}

	// ---------------- NATS ----------------

	var (
		nc     *nats.Conn
		rpcSrv *natsrpc.Server
	)
	if cfg.NATS.Enabled {
		nc, err = natsbus.Connect(cfg.NATS.URL, "exchange-engine", logger)
		if err != nil {
			logger.Fatal("nats connect failed", zap.Error(err))
		}
		defer nc.Close()

		rpcSrv = natsrpc.NewServer(nc, ex, cfg.NATS.RPCSubject, cfg.NATS.Queue, logger)
		if err := rpcSrv.Start(); err != nil {
			logger.Fatal("nats rpc start failed", zap.Error(err))
		}
	}

	// ---------------- Background Jobs ----------------

	pub, err := newPublisher(cfg, nc)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}

	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	bcDone := make(chan struct{})
	if pub != nil {
		var opts []broadcaster.Option
		if journal != nil {
			opts = append(opts, broadcaster.WithRetention(journal))
		}
		bc := broadcaster.New(ob, pub, broadcaster.Config{
			Interval:   cfg.Broadcast.Interval,
			BatchSize:  cfg.Broadcast.BatchSize,
			MaxRetries: cfg.Broadcast.MaxRetries,
		}, logger, opts...)
		go func() {
			bc.Run(jobsCtx)
			if err := bc.Close(); err != nil {
				logger.Warn("publisher close", zap.Error(err))
			}
			close(bcDone)
		}()
	} else {
		logger.Info("broadcast disabled, events stay in the outbox")
		close(bcDone)
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logger.Fatal("listen failed", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
	}

	grpcSrv := grpc.NewServer()
	rpc.RegisterExchangeServer(grpcSrv, grpcserver.NewServer(ex, logger))

	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("gRPC server exited", zap.Error(err))
			stop()
		}
	}()

	logger.Info("exchange engine running",
		zap.String("grpc", cfg.GRPC.Addr),
		zap.String("metrics", cfg.Metrics.Addr),
		zap.String("broker", cfg.Broker.Driver),
		zap.Bool("journal", cfg.Journal.Enabled),
		zap.Bool("nats", cfg.NATS.Enabled),
	)

	<-ctx.Done()

	// ---------------- Shutdown ----------------

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	shutdown(shutdownCtx, logger,
		stage{"grpc", func(context.Context) error {
			grpcSrv.GracefulStop()
			return nil
		}},
		stage{"nats-rpc", func(ctx context.Context) error {
			if rpcSrv == nil {
				return nil
			}
			return rpcSrv.Stop(ctx)
		}},
		stage{"dispatcher", func(ctx context.Context) error {
			cancelDispatch()
			return waitDone(ctx, dispatchDone)
		}},
		stage{"broadcaster", func(ctx context.Context) error {
			cancelJobs()
			return waitDone(ctx, bcDone)
		}},
		stage{"metrics", metricsSrv.Shutdown},
	)
}
