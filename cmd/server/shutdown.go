package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// stage is one step of an ordered shutdown.
type stage struct {
	name string
	stop func(context.Context) error
}

// shutdown runs stages in order. Command surfaces come first so nothing
// emits events once the dispatcher has drained. A failing stage is logged
// and the next one still runs.
func shutdown(ctx context.Context, logger *zap.Logger, stages ...stage) {
	for _, st := range stages {
		start := time.Now()
		if err := st.stop(ctx); err != nil {
			logger.Error("shutdown stage failed", zap.String("stage", st.name), zap.Error(err))
			continue
		}
		logger.Info("stopped", zap.String("stage", st.name), zap.Duration("took", time.Since(start)))
	}
}

func waitDone(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
