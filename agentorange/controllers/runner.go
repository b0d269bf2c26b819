package controllers

import (
	"agentorange/agentorange/utils/logging"
	"context"
	"sync"

	"go.uber.org/zap"
)

// Runner starts runs that outlive the request that accepted them.
type Runner struct {
	wg sync.WaitGroup
}

func NewRunner() *Runner {
	return &Runner{}
}

// Go runs fn on a background context tagged with traceID.
func (r *Runner) Go(traceID string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx := logging.WithTraceID(context.Background(), traceID)
		if err := fn(ctx); err != nil {
			logging.ErrorLogger.Error("background run failed", zap.String("trace_id", traceID), zap.Error(err))
		}
	}()
}

// Wait blocks until every started run returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
