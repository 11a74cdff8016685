// internal/workers/harvest/schedule-categories/scheduler.go
package schedulecategories

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"procurement-harvester/internal/common/logger"
	"procurement-harvester/internal/common/metrics"

	"golang.org/x/sync/errgroup"
)

const TaskType = "schedule-categories"

// Task produces the result for one category.
type Task[T any] func(ctx context.Context, name string) (T, error)

// Result holds what RunAll collected. Values and Failed are keyed by name and
// disjoint; Order lists successful names in completion order.
type Result[T any] struct {
	Values map[string]T
	Order  []string
	Failed map[string]error
}

type Scheduler struct {
	config *Config
	logger logger.Logger
}

func NewScheduler(config *Config, log logger.Logger) *Scheduler {
	return &Scheduler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Limit is the effective pool size.
func (s *Scheduler) Limit() int {
	if s.config.Workers < 1 {
		return 1
	}
	return s.config.Workers
}

// RunAll runs task once per distinct name with at most s.Limit() running at a
// time. A failing or panicking task is logged and recorded in Result.Failed;
// siblings keep running. Tasks not yet started when ctx ends are recorded as
// failed with ctx's error.
func RunAll[T any](ctx context.Context, s *Scheduler, names []string, task Task[T]) *Result[T] {
	res := &Result[T]{
		Values: make(map[string]T, len(names)),
		Failed: make(map[string]error),
	}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.Limit())

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		name := name
		g.Go(func() error {
			start := time.Now()
			v, err := runTask(ctx, s, name, task)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[name] = err
				s.logger.Error("category task failed", map[string]interface{}{
					"category": name,
					"error":    err.Error(),
					"duration": time.Since(start).String(),
				})
				return nil
			}
			res.Values[name] = v
			res.Order = append(res.Order, name)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("all category tasks finished", map[string]interface{}{
		"succeeded": len(res.Values),
		"failed":    len(res.Failed),
		"workers":   s.Limit(),
	})
	return res
}

func runTask[T any](ctx context.Context, s *Scheduler, name string, task Task[T]) (v T, err error) {
	if err := ctx.Err(); err != nil {
		return v, err
	}

	metrics.CategoriesActive.Inc()
	defer metrics.CategoriesActive.Dec()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("category task panicked", map[string]interface{}{
				"category": name,
				"panic":    fmt.Sprint(r),
				"stack":    string(debug.Stack()),
			})
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
	}()

	return task(ctx, name)
}
