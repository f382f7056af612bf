// Package scheduler drives the periodic use cases. Each task runs on
// its own ticker; a failing tick is logged and the next tick runs
// normally, since every pass is self-contained.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Task is one periodic pass.
type Task interface {
	Execute(ctx context.Context) error
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Execute(ctx context.Context) error { return f(ctx) }

type entry struct {
	name     string
	task     Task
	interval time.Duration
}

// Scheduler runs registered tasks until its context is cancelled.
type Scheduler struct {
	entries []entry
	log     *zap.Logger
}

func New(log *zap.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Register adds a task to run every interval.
func (s *Scheduler) Register(name string, task Task, interval time.Duration) {
	s.entries = append(s.entries, entry{name: name, task: task, interval: interval})
}

// Run blocks until ctx is cancelled, ticking every registered task.
func (s *Scheduler) Run(ctx context.Context) {
	done := make(chan struct{})
	for _, e := range s.entries {
		go s.loop(ctx, e, done)
	}
	<-ctx.Done()
	s.log.Info("scheduler stopping")
	for range s.entries {
		<-done
	}
}

func (s *Scheduler) loop(ctx context.Context, e entry, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	s.log.Info("task scheduled", zap.String("task", e.name), zap.Duration("interval", e.interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := e.task.Execute(ctx); err != nil {
				s.log.Error("tick failed",
					zap.String("task", e.name),
					zap.Duration("took", time.Since(start)),
					zap.Error(err))
				continue
			}
			s.log.Debug("tick done",
				zap.String("task", e.name),
				zap.Duration("took", time.Since(start)))
		}
	}
}
