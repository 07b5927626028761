package poll

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	dataio "github.com/geniass/printer-status/pkg/io"
)

const DefaultSchedule = "@every 1h"

type Runner interface {
	RunCycle(ctx context.Context) (*dataio.Cycle, error)
}

type Scheduler struct {
	spec       string
	runOnStart bool
	runner     Runner
	log        *zap.Logger
}

func NewScheduler(spec string, runOnStart bool, r Runner, log *zap.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSchedule
	}
	return &Scheduler{spec: spec, runOnStart: runOnStart, runner: r, log: log}
}

// Run blocks until ctx is cancelled. A tick that fires while a cycle is
// still running is skipped. Cycle errors are logged, never returned.
func (s *Scheduler) Run(ctx context.Context) error {
	clog := cronLogger{s.log.Sugar()}

	job := cron.NewChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)).Then(cron.FuncJob(func() {
		s.runCycle(ctx)
	}))

	c := cron.New(cron.WithLogger(clog))
	if _, err := c.AddJob(s.spec, job); err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	var wg sync.WaitGroup
	if s.runOnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job.Run()
		}()
	}

	c.Start()
	s.log.Info("scheduler started", zap.String("schedule", s.spec), zap.Bool("run_on_start", s.runOnStart))

	<-ctx.Done()
	s.log.Info("scheduler stopping")
	<-c.Stop().Done()
	wg.Wait()
	return nil
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.RunCycle(ctx); err != nil {
		s.log.Error("cycle failed", zap.Error(err))
	}
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
