package scheduler

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"tradevault/internal/logger"
)

// IntervalRunner fires a task on a fixed period until stopped. The task
// runs on the runner's goroutine, one invocation at a time; a slow task
// delays the next tick instead of overlapping it. Stop cancels future
// ticks only, an in-flight task is allowed to finish.
type IntervalRunner struct {
	Interval       time.Duration
	RunImmediately bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewIntervalRunner(parent context.Context, interval time.Duration) *IntervalRunner {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &IntervalRunner{Interval: interval, ctx: ctx, cancel: cancel}
}

// Start launches the tick loop. Invalid configuration logs and returns
// rather than panicking; a scheduler that silently spins at interval=0
// is worse than one that refuses to start.
func (r *IntervalRunner) Start(task func()) {
	if r == nil || task == nil {
		logger.Warnf("IntervalRunner: nil runner or task, not starting")
		return
	}
	if r.Interval <= 0 {
		logger.Warnf("IntervalRunner: invalid interval=%s, not starting", r.Interval)
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if r.RunImmediately {
			task()
		}
		timer := time.NewTimer(r.Interval)
		defer timer.Stop()
		for {
			select {
			case <-r.ctx.Done():
				logger.Infof("IntervalRunner: stopped (interval=%s)", r.Interval)
				return
			case <-timer.C:
			}
			task()
			timer.Reset(r.Interval)
		}
	}()
}

// Stop cancels future ticks and waits for an in-flight task to return.
// Safe to call more than once.
func (r *IntervalRunner) Stop() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		r.cancel()
		r.wg.Wait()
	})
}

// ParseInterval parses "30m", "1h", "1d" style config values into a
// duration. Returns (0, false) on invalid input.
func ParseInterval(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return 0, false
	}
	unit := interval[len(interval)-1]
	numStr := strings.TrimSpace(interval[:len(interval)-1])
	if numStr == "" {
		return 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch unit {
	case 's':
		return time.Duration(n) * time.Second, true
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	default:
		return 0, false
	}
}
