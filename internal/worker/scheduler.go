package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ignite/listmonk-relay/internal/pkg/logger"
)

// DispatchScheduler drains the outgoing buffer on a cron schedule and hands
// each batch to the dispatcher. Ticks run in their own goroutines and may
// overlap.
type DispatchScheduler struct {
	buffer          *OutgoingBuffer
	dispatcher      *BulkDispatcher
	spec            string
	chunkSize       int
	flushOnShutdown bool

	cron *cron.Cron

	// Stats
	cycles       int64
	emailsSent   int64
	failedCycles int64

	running bool
	mu      sync.Mutex
}

// NewDispatchScheduler validates the cron spec and creates a stopped
// scheduler.
func NewDispatchScheduler(buffer *OutgoingBuffer, dispatcher *BulkDispatcher, spec string, chunkSize int, flushOnShutdown bool) (*DispatchScheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid outgoing cron %q: %w", spec, err)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d", chunkSize)
	}
	return &DispatchScheduler{
		buffer:          buffer,
		dispatcher:      dispatcher,
		spec:            spec,
		chunkSize:       chunkSize,
		flushOnShutdown: flushOnShutdown,
	}, nil
}

// Start registers the dispatch job and starts the cron runner.
func (s *DispatchScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("dispatch scheduler already running")
	}

	c := cron.New(cron.WithChain(cron.Recover(cronLogger{})))
	if _, err := c.AddFunc(s.spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("scheduling dispatch job: %w", err)
	}
	c.Start()

	s.cron = c
	s.running = true
	logger.Info("dispatch scheduler started", "cron", s.spec, "chunk_size", s.chunkSize)
	return nil
}

// Stop halts the cron runner and waits for in-flight cycles until ctx is
// done. With flush on shutdown enabled it runs one last cycle.
func (s *DispatchScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	logger.Info("dispatch scheduler stopping")
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		logger.Warn("dispatch scheduler stopped with cycles still in flight")
		return ctx.Err()
	}

	if s.flushOnShutdown {
		if pending := s.buffer.Len(); pending > 0 {
			logger.Info("flushing outgoing buffer before shutdown", "count", pending)
		}
		if err := s.RunOnce(ctx); err != nil {
			return err
		}
	} else if pending := s.buffer.Len(); pending > 0 {
		logger.Warn("discarding buffered emails on shutdown", "count", pending)
	}

	stats := s.Stats()
	logger.Info("dispatch scheduler stopped",
		"cycles", stats["cycles"], "emails_sent", stats["emails_sent"], "failed_cycles", stats["failed_cycles"])
	return nil
}

// RunOnce performs one drain-and-dispatch cycle.
func (s *DispatchScheduler) RunOnce(ctx context.Context) error {
	emails := s.buffer.DrainAll()
	if len(emails) == 0 {
		return nil
	}

	cycleID := uuid.New().String()
	atomic.AddInt64(&s.cycles, 1)
	logger.Info("dispatch cycle started", "cycle_id", cycleID, "count", len(emails))

	err := s.dispatcher.dispatch(ctx, cycleID, emails, s.chunkSize)
	if err != nil {
		atomic.AddInt64(&s.failedCycles, 1)
		var dispatchErr *DispatchError
		if errors.As(err, &dispatchErr) {
			failed := 0
			for _, f := range dispatchErr.Failures {
				failed += f.Size
			}
			atomic.AddInt64(&s.emailsSent, int64(len(emails)-failed))
		}
		logger.Error("dispatch cycle failed", "cycle_id", cycleID, "error", err)
		return err
	}

	atomic.AddInt64(&s.emailsSent, int64(len(emails)))
	logger.Info("dispatch cycle finished", "cycle_id", cycleID, "count", len(emails))
	return nil
}

// Stats returns cycle counters.
func (s *DispatchScheduler) Stats() map[string]int64 {
	return map[string]int64{
		"cycles":        atomic.LoadInt64(&s.cycles),
		"emails_sent":   atomic.LoadInt64(&s.emailsSent),
		"failed_cycles": atomic.LoadInt64(&s.failedCycles),
	}
}

// cronLogger routes robfig/cron's logging, including recovered job panics,
// through the relay logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// IsRunning reports whether the cron runner is active.
func (s *DispatchScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
