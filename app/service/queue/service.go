package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"multichat/app/config"
	"multichat/app/service/broadcast"
	"multichat/app/util/metrics"

	"github.com/samber/do"
)

const defaultBufferSize = 64

var _ do.Shutdownable = (*Service)(nil)

// Job is one unit of work for a key. Jobs of the same key never run concurrently.
type Job func(ctx context.Context) error

// ErrorHandler receives failed jobs, panics included.
type ErrorHandler func(key string, err error)

// Service runs one FIFO worker per key.
type Service struct {
	ctx        context.Context
	bufferSize int
	onError    ErrorHandler

	mu      sync.Mutex
	closed  bool
	workers map[string]chan Job
	wg      sync.WaitGroup
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	appCtx := do.MustInvoke[context.Context](di)
	hub := do.MustInvoke[*broadcast.Hub](di)

	return NewService(appCtx, cfg.Chat.QueueSize, func(roomID string, err error) {
		hub.Broadcast(roomID, broadcast.NewError(err.Error()))
	}), nil
}

func NewService(ctx context.Context, bufferSize int, onError ErrorHandler) *Service {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	return &Service{
		ctx:        ctx,
		bufferSize: bufferSize,
		onError:    onError,
		workers:    make(map[string]chan Job),
	}
}

// Add enqueues a job without blocking. It returns false when the key's queue is full or the service is shut down.
func (s *Service) Add(key string, job Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		slog.Warn("Queue is shut down, dropping job",
			"key", key,
		)
		return false
	}

	jobs, ok := s.workers[key]
	if !ok {
		jobs = make(chan Job, s.bufferSize)
		s.workers[key] = jobs

		s.wg.Add(1)
		go s.work(key, jobs)
	}

	select {
	case jobs <- job:
		return true
	default:
		metrics.DroppedJobs.Inc()
		slog.Warn("Queue is full, dropping job",
			"key", key,
		)
		return false
	}
}

func (s *Service) work(key string, jobs <-chan Job) {
	defer s.wg.Done()

	for job := range jobs {
		s.run(key, job)
	}
}

func (s *Service) run(key string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Job panicked",
				"key", key,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			s.report(key, fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := job(s.ctx); err != nil {
		slog.Warn("Job failed",
			"key", key,
			"error", err,
		)
		s.report(key, err)
	}
}

func (s *Service) report(key string, err error) {
	if s.onError != nil {
		s.onError(key, err)
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, jobs := range s.workers {
		close(jobs)
	}
	s.mu.Unlock()

	s.wg.Wait()

	return nil
}
