package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/roach88/coffeematch/internal/config"
)

// Entry is one cron registration.
type Entry struct {
	Spec     string
	TaskType string
}

// Entries returns the cron registrations for cfg.
func Entries(cfg config.Schedule) []Entry {
	return []Entry{
		{Spec: cfg.Round, TaskType: TypeRound},
		{Spec: cfg.FollowUp, TaskType: TypeFollowUp},
		{Spec: cfg.Inactivity, TaskType: TypeInactivity},
	}
}

// Server enqueues lifecycle tasks on their cron schedule and processes
// them.
type Server struct {
	scheduler *asynq.Scheduler
	server    *asynq.Server
	mux       *asynq.ServeMux
	logger    *slog.Logger
}

// NewServer connects to Redis at redisURL and registers the cron entries
// from cfg.
func NewServer(redisURL string, cfg config.Schedule, loc *time.Location, h *Handlers, logger *slog.Logger) (*Server, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse redis url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: loc,
		LogLevel: asynq.WarnLevel,
	})
	for _, e := range Entries(cfg) {
		task, err := NewTask(e.TaskType, "")
		if err != nil {
			return nil, err
		}
		id, err := scheduler.Register(e.Spec, task,
			asynq.Queue(Queue),
			asynq.MaxRetry(cfg.MaxRetry),
		)
		if err != nil {
			return nil, fmt.Errorf("schedule: register %s %q: %w", e.TaskType, e.Spec, err)
		}
		logger.Debug("scheduled job", "task", e.TaskType, "cron", e.Spec, "entry", id)
	}

	srv := asynq.NewServer(opt, asynq.Config{
		// Jobs take a per-period lock, so one worker is enough.
		Concurrency:    1,
		Queues:         map[string]int{Queue: 1},
		RetryDelayFunc: RetryDelay,
		LogLevel:       asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Warn("task failed", "task", task.Type(), "retry", retried, "max_retry", maxRetry, "error", err)
		}),
	})

	return &Server{scheduler: scheduler, server: srv, mux: h.Mux(), logger: logger}, nil
}

// Run starts the scheduler and the worker and blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("schedule: start scheduler: %w", err)
	}
	if err := s.server.Start(s.mux); err != nil {
		s.scheduler.Shutdown()
		return fmt.Errorf("schedule: start worker: %w", err)
	}
	s.logger.Info("scheduler running", "queue", Queue)

	<-ctx.Done()
	s.scheduler.Shutdown()
	s.server.Shutdown()
	return nil
}

// Enqueuer puts one-off lifecycle tasks on the queue.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer connects a client to Redis at redisURL.
func NewEnqueuer(redisURL string) (*Enqueuer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse redis url: %w", err)
	}
	return &Enqueuer{client: asynq.NewClient(opt)}, nil
}

// Enqueue queues a lifecycle task for periodKey and returns its task ID.
func (e *Enqueuer) Enqueue(ctx context.Context, taskType, periodKey string, maxRetry int) (string, error) {
	task, err := NewTask(taskType, periodKey)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task, asynq.Queue(Queue), asynq.MaxRetry(maxRetry))
	if err != nil {
		return "", fmt.Errorf("schedule: enqueue %s: %w", taskType, err)
	}
	return info.ID, nil
}

// Close closes the Redis connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
