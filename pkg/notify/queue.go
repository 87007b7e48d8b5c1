package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rubiojr/huddle/pkg/log"
)

// TaskDeliver is the asynq task type carrying a JSON array of notices.
const TaskDeliver = "notify:deliver"

// QueueSink enqueues notices for a background worker instead of delivering
// them inline, so a slow notification backend never holds up the gateway.
type QueueSink struct {
	client *asynq.Client
	queue  string
}

// NewQueueSink connects to the Redis instance at redisURL.
func NewQueueSink(redisURL, queue string) (*QueueSink, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if queue == "" {
		queue = "default"
	}
	return &QueueSink{client: asynq.NewClient(opt), queue: queue}, nil
}

// NewDeliverTask encodes notices as a TaskDeliver task.
func NewDeliverTask(notices []Notice) (*asynq.Task, error) {
	payload, err := json.Marshal(notices)
	if err != nil {
		return nil, fmt.Errorf("encoding notices: %w", err)
	}
	return asynq.NewTask(TaskDeliver, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

func (q *QueueSink) CreateMany(ctx context.Context, notices []Notice) error {
	if len(notices) == 0 {
		return nil
	}
	task, err := NewDeliverTask(notices)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task, asynq.Queue(q.queue)); err != nil {
		return fmt.Errorf("enqueueing notices: %w", err)
	}
	return nil
}

func (q *QueueSink) Close() error {
	return q.client.Close()
}

// DeliverHandler returns the asynq handler that hands queued notices to sink.
// Undecodable payloads are not retried.
func DeliverHandler(sink Sink) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var notices []Notice
		if err := json.Unmarshal(t.Payload(), &notices); err != nil {
			return fmt.Errorf("decoding %s payload: %v: %w", TaskDeliver, err, asynq.SkipRetry)
		}
		return sink.CreateMany(ctx, notices)
	}
}

// Worker consumes TaskDeliver tasks from Redis.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker builds a worker draining queue with the given concurrency and
// delivering into sink.
func NewWorker(redisURL, queue string, concurrency int, sink Sink) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if queue == "" {
		queue = "default"
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	l := log.ForService("worker")
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		Logger:      asynqLogger{l},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			l.Errorf("task %s failed: %v", task.Type(), err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TaskDeliver, DeliverHandler(sink))
	return &Worker{server: srv, mux: mux}, nil
}

// Run processes tasks until ctx is canceled, then shuts down gracefully.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		if errors.Is(err, asynq.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("starting worker: %w", err)
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

// asynqLogger routes asynq's internal logging through the service logger.
type asynqLogger struct {
	l *log.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debugf("%s", fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Infof("%s", fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warnf("%s", fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Errorf("%s", fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatalf("%s", fmt.Sprint(args...)) }
