package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Queue hands emails to Redis through asynq. Tasks are never retried.
type Queue struct {
	client *asynq.Client
}

func NewQueue(opt asynq.RedisClientOpt) *Queue {
	return &Queue{client: asynq.NewClient(opt)}
}

func (q *Queue) Send(ctx context.Context, to, subject, html string) error {
	b, err := json.Marshal(EmailEnvelope{To: to, Subject: subject, Body: html, Enqueued: time.Now().UTC()})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskSendEmail, b, asynq.Queue(QueueEmails), asynq.MaxRetry(0))
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Worker consumes TaskSendEmail and delivers through sender.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	sender Notifier
	logger *slog.Logger
}

func NewWorker(opt asynq.RedisClientOpt, sender Notifier, concurrency int, logger *slog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 5
	}
	w := &Worker{
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{QueueEmails: 10},
		}),
		mux:    asynq.NewServeMux(),
		sender: sender,
		logger: logger,
	}
	w.mux.HandleFunc(TaskSendEmail, w.handleSendEmail)
	return w
}

// Start runs the worker in the background.
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleSendEmail(ctx context.Context, t *asynq.Task) error {
	var env EmailEnvelope
	if err := json.Unmarshal(t.Payload(), &env); err != nil {
		return fmt.Errorf("decode email payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.sender.Send(ctx, env.To, env.Subject, env.Body); err != nil {
		w.logger.WarnContext(ctx, "email send failed", "to", env.To, "subject", env.Subject, "error", err)
		return fmt.Errorf("send email: %v: %w", err, asynq.SkipRetry)
	}
	w.logger.InfoContext(ctx, "email sent", "to", env.To, "subject", env.Subject, "queued_for", time.Since(env.Enqueued).String())
	return nil
}
