package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"loginguard/pkg/domain"
)

const taskTypeLockout = "auth:lockout"

// AsynqNotifier publishes lockout events to an asynq queue over Redis,
// for deployments where the web replicas and the lockout handler are
// separate processes. Delivery is at-least-once; the flag write is
// idempotent, so retries are safe.
type AsynqNotifier struct {
	client *asynq.Client
}

// NewAsynqNotifier creates a queue-backed lockout notifier.
func NewAsynqNotifier(opt asynq.RedisClientOpt) *AsynqNotifier {
	return &AsynqNotifier{client: asynq.NewClient(opt)}
}

// Publish enqueues the lockout event.
func (n *AsynqNotifier) Publish(ctx context.Context, event domain.LockoutEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = n.client.EnqueueContext(ctx, asynq.NewTask(taskTypeLockout, payload))
	return err
}

// Close releases the underlying client.
func (n *AsynqNotifier) Close() error {
	return n.client.Close()
}

// LockoutWorker consumes lockout tasks and flags the account.
type LockoutWorker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	flagger Flagger
	logger  *slog.Logger
}

// NewLockoutWorker creates the asynq consumer for lockout events.
func NewLockoutWorker(opt asynq.RedisClientOpt, flagger Flagger, logger *slog.Logger) *LockoutWorker {
	if logger == nil {
		logger = slog.Default()
	}
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: 2,
	})
	w := &LockoutWorker{
		server:  server,
		mux:     asynq.NewServeMux(),
		flagger: flagger,
		logger:  logger,
	}
	w.mux.HandleFunc(taskTypeLockout, w.handleLockout)
	return w
}

func (w *LockoutWorker) handleLockout(ctx context.Context, task *asynq.Task) error {
	var event domain.LockoutEvent
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return err
	}
	if err := w.flagger.SetTooManyAttempts(ctx, event.Identifier); err != nil {
		return err
	}
	w.logger.Info("account flagged after lockout",
		"identifier", event.Identifier,
		"source_address", event.SourceAddress,
	)
	return nil
}

// Start runs the worker in the background.
func (w *LockoutWorker) Start() {
	go func() {
		if err := w.server.Run(w.mux); err != nil && err != asynq.ErrServerClosed {
			w.logger.Error("lockout worker stopped", "error", err)
		}
	}()
}

// Shutdown stops the worker, waiting for in-flight tasks.
func (w *LockoutWorker) Shutdown() {
	w.server.Shutdown()
}
