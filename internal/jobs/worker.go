package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

const (
	defaultWaitSeconds   = 10
	defaultBatchSize     = 5
	deleteTimeoutSeconds = 5
)

// Worker drains the export queue and runs each task through the Runner.
type Worker struct {
	runner  *Runner
	queue   Queue
	logger  *logging.Logger
	workers int
	wait    int

	wg sync.WaitGroup
}

func NewWorker(runner *Runner, queue Queue, workers int, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Worker{
		runner:  runner,
		queue:   queue,
		logger:  logger,
		workers: workers,
		wait:    defaultWaitSeconds,
	}
}

// Start launches the consumer goroutines. They exit when ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all consumer goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("export worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("export worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, defaultBatchSize, w.wait)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive export tasks", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.HandleMessage(ctx, msg)
		}
	}
}

// HandleMessage runs one export and deletes the message. Malformed messages
// are dropped; failed exports are recorded on the task and not retried.
func (w *Worker) HandleMessage(ctx context.Context, msg Message) {
	defer w.deleteMessage(msg.ReceiptHandle)

	var payload exportPayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode export task", "error", err, "msg_id", msg.ID)
		return
	}

	log := w.logger.With("task_id", payload.TaskID, "kind", payload.Kind)
	w.setStatus(ctx, payload.TaskID, redisclient.TaskRunning, nil)

	var err error
	switch payload.Kind {
	case ExportClientHistory:
		err = w.runner.ExportClientHistory(ctx, payload.ClientID)
	case ExportSystem:
		err = w.runner.ExportSystem(ctx, payload.RequestedBy)
	default:
		err = fmt.Errorf("unknown export kind %q", payload.Kind)
	}
	w.runner.metrics.ObserveRun(JobExport, err)

	if err != nil {
		log.Error("export task failed", "error", err)
		w.setStatus(ctx, payload.TaskID, redisclient.TaskFailed, err)
		return
	}
	log.Info("export task done")
	w.setStatus(ctx, payload.TaskID, redisclient.TaskDone, nil)
}

func (w *Worker) setStatus(ctx context.Context, taskID string, status redisclient.TaskStatus, cause error) {
	if err := w.runner.tasks.SetStatus(context.WithoutCancel(ctx), taskID, status, cause); err != nil {
		w.logger.Error("failed to update export task", "task_id", taskID, "status", status, "error", err)
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete export message", "error", err)
	}
}
