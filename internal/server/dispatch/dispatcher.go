package dispatch

import (
	"fmt"

	"ace/pkg/queue"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Dispatcher enqueues run dispatch messages for the workers. One message
// means "claim at most one pending task"; which task gets claimed is
// decided by priority at claim time, not at enqueue time.
type Dispatcher struct {
	client *asynq.Client
	log    *zap.Logger
}

func New(redisAddr, redisPassword string, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword})
	return &Dispatcher{client: client, log: log}
}

func (d *Dispatcher) NotifySubmitted(taskID uint) error {
	payload, err := queue.DispatchPayload{TaskID: taskID, Source: "submit"}.Marshal()
	if err != nil {
		return err
	}
	info, err := d.client.Enqueue(asynq.NewTask(queue.RUN_DISPATCH, payload))
	if err != nil {
		return fmt.Errorf("enqueue dispatch: %w", err)
	}
	d.log.Info("dispatch enqueued",
		zap.Uint("task_id", taskID),
		zap.String("queue_msg_id", info.ID),
	)
	return nil
}

// NotifySweep enqueues n dispatch messages, one per pending task the
// sweeper found. Duplicates are harmless: a dispatch that finds nothing
// to claim is a no-op.
func (d *Dispatcher) NotifySweep(n int64) error {
	payload, err := queue.DispatchPayload{Source: "sweep"}.Marshal()
	if err != nil {
		return err
	}
	for i := int64(0); i < n; i++ {
		if _, err := d.client.Enqueue(asynq.NewTask(queue.RUN_DISPATCH, payload)); err != nil {
			return fmt.Errorf("enqueue sweep dispatch: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) Close() error {
	return d.client.Close()
}
