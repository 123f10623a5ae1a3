package engine

import (
	"context"
	"fmt"

	"ace/internal/engine/broadcast"

	"go.uber.org/zap"
)

// Engine drives claimed tasks through the run lifecycle. Capabilities are
// an explicit injected map from category to handler, resolved once when a
// run starts.
type Engine struct {
	store    Store
	bus      *broadcast.Broadcaster
	caps     map[string]Capability
	verifier Verifier
	cfg      Config
	log      *zap.Logger
}

func New(store Store, bus *broadcast.Broadcaster, caps map[string]Capability, verifier Verifier, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:    store,
		bus:      bus,
		caps:     caps,
		verifier: verifier,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

// DispatchOne claims at most one pending task and drives its run to a
// terminal state. It reports whether a task was claimed. A returned error
// is a system error: the run stays at its last persisted state and the
// caller may retry delivery.
func (e *Engine) DispatchOne(ctx context.Context) (bool, error) {
	task, run, err := e.store.ClaimNext(ctx)
	if err != nil {
		return false, fmt.Errorf("claim next task: %w", err)
	}
	if task == nil {
		return false, nil
	}

	e.log.Info("task claimed",
		zap.Uint("task_id", task.ID),
		zap.String("run_id", run.RunUUID),
		zap.Int("priority", task.Priority),
	)

	ctrl := newController(e, task, run)
	if err := ctrl.Run(ctx); err != nil {
		e.log.Error("run aborted on system error",
			zap.String("run_id", run.RunUUID),
			zap.Error(err),
		)
		return true, err
	}
	return true, nil
}

// RecoverOne re-adopts at most one stalled run (a non-terminal run whose
// last persisted update is older than StaleAfter) and drives it from its
// persisted state to a terminal one. It reports whether a run was adopted.
func (e *Engine) RecoverOne(ctx context.Context) (bool, error) {
	task, run, err := e.store.ReclaimStalled(ctx, e.cfg.StaleAfter)
	if err != nil {
		return false, fmt.Errorf("reclaim stalled run: %w", err)
	}
	if task == nil {
		return false, nil
	}

	e.log.Info("stalled run re-adopted",
		zap.Uint("task_id", task.ID),
		zap.String("run_id", run.RunUUID),
		zap.String("status", run.Status),
	)

	ctrl := newController(e, task, run)
	if err := ctrl.Run(ctx); err != nil {
		e.log.Error("run aborted on system error",
			zap.String("run_id", run.RunUUID),
			zap.Error(err),
		)
		return true, err
	}
	return true, nil
}
