package worker

import (
	"context"
	"fmt"
	"time"

	"ace/internal/capability"
	"ace/internal/common"
	"ace/internal/engine"
	"ace/internal/engine/broadcast"
	"ace/internal/server/dao"
	"ace/internal/server/dispatch"
	"ace/internal/server/rpccall"
	"ace/internal/verifier"
	"ace/pkg/progressrpc"
	"ace/pkg/queue"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepSchedule = "@every 30s"

// Run starts the worker: an asynq consumer whose concurrency is the run
// worker pool, a periodic sweep that re-enqueues dispatches for pending
// tasks, and a bridge that forwards progress events to the API server.
func Run() error {
	cfg := common.GetConfig()
	log := common.GetLogger()

	if err := dao.InitMySQL(cfg); err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	specs, err := capability.LoadConfig(cfg.CapabilityConfigPath)
	if err != nil {
		return err
	}
	runner, err := capability.NewContainerRunner(log)
	if err != nil {
		return err
	}
	caps := capability.BuildRegistry(specs, runner)
	verif := verifier.New(specs, runner, log)

	bus := broadcast.New()
	stopBridge := startProgressBridge(bus, cfg.ProgressRPCAddr, log)
	defer stopBridge()

	eng := engine.New(dao.NewEngineStore(), bus, caps, verif, engine.Config{
		MaxAttempts:             cfg.MaxAttempts,
		MaxVerificationAttempts: cfg.MaxVerificationAttempts,
		AttemptTimeout:          time.Duration(cfg.AttemptTimeoutSeconds) * time.Second,
		VerifyTimeout:           time.Duration(cfg.VerifyTimeoutSeconds) * time.Second,
		StaleAfter:              time.Duration(cfg.AttemptTimeoutSeconds+cfg.VerifyTimeoutSeconds)*time.Second + time.Minute,
	}, log)

	dispatcher := dispatch.New(cfg.RedisAddr, cfg.RedisPassword, log)
	defer dispatcher.Close()

	staleAfter := time.Duration(cfg.AttemptTimeoutSeconds+cfg.VerifyTimeoutSeconds)*time.Second + time.Minute

	// sweep兜底：submit时的dispatch丢了、worker挂掉留下的run，都能被捞起来
	cronRunner := cron.New()
	if _, err := cronRunner.AddFunc(sweepSchedule, func() { sweep(dispatcher, staleAfter, log) }); err != nil {
		return fmt.Errorf("register sweep: %w", err)
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword},
		asynq.Config{Concurrency: cfg.WorkerConcurrency},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.RUN_DISPATCH, func(ctx context.Context, t *asynq.Task) error {
		payload, err := queue.ParseDispatchPayload(t.Payload())
		if err != nil {
			return fmt.Errorf("bad dispatch payload: %v: %w", err, asynq.SkipRetry)
		}
		claimed, err := eng.DispatchOne(ctx)
		if err != nil {
			// system error: asynq redelivers; once the run goes stale the
			// sweep routes it here again and RecoverOne picks it up
			return err
		}
		if claimed {
			return nil
		}
		recovered, err := eng.RecoverOne(ctx)
		if err != nil {
			return err
		}
		if !recovered {
			log.Debug("dispatch found nothing to claim", zap.String("source", payload.Source))
		}
		return nil
	})

	log.Info("worker starting",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.String("redis", cfg.RedisAddr),
	)
	return srv.Run(mux)
}

// sweep enqueues one dispatch per pending task and per stalled run, so
// neither a lost submit notification nor a dead worker strands work.
func sweep(dispatcher *dispatch.Dispatcher, staleAfter time.Duration, log *zap.Logger) {
	ctx := context.Background()
	pending, err := dao.NewTaskDao().CountPending(ctx)
	if err != nil {
		log.Warn("sweep count pending", zap.Error(err))
		return
	}
	stalled, err := dao.NewRunDao().CountStalled(ctx, staleAfter)
	if err != nil {
		log.Warn("sweep count stalled", zap.Error(err))
		return
	}
	n := pending + stalled
	if n == 0 {
		return
	}
	log.Info("sweep found work", zap.Int64("pending", pending), zap.Int64("stalled", stalled))
	if err := dispatcher.NotifySweep(n); err != nil {
		log.Warn("sweep enqueue", zap.Error(err))
	}
}

// startProgressBridge forwards every local broadcast event to the API
// server over jsonrpc. A single goroutine drains the subscription, so
// per-run order survives the hop.
func startProgressBridge(bus *broadcast.Broadcaster, serverRPCAddr string, log *zap.Logger) func() {
	client := rpccall.NewClient(serverRPCAddr)
	events, cancel := bus.Subscribe(broadcast.AllRuns)
	go func() {
		for ev := range events {
			if err := client.PushEvent(&progressrpc.PushEventRequest{Event: ev}); err != nil {
				log.Warn("push progress event",
					zap.String("run_id", ev.RunUUID),
					zap.Error(err),
				)
			}
		}
	}()
	return func() {
		cancel()
		client.Close()
	}
}
