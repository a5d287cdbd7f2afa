// Package dispatch runs the background delivery loops: one worker sending
// due transmissions, one polling the provider for in-flight status.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/peppolway/internal/config"
	"github.com/smallbiznis/peppolway/internal/environment"
	"github.com/smallbiznis/peppolway/internal/observability/metrics"
	"github.com/smallbiznis/peppolway/internal/transmission/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	workerDispatch = "dispatch"
	workerPoll     = "poll"
)

type Config struct {
	DispatchInterval time.Duration
	PollInterval     time.Duration
	Batch            int
}

func (c Config) withDefaults() Config {
	if c.DispatchInterval <= 0 {
		c.DispatchInterval = 15 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if c.Batch <= 0 {
		c.Batch = 50
	}
	return c
}

type WorkerParam struct {
	fx.In

	LC      fx.Lifecycle
	Log     *zap.Logger
	Config  config.Config
	Service domain.Service
}

// Worker drives the coordinator on a schedule. Both loops cover both
// network partitions every tick.
type Worker struct {
	log *zap.Logger
	cfg Config
	svc domain.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(log *zap.Logger, cfg Config, svc domain.Service) *Worker {
	return &Worker{
		log: log.Named("transmission.dispatch"),
		cfg: cfg.withDefaults(),
		svc: svc,
	}
}

// Register wires the worker into the application lifecycle.
func Register(p WorkerParam) {
	worker := New(p.Log, Config{
		DispatchInterval: p.Config.Exchange.DispatchInterval,
		PollInterval:     p.Config.Exchange.PollInterval,
		Batch:            p.Config.Exchange.DispatchBatch,
	}, p.Service)

	p.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			worker.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			worker.Stop()
			return nil
		},
	})
}

func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(2)
	go w.loop(ctx, workerDispatch, w.cfg.DispatchInterval, w.dispatchTick)
	go w.loop(ctx, workerPoll, w.cfg.PollInterval, w.pollTick)
	w.log.Info("workers started",
		zap.Duration("dispatch_interval", w.cfg.DispatchInterval),
		zap.Duration("poll_interval", w.cfg.PollInterval),
		zap.Int("batch", w.cfg.Batch),
	)
}

func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.log.Info("workers stopped")
}

func (w *Worker) loop(ctx context.Context, name string, interval time.Duration, tick func(context.Context, environment.Environment) error) {
	defer w.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, env := range []environment.Environment{environment.Sandbox, environment.Production} {
				start := time.Now()
				err := tick(ctx, env)
				metrics.Exchange().ObserveDispatchDuration(name, time.Since(start))
				if err != nil && ctx.Err() == nil {
					metrics.Exchange().IncDispatchError(name)
					w.log.Error("worker cycle failed",
						zap.String("worker", name),
						zap.String("environment", env.String()),
						zap.Error(err),
					)
				}
			}
		}
	}
}

func (w *Worker) dispatchTick(ctx context.Context, env environment.Environment) error {
	processed, err := w.svc.DispatchDue(ctx, env, w.cfg.Batch)
	if processed > 0 {
		w.log.Info("dispatched transmissions",
			zap.String("environment", env.String()),
			zap.Int("processed", processed),
		)
	}
	return err
}

func (w *Worker) pollTick(ctx context.Context, env environment.Environment) error {
	processed, err := w.svc.PollInFlight(ctx, env, w.cfg.Batch)
	if processed > 0 {
		w.log.Info("polled transmissions",
			zap.String("environment", env.String()),
			zap.Int("processed", processed),
		)
	}
	return err
}

var Module = fx.Module("transmission.dispatch",
	fx.Invoke(Register),
)
