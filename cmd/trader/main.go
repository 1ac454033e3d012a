package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"golang.org/x/sync/errgroup"

	"main/internal/bus"
	"main/internal/conn"
	"main/internal/engine"
	"main/internal/feed"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/orchestrator"
	"main/internal/store"
	pkgconn "main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	statsInterval := flag.Duration("stats-interval", time.Minute, "Metrics snapshot log interval (0=disable)")
	profiling := flag.Bool("pyroscope", false, "Enable pyroscope profiling")
	profilingAddr := flag.String("pyroscope-addr", "http://localhost:4040", "Pyroscope server address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *profiling {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   *profilingAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	metrics := obs.NewMetrics()
	events := bus.NewQueue(loaded.Engine.EventQueueSize)
	defer events.Close()

	pool := conn.NewPool(conn.Config{URL: loaded.EndpointURL})
	defer pool.Close()

	orch := orchestrator.New(orchestrator.PoolProvider{Pool: pool}, orchestrator.Config{
		RequestTimeout: loaded.Engine.RequestTimeout,
		MonitorTimeout: loaded.Engine.MonitorTimeout,
		Attempts:       loaded.Engine.Attempts,
		WarmupDelay:    time.Second,
		Backoff:        conn.DefaultBackoff(),
	}, metrics)

	controller := engine.New(orch, events, metrics)
	for _, acc := range loaded.Accounts {
		controller.Activate(acc)
	}

	sink := logSink()
	if loaded.Store != nil {
		client, err := pkgconn.New(*loaded.Store)
		if err != nil {
			log.Fatalf("postgres connect failed: %v", err)
		}
		defer client.Close()
		history, err := store.New(client.DB())
		if err != nil {
			log.Fatalf("trade history init failed: %v", err)
		}
		sink = fanout(history.Sink(ctx), sink)
	}

	ticks := feed.New(loaded.EndpointURL, loaded.Symbols, func(t model.Tick) {
		controller.OnTick(ctx, t)
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events.Run(ctx, sink)
		return nil
	})
	g.Go(func() error {
		return ticks.Run(ctx)
	})
	if *statsInterval > 0 {
		g.Go(func() error {
			runStatsLoop(ctx, metrics, *statsInterval)
			return nil
		})
	}

	logs.Infof("trader started, accounts: %d symbols: %v", len(loaded.Accounts), loaded.Symbols)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logs.Errorf("trader stopped, err: %+v", err)
	}
	controller.Wait()
	logs.Info("trader shut down")
}

// logSink records every settlement and halt in the log stream.
func logSink() func(bus.Event) {
	return func(e bus.Event) {
		switch {
		case e.Settled != nil:
			logs.Infof("trade settled, account: %s order: %s outcome: %s stake: %s profit: %s",
				e.Settled.AccountID, e.Settled.OrderID, e.Settled.Outcome,
				e.Settled.Stake, e.Settled.Profit)
		case e.Halted != nil:
			logs.Warnf("session halted, account: %s reason: %s session profit: %s",
				e.Halted.AccountID, e.Halted.Reason, e.Halted.Profit)
		}
	}
}

func fanout(handlers ...func(bus.Event)) func(bus.Event) {
	return func(e bus.Event) {
		for _, h := range handlers {
			h(e)
		}
	}
}

func runStatsLoop(ctx context.Context, metrics *obs.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sys.Shutdown():
			return
		case <-ticker.C:
			snap := metrics.Snapshot()
			logs.Infof("stats, placed: %d won: %d lost: %d errored: %d retries: %d halts: %v lifecycle avg: %s",
				snap.Placed, snap.Won, snap.Lost, snap.Errored, snap.Retries,
				snap.HaltCounts, snap.LifecycleLatency.Avg)
		}
	}
}
