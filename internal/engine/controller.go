// Package engine fans ticks out to account sessions and runs the
// per-session reaction: signal evaluation, stake sizing, risk gating and
// order execution. Sessions react independently across accounts but
// strictly one at a time within an account.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/orchestrator"
	"main/internal/risk"
	"main/internal/session"
	"main/internal/signal"
	"main/internal/stake"
)

// Executor runs one order lifecycle. Satisfied by
// orchestrator.Orchestrator; narrowed for tests.
type Executor interface {
	Execute(ctx context.Context, sess *session.Session, spec model.Order) (orchestrator.Result, error)
}

// Controller owns the active sessions and reacts to the tick feed.
type Controller struct {
	mu       sync.Mutex
	sessions map[string]*session.Session

	exec    Executor
	stakes  stake.Engine
	events  *bus.Queue
	metrics *obs.Metrics
	ids     *obs.ReactionIDs

	wg sync.WaitGroup
}

// New builds a controller. events and metrics may be nil.
func New(exec Executor, events *bus.Queue, metrics *obs.Metrics) *Controller {
	return &Controller{
		sessions: make(map[string]*session.Session),
		exec:     exec,
		stakes:   stake.Engine{MinStake: stake.DefaultMinStake},
		events:   events,
		metrics:  metrics,
		ids:      obs.NewReactionIDs(0),
	}
}

// Activate registers an account or re-applies configuration to a live
// session. Re-activation keeps staking state so a config tweak does not
// forgive accumulated losses.
func (c *Controller) Activate(cfg session.Config) *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[cfg.AccountID]; ok {
		s.Apply(cfg)
		logs.Infof("session re-activated, account: %s symbol: %s", cfg.AccountID, cfg.Symbol)
		return s
	}
	s := session.New(cfg)
	c.sessions[cfg.AccountID] = s
	logs.Infof("session activated, account: %s symbol: %s provider: %s",
		cfg.AccountID, cfg.Symbol, cfg.Provider)
	return s
}

// Deactivate drops an account session. In-flight orders finish on their
// own; the session simply stops receiving ticks.
func (c *Controller) Deactivate(accountID string) {
	c.mu.Lock()
	delete(c.sessions, accountID)
	c.mu.Unlock()
	logs.Infof("session deactivated, account: %s", accountID)
}

// Sessions snapshots the registered sessions.
func (c *Controller) Sessions() []*session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*session.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}
	return out
}

// OnTick buffers the tick into every session trading the symbol and
// starts a reaction for each session that is free to analyze. Busy or
// awaiting sessions only buffer; they never queue reactions.
func (c *Controller) OnTick(ctx context.Context, t model.Tick) {
	now := time.Now()

	c.mu.Lock()
	targets := make([]*session.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		if s.Cfg().Symbol == t.Symbol {
			targets = append(targets, s)
		}
	}
	c.mu.Unlock()

	for _, s := range targets {
		s.RecordTick(t)
		if !s.TryAcquire(now) {
			continue
		}
		c.wg.Add(1)
		go func(s *session.Session) {
			defer c.wg.Done()
			defer s.Release()
			c.react(ctx, s)
		}(s)
	}
}

// Wait blocks until every in-flight reaction finished. Used on shutdown.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) react(ctx context.Context, s *session.Session) {
	cfg := s.Cfg()
	rid := c.ids.NextString()

	provider, err := signal.For(cfg.Provider)
	if err != nil {
		logs.Errorf("reaction %s: account %s has unknown provider %q", rid, cfg.AccountID, cfg.Provider)
		return
	}
	sig, ok := provider.Evaluate(s.Window(session.TickWindow))
	if !ok {
		return
	}

	amount, exhausted := s.NextStake(c.stakes, time.Now())
	if exhausted {
		logs.Warnf("reaction %s: account %s recovery exhausted, cooling down", rid, cfg.AccountID)
		return
	}

	decision := s.EvaluateRisk(amount)
	switch decision.Action {
	case risk.ActionHalt:
		s.Halt(decision.Reason)
		c.metrics.CountHalt(decision.Reason)
		c.publishHalt(s, decision)
		logs.Warnf("reaction %s: account %s halted pre-trade, reason: %s",
			rid, cfg.AccountID, decision.Reason)
		return
	case risk.ActionAdjust:
		logs.Infof("reaction %s: account %s stake clamped %s -> %s",
			rid, cfg.AccountID, amount, decision.Stake)
		amount = decision.Stake
	}

	spec := model.Order{
		Contract: sig.Contract,
		Barrier:  sig.Barrier,
		Duration: sig.DurationTicks,
		Stake:    amount,
	}
	if spec.Duration <= 0 {
		spec.Duration = cfg.DurationTicks
	}
	// Recovery wagers switch to the configured recovery instrument, whose
	// payout the ladder math is sized against.
	if s.InRecovery() && cfg.RecoveryContract.IsAvailable() {
		spec.Contract = cfg.RecoveryContract
		spec.Barrier = cfg.RecoveryBarrier
	}

	res, err := c.exec.Execute(ctx, s, spec)
	if err != nil {
		logs.Errorf("reaction %s: account %s order failed, err: %+v", rid, cfg.AccountID, err)
	}
	if res.Order.ID != "" {
		c.publishSettled(res)
	}
	if res.Final == orchestrator.StateHalted {
		c.publishHalt(s, res.Halt)
	}
}

func (c *Controller) publishSettled(res orchestrator.Result) {
	if c.events == nil {
		return
	}
	ev := bus.Event{Settled: &model.TradeSettled{
		AccountID:  res.Order.AccountID,
		OrderID:    res.Order.ID,
		ContractID: res.Order.ContractID,
		Symbol:     res.Order.Symbol,
		Contract:   res.Order.Contract,
		Stake:      res.Order.Stake,
		Profit:     res.Profit,
		Outcome:    res.Outcome,
		HaltReason: res.Halt.Reason,
	}}
	if err := c.events.TryPublish(ev); err != nil {
		logs.Warnf("settled event dropped, account: %s err: %v", res.Order.AccountID, err)
	}
}

func (c *Controller) publishHalt(s *session.Session, d risk.Decision) {
	if c.events == nil {
		return
	}
	ev := bus.Event{Halted: &model.SessionHalted{
		AccountID: s.Cfg().AccountID,
		Reason:    d.Reason,
		Profit:    s.Profit(),
	}}
	if err := c.events.TryPublish(ev); err != nil {
		logs.Warnf("halt event dropped, account: %s err: %v", s.Cfg().AccountID, err)
	}
}
