// Package orchestrator drives one full order lifecycle: quote the
// instrument, place the order at the quoted price, subscribe to
// settlement pushes, and reconcile the terminal outcome into the session.
// Transient failures retry with capped exponential backoff; counterparty
// rejections and risk halts surface immediately.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/conn"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/session"
	"main/internal/wire"
)

var (
	// ErrOrderInFlight is returned when a session already awaits
	// settlement.
	ErrOrderInFlight = errors.New("orchestrator: order already in flight")
	// ErrProtocol marks a response missing an expected field.
	ErrProtocol = errors.New("orchestrator: malformed counterparty response")
	// ErrMonitorTimeout marks a settlement never observed within budget.
	// The true outcome is unknown; it is never treated as a loss.
	ErrMonitorTimeout = errors.New("orchestrator: settlement not observed in time")
)

// Client is the connection surface the orchestrator drives.
type Client interface {
	SendRequest(ctx context.Context, payload any, timeout time.Duration) (wire.Envelope, error)
	Subscribe(ctx context.Context, payload any, id int64, cb func(wire.OpenContractPush), timeout time.Duration) error
	RemoveSubscription(id int64)
}

// ConnectionProvider hands out the pooled connection for a credential.
type ConnectionProvider interface {
	Acquire(ctx context.Context, token string) (Client, error)
}

// Config bounds the lifecycle.
type Config struct {
	// RequestTimeout applies to quote and placement calls.
	RequestTimeout time.Duration
	// MonitorTimeout bounds the wait for a terminal settlement push.
	MonitorTimeout time.Duration
	// Attempts is the total attempt budget per quote/place call.
	Attempts int
	// WarmupDelay runs before the first quote attempt so a freshly
	// opened connection can stabilize.
	WarmupDelay time.Duration
	Backoff     conn.Backoff
}

// DefaultConfig returns production lifecycle bounds.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 60 * time.Second,
		MonitorTimeout: 90 * time.Second,
		Attempts:       3,
		WarmupDelay:    1 * time.Second,
		Backoff:        conn.DefaultBackoff(),
	}
}

// Result is the terminal record of one lifecycle run.
type Result struct {
	Order   model.Order
	Outcome enum.Outcome
	Profit  decimal.Decimal
	// Halt carries the risk decision when settling breached a limit.
	Halt risk.Decision
	// Final is the lifecycle state the run ended in.
	Final State
}

// Orchestrator executes order lifecycles over pooled connections.
type Orchestrator struct {
	pool    ConnectionProvider
	cfg     Config
	metrics *obs.Metrics
}

// New builds an orchestrator. metrics may be nil.
func New(pool ConnectionProvider, cfg Config, metrics *obs.Metrics) *Orchestrator {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.MonitorTimeout <= 0 {
		cfg.MonitorTimeout = 90 * time.Second
	}
	return &Orchestrator{pool: pool, cfg: cfg, metrics: metrics}
}

// Execute runs one order lifecycle for the session. The in-flight guard
// is taken synchronously before the first network call and cleared
// exactly once on every terminal path.
func (o *Orchestrator) Execute(ctx context.Context, sess *session.Session, spec model.Order) (Result, error) {
	if !sess.BeginOrder() {
		return Result{Final: StateIdle}, ErrOrderInFlight
	}
	defer sess.FinishOrder()

	started := time.Now()
	defer func() { o.metrics.ObserveLifecycle(time.Since(started)) }()

	m := &machine{state: StateIdle}
	cfg := sess.Cfg()

	order := spec
	order.ID = uuid.NewString()
	order.AccountID = cfg.AccountID
	order.Symbol = cfg.Symbol
	order.Status = enum.OrderStatusPending

	// QUOTING
	if err := m.to(StateQuoting); err != nil {
		return Result{Final: m.state}, err
	}
	o.warmup(ctx)
	quote, err := o.quote(ctx, cfg, &order)
	if err != nil {
		return o.fail(m, sess, order, err, false)
	}

	// PLACING
	if err := m.to(StatePlacing); err != nil {
		return Result{Final: m.state}, err
	}
	if err := o.place(ctx, cfg, &order, quote); err != nil {
		return o.fail(m, sess, order, err, false)
	}
	order.Status = enum.OrderStatusActive
	o.metrics.CountPlaced()

	// MONITORING
	if err := m.to(StateMonitoring); err != nil {
		return Result{Final: m.state}, err
	}
	profit, err := o.monitor(ctx, cfg, &order)
	if err != nil {
		// The order was accepted but its outcome is unknown: record an
		// error outcome and release the session rather than leaving it
		// stuck waiting.
		return o.fail(m, sess, order, err, true)
	}

	// SETTLING
	if err := m.to(StateSettling); err != nil {
		return Result{Final: m.state}, err
	}
	outcome := enum.OutcomeLost
	order.Status = enum.OrderStatusLost
	if profit.IsPositive() {
		outcome = enum.OutcomeWon
		order.Status = enum.OrderStatusWon
	}
	order.Profit = profit
	order.SettledAt = time.Now()

	decision := sess.Settle(outcome, order.Stake, profit)
	o.metrics.CountSettled(outcome)

	final := StateIdle
	if decision.Action == risk.ActionHalt {
		final = StateHalted
		sess.Halt(decision.Reason)
		o.metrics.CountHalt(decision.Reason)
	}
	if err := m.to(final); err != nil {
		return Result{Final: m.state}, err
	}

	return Result{
		Order:   order,
		Outcome: outcome,
		Profit:  profit,
		Halt:    decision,
		Final:   final,
	}, nil
}

func (o *Orchestrator) quote(ctx context.Context, cfg session.Config, order *model.Order) (wire.ProposalResponse, error) {
	req := wire.ProposalRequest{
		Proposal:     1,
		Amount:       order.Stake.InexactFloat64(),
		Basis:        "stake",
		ContractType: order.Contract.WireCode(),
		Currency:     cfg.Currency,
		Duration:     order.Duration,
		DurationUnit: "t",
		Symbol:       cfg.Symbol,
		Barrier:      order.Barrier,
	}
	return withRetry(ctx, o, cfg.Token, "quote", func(ctx context.Context, c Client) (wire.ProposalResponse, error) {
		begin := time.Now()
		env, err := c.SendRequest(ctx, req, o.cfg.RequestTimeout)
		if err != nil {
			return wire.ProposalResponse{}, err
		}
		o.metrics.ObserveQuote(time.Since(begin))
		var quote wire.ProposalResponse
		if unmarshalErr := jsonUnmarshal(env.Proposal, &quote); unmarshalErr != nil || quote.ID == "" {
			return wire.ProposalResponse{}, ErrProtocol
		}
		order.QuoteID = quote.ID
		order.QuotePrice = decimal.NewFromFloat(quote.AskPrice)
		order.Payout = decimal.NewFromFloat(quote.Payout)
		return quote, nil
	})
}

func (o *Orchestrator) place(ctx context.Context, cfg session.Config, order *model.Order, quote wire.ProposalResponse) error {
	req := wire.BuyRequest{Buy: quote.ID, Price: quote.AskPrice}
	_, err := withRetry(ctx, o, cfg.Token, "place", func(ctx context.Context, c Client) (struct{}, error) {
		env, err := c.SendRequest(ctx, req, o.cfg.RequestTimeout)
		if err != nil {
			return struct{}{}, err
		}
		var buy wire.BuyResponse
		if unmarshalErr := jsonUnmarshal(env.Buy, &buy); unmarshalErr != nil || buy.ContractID == 0 {
			return struct{}{}, ErrProtocol
		}
		order.ContractID = strconv.FormatInt(buy.ContractID, 10)
		order.PlacedAt = time.Now()
		return struct{}{}, nil
	})
	return err
}

func (o *Orchestrator) monitor(ctx context.Context, cfg session.Config, order *model.Order) (decimal.Decimal, error) {
	contractID, err := strconv.ParseInt(order.ContractID, 10, 64)
	if err != nil {
		return decimal.Zero, ErrProtocol
	}

	c, err := o.pool.Acquire(ctx, cfg.Token)
	if err != nil {
		return decimal.Zero, err
	}
	defer c.RemoveSubscription(contractID)

	pushes := make(chan wire.OpenContractPush, 16)
	err = c.Subscribe(ctx, wire.OpenContractRequest{
		ProposalOpenContract: 1,
		ContractID:           contractID,
		Subscribe:            1,
	}, contractID, func(p wire.OpenContractPush) {
		select {
		case pushes <- p:
		default:
		}
	}, o.cfg.RequestTimeout)
	if err != nil {
		return decimal.Zero, err
	}

	timer := time.NewTimer(o.cfg.MonitorTimeout)
	defer timer.Stop()
	for {
		select {
		case p := <-pushes:
			if !terminalPush(p) {
				// Non-terminal update; keep the entry spot current.
				if p.EntrySpot != 0 {
					order.QuotePrice = decimal.NewFromFloat(p.EntrySpot)
				}
				continue
			}
			return decimal.NewFromFloat(p.Profit), nil
		case <-timer.C:
			return decimal.Zero, ErrMonitorTimeout
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		}
	}
}

// fail handles every ERROR path. accepted marks orders the counterparty
// already accepted, whose true outcome is unknown.
func (o *Orchestrator) fail(m *machine, sess *session.Session, order model.Order, cause error, accepted bool) (Result, error) {
	_ = m.to(StateError)
	order.Status = enum.OrderStatusError
	o.metrics.CountErrored()
	logs.Errorf("order lifecycle failed, account: %s order: %s accepted: %t, err: %+v",
		order.AccountID, order.ID, accepted, cause)

	if accepted {
		// No staking transition: an unknown outcome must not move the
		// recovery ladder.
		sess.Settle(enum.OutcomeError, order.Stake, decimal.Zero)
	}
	_ = m.to(StateIdle)
	return Result{Order: order, Outcome: enum.OutcomeError, Final: StateIdle}, cause
}

func (o *Orchestrator) warmup(ctx context.Context) {
	if o.cfg.WarmupDelay <= 0 {
		return
	}
	t := time.NewTimer(o.cfg.WarmupDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// withRetry runs op against the pooled connection with the configured
// attempt budget. Non-retryable counterparty rejections escalate
// immediately; protocol anomalies retry once; connectivity errors retry
// until the budget runs out.
func withRetry[T any](ctx context.Context, o *Orchestrator, token, what string, op func(context.Context, Client) (T, error)) (T, error) {
	var (
		zero      T
		lastErr   error
		anomalies int
	)
	for attempt := 1; attempt <= o.cfg.Attempts; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		c, err := o.pool.Acquire(ctx, token)
		if err == nil {
			var out T
			out, err = op(ctx, c)
			if err == nil {
				return out, nil
			}
		}
		lastErr = err

		if !retryableError(err) {
			return zero, err
		}
		if errors.Is(err, ErrProtocol) {
			// One malformed response may be a stray frame; two in a row
			// means the stream itself is wrong.
			anomalies++
			if anomalies > 1 {
				return zero, err
			}
		}
		if attempt == o.cfg.Attempts {
			break
		}

		o.metrics.CountRetry()
		delay := o.cfg.Backoff.Next(attempt)
		logs.Warnf("%s attempt %d failed, retrying in %s, err: %+v", what, attempt, delay, err)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
		timer.Stop()
	}
	return zero, fmt.Errorf("%s: attempt budget exhausted: %w", what, lastErr)
}

func retryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var we *wire.Err
	if errors.As(err, &we) {
		return we.Retryable()
	}
	// Connectivity failures and protocol anomalies are transient.
	return true
}

func terminalPush(p wire.OpenContractPush) bool {
	if p.IsSold == 1 {
		return true
	}
	switch p.Status {
	case "sold", "won", "lost", "cancelled", "expired", "rejected":
		return true
	default:
		return p.IsExpired == 1
	}
}

func jsonUnmarshal(raw []byte, v any) error {
	if len(raw) == 0 {
		return ErrProtocol
	}
	return json.Unmarshal(raw, v)
}

// PoolProvider adapts the connection pool to the provider interface.
type PoolProvider struct {
	Pool *conn.Pool
}

func (p PoolProvider) Acquire(ctx context.Context, token string) (Client, error) {
	c, err := p.Pool.Acquire(ctx, token)
	if err != nil {
		return nil, err
	}
	return c, nil
}
