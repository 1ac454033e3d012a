// Package feed streams quote ticks from the counterparty and hands them
// to the engine. The feed runs on its own unauthenticated connection so
// trading traffic never competes with market data.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/conn"
	"main/internal/model"
	"main/internal/wire"
)

const (
	dialTimeout  = 20 * time.Second
	pingInterval = 90 * time.Second
)

// Handler receives each decoded tick.
type Handler func(model.Tick)

// Feed subscribes to tick streams for a set of symbols and reconnects
// with backoff when the stream drops.
type Feed struct {
	url     string
	symbols []string
	handler Handler
	backoff conn.Backoff
	dialer  *websocket.Dialer
}

// New builds a feed for the given symbols.
func New(url string, symbols []string, handler Handler) *Feed {
	return &Feed{
		url:     url,
		symbols: symbols,
		handler: handler,
		backoff: conn.DefaultBackoff(),
		dialer:  &websocket.Dialer{HandshakeTimeout: dialTimeout},
	}
}

// Run streams ticks until the context is done, reconnecting on every
// stream failure.
func (f *Feed) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempt++
		delay := f.backoff.Next(attempt)
		logs.Warnf("tick stream dropped, reconnecting in %s, err: %+v", delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		timer.Stop()
	}
}

// session runs one connection from dial to failure.
func (f *Feed) session(ctx context.Context) error {
	ws, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return errors.Wrap(err, "dial tick stream")
	}
	defer ws.Close()

	for _, symbol := range f.symbols {
		payload := wire.TicksRequest{Ticks: symbol, Subscribe: 1}
		if err := ws.WriteJSON(payload); err != nil {
			return errors.Wrap(err, "write ticks subscribe").With("symbol", symbol)
		}
	}
	logs.Infof("tick stream connected, symbols: %v", f.symbols)

	// The stream carries no client-driven requests, so keep-alive pings
	// go out on a timer and pongs are swallowed with everything else
	// that is not a tick.
	done := make(chan struct{})
	defer close(done)
	go f.pingLoop(ws, done)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read tick stream")
		}

		var env wire.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logs.Warnf("undecodable tick frame dropped, err: %v", err)
			continue
		}
		if env.Error != nil {
			return errors.Errorf("tick stream rejected, code: %s message: %s",
				env.Error.Code, env.Error.Message)
		}
		if env.MsgType != wire.MsgTypeTick || len(env.Tick) == 0 {
			continue
		}

		var push wire.TickPush
		if err := json.Unmarshal(env.Tick, &push); err != nil {
			logs.Warnf("undecodable tick payload dropped, err: %v", err)
			continue
		}
		f.handler(model.Tick{
			Symbol: push.Symbol,
			Value:  push.Quote,
			Digit:  model.LastDigit(push.Quote, push.PipSize),
			At:     time.Unix(push.Epoch, 0),
		})
	}
}

func (f *Feed) pingLoop(ws *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ws.WriteJSON(wire.PingRequest{Ping: 1}); err != nil {
				return
			}
		}
	}
}
