package conn

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"

	"main/internal/wire"
)

var (
	ErrNotAuthorized         = errors.New("conn: connection not authorized")
	ErrConnClosed            = errors.New("conn: connection closed")
	ErrRequestTimeout        = errors.New("conn: request timed out")
	ErrDuplicateSubscription = errors.New("conn: subscription id already registered")
)

const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultPingInterval   = 90 * time.Second
)

// Connection is one authenticated websocket bound to one credential,
// shared by every session trading on that credential. It owns keep-alive,
// response demultiplexing and subscription routing.
//
// Responses that are not open-contract pushes are matched to callers in
// strict FIFO order: the protocol answers requests on one connection in
// submission order and does not echo a correlation id on quote/buy
// responses. One inbound response always consumes exactly one pending
// slot, including slots whose caller already gave up, so later responses
// stay aligned with later requests.
type Connection struct {
	token        string
	ws           *websocket.Conn
	pingInterval time.Duration
	onClose      func(*Connection)

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  []*pendingRequest
	subs     map[int64]*subscription
	closeErr error

	closed    chan struct{}
	closeOnce sync.Once

	authorized atomic.Bool
	account    wire.AuthorizeResponse
}

type pendingRequest struct {
	ch chan response
	// abandoned marks a slot whose caller timed out. The slot stays in
	// the queue so its eventual response does not shift onto the next
	// caller.
	abandoned bool
}

type response struct {
	env wire.Envelope
	raw []byte
}

type subscription struct {
	cb        func(wire.OpenContractPush)
	confirmed chan error
	resolved  bool
}

func newConnection(ws *websocket.Conn, token string, pingInterval time.Duration, onClose func(*Connection)) *Connection {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	c := &Connection{
		token:        token,
		ws:           ws,
		pingInterval: pingInterval,
		onClose:      onClose,
		subs:         make(map[int64]*subscription),
		closed:       make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Alive reports whether the connection is authorized and open.
func (c *Connection) Alive() bool {
	select {
	case <-c.closed:
		return false
	default:
		return c.authorized.Load()
	}
}

// Account returns the snapshot received on authorization.
func (c *Connection) Account() wire.AuthorizeResponse {
	return c.account
}

// SendRequest transmits a payload and waits for its FIFO-matched response.
// A wire-level error envelope is returned as *wire.Err alongside the
// envelope that carried it.
func (c *Connection) SendRequest(ctx context.Context, payload any, timeout time.Duration) (wire.Envelope, error) {
	return c.do(ctx, payload, timeout, true)
}

func (c *Connection) do(ctx context.Context, payload any, timeout time.Duration, requireAuth bool) (wire.Envelope, error) {
	if requireAuth && !c.authorized.Load() {
		return wire.Envelope{}, ErrNotAuthorized
	}

	req := &pendingRequest{ch: make(chan response, 1)}
	c.mu.Lock()
	if c.closeErr != nil {
		err := c.closeErr
		c.mu.Unlock()
		return wire.Envelope{}, err
	}
	c.pending = append(c.pending, req)
	c.mu.Unlock()

	if err := c.writeJSON(payload); err != nil {
		c.abandon(req)
		return wire.Envelope{}, err
	}

	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-req.ch:
		if resp.env.Error != nil {
			return resp.env, resp.env.Error.AsError()
		}
		return resp.env, nil
	case <-timer.C:
		c.abandon(req)
		return wire.Envelope{}, ErrRequestTimeout
	case <-ctx.Done():
		c.abandon(req)
		return wire.Envelope{}, ctx.Err()
	case <-c.closed:
		return wire.Envelope{}, c.closeError()
	}
}

// Subscribe registers cb for pushes keyed by the server-assigned id before
// transmitting, then waits for the first push or error for that id.
// Subsequent pushes invoke cb directly from the read loop.
func (c *Connection) Subscribe(ctx context.Context, payload any, id int64, cb func(wire.OpenContractPush), timeout time.Duration) error {
	if !c.authorized.Load() {
		return ErrNotAuthorized
	}

	sub := &subscription{cb: cb, confirmed: make(chan error, 1)}
	c.mu.Lock()
	if c.closeErr != nil {
		err := c.closeErr
		c.mu.Unlock()
		return err
	}
	if _, exists := c.subs[id]; exists {
		c.mu.Unlock()
		return ErrDuplicateSubscription
	}
	c.subs[id] = sub
	c.mu.Unlock()

	if err := c.writeJSON(payload); err != nil {
		c.RemoveSubscription(id)
		return err
	}

	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-sub.confirmed:
		if err != nil {
			c.RemoveSubscription(id)
		}
		return err
	case <-timer.C:
		c.RemoveSubscription(id)
		return ErrRequestTimeout
	case <-ctx.Done():
		c.RemoveSubscription(id)
		return ctx.Err()
	case <-c.closed:
		return c.closeError()
	}
}

// RemoveSubscription drops the registry entry for id. Safe to call twice
// or after the connection already closed.
func (c *Connection) RemoveSubscription(id int64) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

// Close tears the connection down, failing every pending request and
// clearing all subscriptions.
func (c *Connection) Close() {
	c.closeWith(ErrConnClosed)
}

func (c *Connection) authorize(ctx context.Context, timeout time.Duration) error {
	env, err := c.do(ctx, wire.AuthorizeRequest{Authorize: c.token}, timeout, false)
	if err != nil {
		return err
	}
	var acct wire.AuthorizeResponse
	if err := json.Unmarshal(env.Authorize, &acct); err != nil {
		return err
	}
	c.account = acct
	c.authorized.Store(true)
	go c.pingLoop()
	return nil
}

func (c *Connection) readLoop() {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.closeWith(ErrConnClosed)
			return
		}

		var env wire.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logs.Warnf("drop malformed frame, err: %+v", err)
			continue
		}

		switch env.MsgType {
		case wire.MsgTypePing, wire.MsgTypePong:
			// keep-alive
		case wire.MsgTypeProposalOpenContract:
			c.routePush(env)
		default:
			c.resolveNext(env, raw)
		}
	}
}

func (c *Connection) resolveNext(env wire.Envelope, raw []byte) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		logs.Warnf("unmatched response, msg_type: %s", env.MsgType)
		return
	}
	head := c.pending[0]
	c.pending = c.pending[1:]
	c.mu.Unlock()

	if head.abandoned {
		return
	}
	head.ch <- response{env: env, raw: raw}
}

func (c *Connection) routePush(env wire.Envelope) {
	var push wire.OpenContractPush
	if len(env.ProposalOpenContract) > 0 {
		if err := json.Unmarshal(env.ProposalOpenContract, &push); err != nil {
			logs.Warnf("drop malformed contract push, err: %+v", err)
			return
		}
	}
	id := push.ContractID
	if id == 0 && env.EchoReq != nil {
		id = env.EchoReq.ContractID
	}

	c.mu.Lock()
	sub, ok := c.subs[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	first := !sub.resolved
	sub.resolved = true
	cb := sub.cb
	c.mu.Unlock()

	if first {
		sub.confirmed <- env.Error.AsError()
	}
	if env.Error == nil && cb != nil {
		cb(push)
	}
}

func (c *Connection) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if err := c.writeJSON(wire.PingRequest{Ping: 1}); err != nil {
				c.closeWith(ErrConnClosed)
				return
			}
		}
	}
}

func (c *Connection) writeJSON(payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.closed:
		return c.closeError()
	default:
	}
	return c.ws.WriteJSON(payload)
}

func (c *Connection) abandon(req *pendingRequest) {
	c.mu.Lock()
	req.abandoned = true
	c.mu.Unlock()
}

func (c *Connection) closeError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	return ErrConnClosed
}

func (c *Connection) closeWith(err error) {
	c.closeOnce.Do(func() {
		c.authorized.Store(false)

		c.mu.Lock()
		c.closeErr = err
		// Waiters blocked in do() observe the closed channel and fail
		// with the close error; dropping the queue here is enough.
		c.pending = nil
		subs := c.subs
		c.subs = make(map[int64]*subscription)
		c.mu.Unlock()

		close(c.closed)
		for _, sub := range subs {
			if !sub.resolved {
				sub.confirmed <- err
			}
		}
		_ = c.ws.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}
