package conn

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	DefaultDialTimeout = 20 * time.Second
	DefaultAuthTimeout = 30 * time.Second
)

// Config defines pool runtime configuration.
type Config struct {
	// URL is the counterparty websocket endpoint.
	URL string
	// Header is sent on the upgrade request.
	Header http.Header

	DialTimeout  time.Duration
	AuthTimeout  time.Duration
	PingInterval time.Duration
}

// Pool maps credential tokens to live connections. It guarantees at most
// one live connection and at most one in-flight connect attempt per token;
// concurrent Acquire calls for the same token await the same attempt.
type Pool struct {
	cfg    Config
	dialer *websocket.Dialer

	mu         sync.Mutex
	conns      map[string]*Connection
	connecting map[string]*connectAttempt
	closed     bool
}

type connectAttempt struct {
	done chan struct{}
	conn *Connection
	err  error
}

// NewPool builds a pool for the given endpoint.
func NewPool(cfg Config) *Pool {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = DefaultAuthTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	return &Pool{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
		conns:      make(map[string]*Connection),
		connecting: make(map[string]*connectAttempt),
	}
}

// Acquire returns the live connection for token, establishing and
// authorizing a new one if none exists. Idempotent and safe to call
// concurrently for the same token.
func (p *Pool) Acquire(ctx context.Context, token string) (*Connection, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrConnClosed
	}
	if c, ok := p.conns[token]; ok {
		if c.Alive() {
			p.mu.Unlock()
			return c, nil
		}
		// Stale entry: socket dropped or never authorized.
		delete(p.conns, token)
		go c.Close()
	}
	if attempt, ok := p.connecting[token]; ok {
		p.mu.Unlock()
		select {
		case <-attempt.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if attempt.err != nil {
			return nil, attempt.err
		}
		return attempt.conn, nil
	}

	attempt := &connectAttempt{done: make(chan struct{})}
	p.connecting[token] = attempt
	p.mu.Unlock()

	attempt.conn, attempt.err = p.connect(ctx, token)

	p.mu.Lock()
	delete(p.connecting, token)
	if attempt.err == nil {
		if p.closed {
			attempt.err = ErrConnClosed
			go attempt.conn.Close()
			attempt.conn = nil
		} else {
			p.conns[token] = attempt.conn
		}
	}
	p.mu.Unlock()
	close(attempt.done)

	if attempt.err != nil {
		return nil, attempt.err
	}
	return attempt.conn, nil
}

// Release drops the pool entry for token without closing the connection;
// the next Acquire reconnects. Used when a caller detects a wedged
// connection that has not yet reported closure.
func (p *Pool) Release(token string) {
	p.mu.Lock()
	c, ok := p.conns[token]
	if ok {
		delete(p.conns, token)
	}
	p.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Close tears down every connection and rejects further Acquire calls.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	conns := p.conns
	p.conns = make(map[string]*Connection)
	p.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// Len returns the number of live pooled connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

func (p *Pool) connect(ctx context.Context, token string) (*Connection, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
	defer cancel()

	ws, _, err := p.dialer.DialContext(dialCtx, p.cfg.URL, p.cfg.Header)
	if err != nil {
		return nil, errors.Wrap(err, "dial counterparty").With("url", p.cfg.URL)
	}

	c := newConnection(ws, token, p.cfg.PingInterval, p.evict)
	if err := c.authorize(ctx, p.cfg.AuthTimeout); err != nil {
		c.Close()
		return nil, errors.Wrap(err, "authorize connection")
	}
	logs.Infof("connection authorized, loginid: %s currency: %s", c.account.LoginID, c.account.Currency)
	return c, nil
}

// evict removes a connection that closed itself (read error, failed ping).
func (p *Pool) evict(c *Connection) {
	p.mu.Lock()
	if cur, ok := p.conns[c.token]; ok && cur == c {
		delete(p.conns, c.token)
	}
	p.mu.Unlock()
}
