package conn

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/wire"
)

var upgrader = websocket.Upgrader{}

// counterparty runs a fake wire endpoint. Authorize and ping are handled
// built-in; everything else is passed to handle, which runs on the read
// goroutine so it may write without extra locking.
func counterparty(t *testing.T, handle func(c *websocket.Conn, msg map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			var msg map[string]any
			if err := c.ReadJSON(&msg); err != nil {
				return
			}
			if token, ok := msg["authorize"]; ok {
				if token == "bad-token" {
					writeJSON(c, map[string]any{
						"msg_type": "authorize",
						"error":    map[string]any{"code": "InvalidToken", "message": "token invalid"},
					})
					continue
				}
				writeJSON(c, map[string]any{
					"msg_type":  "authorize",
					"authorize": map[string]any{"loginid": "CR90001", "currency": "USD", "balance": 1000.0},
				})
				continue
			}
			if _, ok := msg["ping"]; ok {
				writeJSON(c, map[string]any{"msg_type": "pong"})
				continue
			}
			if handle != nil {
				handle(c, msg)
			}
		}
	}))
}

func writeJSON(c *websocket.Conn, v any) {
	_ = c.WriteJSON(v)
}

func poolFor(srv *httptest.Server) *Pool {
	return NewPool(Config{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		DialTimeout: 2 * time.Second,
		AuthTimeout: 2 * time.Second,
	})
}

func TestAcquireReusesConnectionPerToken(t *testing.T) {
	srv := counterparty(t, nil)
	defer srv.Close()

	pool := poolFor(srv)
	defer pool.Close()

	ctx := t.Context()
	a, err := pool.Acquire(ctx, "token-a")
	require.NoError(t, err)
	b, err := pool.Acquire(ctx, "token-a")
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := pool.Acquire(ctx, "token-b")
	require.NoError(t, err)
	assert.NotSame(t, a, other)
	assert.Equal(t, 2, pool.Len())
	assert.Equal(t, "USD", a.Account().Currency)
}

func TestAcquireConcurrentSharesOneAttempt(t *testing.T) {
	var mu sync.Mutex
	upgrades := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		upgrades++
		mu.Unlock()
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			var msg map[string]any
			if err := c.ReadJSON(&msg); err != nil {
				return
			}
			if _, ok := msg["authorize"]; ok {
				time.Sleep(50 * time.Millisecond) // widen the race window
				writeJSON(c, map[string]any{
					"msg_type":  "authorize",
					"authorize": map[string]any{"loginid": "CR90001", "currency": "USD"},
				})
			}
		}
	}))
	defer srv.Close()

	pool := poolFor(srv)
	defer pool.Close()

	const callers = 8
	conns := make([]*Connection, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := pool.Acquire(t.Context(), "token")
			require.NoError(t, err)
			conns[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, conns[0], conns[i])
	}
	mu.Lock()
	assert.Equal(t, 1, upgrades)
	mu.Unlock()
}

func TestAcquireAuthFailure(t *testing.T) {
	srv := counterparty(t, nil)
	defer srv.Close()

	pool := poolFor(srv)
	defer pool.Close()

	_, err := pool.Acquire(t.Context(), "bad-token")
	require.Error(t, err)
	assert.Equal(t, 0, pool.Len())
}

func TestFIFOCorrelation(t *testing.T) {
	const callers = 5

	// Buffer every proposal, then answer them in arrival order so each
	// response echoes the amount of the request it answers.
	var buffered []map[string]any
	srv := counterparty(t, func(c *websocket.Conn, msg map[string]any) {
		if _, ok := msg["proposal"]; !ok {
			return
		}
		buffered = append(buffered, msg)
		if len(buffered) < callers {
			return
		}
		for _, req := range buffered {
			amount := req["amount"].(float64)
			writeJSON(c, map[string]any{
				"msg_type": "proposal",
				"proposal": map[string]any{"id": "q", "ask_price": amount, "payout": amount * 2},
			})
		}
	})
	defer srv.Close()

	pool := poolFor(srv)
	defer pool.Close()

	c, err := pool.Acquire(t.Context(), "token")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= callers; i++ {
		wg.Add(1)
		go func(amount float64) {
			defer wg.Done()
			env, err := c.SendRequest(t.Context(), wire.ProposalRequest{
				Proposal: 1,
				Amount:   amount,
				Basis:    "stake",
			}, 5*time.Second)
			require.NoError(t, err)

			var quote wire.ProposalResponse
			require.NoError(t, json.Unmarshal(env.Proposal, &quote))
			assert.Equal(t, amount, quote.AskPrice)
			assert.Equal(t, amount*2, quote.Payout)
		}(float64(i))
	}
	wg.Wait()
}

func TestCloseRejectsPendingAndClearsSubscriptions(t *testing.T) {
	proposals := make(chan struct{}, 4)
	srv := counterparty(t, func(c *websocket.Conn, msg map[string]any) {
		if _, ok := msg["proposal"]; ok {
			proposals <- struct{}{}
			if len(proposals) == 2 {
				_ = c.Close() // drop the socket with both requests pending
			}
		}
		if _, ok := msg["proposal_open_contract"]; ok {
			writeJSON(c, map[string]any{
				"msg_type":               "proposal_open_contract",
				"proposal_open_contract": map[string]any{"contract_id": 42, "status": "open"},
			})
		}
	})
	defer srv.Close()

	pool := poolFor(srv)
	defer pool.Close()

	first, err := pool.Acquire(t.Context(), "token")
	require.NoError(t, err)

	require.NoError(t, first.Subscribe(t.Context(), wire.OpenContractRequest{
		ProposalOpenContract: 1,
		ContractID:           42,
		Subscribe:            1,
	}, 42, func(wire.OpenContractPush) {}, 2*time.Second))

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := first.SendRequest(t.Context(), wire.ProposalRequest{Proposal: 1, Amount: 1}, 10*time.Second)
			errs <- err
		}()
	}
	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrConnClosed)
		case <-time.After(5 * time.Second):
			t.Fatal("pending request not rejected after close")
		}
	}

	require.Eventually(t, func() bool { return pool.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, first.subs)

	fresh, err := pool.Acquire(t.Context(), "token")
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
	assert.True(t, fresh.Alive())
}

func TestSubscribePushRouting(t *testing.T) {
	srv := counterparty(t, func(c *websocket.Conn, msg map[string]any) {
		if _, ok := msg["proposal_open_contract"]; !ok {
			return
		}
		id := int64(msg["contract_id"].(float64))
		for i, status := range []string{"open", "open", "sold"} {
			writeJSON(c, map[string]any{
				"msg_type": "proposal_open_contract",
				"proposal_open_contract": map[string]any{
					"contract_id": id,
					"status":      status,
					"is_sold":     boolToInt(i == 2),
					"profit":      0.85,
				},
			})
		}
	})
	defer srv.Close()

	pool := poolFor(srv)
	defer pool.Close()

	c, err := pool.Acquire(t.Context(), "token")
	require.NoError(t, err)

	pushes := make(chan wire.OpenContractPush, 8)
	require.NoError(t, c.Subscribe(t.Context(), wire.OpenContractRequest{
		ProposalOpenContract: 1,
		ContractID:           7,
		Subscribe:            1,
	}, 7, func(p wire.OpenContractPush) { pushes <- p }, 2*time.Second))

	var last wire.OpenContractPush
	for i := 0; i < 3; i++ {
		select {
		case last = <-pushes:
		case <-time.After(2 * time.Second):
			t.Fatalf("missing push %d", i)
		}
	}
	assert.Equal(t, "sold", last.Status)
	assert.Equal(t, 1, last.IsSold)
	assert.Equal(t, 0.85, last.Profit)
}

func TestRemoveSubscriptionIdempotent(t *testing.T) {
	srv := counterparty(t, nil)
	defer srv.Close()

	pool := poolFor(srv)
	defer pool.Close()

	c, err := pool.Acquire(t.Context(), "token")
	require.NoError(t, err)

	c.RemoveSubscription(99)
	c.RemoveSubscription(99)

	c.Close()
	c.RemoveSubscription(99) // after close is still a no-op
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
