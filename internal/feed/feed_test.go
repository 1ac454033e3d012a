package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/conn"
	"main/internal/model"
)

var upgrader = websocket.Upgrader{}

// tickServer serves one tick stream: it records subscriptions and emits
// the scripted quotes for each subscribed symbol.
func tickServer(t *testing.T, quotes []float64) (*httptest.Server, *sync.Map) {
	t.Helper()
	subs := &sync.Map{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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
			symbol, ok := msg["ticks"].(string)
			if !ok {
				continue
			}
			subs.Store(symbol, true)
			for i, q := range quotes {
				_ = c.WriteJSON(map[string]any{
					"msg_type": "tick",
					"tick": map[string]any{
						"symbol":   symbol,
						"quote":    q,
						"epoch":    1700000000 + int64(i),
						"pip_size": 2,
					},
				})
			}
		}
	}))
	return srv, subs
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRunDeliversTicks(t *testing.T) {
	srv, subs := tickServer(t, []float64{100.15, 100.17, 100.12})
	defer srv.Close()

	got := make(chan model.Tick, 16)
	f := New(wsURL(srv), []string{"R_100"}, func(tk model.Tick) { got <- tk })
	f.backoff = conn.Backoff{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = f.Run(ctx)
		close(done)
	}()

	var ticks []model.Tick
	for i := 0; i < 3; i++ {
		select {
		case tk := <-got:
			ticks = append(ticks, tk)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing tick %d", i)
		}
	}

	assert.Equal(t, "R_100", ticks[0].Symbol)
	assert.Equal(t, 100.15, ticks[0].Value)
	assert.Equal(t, 5, ticks[0].Digit)
	assert.Equal(t, int64(1700000000), ticks[0].At.Unix())

	_, subscribed := subs.Load("R_100")
	assert.True(t, subscribed)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
}

func TestRunReconnectsAfterDrop(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		dials++
		n := dials
		mu.Unlock()
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if n == 1 {
			c.Close() // first connection dies immediately
			return
		}
		defer c.Close()
		for {
			var msg map[string]any
			if err := c.ReadJSON(&msg); err != nil {
				return
			}
			if symbol, ok := msg["ticks"].(string); ok {
				_ = c.WriteJSON(map[string]any{
					"msg_type": "tick",
					"tick":     map[string]any{"symbol": symbol, "quote": 55.31, "epoch": int64(1700000001), "pip_size": 2},
				})
			}
		}
	}))
	defer srv.Close()

	got := make(chan model.Tick, 1)
	f := New(wsURL(srv), []string{"R_50"}, func(tk model.Tick) {
		select {
		case got <- tk:
		default:
		}
	})
	f.backoff = conn.Backoff{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.Run(ctx) }()

	select {
	case tk := <-got:
		require.Equal(t, 55.31, tk.Value)
	case <-time.After(3 * time.Second):
		t.Fatal("no tick after reconnect")
	}

	mu.Lock()
	assert.GreaterOrEqual(t, dials, 2)
	mu.Unlock()
}
