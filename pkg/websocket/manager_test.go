package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var fastBackoff = Backoff{Min: time.Millisecond, Max: 2 * time.Millisecond, Factor: 2}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestManagerDeliversMessages(t *testing.T) {
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range []string{"one", "two", "three"} {
			if err := conn.WriteMessage(ws.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var (
		mu        sync.Mutex
		got       []string
		connected atomic.Int32
	)
	m, err := NewManager(Config{
		URL:     func(context.Context) (string, error) { return wsURL(srv), nil },
		Backoff: fastBackoff,
		OnConnect: func(context.Context) error {
			connected.Add(1)
			return nil
		},
		OnMessage: func(_ context.Context, payload []byte) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, string(payload))
			if len(got) == 3 {
				cancel()
			}
			return nil
		},
	})
	require.NoError(t, err)

	require.ErrorIs(t, m.Run(ctx), context.Canceled)
	require.Equal(t, []string{"one", "two", "three"}, got)
	require.Equal(t, int32(1), connected.Load())
}

func TestManagerGivesUpAfterMaxRetries(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		dials.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m, err := NewManager(Config{
		URL:        func(context.Context) (string, error) { return wsURL(srv), nil },
		MaxRetries: 3,
		Backoff:    fastBackoff,
		OnMessage:  func(context.Context, []byte) error { return nil },
	})
	require.NoError(t, err)

	require.ErrorIs(t, m.Run(t.Context()), ErrMaxReconnectRetries)
	require.Equal(t, int32(4), dials.Load())
}

func TestManagerReconnectsAfterDrop(t *testing.T) {
	upgrader := ws.Upgrader{}
	var sessions atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sessions.Add(1)
		_ = conn.WriteMessage(ws.TextMessage, []byte("tick"))
		_ = conn.Close()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var messages atomic.Int32
	m, err := NewManager(Config{
		URL:        func(context.Context) (string, error) { return wsURL(srv), nil },
		MaxRetries: 1,
		Backoff:    fastBackoff,
		OnMessage: func(context.Context, []byte) error {
			if messages.Add(1) == 3 {
				cancel()
			}
			return nil
		},
	})
	require.NoError(t, err)

	require.ErrorIs(t, m.Run(ctx), context.Canceled)
	require.GreaterOrEqual(t, sessions.Load(), int32(3))
}

func TestNewManagerRequiresCallbacks(t *testing.T) {
	_, err := NewManager(Config{})
	require.ErrorIs(t, err, ErrBadConfig)
}
