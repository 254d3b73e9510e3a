package websocket

import (
	"context"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"spotbot/pkg/exception"
)

var (
	ErrBadConfig           = errors.New("websocket: invalid config")
	ErrMaxReconnectRetries = exception.ErrMaxReconnectRetries
)

// Config defines the manager runtime configuration.
type Config struct {
	// Name labels log lines.
	Name string
	// URL resolves the endpoint before every dial, so credentials such as a
	// listen key can be refreshed on reconnect.
	URL    func(ctx context.Context) (string, error)
	Dialer *ws.Dialer
	// MaxRetries is the number of consecutive failed reconnects tolerated
	// before Run gives up. Zero or less retries forever.
	MaxRetries   int
	Backoff      Backoff
	PingInterval time.Duration
	ReadTimeout  time.Duration
	OnConnect    func(ctx context.Context) error
	OnMessage    func(ctx context.Context, payload []byte) error
	OnDisconnect func(err error)
}

// Manager owns one reconnecting websocket connection.
type Manager struct {
	cfg       Config
	connected atomic.Bool
}

// NewManager validates config and builds a manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.URL == nil || cfg.OnMessage == nil {
		return nil, ErrBadConfig
	}
	if cfg.Dialer == nil {
		cfg.Dialer = ws.DefaultDialer
	}
	if cfg.Backoff.isZero() {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.Name == "" {
		cfg.Name = "websocket"
	}
	return &Manager{cfg: cfg}, nil
}

// Connected reports whether a session is currently open.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Run keeps a session open until ctx is done or MaxRetries consecutive
// reconnects fail, in which case ErrMaxReconnectRetries is returned.
func (m *Manager) Run(ctx context.Context) error {
	if m == nil {
		return ErrBadConfig
	}
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt > 0 {
			if m.cfg.MaxRetries > 0 && attempt > m.cfg.MaxRetries {
				logs.Errorf("%s: give up after %d reconnect attempts", m.cfg.Name, attempt-1)
				return ErrMaxReconnectRetries
			}
			if !m.sleepBackoff(ctx, attempt) {
				return ctx.Err()
			}
		}

		conn, err := m.dial(ctx)
		if err != nil {
			logs.Errorf("%s: dial, attempt: %d, err: %+v", m.cfg.Name, attempt+1, err)
			attempt++
			continue
		}

		if m.cfg.OnConnect != nil {
			if err := m.cfg.OnConnect(ctx); err != nil {
				_ = conn.Close()
				logs.Errorf("%s: on connect, err: %+v", m.cfg.Name, err)
				attempt++
				continue
			}
		}

		attempt = 0
		m.connected.Store(true)
		logs.Infof("%s: session opened", m.cfg.Name)

		err = m.runSession(ctx, conn)
		m.connected.Store(false)
		_ = conn.Close()
		if m.cfg.OnDisconnect != nil {
			m.cfg.OnDisconnect(err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		logs.Errorf("%s: session closed, err: %+v", m.cfg.Name, err)
		attempt++
	}
}

func (m *Manager) dial(ctx context.Context) (*ws.Conn, error) {
	url, err := m.cfg.URL(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolve url")
	}
	conn, resp, err := m.cfg.Dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (m *Manager) runSession(ctx context.Context, conn *ws.Conn) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// unblock ReadMessage on shutdown
	go func() {
		select {
		case <-sessionCtx.Done():
		case <-sys.Shutdown():
		}
		_ = conn.Close()
	}()

	if m.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
		})
	}

	if m.cfg.PingInterval > 0 {
		go m.pingLoop(sessionCtx, conn)
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(exception.ErrConnectionClose, err.Error())
		}
		if m.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
		}
		if err := m.cfg.OnMessage(sessionCtx, payload); err != nil {
			return err
		}
	}
}

func (m *Manager) pingLoop(ctx context.Context, conn *ws.Conn) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(m.cfg.PingInterval)
			if err := conn.WriteControl(ws.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (m *Manager) sleepBackoff(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(m.cfg.Backoff.Next(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
