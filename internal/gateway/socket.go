package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quillchat/quill/internal/bus"
	"github.com/quillchat/quill/internal/status"
	"go.uber.org/zap"
)

const (
	readLimit    = 1 << 20
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	maxBackoff   = 30 * time.Second
)

// Socket consumes the push channel and republishes frames as remote
// events on the bus. It owns reconnection: every drop backs off with a
// capped exponential delay and the connection lifecycle is reflected in
// the status machine, so consumers can tell live push from poll-only.
type Socket struct {
	wsURL   string
	token   string
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSocket creates a push-channel consumer for the given websocket URL.
func NewSocket(wsURL, token string, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Socket {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Socket{
		wsURL:   wsURL,
		token:   token,
		bus:     b,
		machine: machine,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start runs the connect loop until Stop or context cancellation.
func (s *Socket) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Stop closes the push channel and waits for the loop to exit.
func (s *Socket) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Socket) run(ctx context.Context) {
	defer close(s.done)

	backoff := time.Second
	for {
		if err := s.transition(status.Connecting); err != nil {
			// First pass comes from Booting, later passes from Reconnecting.
			s.logger.Debug("state transition rejected", zap.Error(err))
		}

		err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}

		s.logger.Warn("push channel dropped, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", backoff))
		s.transitionBest(status.Reconnecting)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// consume dials, then reads frames until the connection dies. Malformed
// frames are logged and skipped; they never tear the connection down.
func (s *Socket) consume(ctx context.Context) error {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s.transitionBest(status.Syncing)
	s.transitionBest(status.Ready)
	s.logger.Info("push channel connected")

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			case <-pingCtx.Done():
				return
			}
		}
	}()

	// Close the connection when the context dies so ReadMessage unblocks.
	go func() {
		<-pingCtx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		evt, err := ParseFrame(data)
		if err != nil {
			s.logger.Debug("dropping unparseable frame", zap.Error(err))
			continue
		}
		s.bus.Publish(bus.Event{
			Kind:      bus.KindRemoteEvent,
			Timestamp: time.Now(),
			Payload:   evt,
		})
	}
}

func (s *Socket) transition(to status.State) error {
	if s.machine == nil {
		return nil
	}
	return s.machine.Transition(to)
}

func (s *Socket) transitionBest(to status.State) {
	if err := s.transition(to); err != nil {
		s.logger.Debug("state transition rejected", zap.Error(err))
	}
}
