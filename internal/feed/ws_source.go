package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/observability"
)

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is extended by every received frame, pongs included.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the capacity of the subscription channel.
	Buffer int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            1024,
	}
}

// subscribeRequest is sent after every (re)connect so the server can replay
// messages newer than the last one received.
type subscribeRequest struct {
	Type    string `json:"type"`
	AfterID int64  `json:"after_id"`
}

// WSSource streams messages from a WebSocket endpoint. Each text frame carries
// one message object {"id", "date", "text"}. The connection is re-established
// with exponential backoff until the subscription context is cancelled.
type WSSource struct {
	endpoint string
	config   WSConfig
	logger   zerolog.Logger
	metrics  *observability.Metrics

	mu     sync.Mutex
	lastID int64
}

// NewWSSource creates a stream for endpoint. A nil config uses DefaultWSConfig.
func NewWSSource(endpoint string, config *WSConfig, logger zerolog.Logger, metrics *observability.Metrics) *WSSource {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	return &WSSource{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.With().Str("component", "ws_source").Logger(),
		metrics:  metrics,
	}
}

// ResumeAfter sets the id sent in the first subscribe request.
func (s *WSSource) ResumeAfter(id int64) *WSSource {
	s.mu.Lock()
	s.lastID = id
	s.mu.Unlock()
	return s
}

// Subscribe dials the endpoint and streams messages until ctx is cancelled.
// The first dial must succeed; later failures are retried.
func (s *WSSource) Subscribe(ctx context.Context) (<-chan *domain.RawMessage, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.RawMessage, s.config.Buffer)
	go s.run(ctx, conn, out)
	return out, nil
}

// dial connects and sends the subscribe request.
func (s *WSSource) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	s.mu.Lock()
	req := subscribeRequest{Type: "subscribe", AfterID: s.lastID}
	s.mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write subscribe: %w", err)
	}
	return conn, nil
}

// run owns conn until it fails, then reconnects with exponential backoff.
func (s *WSSource) run(ctx context.Context, conn *websocket.Conn, out chan<- *domain.RawMessage) {
	defer close(out)

	delay := s.config.ReconnectDelay
	for {
		received := s.readConn(ctx, conn, out)
		if ctx.Err() != nil {
			return
		}

		// Reset delay after a connection that delivered data
		if received > 0 {
			delay = s.config.ReconnectDelay
		}

		for {
			s.metrics.RecordFeedReconnect()
			s.logger.Warn().Dur("delay", delay).Msg("feed disconnected, reconnecting")

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}

			var err error
			conn, err = s.dial(ctx)
			if err == nil {
				s.logger.Info().Str("endpoint", s.endpoint).Msg("feed reconnected")
				break
			}
			s.logger.Warn().Err(err).Msg("feed reconnect failed")
		}
	}
}

// readConn reads frames until the connection fails or ctx is cancelled.
// Returns the number of messages delivered.
func (s *WSSource) readConn(ctx context.Context, conn *websocket.Conn, out chan<- *domain.RawMessage) int {
	var writeMu sync.Mutex
	done := make(chan struct{})
	defer func() {
		close(done)
		writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		conn.Close()
	}()

	// Unblock ReadMessage on cancellation
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	extend := func() { conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)) }
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	go s.pingLoop(conn, &writeMu, done)

	received := 0
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Debug().Err(err).Msg("feed read failed")
			}
			return received
		}
		extend()

		var msg domain.RawMessage
		if err := json.Unmarshal(frame, &msg); err != nil || msg.ID <= 0 {
			s.logger.Warn().Err(err).Int("bytes", len(frame)).Msg("dropping undecodable feed frame")
			continue
		}

		s.mu.Lock()
		if msg.ID > s.lastID {
			s.lastID = msg.ID
		}
		s.mu.Unlock()
		s.metrics.RecordFeedMessage()

		// Block until the consumer takes it; never drop messages
		select {
		case out <- &msg:
			received++
		case <-ctx.Done():
			return received
		}
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (s *WSSource) pingLoop(conn *websocket.Conn, writeMu *sync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				// Reader will notice the dead connection
				return
			}
		}
	}
}
