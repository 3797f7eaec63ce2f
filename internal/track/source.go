package track

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kenanunal/lander/pkg/logger"
)

// Handler receives track observations as they arrive.
type Handler func(obs Observation)

// Source subscribes to the perception bridge's track stream over a
// WebSocket connection and delivers each decoded observation to the
// registered handler. The connection is re-dialed automatically.
type Source struct {
	url            string
	reconnectDelay time.Duration
	logger         *logger.Logger

	mu      sync.Mutex
	handler Handler

	wg sync.WaitGroup
}

// NewSource creates a track source. Call Start to begin receiving
// observations.
func NewSource(url string, reconnectDelay time.Duration, log *logger.Logger) *Source {
	return &Source{
		url:            url,
		reconnectDelay: reconnectDelay,
		logger:         log.Named("track"),
	}
}

// SetHandler registers the observation handler. Must be called before Start.
func (s *Source) SetHandler(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Start runs the connect/read loop until the context is done.
func (s *Source) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Wait blocks until the read loop has exited.
func (s *Source) Wait() {
	s.wg.Wait()
}

func (s *Source) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Track stream lost", logger.Error(err),
				logger.Duration("reconnect_in", s.reconnectDelay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Source) connectAndRead(ctx context.Context) error {
	s.logger.Info("Connecting to track source", logger.String("url", s.url))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	s.logger.Info("Track source connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}

		var obs Observation
		if err := json.Unmarshal(data, &obs); err != nil {
			s.logger.Warn("Malformed track message", logger.Error(err))
			continue
		}
		if obs.Timestamp.IsZero() {
			// Some tracker builds omit the timestamp; stamp on arrival so
			// staleness checks downstream stay meaningful.
			obs.Timestamp = time.Now().UTC()
		}

		s.mu.Lock()
		handler := s.handler
		s.mu.Unlock()
		if handler != nil {
			handler(obs)
		}
	}
}
