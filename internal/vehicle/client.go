package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kenanunal/lander/pkg/logger"
)

// Bridge message types
const (
	msgTypeState    = "state"
	msgTypeSetpoint = "setpoint"
	msgTypeSetMode  = "set_mode"
)

// bridgeMessage is the JSON envelope exchanged with the MAVLink bridge.
type bridgeMessage struct {
	Type     string    `json:"type"`
	Mode     string    `json:"mode,omitempty"`
	Armed    *bool     `json:"armed,omitempty"`
	Setpoint *Setpoint `json:"setpoint,omitempty"`
}

// Client talks to the MAVLink bridge over a WebSocket connection: it
// receives FCU state reports (~1 Hz) and sends setpoint and mode-change
// commands. The connection is re-dialed automatically after failures.
//
// Client implements Interface.
type Client struct {
	url            string
	reconnectDelay time.Duration
	commandTimeout time.Duration
	logger         *logger.Logger

	mu          sync.Mutex
	conn        *websocket.Conn
	mode        string
	modeHandler ModeHandler

	wg sync.WaitGroup
}

// NewClient creates a vehicle bridge client. Call Start to begin receiving
// state reports.
func NewClient(url string, reconnectDelay, commandTimeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		url:            url,
		reconnectDelay: reconnectDelay,
		commandTimeout: commandTimeout,
		logger:         log.Named("vehicle"),
	}
}

// SetModeHandler registers the handler invoked for every FCU mode report.
// Must be called before Start.
func (c *Client) SetModeHandler(handler ModeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modeHandler = handler
}

// Start runs the connect/read loop until the context is done.
func (c *Client) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

// Wait blocks until the read loop has exited.
func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("Bridge connection lost", logger.Error(err),
				logger.Duration("reconnect_in", c.reconnectDelay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context) error {
	c.logger.Info("Connecting to vehicle bridge", logger.String("url", c.url))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	// Drop the connection promptly on shutdown so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	c.logger.Info("Vehicle bridge connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}

		var msg bridgeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Malformed bridge message", logger.Error(err))
			continue
		}

		if msg.Type == msgTypeState && msg.Mode != "" {
			c.handleModeReport(msg.Mode)
		}
	}
}

func (c *Client) handleModeReport(mode string) {
	c.mu.Lock()
	changed := mode != c.mode
	c.mode = mode
	handler := c.modeHandler
	c.mu.Unlock()

	if changed {
		c.logger.Info("FCU mode reported", logger.String("mode", mode))
	}
	if handler != nil {
		handler(mode)
	}
}

// Mode returns the most recently reported FCU flight mode.
func (c *Client) Mode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetVelocitySetpoint commands a velocity setpoint through the bridge.
func (c *Client) SetVelocitySetpoint(sp Setpoint) error {
	return c.send(bridgeMessage{Type: msgTypeSetpoint, Setpoint: &sp})
}

// SetMode requests an FCU mode change through the bridge.
func (c *Client) SetMode(name string) error {
	return c.send(bridgeMessage{Type: msgTypeSetMode, Mode: name})
}

func (c *Client) send(msg bridgeMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("vehicle bridge not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.commandTimeout))
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}
