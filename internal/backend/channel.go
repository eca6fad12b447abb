package backend

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"freeflow/internal/domain"
)

// Channel maintains the persistent push connection to the backend. Inbound
// messages are delivered to the handler in arrival order; a dropped
// connection schedules a single reconnect attempt after a fixed delay until
// Shutdown is called.
type Channel struct {
	url     string
	delay   time.Duration
	dialer  *websocket.Dialer
	handler func(domain.StatusEvent)

	mu       sync.Mutex
	state    domain.ChannelState
	conn     *websocket.Conn
	timer    *time.Timer
	shutdown bool
}

// NewChannel creates a status channel for the given websocket URL. The
// handler is invoked from the channel's read goroutine, one event at a
// time.
func NewChannel(url string, delay time.Duration, handler func(domain.StatusEvent)) *Channel {
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &Channel{
		url:     url,
		delay:   delay,
		dialer:  websocket.DefaultDialer,
		handler: handler,
		state:   domain.ChannelDisconnected,
	}
}

// Connect starts the connection attempt. It returns immediately; connection
// state is observable via State.
func (c *Channel) Connect() {
	go c.run()
}

// State returns a snapshot of the connection state.
func (c *Channel) State() domain.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Shutdown closes the connection and suppresses any further reconnect
// attempts. Safe to call more than once.
func (c *Channel) Shutdown() {
	c.mu.Lock()
	c.shutdown = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = domain.ChannelDisconnected
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Channel) run() {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.state = domain.ChannelConnecting
	c.mu.Unlock()

	conn, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		slog.Warn("[channel] connect failed", "url", c.url, "error", err)
		c.dropAndReschedule(nil)
		return
	}

	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.state = domain.ChannelConnected
	c.mu.Unlock()

	slog.Info("[channel] connected", "url", c.url)
	c.readLoop(conn)
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			quiet := c.shutdown
			c.mu.Unlock()
			if !quiet {
				slog.Warn("[channel] connection lost", "error", err)
			}
			c.dropAndReschedule(conn)
			return
		}

		var event domain.StatusEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			slog.Warn("[channel] dropping malformed message", "error", err)
			continue
		}
		if event.Type != domain.EventTypeStatus && event.Type != domain.EventTypePartialTranscript {
			slog.Warn("[channel] dropping message with unknown type", "type", event.Type)
			continue
		}

		c.handler(event)
	}
}

// dropAndReschedule marks the channel disconnected and arms the reconnect
// timer unless shutdown has been signaled.
func (c *Channel) dropAndReschedule(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn || conn == nil {
		c.conn = nil
	}
	c.state = domain.ChannelDisconnected
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, c.run)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}
