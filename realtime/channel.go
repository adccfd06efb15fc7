// Package realtime keeps the view-model fresh without manual refresh:
// a broker-backed push channel when it can connect, a fixed-interval
// polling fallback when it cannot. Exactly one of the two is active at
// any moment for a session; never both, never neither.
package realtime

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Conn is one live broker connection.
type Conn interface {
	// Consume delivers raw message bodies for the given actor topic.
	// The channel closes when the connection drops.
	Consume(topic string) (<-chan []byte, error)
	Close() error
}

// Dialer opens broker connections; swapped for a fake in tests.
type Dialer interface {
	Dial() (Conn, error)
}

type Channel struct {
	dialer      Dialer
	topic       string
	handler     Handler
	poller      *Poller
	baseDelay   time.Duration
	maxAttempts int
	log         zerolog.Logger

	mu     sync.Mutex
	conn   Conn
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewChannel(d Dialer, topic string, h Handler, poller *Poller, baseDelay time.Duration, maxAttempts int, log zerolog.Logger) *Channel {
	return &Channel{
		dialer:      d,
		topic:       topic,
		handler:     h,
		poller:      poller,
		baseDelay:   baseDelay,
		maxAttempts: maxAttempts,
		log:         log.With().Str("component", "realtime").Str("topic", topic).Logger(),
	}
}

// Connect starts the channel's connection loop. Polling is active from
// the first instant so there is no coverage gap while dialing.
func (c *Channel) Connect() {
	c.mu.Lock()
	if c.done != nil || c.closed {
		c.mu.Unlock()
		return
	}
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.poller.Start()
	c.wg.Add(1)
	go c.run()
}

func (c *Channel) run() {
	defer c.wg.Done()
	attempts := 0
	for {
		conn, err := c.dialer.Dial()
		if err == nil {
			var msgs <-chan []byte
			if msgs, err = conn.Consume(c.topic); err != nil {
				conn.Close()
			} else {
				c.mu.Lock()
				if c.closed {
					c.mu.Unlock()
					conn.Close()
					return
				}
				c.conn = conn
				c.mu.Unlock()

				c.log.Info().Msg("push channel connected")
				attempts = 0
				c.poller.Stop()
				c.consume(msgs)

				// connection dropped (or Close was called)
				c.mu.Lock()
				c.conn = nil
				closed := c.closed
				c.mu.Unlock()
				if closed {
					return
				}
				c.log.Warn().Msg("push channel disconnected")
				c.poller.Start()
			}
		}

		attempts++
		if attempts >= c.maxAttempts {
			// Permanent fallback: polling stays on for the rest of
			// the session, no further push attempts.
			c.log.Error().Int("attempts", attempts).Msg("max reconnect attempts reached, staying in polling mode")
			return
		}
		delay := time.Duration(float64(c.baseDelay) * math.Pow(1.5, float64(attempts-1)))
		c.log.Info().Int("attempt", attempts).Dur("delay", delay).Msg("reconnecting")
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}
	}
}

func (c *Channel) consume(msgs <-chan []byte) {
	for {
		select {
		case <-c.done:
			return
		case body, ok := <-msgs:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal(body, &msg); err != nil {
				c.log.Error().Err(err).Msg("bad push message, ignoring")
				continue
			}
			c.handler(msg)
		}
	}
}

// Close tears the channel down: the broker connection, the reconnect
// loop and the poll timer all stop. Safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.done != nil {
		close(c.done)
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	c.poller.Stop()
	c.log.Info().Msg("realtime channel closed")
}

// Connected reports whether a live push connection is up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}
