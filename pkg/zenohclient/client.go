package zenohclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	zenoh "github.com/teslashibe/zenoh-go"

	"github.com/teslashibe/go-camera-bridge/pkg/msgs"
)

var (
	// ErrNotConnected is returned when publishing before Connect.
	ErrNotConnected = errors.New("zenohclient: not connected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("zenohclient: client closed")
)

// Client owns a Zenoh session and its publishers.
type Client struct {
	cfg    Config
	logger *slog.Logger
	topics *Topics

	mu         sync.RWMutex
	session    zenoh.Session
	closed     bool
	publishers map[string]zenoh.Publisher

	messagesSent     atomic.Int64
	bytesSent        atomic.Int64
	messagesReceived atomic.Int64
	connectAttempts  atomic.Int64
}

// New creates a new Zenoh client.
// Call Connect() to establish the session.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:        cfg,
		logger:     logger,
		topics:     topicsFromConfig(cfg),
		publishers: make(map[string]zenoh.Publisher),
	}, nil
}

// Connect opens the session. Calling it on a connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.session != nil {
		return nil
	}

	c.connectAttempts.Add(1)
	c.logger.Info("connecting to zenoh",
		"endpoint", c.cfg.Endpoint,
		"mode", c.cfg.Mode,
	)

	var zcfg zenoh.Config
	if c.cfg.Mode == "peer" {
		zcfg = zenoh.PeerConfig()
	} else {
		zcfg = zenoh.ClientConfig(c.cfg.Endpoint)
	}

	session, err := zenoh.Open(zcfg)
	if err != nil {
		return fmt.Errorf("open zenoh session: %w", err)
	}
	c.session = session

	c.logger.Info("connected to zenoh",
		"endpoint", c.cfg.Endpoint,
		"session_id", session.Info().ID,
	)
	return nil
}

// ConnectWithRetry calls Connect until it succeeds, ctx ends or
// MaxReconnectAttempts is reached.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := c.Connect(ctx)
		if err == nil || errors.Is(err, ErrClosed) || ctx.Err() != nil {
			return err
		}

		if c.cfg.MaxReconnectAttempts > 0 && attempt >= c.cfg.MaxReconnectAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		c.logger.Warn("zenoh connection failed, retrying",
			"error", err,
			"attempt", attempt,
			"retry_in", c.cfg.ReconnectInterval,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

// Topics returns the key expression helper.
func (c *Client) Topics() *Topics {
	return c.topics
}

// IsConnected reports whether a session is open.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil && !c.closed
}

// Put publishes payload on topic, creating and caching the publisher on
// first use.
func (c *Client) Put(topic string, payload []byte) error {
	pub, err := c.publisher(topic)
	if err != nil {
		return err
	}

	if err := pub.Put(payload); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	c.messagesSent.Add(1)
	c.bytesSent.Add(int64(len(payload)))
	return nil
}

func (c *Client) publisher(topic string) (zenoh.Publisher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.session == nil {
		return nil, ErrNotConnected
	}

	if pub, ok := c.publishers[topic]; ok {
		return pub, nil
	}

	pub, err := c.session.Publisher(zenoh.KeyExpr(topic))
	if err != nil {
		return nil, fmt.Errorf("create publisher for %s: %w", topic, err)
	}
	c.publishers[topic] = pub
	c.logger.Debug("publisher created", "topic", topic)
	return pub, nil
}

// Subscribe calls handler with the payload of every sample on topic.
func (c *Client) Subscribe(topic string, handler func(payload []byte)) (zenoh.Subscriber, error) {
	c.mu.RLock()
	session := c.session
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if session == nil {
		return nil, ErrNotConnected
	}

	sub, err := session.Subscribe(zenoh.KeyExpr(topic), func(sample zenoh.Sample) {
		c.messagesReceived.Add(1)
		handler(sample.Payload)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	c.logger.Debug("subscribed to topic", "topic", topic)
	return sub, nil
}

// SubscribeImages decodes every sample on the image topic. Payloads that do
// not decode are logged and dropped.
func (c *Client) SubscribeImages(handler func(*msgs.Image)) (zenoh.Subscriber, error) {
	topic := c.topics.ImageRaw()
	return c.Subscribe(topic, func(payload []byte) {
		var img msgs.Image
		if err := img.Decode(payload); err != nil {
			c.logger.Warn("dropping undecodable image", "topic", topic, "error", err)
			return
		}
		handler(&img)
	})
}

// Close closes all publishers and the session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for topic, pub := range c.publishers {
		if err := pub.Close(); err != nil {
			c.logger.Warn("error closing publisher", "topic", topic, "error", err)
		}
	}
	c.publishers = nil

	if c.session != nil {
		if err := c.session.Close(); err != nil {
			return fmt.Errorf("close session: %w", err)
		}
		c.session = nil
	}

	c.logger.Info("zenoh client closed")
	return nil
}

// Stats returns client statistics.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		Connected:        c.IsConnected(),
		MessagesSent:     c.messagesSent.Load(),
		BytesSent:        c.bytesSent.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		ConnectAttempts:  c.connectAttempts.Load(),
	}
}

// ClientStats contains client statistics.
type ClientStats struct {
	Connected        bool  `json:"connected"`
	MessagesSent     int64 `json:"messages_sent"`
	BytesSent        int64 `json:"bytes_sent"`
	MessagesReceived int64 `json:"messages_received"`
	ConnectAttempts  int64 `json:"connect_attempts"`
}
