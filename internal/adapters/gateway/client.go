package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"tether/internal/logging"
	"tether/internal/ports"
)

const (
	frameMessage = "message"
	frameSend    = "send"
	frameFetch   = "fetch"
	frameContext = "context"
)

// frame is the newline-delimited JSON envelope spoken on the gateway
// link, in both directions.
type frame struct {
	Type     string         `json:"type"`
	ThreadID string         `json:"thread_id,omitempty"`
	Sender   string         `json:"sender,omitempty"`
	Text     string         `json:"text,omitempty"`
	Context  map[string]any `json:"context,omitempty"`
}

// Client is a TCP gateway transport. One connection at a time; every
// Connect replaces the previous link and restarts the read loop.
type Client struct {
	addr        string
	dialTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	enc  *json.Encoder

	fetchMu    sync.Mutex
	fetchReply chan map[string]any

	inbound chan ports.InboundMessage
	faults  chan error
}

// Compile-time interface verification
var _ ports.Transport = (*Client)(nil)

// NewClient creates a gateway client for addr (host:port).
func NewClient(addr string) *Client {
	return &Client{
		addr:        addr,
		dialTimeout: 10 * time.Second,
		inbound:     make(chan ports.InboundMessage, 16),
		faults:      make(chan error, 4),
	}
}

// Connect dials the gateway, replacing any previous connection.
func (c *Client) Connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return &ports.TransportError{Op: "connect", Err: err}
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.enc = json.NewEncoder(conn)
	c.mu.Unlock()

	logging.Logger.Info("Gateway connected", "addr", c.addr)
	go c.readLoop(conn)
	return nil
}

// Send writes one message frame. A returned error means the link is
// down; the caller decides whether to buffer and reconnect.
func (c *Client) Send(ctx context.Context, threadID, text string) error {
	err := c.write(frame{Type: frameSend, ThreadID: threadID, Text: text})
	if err != nil {
		return &ports.TransportError{Op: "send", Err: err}
	}
	return nil
}

// Fetch asks the gateway for its last-known context for the thread and
// waits for the reply. Callers issue fetches one at a time.
func (c *Client) Fetch(ctx context.Context, threadID string) (map[string]any, error) {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	reply := make(chan map[string]any, 1)
	c.mu.Lock()
	c.fetchReply = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.fetchReply = nil
		c.mu.Unlock()
	}()

	if err := c.write(frame{Type: frameFetch, ThreadID: threadID}); err != nil {
		return nil, &ports.TransportError{Op: "fetch", Err: err}
	}

	// The reply wait is bounded so a link that dies between the fetch
	// write and the context frame cannot wedge the caller on a
	// long-lived context.
	select {
	case remote := <-reply:
		return remote, nil
	case <-time.After(c.dialTimeout):
		return nil, &ports.TransportError{Op: "fetch", Err: fmt.Errorf("no context reply within %s", c.dialTimeout)}
	case <-ctx.Done():
		return nil, &ports.TransportError{Op: "fetch", Err: ctx.Err()}
	}
}

func (c *Client) Inbound() <-chan ports.InboundMessage {
	return c.inbound
}

func (c *Client) Faults() <-chan error {
	return c.faults
}

// Close tears down the current connection. The inbound and fault
// channels stay open for reuse on the next Connect.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.enc = nil
	return err
}

func (c *Client) write(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.enc == nil {
		return fmt.Errorf("not connected")
	}
	if err := c.enc.Encode(f); err != nil {
		c.conn.Close()
		c.conn = nil
		c.enc = nil
		return err
	}
	return nil
}

// readLoop decodes frames until the connection dies, then reports one
// fault. A stale loop from a replaced connection exits silently.
func (c *Client) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			logging.Logger.Debug("Skipping malformed gateway frame", "error", err)
			continue
		}

		switch f.Type {
		case frameMessage:
			c.inbound <- ports.InboundMessage{
				ThreadID: f.ThreadID,
				Sender:   f.Sender,
				Text:     f.Text,
			}
		case frameContext:
			c.mu.Lock()
			reply := c.fetchReply
			c.mu.Unlock()
			if reply != nil {
				select {
				case reply <- f.Context:
				default:
				}
			}
		default:
			logging.Logger.Debug("Ignoring unknown gateway frame", "type", f.Type)
		}
	}

	c.mu.Lock()
	stale := c.conn != conn
	c.mu.Unlock()
	if stale {
		return
	}

	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("gateway closed connection")
	}
	logging.Logger.Warn("Gateway link lost", "error", err)

	select {
	case c.faults <- &ports.TransportError{Op: "read", Err: err}:
	default:
	}
}
