package interaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openfreebuds/freebuds-go/pkg/spp"
)

// Client errors.
var (
	ErrRequestTimeout  = errors.New("request timed out")
	ErrClientClosed    = errors.New("correlator is closed")
	ErrTransportClosed = errors.New("transport closed while request pending")
)

// DefaultRequestTimeout bounds how long a correlated request may stay
// outstanding before failing.
const DefaultRequestTimeout = 5 * time.Second

// Sender is the transport send path the client writes encoded frames to.
type Sender interface {
	Send(data []byte) error
}

// waiter is one pending correlated request.
type waiter struct {
	resp chan *spp.Packet
}

// Client matches responses to outstanding requests by command id.
type Client struct {
	mu sync.RWMutex

	sender  Sender
	timeout time.Duration

	// Pending requests awaiting responses, FIFO per command id.
	// pendingMu also guards closed.
	pending   map[spp.Command][]*waiter
	pendingMu sync.Mutex
	closed    bool

	// Handler for inbound packets that match no pending request.
	notifyHandler func(*spp.Packet)
}

// NewClient creates a correlator writing requests through sender.
func NewClient(sender Sender) *Client {
	return &Client{
		sender:  sender,
		timeout: DefaultRequestTimeout,
		pending: make(map[spp.Command][]*waiter),
	}
}

// SetTimeout sets the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timeout > 0 {
		c.timeout = timeout
	}
}

// SetNotificationHandler sets the handler for unsolicited inbound packets.
func (c *Client) SetNotificationHandler(handler func(*spp.Packet)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyHandler = handler
}

// SendPackage encodes and sends a request, then suspends the caller until
// a response with the same command id arrives, the transport closes, the
// timeout elapses, or ctx is cancelled. Each concurrent caller resumes
// only on its own match.
func (c *Client) SendPackage(ctx context.Context, req *spp.Packet) (*spp.Packet, error) {
	c.mu.RLock()
	timeout := c.timeout
	c.mu.RUnlock()

	data, err := spp.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	w := &waiter{resp: make(chan *spp.Packet, 1)}

	c.pendingMu.Lock()
	if c.closed {
		c.pendingMu.Unlock()
		return nil, ErrClientClosed
	}
	c.pending[req.Command] = append(c.pending[req.Command], w)
	c.pendingMu.Unlock()

	if err := c.sender.Send(data); err != nil {
		c.remove(req.Command, w)
		return nil, fmt.Errorf("send request %s: %w", req.Command, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		c.remove(req.Command, w)
		return nil, ctx.Err()
	case <-timer.C:
		c.remove(req.Command, w)
		return nil, fmt.Errorf("%w: %s after %s", ErrRequestTimeout, req.Command, timeout)
	case resp, ok := <-w.resp:
		if !ok {
			return nil, ErrTransportClosed
		}
		return resp, nil
	}
}

// HandleInbound routes a decoded inbound packet. If a request is pending
// for the packet's command id, the oldest such waiter resumes; otherwise
// the packet is forwarded to the notification handler. It reports whether
// the packet resolved a pending request.
func (c *Client) HandleInbound(pkt *spp.Packet) bool {
	c.pendingMu.Lock()
	waiters := c.pending[pkt.Command]
	if len(waiters) > 0 {
		w := waiters[0]
		if len(waiters) == 1 {
			delete(c.pending, pkt.Command)
		} else {
			c.pending[pkt.Command] = waiters[1:]
		}
		c.pendingMu.Unlock()

		w.resp <- pkt
		return true
	}
	c.pendingMu.Unlock()

	c.mu.RLock()
	handler := c.notifyHandler
	c.mu.RUnlock()
	if handler != nil {
		handler(pkt)
	}
	return false
}

// Pending returns the number of outstanding correlated requests.
func (c *Client) Pending() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	n := 0
	for _, waiters := range c.pending {
		n += len(waiters)
	}
	return n
}

// Close fails every pending request with ErrTransportClosed and rejects
// further SendPackage calls. Close is idempotent.
func (c *Client) Close() error {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for _, waiters := range c.pending {
		for _, w := range waiters {
			close(w.resp)
		}
	}
	c.pending = make(map[spp.Command][]*waiter)
	return nil
}

// remove drops a waiter that gave up (timeout, cancellation, send error).
func (c *Client) remove(cmd spp.Command, target *waiter) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	waiters := c.pending[cmd]
	for i, w := range waiters {
		if w == target {
			c.pending[cmd] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(c.pending[cmd]) == 0 {
		delete(c.pending, cmd)
	}
}
