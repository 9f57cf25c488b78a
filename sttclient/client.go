// Package sttclient implements C4, the Streaming Client: one actor per
// provider connection that dials a stt.RealtimeSttAdapter's WS endpoint,
// drains an outgoing audio channel into wire frames, and fans inbound
// provider messages out as stt.StreamResponse values.
package sttclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/openscribe/transcribe-core/internal/obslog"
	"github.com/openscribe/transcribe-core/stt"
)

// State is the client's connection lifecycle, named directly in spec.md §4.4.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDraining
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDraining:
		return "draining"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config bundles what Client needs to dial and authenticate against one
// provider.
type Config struct {
	APIBase string
	APIKey  string
	Params  stt.ListenParams
	// AudioBufferSize bounds the outgoing audio channel, matching the
	// teacher's ManagedStream.events bound (1024) but sized down since audio
	// chunks are bigger and more frequent than UI events.
	AudioBufferSize int
}

// Client is C4's actor: a single long-lived WS connection to one STT
// provider. Its shape — a buffered outgoing channel drained by a goroutine,
// a done/closeOnce pair, lifecycle state guarded by a mutex — is grounded
// on the teacher's pkg/orchestrator/managed_stream.go ManagedStream actor
// and pkg/providers/tts/lokutor.go's coder/websocket dial pattern,
// generalized from one hardcoded provider to any stt.RealtimeSttAdapter.
type Client struct {
	adapter stt.RealtimeSttAdapter
	cfg     Config
	logger  obslog.Logger

	mu    sync.Mutex
	state State
	conn  *websocket.Conn

	audioIn   chan []byte
	responses chan stt.StreamResponse
	errs      chan error

	connectedAt time.Time
	drainDone   chan struct{}
	drainOnce   sync.Once

	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
	finalizeOnce sync.Once
	finalizeErr  error
	wg           sync.WaitGroup
}

// New builds a Client bound to one adapter instance. The connection is not
// dialed until Connect is called.
func New(adapter stt.RealtimeSttAdapter, cfg Config, logger obslog.Logger) *Client {
	if logger == nil {
		logger = obslog.NoOpLogger{}
	}
	if cfg.AudioBufferSize <= 0 {
		cfg.AudioBufferSize = 256
	}
	return &Client{
		adapter:   adapter,
		cfg:       cfg,
		logger:    logger.With("provider", string(adapter.Name())),
		state:     StateDisconnected,
		audioIn:   make(chan []byte, cfg.AudioBufferSize),
		responses: make(chan stt.StreamResponse, 64),
		errs:      make(chan error, 4),
		drainDone: make(chan struct{}),
	}
}

// State reports the client's current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Responses returns the channel of parsed provider messages. Closed by
// Close; Finalize moves the client to StateClosed without closing it.
func (c *Client) Responses() <-chan stt.StreamResponse { return c.responses }

// Errs surfaces connection-level errors (dial failures, read errors) for the
// caller (typically the Router's fallback-chain retry loop) to act on.
func (c *Client) Errs() <-chan error { return c.errs }

// Connect dials the provider's WS endpoint and starts the read/write
// goroutines. Returns once the handshake completes.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return fmt.Errorf("sttclient: Connect called in state %s", c.state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	u, err := c.adapter.BuildURL(c.cfg.APIBase, c.cfg.Params)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("building %s url: %w", c.adapter.Name(), err)
	}

	opts := &websocket.DialOptions{}
	if name, value := c.adapter.AuthHeader(c.cfg.APIKey); name != "" {
		opts.HTTPHeader = map[string][]string{name: {value}}
	}

	conn, _, err := websocket.Dial(ctx, u.String(), opts)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("dialing %s: %w", c.adapter.Name(), err)
	}
	conn.SetReadLimit(8 * 1024 * 1024)

	clientCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.conn = conn
	c.ctx = clientCtx
	c.cancel = cancel
	c.state = StateConnected
	c.connectedAt = time.Now()
	c.mu.Unlock()

	c.wg.Add(2)
	go c.writeLoop()
	go c.readLoop()

	c.logger.Info("stt_client_connected", "url", u.Redacted())
	return nil
}

// Write enqueues a raw PCM chunk for delivery to the provider. Non-blocking:
// a full buffer drops the chunk rather than stalling the audio pipeline,
// matching the teacher's sttChan <- chunk / default pattern in Write.
func (c *Client) Write(chunk []byte) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != StateConnected {
		return fmt.Errorf("sttclient: Write called in state %s", state)
	}
	select {
	case c.audioIn <- chunk:
		return nil
	default:
		c.logger.Warn("stt_client_audio_dropped", "reason", "buffer_full")
		return nil
	}
}

// Finalize drives the Ready --finalize()--> Draining --TerminalResponse OR
// finalize_timeout--> Closed transition (spec.md §4.4). It sends the
// adapter's finalize message (which also stops Write from accepting more
// audio, since Write only enqueues in StateConnected) and then blocks until
// either the provider closes the connection — readLoop's exit is the
// closest observable signal this simplified wire layer has to "the
// adapter's terminal frame was observed" — or timeout elapses first, in
// which case a synthetic Terminal StreamResponse is emitted locally so
// downstream consumers still converge (spec.md §7, scenario S6). Idempotent:
// a second call returns the first call's result without re-sending.
func (c *Client) Finalize(timeout time.Duration) error {
	c.finalizeOnce.Do(func() {
		c.finalizeErr = c.doFinalize(timeout)
	})
	return c.finalizeErr
}

func (c *Client) doFinalize(timeout time.Duration) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	if state == StateConnected {
		c.state = StateDraining
	}
	c.mu.Unlock()

	if conn == nil || state != StateConnected {
		return nil
	}

	msg, isBinary := c.adapter.FinalizeMessage()
	mt := websocket.MessageText
	if isBinary {
		mt = websocket.MessageBinary
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := conn.Write(writeCtx, mt, msg); err != nil {
		c.setState(StateClosed)
		return fmt.Errorf("sending finalize message: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.drainDone:
		c.logger.Info("stt_client_terminal_observed")
		c.emitTerminal()
	case <-timer.C:
		c.logger.Warn("stt_client_finalize_timeout", "timeout", timeout)
		c.emitTerminal()
	}

	c.setState(StateClosed)
	return nil
}

func (c *Client) emitTerminal() {
	resp := stt.StreamResponse{Terminal: true}
	c.mu.Lock()
	if !c.connectedAt.IsZero() {
		resp.DurationSec = time.Since(c.connectedAt).Seconds()
	}
	c.mu.Unlock()
	select {
	case c.responses <- resp:
	default:
		c.logger.Warn("stt_client_terminal_dropped", "reason", "buffer_full")
	}
}

// Close tears down the connection and all goroutines. Idempotent.
func (c *Client) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		cancel := c.cancel
		c.state = StateClosed
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if conn != nil {
			closeErr = conn.Close(websocket.StatusNormalClosure, "")
		}
		c.wg.Wait()
		close(c.responses)
	})
	return closeErr
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case chunk, ok := <-c.audioIn:
			if !ok {
				return
			}
			payload, isBinary, err := c.adapter.EncodeFrame(chunk)
			if err != nil {
				c.reportErr(fmt.Errorf("encoding frame: %w", err))
				continue
			}
			mt := websocket.MessageText
			if isBinary {
				mt = websocket.MessageBinary
			}
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				return
			}
			if err := conn.Write(c.ctx, mt, payload); err != nil {
				c.reportErr(fmt.Errorf("writing frame: %w", err))
				return
			}
		}
	}
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer c.signalDrained()
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, payload, err := conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.reportErr(fmt.Errorf("reading message: %w", err))
			c.setState(StateDisconnected)
			return
		}

		responses, err := c.adapter.ParseMessage(payload)
		if err != nil {
			c.logger.Warn("stt_client_parse_error", "error", err.Error())
			continue
		}
		for _, r := range responses {
			select {
			case c.responses <- r:
			case <-c.ctx.Done():
				return
			}
		}
	}
}

func (c *Client) signalDrained() {
	c.drainOnce.Do(func() { close(c.drainDone) })
}

func (c *Client) reportErr(err error) {
	c.logger.Error("stt_client_error", "error", err.Error())
	select {
	case c.errs <- err:
	default:
	}
}
