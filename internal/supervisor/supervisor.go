package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rgordeev/uplink/internal/identity"
)

// Supervisor owns the full lifecycle of one gateway connection:
// connect, authenticate, heartbeat-monitor, teardown, backoff,
// reconnect, forever. At most one session is active at a time; a new
// one is never created before the prior one's teardown completes.
type Supervisor struct {
	cfg    Config
	id     *identity.Identity
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	client Client
	ticker *time.Ticker

	// Injection points for deterministic tests.
	now       func() time.Time
	newPingID func() string
	newClient func() Client
}

// New creates a ConnectionSupervisor. The browser/instance id is
// generated here and reused across every reconnect.
func New(cfg Config, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	s := &Supervisor{
		cfg:       cfg,
		id:        identity.New(cfg.UserID, cfg.UserAgent, cfg.Version),
		logger:    logger,
		state:     StateDisconnected,
		now:       time.Now,
		newPingID: uuid.NewString,
	}
	s.newClient = func() Client {
		return NewClient(cfg, logger)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run loops the connect/auth/monitor/teardown/backoff cycle until ctx
// is cancelled. Every failure is absorbed, logged and retried after a
// fixed delay; Run never surfaces an error to the caller.
func (s *Supervisor) Run(ctx context.Context) {
	s.logger.Info("supervisor starting",
		"url", s.cfg.URL,
		"browser_id", s.id.BrowserID,
		"user_id", s.cfg.UserID,
	)

	for {
		err := s.runCycle(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Error("connection cycle ended", "error", err)
		}

		s.cleanup()
		s.setState(StateDisconnected)

		if ctx.Err() != nil {
			s.logger.Info("supervisor stopped")
			return
		}

		s.logger.Info("reconnecting after delay", "delay", s.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			s.logger.Info("supervisor stopped")
			return
		case <-time.After(s.cfg.RetryDelay):
		}
	}
}

// runCycle performs one full connection lifecycle: connect,
// authenticate, then monitor until the transport dies.
func (s *Supervisor) runCycle(ctx context.Context) error {
	s.setState(StateConnecting)

	c := s.newClient()
	if err := c.Connect(ctx); err != nil {
		// Abandon whatever half-open state the dial left behind.
		c.Terminate()
		return err
	}

	s.mu.Lock()
	s.client = c
	s.mu.Unlock()

	s.setState(StateAuthenticating)
	if err := s.authenticate(ctx, c); err != nil {
		return err
	}

	s.setState(StateConnected)
	s.logger.Info("connected and authenticated", "url", s.cfg.URL)

	return s.monitor(ctx, c)
}

// authenticate waits for the server's challenge (one JSON frame
// carrying a correlation id) and answers it with the auth payload.
// The connect timeout bounds the wait.
func (s *Supervisor) authenticate(ctx context.Context, c Client) error {
	timer := time.NewTimer(s.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-c.Errors():
		return err
	case <-timer.C:
		return fmt.Errorf("%w: no auth challenge within %s", ErrTimeout, s.cfg.ConnectTimeout)
	case msg, ok := <-c.Messages():
		if !ok {
			return ErrNotConnected
		}

		var challenge AuthChallenge
		if err := json.Unmarshal(msg.Data, &challenge); err != nil {
			return fmt.Errorf("%w: malformed challenge: %v", ErrAuthFailed, err)
		}
		if challenge.ID == "" {
			return fmt.Errorf("%w: challenge has no id", ErrAuthFailed)
		}

		return s.sendAuthPayload(c, challenge.ID)
	}
}

// sendAuthPayload builds and transmits the auth response for the given
// correlation id.
func (s *Supervisor) sendAuthPayload(c Client, id string) error {
	resp := AuthResponse{
		ID:           id,
		OriginAction: ActionAuth,
		Result: AuthResult{
			BrowserID:  s.id.BrowserID,
			UserID:     s.id.UserID,
			UserAgent:  s.id.UserAgent,
			Timestamp:  s.now().Unix(),
			DeviceType: DeviceTypeDesktop,
			Version:    s.id.Version,
		},
	}

	if err := s.sendMessage(c, resp); err != nil {
		return fmt.Errorf("%w: send auth payload: %v", ErrAuthFailed, err)
	}

	s.logger.Info("auth payload sent", "id", id)
	return nil
}

// monitor runs the Connected state: heartbeat ticks interleaved with
// inbound frames, until the transport errors or goes stale.
func (s *Supervisor) monitor(ctx context.Context, c Client) error {
	ticker := s.startHeartbeat()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-c.Errors():
			return err
		case msg, ok := <-c.Messages():
			if !ok {
				return ErrNotConnected
			}
			s.handleMessage(msg)
		case <-ticker.C:
			if err := s.heartbeatTick(c); err != nil {
				return err
			}
		}
	}
}

// startHeartbeat (re-)arms the heartbeat ticker. Any prior ticker is
// cancelled first; only one may be active per session.
func (s *Supervisor) startHeartbeat() *time.Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.ticker = time.NewTicker(s.cfg.HeartbeatInterval)
	return s.ticker
}

// heartbeatTick runs one tick of the liveness protocol. If the
// connection has been silent past the staleness cutoff it is abandoned
// without sending; otherwise a PING and a PONG acknowledgment go out
// and the liveness timestamp advances.
func (s *Supervisor) heartbeatTick(c Client) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	elapsed := s.now().Sub(c.LastLive())
	if elapsed > s.cfg.StaleAfter {
		s.logger.Warn("no liveness signal, terminating transport",
			"elapsed", elapsed,
			"stale_after", s.cfg.StaleAfter,
		)
		c.Terminate()
		return ErrStaleConnection
	}

	ping := Ping{ID: s.newPingID(), Action: ActionPing}
	if err := s.sendMessage(c, ping); err != nil {
		s.logger.Error("heartbeat ping failed", "error", err)
		c.Terminate()
		return err
	}

	// The server expects a pong acknowledgment alongside every ping,
	// keyed by a fixed sentinel id. Sent unconditionally each tick.
	ack := PongAck{ID: PongAckID, OriginAction: ActionPong}
	if err := s.sendMessage(c, ack); err != nil {
		s.logger.Error("heartbeat pong ack failed", "error", err)
		c.Terminate()
		return err
	}

	c.MarkLive(s.now())
	return nil
}

// handleMessage processes inbound frames after authentication. The
// supervisor carries no business protocol; frames are logged and
// dropped. Liveness bookkeeping happens at the transport layer.
func (s *Supervisor) handleMessage(msg Message) {
	s.logger.Debug("inbound frame ignored",
		"bytes", len(msg.Data),
		"received_at", msg.ReceivedAt,
	)
}

// sendMessage serializes payload to JSON text and writes it to the
// open transport. No retries; callers decide.
func (s *Supervisor) sendMessage(c Client, payload any) error {
	if c == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.Send(data)
}

// cleanup tears down the current session: stops the heartbeat ticker,
// gracefully closes the transport if one exists and clears both
// handles. Idempotent and safe from any state.
func (s *Supervisor) cleanup() {
	s.mu.Lock()
	ticker := s.ticker
	c := s.client
	s.ticker = nil
	s.client = nil
	s.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
	}
	if c != nil {
		c.Close()
	}
}
