package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"feedsync/internal/constants"
	"feedsync/internal/errors"
	"feedsync/internal/metrics"
	"feedsync/internal/models"
	"feedsync/internal/retry"
)

// DialFunc opens a websocket connection. Injectable so tests can point the
// manager at an httptest server or a stub.
type DialFunc func(ctx context.Context, url string, header http.Header) (*websocket.Conn, *http.Response, error)

// wireFrame is the JSON framing shared with the server's event channel.
// Server-to-client frames carry the payload in Data; client-to-server
// frames carry only the room.
type wireFrame struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ChannelManager owns the single persistent connection to the server's
// push channel and the room membership on top of it. It is the sole writer
// of connection and room state; everything it hears from the server is
// delivered through the Events mailbox.
type ChannelManager struct {
	cfg    models.ChannelConfig
	dial   DialFunc
	logger *logrus.Logger

	mu          sync.Mutex
	credential  string
	conn        *websocket.Conn
	activeRoom  *string
	pendingJoin *string
	joinRetried map[string]bool
	degraded    bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	writeMu sync.Mutex

	events chan models.Event
}

// NewChannelManager creates a channel manager. The connection is not opened
// until Connect is called with a credential.
func NewChannelManager(cfg models.ChannelConfig, logger *logrus.Logger) *ChannelManager {
	return NewChannelManagerWithDialer(cfg, defaultDial, logger)
}

// NewChannelManagerWithDialer creates a channel manager with a custom dial
// function.
func NewChannelManagerWithDialer(cfg models.ChannelConfig, dial DialFunc, logger *logrus.Logger) *ChannelManager {
	if logger == nil {
		logger = logrus.New()
	}
	mailbox := cfg.MailboxSize
	if mailbox <= 0 {
		mailbox = constants.DefaultMailboxSize
	}
	return &ChannelManager{
		cfg:         cfg,
		dial:        dial,
		logger:      logger,
		joinRetried: make(map[string]bool),
		events:      make(chan models.Event, mailbox),
	}
}

func defaultDial(ctx context.Context, url string, header http.Header) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: constants.DefaultHandshakeTimeoutSec * time.Second,
	}
	return dialer.DialContext(ctx, url, header)
}

// Events returns the mailbox of inbound channel events. The sync engine is
// the intended sole consumer.
func (cm *ChannelManager) Events() <-chan models.Event {
	return cm.events
}

// Connect establishes (or re-establishes) the channel session for a
// credential. An empty credential is not an error; it tears down any live
// connection and leaves the manager in unauthenticated idle, waiting for a
// later Connect. Repeated calls with an unchanged credential are no-ops; a
// changed credential forces a full teardown and reconnect, not just
// re-authentication of the existing socket.
func (cm *ChannelManager) Connect(ctx context.Context, credential string) {
	cm.mu.Lock()
	if credential == cm.credential && (cm.cancel != nil || credential == "") {
		cm.mu.Unlock()
		return
	}
	cancel := cm.cancel
	cm.cancel = nil
	cm.mu.Unlock()

	if cancel != nil {
		cancel()
		cm.wg.Wait()
	}

	cm.mu.Lock()
	cm.credential = credential
	cm.degraded = false
	if credential == "" {
		cm.mu.Unlock()
		cm.logger.Info("No credential available, channel idle")
		return
	}

	sessionCtx, sessionCancel := context.WithCancel(ctx)
	cm.cancel = sessionCancel
	cm.wg.Add(1)
	cm.mu.Unlock()

	go cm.run(sessionCtx, credential)
}

// Disconnect tears down the channel session and forgets the credential.
func (cm *ChannelManager) Disconnect() {
	cm.mu.Lock()
	cancel := cm.cancel
	cm.cancel = nil
	cm.credential = ""
	cm.mu.Unlock()

	if cancel != nil {
		cancel()
		cm.wg.Wait()
	}
}

// Join subscribes to a tenant scope's room. Membership is serialized: the
// previous room is left before the new one is joined. A join issued while
// disconnected is queued and replayed when the connection comes up, never
// dropped.
func (cm *ChannelManager) Join(tenantScope string) error {
	cm.mu.Lock()
	if cm.conn == nil {
		scope := tenantScope
		cm.pendingJoin = &scope
		cm.mu.Unlock()
		cm.logger.WithField("room", tenantScope).Info("Channel not connected, join queued")
		return nil
	}
	previous := cm.activeRoom
	scope := tenantScope
	cm.activeRoom = &scope
	delete(cm.joinRetried, tenantScope)
	cm.mu.Unlock()

	if previous != nil && *previous != tenantScope {
		if err := cm.sendLeave(*previous); err != nil {
			cm.logger.WithError(err).WithField("room", *previous).Warn("Failed to leave previous room")
		}
	}
	return cm.sendJoin(tenantScope)
}

// Leave unsubscribes from a tenant scope's room.
func (cm *ChannelManager) Leave(tenantScope string) error {
	cm.mu.Lock()
	if cm.activeRoom != nil && *cm.activeRoom == tenantScope {
		cm.activeRoom = nil
	}
	if cm.pendingJoin != nil && *cm.pendingJoin == tenantScope {
		cm.pendingJoin = nil
	}
	connected := cm.conn != nil
	cm.mu.Unlock()

	if !connected {
		return nil
	}
	return cm.sendLeave(tenantScope)
}

// IsConnected reports whether the socket is currently up.
func (cm *ChannelManager) IsConnected() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.conn != nil
}

// IsDegraded reports whether reconnection attempts have been exhausted.
// Callers are expected to fall back to triggered refreshes.
func (cm *ChannelManager) IsDegraded() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.degraded
}

// ActiveRoom returns the currently joined scope, if any.
func (cm *ChannelManager) ActiveRoom() (string, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.activeRoom == nil {
		return "", false
	}
	return *cm.activeRoom, true
}

// run is the connection session loop: dial with bounded backoff, pump the
// socket until it drops, reconnect. Exhausted attempts flip the manager
// into degraded state instead of crashing.
func (cm *ChannelManager) run(ctx context.Context, credential string) {
	defer cm.wg.Done()

	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cm.cfg.ReconnectInitialMs) * time.Millisecond,
		MaxDelay:     time.Duration(cm.cfg.ReconnectMaxMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cm.cfg.MaxAttempts,
		Jitter:       true,
	})

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, resp, err := cm.dial(ctx, cm.cfg.URL, authHeader(credential))
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			attempt++
			if attempt >= backoff.MaxAttempts() {
				cm.mu.Lock()
				cm.degraded = true
				cm.mu.Unlock()
				cm.logger.WithError(err).Error("Channel reconnect attempts exhausted, entering degraded state")
				metrics.IncrementCounter("channel_degraded", nil, "Channel sessions that exhausted reconnect attempts")
				cm.deliver(models.Event{Kind: models.EventDegraded, Err: err.Error()})
				return
			}
			cm.logger.WithError(err).WithField("attempt", attempt).Warn("Channel dial failed, backing off")
			if werr := backoff.Wait(ctx, attempt); werr != nil {
				return
			}
			continue
		}
		attempt = 0
		metrics.IncrementCounter("channel_connected", nil, "Successful channel connections")

		rejoin := cm.attach(conn)
		cm.deliver(models.Event{Kind: models.EventConnected})

		if rejoin != nil {
			if err := cm.Join(*rejoin); err != nil {
				cm.logger.WithError(err).WithField("room", *rejoin).Warn("Failed to re-join room after connect")
			}
		}

		readErr := cm.pump(ctx, conn)
		cm.detach(conn)
		cm.deliver(models.Event{Kind: models.EventDisconnected})

		if ctx.Err() != nil {
			return
		}
		cm.logger.WithError(readErr).Info("Channel connection lost, reconnecting")
	}
}

// attach installs a live connection and returns the room to (re)join:
// a queued join wins over the previous session's active room.
func (cm *ChannelManager) attach(conn *websocket.Conn) *string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.conn = conn
	cm.degraded = false
	rejoin := cm.pendingJoin
	if rejoin == nil {
		rejoin = cm.activeRoom
	}
	cm.pendingJoin = nil
	cm.activeRoom = nil
	return rejoin
}

func (cm *ChannelManager) detach(conn *websocket.Conn) {
	conn.Close()
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.conn == conn {
		cm.conn = nil
	}
}

// pump reads frames until the connection drops, pinging on the side to keep
// intermediaries from reaping an idle socket.
func (cm *ChannelManager) pump(ctx context.Context, conn *websocket.Conn) error {
	readTimeout := constants.DefaultReadTimeoutSec * time.Second
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	pingInterval := time.Duration(cm.cfg.PingIntervalSec) * time.Second
	if pingInterval <= 0 {
		pingInterval = constants.DefaultPingIntervalSec * time.Second
	}
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				cm.writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(constants.DefaultWriteTimeoutSec*time.Second))
				cm.writeMu.Unlock()
				if err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		cm.handleFrame(payload)
	}
}

// handleFrame decodes one inbound frame and delivers it as a typed event.
// Unknown or malformed frames are dropped defensively; nothing downstream
// is left inconsistent.
func (cm *ChannelManager) handleFrame(payload []byte) {
	var frame wireFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		cm.logger.WithError(err).Debug("Dropped undecodable channel frame")
		return
	}

	switch models.EventKind(frame.Event) {
	case models.EventEntityNew, models.EventEntityUpdated:
		var msg models.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			cm.logger.WithError(err).Debug("Dropped entity event with undecodable payload")
			return
		}
		cm.deliver(models.Event{Kind: models.EventKind(frame.Event), Message: &msg})
	case models.EventEntityDeleted:
		var notice models.DeleteNotice
		if err := json.Unmarshal(frame.Data, &notice); err != nil {
			cm.logger.WithError(err).Debug("Dropped delete event with undecodable payload")
			return
		}
		cm.deliver(models.Event{Kind: models.EventEntityDeleted, Delete: &notice})
	case models.EventRoomJoined:
		cm.deliver(models.Event{Kind: models.EventRoomJoined, Room: frame.Room})
	case models.EventRoomJoinError:
		cm.handleJoinError(frame)
	default:
		cm.logger.WithField("event", frame.Event).Debug("Ignored unknown channel event")
	}
}

// handleJoinError retries a failed join once, then surfaces the error and
// accepts degraded membership for that scope.
func (cm *ChannelManager) handleJoinError(frame wireFrame) {
	var roomErr models.RoomError
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &roomErr); err != nil {
			roomErr = models.RoomError{Room: frame.Room}
		}
	} else {
		roomErr = models.RoomError{Room: frame.Room}
	}

	cm.mu.Lock()
	retried := cm.joinRetried[roomErr.Room]
	cm.joinRetried[roomErr.Room] = true
	cm.mu.Unlock()

	if !retried {
		cm.logger.WithField("room", roomErr.Room).Warn("Room join failed, retrying once")
		if err := cm.sendJoin(roomErr.Room); err == nil {
			return
		}
	}

	metrics.IncrementCounter("channel_join_failed", map[string]string{"room": roomErr.Room}, "Room joins that failed after retry")
	cm.deliver(models.Event{Kind: models.EventRoomJoinError, Room: roomErr.Room, Err: roomErr.Error})
}

// deliver pushes an event into the mailbox without ever blocking the read
// loop. A full mailbox drops the event and counts it.
func (cm *ChannelManager) deliver(ev models.Event) {
	select {
	case cm.events <- ev:
	default:
		metrics.IncrementCounter("channel_mailbox_dropped", map[string]string{"kind": string(ev.Kind)}, "Events dropped because the mailbox was full")
		cm.logger.WithField("kind", ev.Kind).Warn("Channel mailbox full, event dropped")
	}
}

func (cm *ChannelManager) sendJoin(tenantScope string) error {
	// The server expects the bare scope on join.
	return cm.send(wireFrame{Event: "join", Room: tenantScope})
}

func (cm *ChannelManager) sendLeave(tenantScope string) error {
	// Leave uses the fully-qualified room id while join uses the bare
	// scope. The server keys its membership that way; both must match.
	return cm.send(wireFrame{Event: "leave", Room: fmt.Sprintf("feedback:%s", tenantScope)})
}

func (cm *ChannelManager) send(frame wireFrame) error {
	cm.mu.Lock()
	conn := cm.conn
	cm.mu.Unlock()
	if conn == nil {
		return errors.NewChannelUnavailableError("not connected")
	}

	cm.writeMu.Lock()
	defer cm.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(constants.DefaultWriteTimeoutSec * time.Second))
	if err := conn.WriteJSON(frame); err != nil {
		return errors.Wrap(err, errors.ErrCodeChannelUnavailable, "channel write failed")
	}
	return nil
}

func authHeader(credential string) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)
	return header
}
