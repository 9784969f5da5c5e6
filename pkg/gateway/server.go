package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/parleylabs/parley/pkg/copilot"
)

// maxMessageBytes bounds one inbound frame. The transcription service
// caps audio at 25 MB; base64 framing plus the envelope fits well
// under this.
const maxMessageBytes = 48 << 20

// outboundBuffer is the per-connection write queue. When it fills,
// forwarders block, the subscription channel backs up, and the
// registry eventually drops the subscription.
const outboundBuffer = 64

// Server is the WebSocket gateway. Each connection carries JSON
// envelopes in both directions and may drive any number of sessions.
type Server struct {
	registry *copilot.Registry
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a gateway over the given registry. If logger is
// nil, slog.Default() is used.
func NewServer(registry *copilot.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and runs the connection until the
// peer disconnects. Closing a connection cancels its subscriptions
// only; the sessions it referenced live on.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("gateway: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	ws.SetReadLimit(maxMessageBytes)

	c := &conn{
		srv:    s,
		ws:     ws,
		out:    make(chan []byte, outboundBuffer),
		closed: make(chan struct{}),
		subs:   make(map[string]*copilot.Subscription),
	}
	go c.writePump()
	c.readLoop()
}

// conn is one WebSocket connection.
type conn struct {
	srv *Server
	ws  *websocket.Conn

	out    chan []byte
	closed chan struct{}

	closeOnce sync.Once

	mu   sync.Mutex
	subs map[string]*copilot.Subscription
}

func (c *conn) readLoop() {
	defer c.close()
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.srv.logger.Warn("gateway: read failed", "error", err)
			}
			return
		}
		var env envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			c.sendError("invalid message")
			continue
		}
		c.dispatch(env)
	}
}

func (c *conn) dispatch(env envelope) {
	switch env.Type {
	case msgStartSession:
		var p startSessionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError("invalid start-session payload")
			return
		}
		id, sub, err := c.srv.registry.CreateSession(p.OwnerID, p.CounterpartName, p.RoleLabel)
		if err != nil {
			c.sendError("failed to start session")
			return
		}
		if !c.adoptSubscription(id, sub) {
			return
		}
		// session-started is queued before the forwarder starts, so it
		// precedes every session event on the wire.
		c.send(msgSessionStarted, sessionStartedPayload{SessionID: id})
		go c.forward(id, sub)

	case msgAudioChunk:
		var p audioChunkPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError("invalid audio-chunk payload")
			return
		}
		audio, err := base64.StdEncoding.DecodeString(p.AudioData)
		if err != nil {
			c.sendError("invalid audio encoding")
			return
		}
		if !c.ensureSubscribed(p.SessionID) {
			return
		}
		if err := c.srv.registry.IngestAudio(p.SessionID, p.SpeakerRole, audio); err != nil {
			c.sendRegistryError(err)
		}

	case msgEmotionData:
		var p emotionDataPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError("invalid emotion-data payload")
			return
		}
		if !c.ensureSubscribed(p.SessionID) {
			return
		}
		if err := c.srv.registry.IngestTelemetry(p.SessionID, p.Emotion); err != nil {
			c.sendRegistryError(err)
		}

	case msgEndSession:
		var p endSessionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError("invalid end-session payload")
			return
		}
		// Subscribe first so the terminal event reaches a client that
		// reconnected just to end the session.
		if !c.ensureSubscribed(p.SessionID) {
			return
		}
		if err := c.srv.registry.EndSession(p.SessionID); err != nil {
			c.sendRegistryError(err)
		}

	default:
		c.sendError("unknown message type: " + env.Type)
	}
}

// adoptSubscription records the subscription handed back by
// CreateSession. The session id is fresh, so no other message can
// have raced in a subscription for it. Returns false (cancelling sub)
// when the connection already closed.
func (c *conn) adoptSubscription(sessionID string, sub *copilot.Subscription) bool {
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		sub.Cancel()
		return false
	default:
	}
	c.subs[sessionID] = sub
	c.mu.Unlock()
	return true
}

// ensureSubscribed attaches this connection to the session's event
// stream the first time the connection references the id. This is how
// a reconnecting client resumes a live session. Returns false (after
// reporting) when the session does not exist.
func (c *conn) ensureSubscribed(sessionID string) bool {
	c.mu.Lock()
	_, ok := c.subs[sessionID]
	c.mu.Unlock()
	if ok {
		return true
	}

	sub, err := c.srv.registry.Subscribe(sessionID)
	if err != nil {
		c.sendRegistryError(err)
		return false
	}

	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		sub.Cancel()
		return false
	default:
	}
	if _, ok := c.subs[sessionID]; ok {
		// Raced with another inbound message for the same session.
		c.mu.Unlock()
		sub.Cancel()
		return true
	}
	c.subs[sessionID] = sub
	c.mu.Unlock()

	go c.forward(sessionID, sub)
	return true
}

// forward relays one subscription's events to the write queue until
// the subscription closes (session end, cancellation, or drop by the
// registry).
func (c *conn) forward(sessionID string, sub *copilot.Subscription) {
	defer func() {
		c.mu.Lock()
		if c.subs[sessionID] == sub {
			delete(c.subs, sessionID)
		}
		c.mu.Unlock()
	}()
	for ev := range sub.C {
		b, err := eventEnvelope(ev)
		if err != nil {
			c.srv.logger.Error("gateway: encode event", "session", sessionID, "error", err)
			continue
		}
		select {
		case c.out <- b:
		case <-c.closed:
			sub.Cancel()
			return
		}
	}
}

func (c *conn) writePump() {
	for {
		select {
		case b := <-c.out:
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *conn) send(typ string, data any) {
	b, err := encodeEnvelope(typ, data)
	if err != nil {
		c.srv.logger.Error("gateway: encode", "type", typ, "error", err)
		return
	}
	select {
	case c.out <- b:
	case <-c.closed:
	}
}

func (c *conn) sendError(msg string) {
	c.send(msgError, errorPayload{Message: msg})
}

func (c *conn) sendRegistryError(err error) {
	if errors.Is(err, copilot.ErrSessionNotFound) {
		c.sendError("session not found")
		return
	}
	c.sendError(err.Error())
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		subs := make([]*copilot.Subscription, 0, len(c.subs))
		for id, sub := range c.subs {
			subs = append(subs, sub)
			delete(c.subs, id)
		}
		c.mu.Unlock()
		for _, sub := range subs {
			sub.Cancel()
		}
		c.ws.Close()
	})
}
