package api

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"globalmkh/internal/input"
	"globalmkh/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local tool; auth is handled by the token middleware.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager handles WebSocket connections and broadcasting
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.RWMutex
	broadcast  chan []byte
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
	stopOnce   sync.Once
}

// WebSocketClient is one connected watcher. Its subscriptions are live
// emitter subscriptions and are closed when the connection ends.
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string

	mu     sync.Mutex
	closed bool

	// subs is only touched by readPump.
	subs    map[input.EventName]*input.Subscription
	dropped atomic.Uint64
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	log := m.server.log
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			n := len(m.clients)
			m.clientsMu.Unlock()
			log.Info().Str("remote", client.ip).Int("clients", n).Msg("websocket client registered")

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				client.closeSend()
				log.Info().Str("remote", client.ip).Int("clients", len(m.clients)).
					Uint64("dropped", client.dropped.Load()).Msg("websocket client unregistered")
			}
			m.clientsMu.Unlock()

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case <-m.shutdown:
			m.clientsMu.Lock()
			for client := range m.clients {
				delete(m.clients, client)
				client.closeSend()
			}
			m.clientsMu.Unlock()
			return
		}
	}
}

func (m *WSManager) stop() {
	m.stopOnce.Do(func() { close(m.shutdown) })
}

// ClientCount returns the number of connected clients.
func (m *WSManager) ClientCount() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

func (m *WSManager) broadcastMessage(message []byte) {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()

	for client := range m.clients {
		client.trySend(message)
	}
}

// BroadcastState pushes the current category state to every client.
func (m *WSManager) BroadcastState() {
	b, err := m.stateMessage()
	if err != nil {
		m.server.log.Error().Err(err).Msg("failed to encode state")
		return
	}
	select {
	case m.broadcast <- b:
	case <-m.shutdown:
	}
}

func (m *WSManager) stateMessage() ([]byte, error) {
	return protocol.Encode(protocol.TypeState, statePayload(m.server.capture.Status()))
}

func statePayload(st input.Status) protocol.StatePayload {
	p := protocol.StatePayload{Categories: make(map[string]protocol.CategoryState, len(st.Categories))}
	for cat, cs := range st.Categories {
		p.Categories[string(cat)] = protocol.CategoryState{
			Installed:        cs.Installed,
			Paused:           cs.Paused,
			MouseMoveEnabled: cs.MouseMoveEnabled,
		}
	}
	return p
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.server.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		ip:      r.RemoteAddr,
		subs:    make(map[input.EventName]*input.Subscription),
	}

	select {
	case m.register <- client:
	case <-m.shutdown:
		conn.Close()
		return
	}

	if b, err := m.stateMessage(); err == nil {
		client.trySend(b)
	}

	go client.writePump()
	go client.readPump()
}

// trySend queues a frame without blocking. Frames for a slow client are
// dropped and counted.
func (c *WebSocketClient) trySend(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

func (c *WebSocketClient) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// forward is the emitter handler for every subscription of this client.
func (c *WebSocketClient) forward(ev input.Event) error {
	b, err := protocol.Encode(protocol.TypeEvent, ev)
	if err != nil {
		return err
	}
	c.trySend(b)
	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *WebSocketClient) readPump() {
	defer func() {
		for name, sub := range c.subs {
			sub.Close()
			delete(c.subs, name)
		}
		select {
		case c.manager.unregister <- c:
		case <-c.manager.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.server.log.Warn().Err(err).Str("remote", c.ip).Msg("websocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		c.replyError("", err)
		return
	}

	switch msg.Type {
	case protocol.TypeSubscribe:
		names, err := c.eventNames(msg)
		if err != nil {
			c.replyError(msg.Type, err)
			return
		}
		var ok []string
		for _, name := range names {
			if _, dup := c.subs[name]; !dup {
				sub, err := c.manager.server.capture.On(name, c.forward)
				if err != nil {
					c.manager.server.log.Warn().Err(err).Str("event", string(name)).Str("remote", c.ip).Msg("remote subscribe failed")
					c.replyError(msg.Type, err)
					continue
				}
				c.subs[name] = sub
			}
			ok = append(ok, string(name))
		}
		if len(ok) > 0 {
			c.reply(protocol.TypeAck, protocol.AckPayload{Op: msg.Type, Events: ok})
		}

	case protocol.TypeUnsubscribe:
		names, err := c.eventNames(msg)
		if err != nil {
			c.replyError(msg.Type, err)
			return
		}
		done := make([]string, 0, len(names))
		for _, name := range names {
			if sub, ok := c.subs[name]; ok {
				sub.Close()
				delete(c.subs, name)
			}
			done = append(done, string(name))
		}
		c.reply(protocol.TypeAck, protocol.AckPayload{Op: msg.Type, Events: done})

	case protocol.TypeToggle:
		var p protocol.TogglePayload
		if err := msg.Into(&p); err != nil {
			c.replyError(msg.Type, err)
			return
		}
		if p.Category == "" || p.Category == "all" {
			_, err = c.manager.server.capture.ToggleAll()
		} else {
			var cat input.Category
			if cat, err = input.ParseCategory(p.Category); err == nil {
				_, err = c.manager.server.capture.Toggle(cat)
			}
		}
		if err != nil {
			c.replyError(msg.Type, err)
			return
		}
		c.reply(protocol.TypeAck, protocol.AckPayload{Op: msg.Type})

	default:
		c.replyError(msg.Type, errUnknownType(msg.Type))
	}
}

func (c *WebSocketClient) eventNames(msg protocol.Message) ([]input.EventName, error) {
	var p protocol.SubscribePayload
	if err := msg.Into(&p); err != nil {
		return nil, err
	}
	names := make([]input.EventName, 0, len(p.Events))
	for _, s := range p.Events {
		name, err := input.ParseEventName(s)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (c *WebSocketClient) reply(t protocol.MessageType, payload any) {
	b, err := protocol.Encode(t, payload)
	if err != nil {
		c.manager.server.log.Error().Err(err).Msg("failed to encode reply")
		return
	}
	c.trySend(b)
}

func (c *WebSocketClient) replyError(op protocol.MessageType, err error) {
	c.reply(protocol.TypeError, protocol.ErrorPayload{Op: op, Message: err.Error()})
}

type errUnknownType protocol.MessageType

func (e errUnknownType) Error() string {
	return "unknown message type " + string(e)
}
