// Package network provides the client side of the daemon's HTTP and
// WebSocket API.
package network

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"globalmkh/internal/input"
	"globalmkh/internal/protocol"
)

// DefaultRetry is the delay between reconnection attempts.
const DefaultRetry = 5 * time.Second

// WSClient watches a daemon over /ws. It subscribes to Events on every
// (re)connect and reports what the daemon pushes through the callbacks.
type WSClient struct {
	addr   string
	token  string
	events []string
	retry  time.Duration
	log    zerolog.Logger

	send chan []byte
	done chan struct{}
	once sync.Once

	// Callbacks, set before Start.
	OnEvent      func(input.Event)
	OnState      func(protocol.StatePayload)
	OnAck        func(protocol.AckPayload)
	OnError      func(protocol.ErrorPayload)
	OnConnection func(connected bool)

	mu          sync.Mutex
	isConnected bool
}

// NewWSClient creates a client for the daemon at addr (host:port).
func NewWSClient(addr, token string, events []string, log zerolog.Logger) *WSClient {
	return &WSClient{
		addr:   addr,
		token:  token,
		events: events,
		retry:  DefaultRetry,
		log:    log,
		send:   make(chan []byte, 100),
		done:   make(chan struct{}),
	}
}

// SetRetry overrides the reconnection delay.
func (c *WSClient) SetRetry(d time.Duration) { c.retry = d }

// Start begins the client loop (connect & process)
func (c *WSClient) Start() {
	go c.loop()
}

func (c *WSClient) loop() {
	for {
		c.connect()

		// If connect returns, it means we disconnected. Wait a bit and retry.
		select {
		case <-c.done:
			return
		case <-time.After(c.retry):
			c.log.Debug().Str("addr", c.addr).Msg("attempting reconnection")
		}
	}
}

func (c *WSClient) connect() {
	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/ws"}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		c.log.Warn().Err(err).Str("url", u.String()).Msg("connection failed")
		return
	}
	defer conn.Close()

	c.setConnected(true)
	defer c.setConnected(false)
	c.log.Info().Str("url", u.String()).Msg("connected")

	if len(c.events) > 0 {
		c.enqueue(protocol.TypeSubscribe, protocol.SubscribePayload{Events: c.events})
	}

	connDone := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		defer close(connDone)
		c.writePump(conn, stop)
	}()

	// Closing the connection unblocks ReadMessage on shutdown.
	go func() {
		select {
		case <-c.done:
			conn.Close()
		case <-stop:
		}
	}()

	c.readPump(conn)

	// Ensure write pump stops
	close(stop)
	<-connDone
}

func (c *WSClient) setConnected(v bool) {
	c.mu.Lock()
	c.isConnected = v
	c.mu.Unlock()
	if c.OnConnection != nil {
		c.OnConnection(v)
	}
}

func (c *WSClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("read error")
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("invalid message")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *WSClient) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	for {
		select {
		case b := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.Warn().Err(err).Msg("write error")
				return
			}
		case <-stop:
			return
		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *WSClient) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeEvent:
		var ev input.Event
		if err := msg.Into(&ev); err != nil {
			c.log.Warn().Err(err).Msg("bad event payload")
			return
		}
		if c.OnEvent != nil {
			c.OnEvent(ev)
		}

	case protocol.TypeState:
		var st protocol.StatePayload
		if err := msg.Into(&st); err != nil {
			c.log.Warn().Err(err).Msg("bad state payload")
			return
		}
		if c.OnState != nil {
			c.OnState(st)
		}

	case protocol.TypeAck:
		var ack protocol.AckPayload
		if err := msg.Into(&ack); err == nil && c.OnAck != nil {
			c.OnAck(ack)
		}

	case protocol.TypeError:
		var e protocol.ErrorPayload
		if err := msg.Into(&e); err != nil {
			return
		}
		c.log.Warn().Str("op", string(e.Op)).Str("error", e.Message).Msg("daemon rejected request")
		if c.OnError != nil {
			c.OnError(e)
		}
	}
}

func (c *WSClient) enqueue(t protocol.MessageType, payload any) bool {
	b, err := protocol.Encode(t, payload)
	if err != nil {
		c.log.Error().Err(err).Msg("marshal error")
		return false
	}
	select {
	case c.send <- b:
		return true
	case <-c.done:
		return false
	default:
		c.log.Warn().Str("type", string(t)).Msg("send queue full")
		return false
	}
}

// SendToggle asks the daemon to flip the pause state of category
// ("mouse", "keyboard" or "all").
func (c *WSClient) SendToggle(category string) bool {
	return c.enqueue(protocol.TypeToggle, protocol.TogglePayload{Category: category})
}

// IsConnected returns true if client is connected to the daemon
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// Close stops the client
func (c *WSClient) Close() {
	c.once.Do(func() { close(c.done) })
}
