package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/ros"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10

	// clientQueueSize bounds the messages waiting for one client's writer.
	clientQueueSize = 8
)

// subscribeRequest is the control message a websocket client sends to pick its topics. An empty
// list subscribes to everything.
type subscribeRequest struct {
	Subscribe []string `json:"subscribe"`
}

// wsClient is one connection. Only its writer goroutine writes data frames to conn.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	topicsMu sync.Mutex
	topics   map[string]bool
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan []byte, clientQueueSize),
		done: make(chan struct{}),
	}
}

func (c *wsClient) wants(topic string) bool {
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()
	return len(c.topics) == 0 || c.topics[topic]
}

func (c *wsClient) setTopics(topics []string) {
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()
	c.topics = make(map[string]bool, len(topics))
	for _, t := range topics {
		c.topics[t] = true
	}
}

// enqueue hands payload to the writer without blocking. It reports false when the queue is full
// or the client is gone.
func (c *wsClient) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *wsClient) stop() {
	c.once.Do(func() { close(c.done) })
}

// writeLoop drains the send queue and keeps the connection alive with pings until the client is
// stopped or a write fails.
func (c *wsClient) writeLoop(onError func(error)) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				onError(err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				onError(err)
				return
			}
		}
	}
}

// WebSocket fans published messages out to websocket clients as binary CBOR envelopes. It is an
// http.Handler for the upgrade endpoint. Every client has a bounded queue drained by its own
// goroutine; Publish never waits on a client, and messages for a client whose queue is full are
// dropped.
type WebSocket struct {
	logger   logging.Logger
	upgrader websocket.Upgrader
	dropped  atomic.Uint64

	mu      sync.Mutex
	closed  bool
	clients map[*websocket.Conn]*wsClient
	writers sync.WaitGroup
}

// NewWebSocket returns a publisher with no clients.
func NewWebSocket(logger logging.Logger) *WebSocket {
	return &WebSocket{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*websocket.Conn]*wsClient{},
	}
}

// ServeHTTP upgrades the connection and registers the client until it disconnects.
func (ws *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Debugw("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	client := newWSClient(conn)
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		_ = conn.Close()
		return
	}
	ws.clients[conn] = client
	ws.writers.Add(1)
	ws.mu.Unlock()
	ws.logger.Infow("websocket client connected", "remote", r.RemoteAddr)

	go func() {
		defer ws.writers.Done()
		client.writeLoop(func(err error) {
			ws.logger.Debugw("dropping websocket client", "error", err)
			ws.removeClient(client)
		})
	}()
	defer ws.removeClient(client)

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var req subscribeRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			ws.logger.Debugw("ignoring malformed websocket request", "error", err)
			continue
		}
		client.setTopics(req.Subscribe)
	}
}

func (ws *WebSocket) removeClient(c *wsClient) {
	ws.mu.Lock()
	_, ok := ws.clients[c.conn]
	delete(ws.clients, c.conn)
	ws.mu.Unlock()
	c.stop()
	if ok {
		ws.logger.Infow("websocket client disconnected", "remote", c.conn.RemoteAddr().String())
	}
	_ = c.conn.Close()
}

// ClientCount returns the number of connected clients.
func (ws *WebSocket) ClientCount() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.clients)
}

// Dropped returns how many per-client messages were discarded because a client fell behind.
func (ws *WebSocket) Dropped() uint64 {
	return ws.dropped.Load()
}

// Publish implements Publisher. It only queues the message; clients that cannot keep up miss it.
func (ws *WebSocket) Publish(ctx context.Context, topic string, msg ros.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return errors.New("publisher closed")
	}
	targets := make([]*wsClient, 0, len(ws.clients))
	for _, c := range ws.clients {
		if c.wants(topic) {
			targets = append(targets, c)
		}
	}
	ws.mu.Unlock()
	if len(targets) == 0 {
		return nil
	}

	payload, err := Encode(topic, msg)
	if err != nil {
		return err
	}
	for _, c := range targets {
		if !c.enqueue(payload) {
			ws.dropped.Inc()
			ws.logger.Debugw("websocket client behind, message dropped", "topic", topic, "remote", c.conn.RemoteAddr().String())
		}
	}
	return nil
}

// Close disconnects every client and waits for their writers to exit.
func (ws *WebSocket) Close() error {
	ws.mu.Lock()
	ws.closed = true
	clients := ws.clients
	ws.clients = map[*websocket.Conn]*wsClient{}
	ws.mu.Unlock()
	for conn, c := range clients {
		c.stop()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}
	ws.writers.Wait()
	return nil
}

// Serve runs an HTTP server with the websocket endpoint on /ws, a liveness probe on /healthz and,
// if status is set, its JSON encoding on /status. It returns when ctx is done.
func Serve(ctx context.Context, addr string, ws *WebSocket, status func() any) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", ws)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if status != nil {
		mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(status())
		})
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
