package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"SonicPlayer/core/auth"
	"SonicPlayer/core/events"
	"SonicPlayer/core/player"
	"SonicPlayer/logger"
	"SonicPlayer/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// MessageType 客户端消息类型
type MessageType string

const (
	MsgTypePing   MessageType = "ping"
	MsgTypePong   MessageType = "pong"
	MsgTypeStatus MessageType = "status" // 请求状态快照
	MsgTypeError  MessageType = "error"
)

// WSMessage 客户端发来的消息以及非播放事件的回复
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client WebSocket 客户端
type Client struct {
	Hub  *EventHub
	Conn *websocket.Conn
	Send chan []byte
	ID   string
}

// EventHub 事件推送中心, 把播放器事件广播给所有连接
type EventHub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

// NewEventHub 创建事件 Hub
func NewEventHub() *EventHub {
	return &EventHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *EventHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Info("event client registered", logger.String("client", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToClients(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *EventHub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// removeClient 移除客户端（需要持有锁）
func (h *EventHub) removeClient(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
		logger.Info("event client unregistered", logger.String("client", client.ID))
	}
}

func (h *EventHub) broadcastToClients(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.Send <- msg:
		default:
			// 发送缓冲区满，移除客户端
			h.removeClient(client)
		}
	}
}

func (h *EventHub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]bool)
}

// Register 注册客户端
func (h *EventHub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister 注销客户端
func (h *EventHub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast 广播原始消息
func (h *EventHub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// BroadcastEvent 广播播放器事件
func (h *EventHub) BroadcastEvent(e model.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount 当前连接数
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Forward 把订阅的事件转发给所有客户端, 直到订阅关闭或 Hub 停止
func (h *EventHub) Forward(sub *events.Subscription) {
	for {
		select {
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			if err := h.BroadcastEvent(e); err != nil {
				logger.Warn("encode event failed", logger.ErrorField(err))
			}
		case <-h.done:
			return
		}
	}
}

// ========== Client 方法 ==========

// ReadPump 读取消息循环
func (c *Client) ReadPump(handler func(c *Client, msg *WSMessage)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("client", c.ID))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format",
				logger.ErrorField(err),
				logger.String("client", c.ID))
			continue
		}
		if msg.Type == MsgTypePing {
			c.SendMessage(&WSMessage{Type: MsgTypePong})
			continue
		}
		handler(c, &msg)
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one event per frame so clients can decode each message on its own
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 发送消息给客户端, 缓冲区满时丢弃
func (c *Client) SendMessage(msg *WSMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// EventsHandler upgrades /ws/events connections.
type EventsHandler struct {
	hub      *EventHub
	player   *player.Controller
	secret   string
	upgrader websocket.Upgrader
}

func NewEventsHandler(hub *EventHub, p *player.Controller, secret string) *EventsHandler {
	return &EventsHandler{
		hub:    hub,
		player: p,
		secret: secret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// WebSocketHandler 处理 WebSocket 连接
func (h *EventsHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	// WebSocket 无法通过 header 传递 token
	clientID := r.URL.Query().Get("client")
	if h.secret != "" {
		claims, err := auth.ParseToken(h.secret, r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		clientID = claims.ClientID
	}
	if clientID == "" {
		clientID = uuid.New().String()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
		ID:   clientID,
	}
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *EventsHandler) handleMessage(c *Client, msg *WSMessage) {
	switch msg.Type {
	case MsgTypeStatus:
		data, err := json.Marshal(h.player.Status())
		if err != nil {
			return
		}
		c.SendMessage(&WSMessage{Type: MsgTypeStatus, Data: data})
	default:
		c.SendMessage(&WSMessage{Type: MsgTypeError, Data: json.RawMessage(`"unknown message type"`)})
	}
}
