package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendQueueSize  = 64
)

// Client одно WebSocket соединение пользователя.
// Запись в соединение выполняет только writePump.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	queue  chan []byte
	rooms  map[string]struct{} // только из readPump

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		queue:  make(chan []byte, sendQueueSize),
		rooms:  make(map[string]struct{}),
		done:   make(chan struct{}),
	}
}

// enqueue ставит сообщение в очередь; переполненный клиент отключается
func (c *Client) enqueue(payload []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.queue <- payload:
	default:
		c.hub.log.Warn("Очередь клиента переполнена, соединение закрывается", zap.String("user_id", c.userID))
		c.close()
	}
}

func (c *Client) send(event string, data interface{}) {
	payload, err := encode(event, data)
	if err != nil {
		c.hub.log.Error("Ошибка при кодировании события", zap.String("event", event), zap.Error(err))
		return
	}
	c.enqueue(payload)
}

// sendError отправляет событие error только этому соединению
func (c *Client) sendError(err error) {
	appErr := apperrors.From(err)
	if appErr.Kind == apperrors.KindUpstream {
		c.hub.log.Error("Ошибка обработки события", zap.String("user_id", c.userID), zap.Error(err))
	}
	c.send(EventError, ErrorData{Code: appErr.Code, Message: appErr.Message})
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) readPump() {
	defer func() {
		for roomID := range c.rooms {
			c.hub.leave(roomID, c)
		}
		c.close()
		metrics.WSConnections.Dec()
		c.hub.log.Debug("WebSocket соединение закрыто", zap.String("user_id", c.userID))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("Соединение прервано", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.sendError(apperrors.Validation("Неверный формат сообщения"))
			continue
		}
		c.hub.handle(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.queue:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
