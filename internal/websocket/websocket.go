package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/auth"
	"carpool-backend/internal/metrics"
	"carpool-backend/internal/models"
	"carpool-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// События клиента
const (
	EventJoinChat    = "join-chat"
	EventLeaveChat   = "leave-chat"
	EventSendMessage = "send-message"
	EventTyping      = "typing"
	EventMarkRead    = "mark-read"
	EventPing        = "ping"
)

// События сервера
const (
	EventJoinedRoom  = "joined-room"
	EventLeftRoom    = "left-room"
	EventNewMessage  = services.EventNewMessage
	EventUserTyping  = "user-typing"
	EventMessageRead = "message-read"
	EventPong        = "pong"
	EventError       = "error"
)

const handleTimeout = 10 * time.Second

// Envelope формат сообщения WebSocket в обе стороны
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type JoinedRoomData struct {
	RoomID        string `json:"roomId"`
	TripRequestID string `json:"tripRequestId"`
}

type UserTypingData struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type MessageReadData struct {
	MessageID string `json:"messageId"`
	ReadBy    string `json:"readBy"`
}

type PongData struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

type tripPayload struct {
	TripRequestID string `json:"tripRequestId"`
	Content       string `json:"content"`
	ReceiverID    string `json:"receiverId"`
	IsTyping      bool   `json:"isTyping"`
	MessageID     string `json:"messageId"`
}

// ChatService операции чата, доступные через WebSocket
type ChatService interface {
	Authorize(ctx context.Context, tripRequestID, actorID string) (*models.TripRequest, error)
	SendMessage(ctx context.Context, senderID string, in services.SendMessageInput) (*models.Message, error)
	MarkRead(ctx context.Context, messageID, callerID string) (*models.Message, error)
}

// RoomID ключ комнаты чата заявки
func RoomID(tripRequestID string) string {
	return "chat-" + tripRequestID
}

// Hub управляет подключениями и комнатами чата
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	chat     ChatService
	verifier auth.Verifier
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewHub(chat ChatService, verifier auth.Verifier, log *zap.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Client]struct{}),
		chat:     chat,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log.Named("ws"),
	}
}

// Handler аутентифицирует клиента по заголовку Authorization или параметру token
// и переводит соединение в WebSocket
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			var err error
			token, err = auth.BearerToken(c.GetHeader("Authorization"))
			if err != nil {
				respondUnauthenticated(c, err)
				return
			}
		}
		userID, err := h.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			respondUnauthenticated(c, err)
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Warn("Ошибка обновления соединения до WebSocket", zap.Error(err))
			return
		}

		client := newClient(h, conn, userID)
		metrics.WSConnections.Inc()
		h.log.Debug("WebSocket соединение установлено", zap.String("user_id", userID))

		go client.writePump()
		go client.readPump()
	}
}

func respondUnauthenticated(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	if appErr.Kind != apperrors.KindUnauthenticated {
		appErr = apperrors.Unauthenticated("Недействительный токен")
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": appErr.Message, "code": appErr.Code})
}

// BroadcastToTrip рассылает событие всем подключениям в комнате заявки
func (h *Hub) BroadcastToTrip(tripRequestID, event string, data interface{}) {
	h.broadcast(RoomID(tripRequestID), event, data, nil)
}

func (h *Hub) broadcast(roomID, event string, data interface{}, except *Client) {
	payload, err := encode(event, data)
	if err != nil {
		h.log.Error("Ошибка при кодировании события", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		if client != except {
			members = append(members, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range members {
		client.enqueue(payload)
	}
}

func (h *Hub) join(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
}

func (h *Hub) leave(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) inRoom(roomID string, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][c]
	return ok
}

// RoomSize число подключений в комнате
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// handle обрабатывает одно событие клиента
func (h *Hub) handle(c *Client, env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	var p tripPayload
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError(apperrors.Validation("Неверный формат данных события"))
			return
		}
	}

	switch env.Event {
	case EventJoinChat:
		if _, err := h.chat.Authorize(ctx, p.TripRequestID, c.userID); err != nil {
			c.sendError(err)
			return
		}
		roomID := RoomID(p.TripRequestID)
		h.join(roomID, c)
		c.rooms[roomID] = struct{}{}
		c.send(EventJoinedRoom, JoinedRoomData{RoomID: roomID, TripRequestID: p.TripRequestID})
		h.log.Debug("Пользователь вошел в комнату", zap.String("user_id", c.userID), zap.String("room_id", roomID))

	case EventLeaveChat:
		roomID := RoomID(p.TripRequestID)
		h.leave(roomID, c)
		delete(c.rooms, roomID)
		c.send(EventLeftRoom, JoinedRoomData{RoomID: roomID, TripRequestID: p.TripRequestID})

	case EventSendMessage:
		msg, err := h.chat.SendMessage(ctx, c.userID, services.SendMessageInput{
			TripRequestID: p.TripRequestID,
			Content:       p.Content,
			ReceiverID:    p.ReceiverID,
		})
		if err != nil {
			c.sendError(err)
			return
		}
		h.BroadcastToTrip(msg.TripRequestID, EventNewMessage, msg.ToRoom())

	case EventTyping:
		roomID := RoomID(p.TripRequestID)
		if !h.inRoom(roomID, c) {
			c.sendError(apperrors.Forbidden("Сначала подключитесь к чату заявки"))
			return
		}
		h.broadcast(roomID, EventUserTyping, UserTypingData{UserID: c.userID, IsTyping: p.IsTyping}, c)

	case EventMarkRead:
		msg, err := h.chat.MarkRead(ctx, p.MessageID, c.userID)
		if err != nil {
			c.sendError(err)
			return
		}
		h.BroadcastToTrip(msg.TripRequestID, EventMessageRead, MessageReadData{MessageID: msg.ID, ReadBy: c.userID})

	case EventPing:
		c.send(EventPong, PongData{UserID: c.userID, Timestamp: time.Now().UTC()})

	default:
		c.sendError(apperrors.Validation("Неизвестное событие " + env.Event))
	}
}

func encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
