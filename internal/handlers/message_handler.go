package handlers

import (
	"net/http"

	"carpool-backend/internal/middleware"
	"carpool-backend/internal/models"
	"carpool-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Совпадают с событиями комнаты в WebSocket
const (
	roomEventNewMessage  = services.EventNewMessage
	roomEventMessageRead = "message-read"
)

// MessageList история чата заявки в формате клиента чата
func MessageList(chat ChatAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		messages, err := chat.ListMessages(c.Request.Context(), c.Param("tripRequestId"), userID)
		if err != nil {
			respondError(c, err)
			return
		}

		formatted := make([]models.ChatMessage, 0, len(messages))
		for i := range messages {
			formatted = append(formatted, messages[i].ToChat(userID))
		}
		c.JSON(http.StatusOK, formatted)
	}
}

// MessageCreate сохраняет сообщение и рассылает его в комнату чата
func MessageCreate(chat ChatAPI, rooms services.RoomBroadcaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.SendMessageInput
		if !bindJSON(c, &in) {
			return
		}

		userID := middleware.UserID(c)
		msg, err := chat.SendMessage(c.Request.Context(), userID, in)
		if err != nil {
			respondError(c, err)
			return
		}

		rooms.BroadcastToTrip(msg.TripRequestID, roomEventNewMessage, msg.ToRoom())
		c.JSON(http.StatusCreated, msg.ToChat(userID))
	}
}

// MessageMarkRead получатель отмечает сообщение прочитанным
func MessageMarkRead(chat ChatAPI, rooms services.RoomBroadcaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		msg, err := chat.MarkRead(c.Request.Context(), c.Param("messageId"), userID)
		if err != nil {
			respondError(c, err)
			return
		}

		rooms.BroadcastToTrip(msg.TripRequestID, roomEventMessageRead, gin.H{"messageId": msg.ID, "readBy": userID})
		c.JSON(http.StatusOK, gin.H{"message": "Сообщение отмечено прочитанным", "messageId": msg.ID, "read": msg.Read})
	}
}
