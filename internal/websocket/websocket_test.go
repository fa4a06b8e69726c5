package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/models"
	"carpool-backend/internal/repository"
	"carpool-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// tokenVerifier принимает токен вида "token-<userID>"
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) (string, error) {
	if !strings.HasPrefix(token, "token-") {
		return "", apperrors.Unauthenticated("Недействительный токен")
	}
	return strings.TrimPrefix(token, "token-"), nil
}

type memoryTrips struct {
	mu       sync.Mutex
	requests map[string]models.TripRequest
}

func (m *memoryTrips) Create(_ context.Context, req *models.TripRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	m.requests[req.ID] = *req
	return nil
}

func (m *memoryTrips) GetByID(_ context.Context, id string) (*models.TripRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (m *memoryTrips) TransitionFromPending(_ context.Context, id string, to models.TripRequestStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != models.TripRequestStatusPending {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = at
	m.requests[id] = r
	return true, nil
}

func (m *memoryTrips) ListByDriver(context.Context, string) ([]models.TripRequest, error) {
	return nil, nil
}

func (m *memoryTrips) ListByPassenger(context.Context, string) ([]models.TripRequest, error) {
	return nil, nil
}

type memoryMessages struct {
	mu       sync.Mutex
	messages map[string]models.Message
}

func (m *memoryMessages) Create(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = uuid.NewString()
	m.messages[msg.ID] = *msg
	return nil
}

func (m *memoryMessages) GetByID(_ context.Context, id string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &msg, nil
}

func (m *memoryMessages) ListByTripRequest(context.Context, string) ([]models.Message, error) {
	return nil, nil
}

func (m *memoryMessages) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.messages[id]
	msg.Read = true
	m.messages[id] = msg
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, models.UserRole, services.NotificationEvent) {}

type hubFixture struct {
	hub      *Hub
	server   *httptest.Server
	messages *memoryMessages
	tripID   string
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	trips := &memoryTrips{requests: map[string]models.TripRequest{}}
	messages := &memoryMessages{messages: map[string]models.Message{}}
	trip := models.TripRequest{ID: "trip-1", RouteID: "route-1", DriverID: "driver", PassengerID: "passenger", Status: models.TripRequestStatusAccepted}
	require.NoError(t, trips.Create(context.Background(), &trip))

	chat := services.NewMessageService(messages, trips, nopNotifier{}, zap.NewNop())
	hub := NewHub(chat, tokenVerifier{}, zap.NewNop())

	router := gin.New()
	router.GET("/ws", hub.Handler())
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &hubFixture{hub: hub, server: server, messages: messages, tripID: trip.ID}
}

func (f *hubFixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=token-" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func expect(t *testing.T, conn *websocket.Conn, event string, dst interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, event, env.Event, "data: %s", env.Data)
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
}

func (f *hubFixture) join(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	emit(t, conn, EventJoinChat, map[string]string{"tripRequestId": f.tripID})
	var joined JoinedRoomData
	expect(t, conn, EventJoinedRoom, &joined)
	require.Equal(t, RoomID(f.tripID), joined.RoomID)
	require.Equal(t, f.tripID, joined.TripRequestID)
}

func TestHandlerRejectsMissingToken(t *testing.T) {
	f := newHubFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=bad", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlerAcceptsBearerHeader(t *testing.T) {
	f := newHubFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer token-driver"}})
	require.NoError(t, err)
	defer conn.Close()

	emit(t, conn, EventPing, nil)
	var pong PongData
	expect(t, conn, EventPong, &pong)
	assert.Equal(t, "driver", pong.UserID)
}

func TestJoinChatForbiddenForStranger(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "stranger")

	emit(t, conn, EventJoinChat, map[string]string{"tripRequestId": f.tripID})
	var errData ErrorData
	expect(t, conn, EventError, &errData)
	assert.Equal(t, apperrors.CodeForbidden, errData.Code)
	assert.Equal(t, 0, f.hub.RoomSize(RoomID(f.tripID)))
}

func TestSendMessageBroadcastsToRoom(t *testing.T) {
	f := newHubFixture(t)
	passenger := f.dial(t, "passenger")
	driverPhone := f.dial(t, "driver")
	driverTablet := f.dial(t, "driver")
	for _, conn := range []*websocket.Conn{passenger, driverPhone, driverTablet} {
		f.join(t, conn)
	}
	require.Equal(t, 3, f.hub.RoomSize(RoomID(f.tripID)))

	emit(t, passenger, EventSendMessage, map[string]string{
		"tripRequestId": f.tripID,
		"content":       "on my way",
		"receiverId":    "driver",
	})

	var delivered []models.RoomMessage
	for _, conn := range []*websocket.Conn{passenger, driverPhone, driverTablet} {
		var msg models.RoomMessage
		expect(t, conn, EventNewMessage, &msg)
		delivered = append(delivered, msg)
	}
	for _, msg := range delivered {
		assert.Equal(t, "on my way", msg.Text)
		assert.Equal(t, "passenger", msg.User.ID)
		assert.Equal(t, delivered[0].ID, msg.ID)
	}

	stored, err := f.messages.GetByID(context.Background(), delivered[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "driver", stored.ReceiverID)

	// Водитель читает сообщение, отметка о прочтении приходит всей комнате
	emit(t, driverPhone, EventMarkRead, map[string]string{"tripRequestId": f.tripID, "messageId": stored.ID})
	for _, conn := range []*websocket.Conn{passenger, driverPhone, driverTablet} {
		var read MessageReadData
		expect(t, conn, EventMessageRead, &read)
		assert.Equal(t, stored.ID, read.MessageID)
		assert.Equal(t, "driver", read.ReadBy)
	}

	stored, err = f.messages.GetByID(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)
}

func TestSendMessageErrorGoesToSenderOnly(t *testing.T) {
	f := newHubFixture(t)
	passenger := f.dial(t, "passenger")
	driver := f.dial(t, "driver")
	f.join(t, passenger)
	f.join(t, driver)

	emit(t, passenger, EventSendMessage, map[string]string{
		"tripRequestId": f.tripID,
		"content":       "hello",
		"receiverId":    "passenger",
	})
	var errData ErrorData
	expect(t, passenger, EventError, &errData)
	assert.Equal(t, apperrors.CodeInvalidReceiver, errData.Code)

	// Следующим событием водитель получает pong, а не сообщение
	emit(t, driver, EventPing, nil)
	expect(t, driver, EventPong, nil)
	assert.Empty(t, f.messages.messages)
}

func TestTypingRelayedToOthers(t *testing.T) {
	f := newHubFixture(t)
	passenger := f.dial(t, "passenger")
	driver := f.dial(t, "driver")
	f.join(t, passenger)
	f.join(t, driver)

	emit(t, passenger, EventTyping, map[string]interface{}{"tripRequestId": f.tripID, "isTyping": true})

	var typing UserTypingData
	expect(t, driver, EventUserTyping, &typing)
	assert.Equal(t, "passenger", typing.UserID)
	assert.True(t, typing.IsTyping)

	emit(t, passenger, EventPing, nil)
	expect(t, passenger, EventPong, nil)
}

func TestTypingRequiresJoinedRoom(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "passenger")

	emit(t, conn, EventTyping, map[string]interface{}{"tripRequestId": f.tripID, "isTyping": true})
	var errData ErrorData
	expect(t, conn, EventError, &errData)
	assert.Equal(t, apperrors.CodeForbidden, errData.Code)
}

func TestLeaveChatStopsBroadcasts(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "passenger")
	f.join(t, conn)

	emit(t, conn, EventLeaveChat, map[string]string{"tripRequestId": f.tripID})
	expect(t, conn, EventLeftRoom, nil)
	assert.Equal(t, 0, f.hub.RoomSize(RoomID(f.tripID)))

	f.hub.BroadcastToTrip(f.tripID, services.EventTripRequestStatus, map[string]string{"status": "accepted"})
	emit(t, conn, EventPing, nil)
	expect(t, conn, EventPong, nil)
}

func TestBroadcastToTripFromServices(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "driver")
	f.join(t, conn)

	f.hub.BroadcastToTrip(f.tripID, services.EventTripRequestStatus, services.TripRequestStatusEvent{
		TripRequestID: f.tripID,
		Status:        models.TripRequestStatusCancelled,
	})

	var event services.TripRequestStatusEvent
	expect(t, conn, services.EventTripRequestStatus, &event)
	assert.Equal(t, models.TripRequestStatusCancelled, event.Status)
}

func TestDisconnectLeavesRooms(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "driver")
	f.join(t, conn)
	require.Equal(t, 1, f.hub.RoomSize(RoomID(f.tripID)))

	conn.Close()
	require.Eventually(t, func() bool { return f.hub.RoomSize(RoomID(f.tripID)) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestUnknownEvent(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "driver")

	emit(t, conn, "dance", nil)
	var errData ErrorData
	expect(t, conn, EventError, &errData)
	assert.Equal(t, apperrors.CodeValidation, errData.Code)
}
