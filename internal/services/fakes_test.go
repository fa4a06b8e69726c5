package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"carpool-backend/internal/models"
	"carpool-backend/internal/repository"

	"github.com/google/uuid"
)

type fakeRouteStore struct {
	mu     sync.Mutex
	routes map[string]models.Route
	err    error
}

func newFakeRouteStore() *fakeRouteStore {
	return &fakeRouteStore{routes: make(map[string]models.Route)}
}

func (f *fakeRouteStore) Create(_ context.Context, route *models.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if route.ID == "" {
		route.ID = uuid.NewString()
	}
	route.CreatedAt = time.Now()
	f.routes[route.ID] = *route
	return nil
}

func (f *fakeRouteStore) GetByID(_ context.Context, id string) (*models.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.routes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (f *fakeRouteStore) GetByIDs(_ context.Context, ids []string) ([]models.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Route{}
	for _, id := range ids {
		if r, ok := f.routes[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRouteStore) ForEach(_ context.Context, fn func(route *models.Route) error) error {
	f.mu.Lock()
	routes := make([]models.Route, 0, len(f.routes))
	for _, r := range f.routes {
		routes = append(routes, r)
	}
	f.mu.Unlock()
	for i := range routes {
		if err := fn(&routes[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRouteStore) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.routes, id)
}

type fakeTripStore struct {
	mu       sync.Mutex
	requests map[string]models.TripRequest
	updates  int
}

func newFakeTripStore() *fakeTripStore {
	return &fakeTripStore{requests: make(map[string]models.TripRequest)}
}

func (f *fakeTripStore) Create(_ context.Context, req *models.TripRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now()
	req.CreatedAt = now.Add(time.Duration(len(f.requests)) * time.Millisecond)
	req.UpdatedAt = req.CreatedAt
	f.requests[req.ID] = *req
	return nil
}

func (f *fakeTripStore) GetByID(_ context.Context, id string) (*models.TripRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (f *fakeTripStore) TransitionFromPending(_ context.Context, id string, to models.TripRequestStatus, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok || r.Status != models.TripRequestStatusPending {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = at
	f.requests[id] = r
	f.updates++
	return true, nil
}

func (f *fakeTripStore) ListByDriver(_ context.Context, driverID string) ([]models.TripRequest, error) {
	return f.list(func(r models.TripRequest) bool { return r.DriverID == driverID }), nil
}

func (f *fakeTripStore) ListByPassenger(_ context.Context, passengerID string) ([]models.TripRequest, error) {
	return f.list(func(r models.TripRequest) bool { return r.PassengerID == passengerID }), nil
}

func (f *fakeTripStore) list(match func(models.TripRequest) bool) []models.TripRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.TripRequest{}
	for _, r := range f.requests {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// forceStatus меняет статус в обход сервиса, имитируя конкурентное изменение
func (f *fakeTripStore) forceStatus(id string, status models.TripRequestStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.requests[id]
	r.Status = status
	f.requests[id] = r
}

type fakeMessageStore struct {
	mu       sync.Mutex
	messages []models.Message
	seq      int64
}

func (f *fakeMessageStore) Create(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	f.seq++
	msg.Seq = f.seq
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeMessageStore) GetByID(_ context.Context, id string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			m := m
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeMessageStore) ListByTripRequest(_ context.Context, tripRequestID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Message{}
	for _, m := range f.messages {
		if m.TripRequestID == tripRequestID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (f *fakeMessageStore) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].ID == id {
			f.messages[i].Read = true
		}
	}
	return nil
}

type fakeUserStore struct {
	mu      sync.Mutex
	users   map[string]models.User // ключ subject/role
	cleared []string
	err     error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User)}
}

func userKey(subject string, role models.UserRole) string {
	return subject + "/" + string(role)
}

func (f *fakeUserStore) UpsertDeviceToken(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	key := userKey(user.Subject, user.Role)
	existing, ok := f.users[key]
	if !ok {
		existing = models.User{ID: uuid.NewString(), Subject: user.Subject, Role: user.Role}
	}
	existing.DeviceToken = user.DeviceToken
	if user.DisplayName != "" {
		existing.DisplayName = user.DisplayName
	}
	if user.Email != "" {
		existing.Email = user.Email
	}
	f.users[key] = existing
	return nil
}

func (f *fakeUserStore) GetBySubjectRole(_ context.Context, subject string, role models.UserRole) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[userKey(subject, role)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUserStore) ListBySubject(_ context.Context, subject string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.User{}
	for _, u := range f.users {
		if u.Subject == subject {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}

func (f *fakeUserStore) DisplayNames(_ context.Context, subjects []string, role models.UserRole) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	names := map[string]string{}
	for _, s := range subjects {
		if u, ok := f.users[userKey(s, role)]; ok && u.DisplayName != "" {
			names[s] = u.DisplayName
		}
	}
	return names, nil
}

func (f *fakeUserStore) ClearDeviceToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, token)
	for k, u := range f.users {
		if u.DeviceToken != nil && *u.DeviceToken == token {
			u.DeviceToken = nil
			f.users[k] = u
		}
	}
	return nil
}

func (f *fakeUserStore) put(u models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userKey(u.Subject, u.Role)] = u
}

type sentNotification struct {
	userID string
	role   models.UserRole
	event  NotificationEvent
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(userID string, role models.UserRole, event NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{userID: userID, role: role, event: event})
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

type broadcast struct {
	tripRequestID string
	event         string
	data          interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcast
}

func (b *recordingBroadcaster) BroadcastToTrip(tripRequestID, event string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcast{tripRequestID: tripRequestID, event: event, data: data})
}

func (b *recordingBroadcaster) all() []broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcast(nil), b.events...)
}
