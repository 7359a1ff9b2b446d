package relay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eldtechnologies/relay/internal/models"
	"github.com/eldtechnologies/relay/internal/presence"
	"github.com/eldtechnologies/relay/internal/store"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	messages []models.Message
	seq      int

	findErr   error
	listErr   error
	createErr error
	queryErr  error
}

func newFakeStore(ids ...string) *fakeStore {
	s := &fakeStore{users: make(map[string]*models.User)}
	for _, id := range ids {
		s.users[id] = &models.User{ID: id, Name: "User " + id, IsActive: true}
	}
	return s
}

func (s *fakeStore) FindActiveUser(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	u, ok := s.users[id]
	if !ok || !u.IsActive {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) ListUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok && u.IsActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	msg.ID = fmt.Sprintf("%026d", s.seq)
	msg.CreatedAt = baseTime.Add(time.Duration(s.seq) * time.Second)
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *fakeStore) QueryMessages(_ context.Context, f store.MessageFilter, offset, limit int) ([]models.Message, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, 0, s.queryErr
	}

	var matched []models.Message
	for _, m := range s.messages {
		if !m.IsActive {
			continue
		}
		if (m.SenderID == f.UserID && m.ReceiverID == f.OtherUserID) ||
			(m.SenderID == f.OtherUserID && m.ReceiverID == f.UserID) {
			matched = append(matched, m)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *fakeStore) stored() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

type sentEvent struct {
	Event   string
	Payload any
}

type fakeHandle struct {
	id     string
	mu     sync.Mutex
	events []sentEvent
	reject bool
}

func newFakeHandle(id string) *fakeHandle { return &fakeHandle{id: id} }

func (h *fakeHandle) HandleID() string { return h.id }

func (h *fakeHandle) Send(event string, payload any) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reject {
		return false
	}
	h.events = append(h.events, sentEvent{Event: event, Payload: payload})
	return true
}

func (h *fakeHandle) named(event string) []sentEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sentEvent
	for _, e := range h.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (h *fakeHandle) last() sentEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return sentEvent{}
	}
	return h.events[len(h.events)-1]
}

func (h *fakeHandle) reset() {
	h.mu.Lock()
	h.events = nil
	h.mu.Unlock()
}

// cancellingDirectory cancels the caller's context once the receiver lookup
// returns, as a connection closing mid-send would.
type cancellingDirectory struct {
	store.UserDirectory
	cancel context.CancelFunc
}

func (d *cancellingDirectory) FindActiveUser(ctx context.Context, id string) (*models.User, error) {
	u, err := d.UserDirectory.FindActiveUser(ctx, id)
	d.cancel()
	return u, err
}

// eagerRegistry delivers an event to every handle the moment it is
// registered, as a concurrent sender would.
type eagerRegistry struct {
	presence.Registry
}

func (r eagerRegistry) Set(identity string, h presence.Handle) (presence.Handle, bool) {
	prev, replaced := r.Registry.Set(identity, h)
	h.Send(EventReceiveMessage, &models.Message{ReceiverID: identity, Text: "early"})
	return prev, replaced
}
