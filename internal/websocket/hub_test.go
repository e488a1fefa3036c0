package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/apperrors"
	"github.com/thereayou/loci-chat/internal/services"
)

type fakeDirectory struct {
	mu    sync.Mutex
	flips map[uuid.UUID][]bool
}

func (d *fakeDirectory) GetUser(_ context.Context, id uuid.UUID) (*services.DirectoryUser, error) {
	return &services.DirectoryUser{ID: id}, nil
}

func (d *fakeDirectory) SetOnline(_ context.Context, id uuid.UUID, online bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.flips == nil {
		d.flips = make(map[uuid.UUID][]bool)
	}
	d.flips[id] = append(d.flips[id], online)
	return nil
}

func (d *fakeDirectory) history(id uuid.UUID) []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.flips[id]...)
}

type fakeMembership struct {
	rooms   map[uuid.UUID][]uuid.UUID
	members map[uuid.UUID][]uuid.UUID
}

func (m *fakeMembership) UserRoomIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return m.rooms[userID], nil
}

func (m *fakeMembership) MemberIDs(_ context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	return m.members[roomID], nil
}

func newTestHub(t *testing.T, dir services.UserDirectory, membership MembershipSource) *Hub {
	t.Helper()
	h := NewHub(dir, membership, Options{IdentifyTimeout: time.Minute, SendBuffer: 16})
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func connect(t *testing.T, h *Hub, userID uuid.UUID) *Client {
	t.Helper()
	c := NewClient(h, nil, userID)
	h.Register(c)
	if err := h.Identify(c, userID, "name", "nick"); err != nil {
		t.Fatalf("identify: %v", err)
	}
	return c
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func drain(c *Client) []Frame {
	var frames []Frame
	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return frames
			}
			var f Frame
			if err := json.Unmarshal(raw, &f); err == nil {
				frames = append(frames, f)
			}
		default:
			return frames
		}
	}
}

func statusEvents(frames []Frame) []StatusPayload {
	var out []StatusPayload
	for _, f := range frames {
		if f.Event != EventUserOnlineStatus {
			continue
		}
		var p StatusPayload
		if err := json.Unmarshal(f.Data, &p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func TestTwoDevicesFlipOfflineOnce(t *testing.T) {
	alice, bob, room := uuid.New(), uuid.New(), uuid.New()
	dir := &fakeDirectory{}
	h := newTestHub(t, dir, &fakeMembership{
		rooms:   map[uuid.UUID][]uuid.UUID{alice: {room}, bob: {room}},
		members: map[uuid.UUID][]uuid.UUID{room: {alice, bob}},
	})

	bobConn := connect(t, h, bob)
	eventually(t, func() bool { return len(dir.history(bob)) == 1 }, "bob never went online")
	drain(bobConn)

	phone := connect(t, h, alice)
	eventually(t, func() bool { return len(dir.history(alice)) == 1 }, "alice never went online")
	laptop := connect(t, h, alice)

	if got := h.SessionCount(alice); got != 2 {
		t.Fatalf("expected 2 sessions, got %d", got)
	}

	h.Unregister(laptop)
	eventually(t, func() bool { return h.SessionCount(alice) == 1 }, "laptop not unregistered")
	if !h.IsOnline(alice) {
		t.Fatal("alice should stay online with one device left")
	}

	h.Unregister(phone)
	eventually(t, func() bool { return len(dir.history(alice)) == 2 }, "alice never went offline")
	time.Sleep(20 * time.Millisecond)

	if got := dir.history(alice); got[0] != true || got[1] != false || len(got) != 2 {
		t.Fatalf("expected [true false], got %v", got)
	}

	events := statusEvents(drain(bobConn))
	if len(events) != 2 {
		t.Fatalf("expected online and offline events, got %+v", events)
	}
	if !events[0].OnlineStatus || events[1].OnlineStatus {
		t.Fatalf("unexpected status order: %+v", events)
	}
	if events[1].MemberID != alice.String() || events[1].ChatID != room.String() {
		t.Fatalf("unexpected payload: %+v", events[1])
	}
}

func TestIdentifyTimeoutClosesConnection(t *testing.T) {
	h := NewHub(&fakeDirectory{}, nil, Options{IdentifyTimeout: 20 * time.Millisecond, SendBuffer: 4})
	go h.Run()
	t.Cleanup(h.Stop)

	c := NewClient(h, nil, uuid.New())
	h.Register(c)

	eventually(t, func() bool { return c.State() == StateDisconnected }, "client not closed after identify timeout")
	if err := h.Identify(c, c.TokenUserID, "", ""); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestIdentifyTimeoutSparesIdentifiedClient(t *testing.T) {
	dir := &fakeDirectory{}
	h := newTestHub(t, dir, nil)
	user := uuid.New()
	c := connect(t, h, user)

	// timer fired just as Identify won the lock
	h.expireIdentify(c)

	if c.State() != StateAuthenticated || !h.IsOnline(user) {
		t.Fatalf("identified client dropped by a late timeout, state %s", c.State())
	}
	if frames := drain(c); len(frames) != 0 {
		t.Fatalf("expected no socketError, got %+v", frames)
	}
}

func TestIdentifyAsAnotherUserRejected(t *testing.T) {
	h := newTestHub(t, &fakeDirectory{}, nil)
	user := uuid.New()
	c := connect(t, h, user)

	if err := h.Identify(c, user, "name", "nick"); err != nil {
		t.Fatalf("re-identify as same user: %v", err)
	}
	err := h.Identify(c, uuid.New(), "", "")
	if !errors.Is(err, ErrAlreadyIdentified) {
		t.Fatalf("expected ErrAlreadyIdentified, got %v", err)
	}
	if apperrors.KindOf(err) != apperrors.KindProtocol {
		t.Fatalf("expected protocol error, got %v", apperrors.KindOf(err))
	}
}

func TestBroadcastToRoomSkipsSender(t *testing.T) {
	h := newTestHub(t, &fakeDirectory{}, nil)
	room := uuid.New()
	a := connect(t, h, uuid.New())
	b := connect(t, h, uuid.New())
	outsider := connect(t, h, uuid.New())
	h.JoinRoom(a, room)
	h.JoinRoom(b, room)

	frame, _ := Encode(EventStartTyping, TypingPayload{ChatID: room.String(), UserID: a.UserID().String()})
	h.BroadcastToRoom(room, frame, a.ID)

	if got := len(drain(b)); got != 1 {
		t.Fatalf("expected 1 frame for b, got %d", got)
	}
	if got := len(drain(a)); got != 0 {
		t.Fatalf("sender should not get its own typing frame, got %d", got)
	}
	if got := len(drain(outsider)); got != 0 {
		t.Fatalf("outsider should not get room frames, got %d", got)
	}

	h.LeaveRoomAll(b.UserID(), room)
	h.BroadcastToRoom(room, frame, a.ID)
	if got := len(drain(b)); got != 0 {
		t.Fatalf("expected no frames after leaving, got %d", got)
	}
}

func TestSendToMembersReportsOffline(t *testing.T) {
	h := newTestHub(t, &fakeDirectory{}, nil)
	online := uuid.New()
	offline := uuid.New()
	first := connect(t, h, online)
	second := connect(t, h, online)

	frame, _ := Encode(EventServerMessage, "hi")
	missed := h.SendToMembers([]uuid.UUID{online, offline}, frame)

	if len(missed) != 1 || missed[0] != offline {
		t.Fatalf("expected only %s offline, got %v", offline, missed)
	}
	if len(drain(first)) != 1 || len(drain(second)) != 1 {
		t.Fatal("every session of an online member should receive the frame")
	}
	if got := h.OnlineMembers([]uuid.UUID{online, offline}); len(got) != 1 || got[0] != online {
		t.Fatalf("unexpected online members %v", got)
	}
}

func TestFullBufferDropsFrames(t *testing.T) {
	h := NewHub(&fakeDirectory{}, nil, Options{IdentifyTimeout: time.Minute, SendBuffer: 1})
	go h.Run()
	t.Cleanup(h.Stop)

	user := uuid.New()
	c := NewClient(h, nil, user)
	h.Register(c)
	if err := h.Identify(c, user, "", ""); err != nil {
		t.Fatalf("identify: %v", err)
	}

	frame, _ := Encode(EventServerMessage, "x")
	if n := h.SendToUser(user, frame); n != 1 {
		t.Fatalf("expected first frame delivered, got %d", n)
	}
	if n := h.SendToUser(user, frame); n != 0 {
		t.Fatalf("expected second frame dropped, got %d", n)
	}
}

func TestSendAfterUnregisterIsSafe(t *testing.T) {
	h := newTestHub(t, &fakeDirectory{}, nil)
	user := uuid.New()
	c := connect(t, h, user)

	h.Unregister(c)
	eventually(t, func() bool { return c.State() == StateDisconnected }, "client not unregistered")

	if err := c.SendEvent(EventServerMessage, "late"); !errors.Is(err, ErrClientQueueFull) {
		t.Fatalf("expected ErrClientQueueFull after close, got %v", err)
	}
	if h.IsOnline(user) {
		t.Fatal("user should be offline")
	}
}
