package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/logger"
	"github.com/thereayou/loci-chat/internal/metrics"
	"github.com/thereayou/loci-chat/internal/services"
)

// MembershipSource tells the hub which rooms a user is in and who else is there.
type MembershipSource interface {
	UserRoomIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	MemberIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)
}

type Options struct {
	IdentifyTimeout time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageSize  int64
	SendBuffer      int
	StoreTimeout    time.Duration
}

func (o Options) PingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

func (o Options) withDefaults() Options {
	if o.IdentifyTimeout <= 0 {
		o.IdentifyTimeout = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 512 * 1024
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	return o
}

// Hub owns every live connection: the per-user session registry (the user's
// inbox), room channel subscriptions and online status transitions.
type Hub struct {
	clients map[uuid.UUID]*Client

	// identified sessions per user
	userClients map[uuid.UUID]map[uuid.UUID]*Client

	// room channel subscribers
	rooms map[uuid.UUID]map[uuid.UUID]*Client

	unregister chan *Client

	mu sync.RWMutex

	// pending online flips, coalesced per user and published by the presence worker
	statusMu      sync.Mutex
	pendingStatus map[uuid.UUID]bool
	statusSignal  chan struct{}

	directory  services.UserDirectory
	membership MembershipSource
	opts       Options

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(directory services.UserDirectory, membership MembershipSource, opts Options) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:       make(map[uuid.UUID]*Client),
		userClients:   make(map[uuid.UUID]map[uuid.UUID]*Client),
		rooms:         make(map[uuid.UUID]map[uuid.UUID]*Client),
		unregister:    make(chan *Client),
		pendingStatus: make(map[uuid.UUID]bool),
		statusSignal:  make(chan struct{}, 1),
		directory:     directory,
		membership:    membership,
		opts:          opts.withDefaults(),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Run serves disconnects until Stop is called.
func (h *Hub) Run() {
	go h.runPresence()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Stop closes every connection and stops the hub.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.closeSend()
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
}

// Register adds a connecting client. It returns once the client can identify.
func (h *Hub) Register(client *Client) {
	if h.ctx.Err() != nil {
		client.closeSend()
		return
	}
	h.registerClient(client)
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	client.mu.Lock()
	client.state = StateConnecting
	client.timer = time.AfterFunc(h.opts.IdentifyTimeout, func() { h.expireIdentify(client) })
	client.mu.Unlock()

	metrics.WSConnections.Inc()
	logger.L().Debug().Str(logger.FieldClientID, client.ID.String()).Msg("client registered")
}

// expireIdentify drops a client that is still connecting. The state is
// checked under h.mu so it cannot race a concurrent Identify.
func (h *Hub) expireIdentify(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.State() != StateConnecting {
		return
	}
	logger.L().Debug().Str(logger.FieldClientID, client.ID.String()).Msg("identify timeout, closing connection")
	client.SendError("identify timeout")
	h.removeClientUnsafe(client)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeClientUnsafe(client)
}

func (h *Hub) removeClientUnsafe(client *Client) {
	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for _, roomID := range client.GetRooms() {
		h.removeFromRoomUnsafe(client, roomID)
	}

	client.mu.Lock()
	wasAuthenticated := client.state == StateAuthenticated
	userID := client.userID
	client.state = StateDisconnected
	if client.timer != nil {
		client.timer.Stop()
	}
	client.mu.Unlock()

	if wasAuthenticated {
		if sessions, ok := h.userClients[userID]; ok {
			delete(sessions, client.ID)
			if len(sessions) == 0 {
				delete(h.userClients, userID)
				metrics.OnlineUsers.Dec()
				h.markStatus(userID, false)
			}
		}
	}

	delete(h.clients, client.ID)
	client.closeSend()
	metrics.WSConnections.Dec()

	logger.L().Debug().
		Str(logger.FieldClientID, client.ID.String()).
		Str(logger.FieldUserID, userID.String()).
		Msg("client unregistered")
}

// Identify authenticates a connecting client as userID and subscribes it to
// the user's inbox. The first session of a user flips them online.
func (h *Hub) Identify(client *Client, userID uuid.UUID, name, nickName string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return ErrNotRegistered
	}

	client.mu.Lock()
	if client.state == StateAuthenticated {
		same := client.userID == userID
		client.mu.Unlock()
		if !same {
			return ErrAlreadyIdentified
		}
		return nil
	}
	client.userID = userID
	client.name = name
	client.nickName = nickName
	client.state = StateAuthenticated
	if client.timer != nil {
		client.timer.Stop()
	}
	client.mu.Unlock()

	sessions, ok := h.userClients[userID]
	if !ok {
		sessions = make(map[uuid.UUID]*Client)
		h.userClients[userID] = sessions
	}
	sessions[client.ID] = client

	if len(sessions) == 1 {
		metrics.OnlineUsers.Inc()
		h.markStatus(userID, true)
	}

	logger.L().Info().
		Str(logger.FieldClientID, client.ID.String()).
		Str(logger.FieldUserID, userID.String()).
		Int("sessions", len(sessions)).
		Msg("client identified")
	return nil
}

// JoinRoom subscribes the connection to a room channel.
func (h *Hub) JoinRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[uuid.UUID]*Client)
	}
	h.rooms[roomID][client.ID] = client

	client.mu.Lock()
	client.rooms[roomID] = true
	client.mu.Unlock()
}

func (h *Hub) LeaveRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomUnsafe(client, roomID)
}

// LeaveRoomAll unsubscribes every session of userID from a room channel.
func (h *Hub) LeaveRoomAll(userID, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.userClients[userID] {
		h.removeFromRoomUnsafe(client, roomID)
	}
}

func (h *Hub) removeFromRoomUnsafe(client *Client, roomID uuid.UUID) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(room, client.ID)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}

	client.mu.Lock()
	delete(client.rooms, roomID)
	client.mu.Unlock()
}

// SendToUser delivers frame to every session of userID and returns how many got it.
func (h *Hub) SendToUser(userID uuid.UUID, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.sendToUserUnsafe(userID, frame)
}

func (h *Hub) sendToUserUnsafe(userID uuid.UUID, frame []byte) int {
	delivered := 0
	for _, client := range h.userClients[userID] {
		if client.enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

// SendToMembers delivers frame to every live session of each member and
// returns the members that had no live session.
func (h *Hub) SendToMembers(memberIDs []uuid.UUID, frame []byte) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var offline []uuid.UUID
	for _, id := range memberIDs {
		if len(h.userClients[id]) == 0 {
			offline = append(offline, id)
			continue
		}
		h.sendToUserUnsafe(id, frame)
	}
	return offline
}

// BroadcastToRoom sends frame to the room channel subscribers except one connection.
func (h *Hub) BroadcastToRoom(roomID uuid.UUID, frame []byte, exceptClientID uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[roomID] {
		if client.ID != exceptClientID {
			client.enqueue(frame)
		}
	}
}

func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID]) > 0
}

func (h *Hub) SessionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID])
}

// OnlineMembers filters memberIDs down to those with a live session.
func (h *Hub) OnlineMembers(memberIDs []uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	online := make([]uuid.UUID, 0, len(memberIDs))
	for _, id := range memberIDs {
		if len(h.userClients[id]) > 0 {
			online = append(online, id)
		}
	}
	return online
}
