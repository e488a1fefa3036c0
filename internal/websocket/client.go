package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/thereayou/loci-chat/internal/apperrors"
	"github.com/thereayou/loci-chat/internal/logger"
	"github.com/thereayou/loci-chat/internal/metrics"
)

// State of a live connection.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

type ClientMessageHandler interface {
	HandleMessage(client *Client, frame *Frame) error
}

// Client is one live connection. UserID and names are set on identify;
// TokenUserID is the user the upgrade request authenticated as.
type Client struct {
	ID          uuid.UUID
	TokenUserID uuid.UUID
	Conn        *websocket.Conn
	Send        chan []byte
	Hub         *Hub

	mu       sync.RWMutex
	userID   uuid.UUID
	name     string
	nickName string
	state    State
	rooms    map[uuid.UUID]bool
	timer    *time.Timer

	sendMu sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, tokenUserID uuid.UUID) *Client {
	return &Client{
		ID:          uuid.New(),
		TokenUserID: tokenUserID,
		Conn:        conn,
		Send:        make(chan []byte, hub.opts.SendBuffer),
		Hub:         hub,
		rooms:       make(map[uuid.UUID]bool),
	}
}

func (c *Client) UserID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) Names() (name, nickName string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name, c.nickName
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) IsInRoom(roomID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[roomID]
}

func (c *Client) GetRooms() []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]uuid.UUID, 0, len(c.rooms))
	for roomID := range c.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// enqueue never blocks; a full buffer drops the frame.
func (c *Client) enqueue(frame []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- frame:
		return true
	default:
		metrics.DroppedFrames.Inc()
		logger.L().Warn().Str(logger.FieldClientID, c.ID.String()).Msg("client send buffer full, dropping frame")
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// ReadPump reads frames until the connection fails, then unregisters the client.
func (c *Client) ReadPump(handler ClientMessageHandler) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	opts := c.Hub.opts
	c.Conn.SetReadLimit(opts.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L().Debug().Err(err).Str(logger.FieldClientID, c.ID.String()).Msg("websocket read error")
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			c.SendError("malformed event")
			continue
		}
		metrics.EventsReceived.WithLabelValues(frame.Event).Inc()

		if handler != nil {
			if err := handler.HandleMessage(c, &frame); err != nil {
				c.SendError(apperrors.PublicMessage(err))
			}
		}
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
	opts := c.Hub.opts
	ticker := time.NewTicker(opts.PingPeriod())
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) SendEvent(event string, data interface{}) error {
	frame, err := Encode(event, data)
	if err != nil {
		return err
	}
	if !c.enqueue(frame) {
		return ErrClientQueueFull
	}
	return nil
}

func (c *Client) SendError(msg string) {
	_ = c.SendEvent(EventSocketError, msg)
}

func (c *Client) SendServerMessage(msg string) {
	_ = c.SendEvent(EventServerMessage, msg)
}
