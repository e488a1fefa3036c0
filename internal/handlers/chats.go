package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/apperrors"
	"github.com/thereayou/loci-chat/internal/handlers/dto"
	"github.com/thereayou/loci-chat/internal/messages"
	"github.com/thereayou/loci-chat/internal/models"
	"github.com/thereayou/loci-chat/internal/rooms"
	"github.com/thereayou/loci-chat/internal/services"
	"github.com/thereayou/loci-chat/internal/websocket"
)

type ChatHandler struct {
	store  *rooms.Store
	log    *messages.Log
	hub    *websocket.Hub
	fanout *Fanout
}

func NewChatHandler(store *rooms.Store, log *messages.Log, hub *websocket.Hub, fanout *Fanout) *ChatHandler {
	return &ChatHandler{store: store, log: log, hub: hub, fanout: fanout}
}

func pageParams(c *gin.Context) (page, limit int, ok bool) {
	page, limit = 1, 0
	var err error
	if v := c.Query("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			respondError(c, apperrors.Validation("page must be a positive integer"))
			return 0, 0, false
		}
	}
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			respondError(c, apperrors.Validation("limit must be a positive integer"))
			return 0, 0, false
		}
	}
	return page, limit, true
}

// CreateDirect opens a one-to-one chat, optionally with a first message.
func (h *ChatHandler) CreateDirect(c *gin.Context) {
	me := currentUser(c)

	var req dto.CreateDirectChatRequest
	if !bindJSON(c, &req) {
		return
	}

	content := messages.Content{MediaURL: req.MediaURL, MediaKind: models.MediaKind(req.MediaKind)}
	if req.Message != nil {
		content.Text = *req.Message
	}
	if req.Bundled() {
		if content.Empty() {
			respondError(c, apperrors.ErrPrivateChatRequiresContent)
			return
		}
		if _, err := content.Normalize(); err != nil {
			respondError(c, err)
			return
		}
	}

	ctx := c.Request.Context()
	room, err := h.store.CreateOneToOne(ctx, me, req.MemberID, me)
	if err != nil {
		respondError(c, err)
		return
	}
	h.fanout.RoomCreated(ctx, room, me)

	if !req.Bundled() {
		respond(c, http.StatusCreated, dto.NewChatResponse(room))
		return
	}

	sent, err := h.log.Send(ctx, room.ID, me, content)
	if err != nil {
		respondError(c, err)
		return
	}
	h.fanout.MessageSent(ctx, sent, senderName(c))

	room, err = h.store.Get(ctx, room.ID, me)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{
		"chat":    dto.NewChatResponse(room),
		"message": dto.NewMessageResponse(sent.Message),
	})
}

// FindDirect looks up the one-to-one chat with ?userId=.
func (h *ChatHandler) FindDirect(c *gin.Context) {
	other, err := uuid.Parse(c.Query("userId"))
	if err != nil {
		respondError(c, apperrors.Validation("invalid userId"))
		return
	}

	room, err := h.store.FindOneToOne(c.Request.Context(), currentUser(c), other)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, dto.NewChatResponse(room))
}

func (h *ChatHandler) CreateGroup(c *gin.Context) {
	me := currentUser(c)

	var req dto.CreateGroupChatRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	room, err := h.store.CreateGroup(ctx, rooms.GroupInput{
		RoomName:     req.RoomName,
		Members:      req.Members,
		Admins:       req.Admins,
		RoomPrivacy:  models.RoomPrivacy(req.RoomPrivacy),
		ProfileImage: req.ProfileImage,
	}, me)
	if err != nil {
		respondError(c, err)
		return
	}
	h.fanout.RoomCreated(ctx, room, me)
	respond(c, http.StatusCreated, dto.NewChatResponse(room))
}

// List returns the caller's chats, most recently active first.
func (h *ChatHandler) List(c *gin.Context) {
	me := currentUser(c)

	list, err := h.store.List(c.Request.Context(), me)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.ChatListItem, 0, len(list))
	for i := range list {
		items = append(items, dto.NewChatListItem(&list[i], me))
	}
	respond(c, http.StatusOK, items)
}

func (h *ChatHandler) Get(c *gin.Context) {
	roomID, ok := uuidParam(c, "chatId")
	if !ok {
		return
	}

	room, err := h.store.Get(c.Request.Context(), roomID, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.NewChatResponse(room)
	resp.OnlineMembers = h.hub.OnlineMembers(room.MemberIDs())
	respond(c, http.StatusOK, resp)
}

func (h *ChatHandler) Update(c *gin.Context) {
	roomID, ok := uuidParam(c, "chatId")
	if !ok {
		return
	}

	var req dto.UpdateChatRequest
	if !bindJSON(c, &req) {
		return
	}
	patch := services.RoomPatch{
		RoomName:     req.RoomName,
		ProfileImage: req.ProfileImage,
		Admins:       req.Admins,
	}
	if req.RoomPrivacy != nil {
		p := models.RoomPrivacy(*req.RoomPrivacy)
		patch.RoomPrivacy = &p
	}

	ctx := c.Request.Context()
	room, err := h.store.UpdateDetails(ctx, roomID, currentUser(c), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	h.fanout.DetailsUpdated(ctx, room)
	respond(c, http.StatusOK, dto.NewChatResponse(room))
}

func (h *ChatHandler) Delete(c *gin.Context) {
	roomID, ok := uuidParam(c, "chatId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	room, err := h.store.Delete(ctx, roomID, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.fanout.RoomDeleted(ctx, room, room.MemberIDs())
	respond(c, http.StatusOK, gin.H{"chatId": room.ID})
}

func (h *ChatHandler) AddMember(c *gin.Context) {
	roomID, ok := uuidParam(c, "chatId")
	if !ok {
		return
	}

	var req dto.AddMemberRequest
	if !bindJSON(c, &req) {
		return
	}

	me := currentUser(c)
	ctx := c.Request.Context()
	room, err := h.store.AddMember(ctx, roomID, req.MemberID, me)
	if err != nil {
		respondError(c, err)
		return
	}
	h.fanout.MemberAdded(ctx, room, req.MemberID, me)
	respond(c, http.StatusOK, dto.NewChatResponse(room))
}

func (h *ChatHandler) RemoveMember(c *gin.Context) {
	roomID, ok := uuidParam(c, "chatId")
	if !ok {
		return
	}
	memberID, ok := uuidParam(c, "memberId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	removal, err := h.store.RemoveMember(ctx, roomID, memberID, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.fanout.MemberRemoved(ctx, removal)
	respondRemoval(c, removal)
}

func (h *ChatHandler) Leave(c *gin.Context) {
	roomID, ok := uuidParam(c, "chatId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	removal, err := h.store.Leave(ctx, roomID, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.fanout.MemberRemoved(ctx, removal)
	respondRemoval(c, removal)
}

func respondRemoval(c *gin.Context, removal *rooms.Removal) {
	body := gin.H{
		"chatId":          removal.Room.ID,
		"memberId":        removal.MemberID,
		"chatDeleted":     removal.RoomDeleted,
		"messagesDeleted": removal.MessagesDeleted,
	}
	if !removal.RoomDeleted {
		body["chat"] = dto.NewChatResponse(removal.Room)
	}
	respond(c, http.StatusOK, body)
}

// DeleteMemberMessages wipes one member's messages in a chat. Self or admin.
func (h *ChatHandler) DeleteMemberMessages(c *gin.Context) {
	roomID, ok := uuidParam(c, "chatId")
	if !ok {
		return
	}
	memberID, ok := uuidParam(c, "memberId")
	if !ok {
		return
	}

	me := currentUser(c)
	ctx := c.Request.Context()
	room, err := h.store.Get(ctx, roomID, me)
	if err != nil {
		respondError(c, err)
		return
	}
	if memberID != me && !room.IsAdmin(me) {
		respondError(c, apperrors.ErrNotAdmin)
		return
	}

	n, err := h.log.DeleteAllBySender(ctx, roomID, memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"chatId": roomID, "memberId": memberID, "deleted": n})
}

func (h *ChatHandler) Read(c *gin.Context) {
	roomID, ok := uuidParam(c, "chatId")
	if !ok {
		return
	}

	me := currentUser(c)
	ctx := c.Request.Context()
	if err := h.log.ResetUnread(ctx, roomID, me); err != nil {
		respondError(c, err)
		return
	}
	h.fanout.UnreadReset(ctx, me, roomID)
	respond(c, http.StatusOK, dto.UnreadReset{ChatID: roomID})
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	roomID, ok := uuidParam(c, "chatId")
	if !ok {
		return
	}
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}

	p, err := h.log.List(c.Request.Context(), roomID, currentUser(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, dto.MessagePage{
		Messages:   dto.NewMessageList(p.Messages),
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      p.Total,
		TotalPages: p.TotalPages,
	})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	roomID, ok := uuidParam(c, "chatId")
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	sent, err := h.log.Send(ctx, roomID, currentUser(c), messages.Content{
		Text:      req.Message,
		MediaURL:  req.MediaURL,
		MediaKind: models.MediaKind(req.MediaKind),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.fanout.MessageSent(ctx, sent, senderName(c))
	respond(c, http.StatusCreated, dto.NewMessageResponse(sent.Message))
}
