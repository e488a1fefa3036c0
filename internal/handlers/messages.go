package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/loci-chat/internal/handlers/dto"
	"github.com/thereayou/loci-chat/internal/messages"
	"github.com/thereayou/loci-chat/internal/middleware"
	"github.com/thereayou/loci-chat/internal/rooms"
)

type MessageHandler struct {
	store  *rooms.Store
	log    *messages.Log
	fanout *Fanout
}

func NewMessageHandler(store *rooms.Store, log *messages.Log, fanout *Fanout) *MessageHandler {
	return &MessageHandler{store: store, log: log, fanout: fanout}
}

// senderName is the display name carried by the caller's token.
func senderName(c *gin.Context) string {
	if claims, ok := middleware.ClaimsFrom(c); ok {
		if claims.NickName != "" {
			return claims.NickName
		}
		return claims.Name
	}
	return ""
}

func (h *MessageHandler) Edit(c *gin.Context) {
	var req dto.EditMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	msg, err := h.log.Edit(ctx, c.Param("messageId"), currentUser(c), req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	if members, err := h.store.MemberIDs(ctx, msg.ChatRoomID); err == nil {
		h.fanout.MessageEdited(ctx, msg, members)
	}
	respond(c, http.StatusOK, dto.NewMessageResponse(msg))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	me := currentUser(c)
	ctx := c.Request.Context()

	msg, err := h.log.Delete(ctx, c.Param("messageId"), me)
	if err != nil {
		respondError(c, err)
		return
	}

	out := dto.MessageDeleted{ChatID: msg.ChatRoomID, MessageID: msg.ID}
	if room, err := h.store.Get(ctx, msg.ChatRoomID, me); err == nil {
		h.fanout.MessageDeleted(ctx, msg, room)
		out.LastMessageID = room.LastMessageID
	}
	respond(c, http.StatusOK, out)
}

func (h *MessageHandler) React(c *gin.Context) {
	var req dto.ReactionRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	msg, err := h.log.AddReaction(ctx, c.Param("messageId"), currentUser(c), req.Tag)
	if err != nil {
		respondError(c, err)
		return
	}
	if members, err := h.store.MemberIDs(ctx, msg.ChatRoomID); err == nil {
		h.fanout.Reaction(ctx, msg, members)
	}
	respond(c, http.StatusOK, dto.NewMessageResponse(msg))
}
