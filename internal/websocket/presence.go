package websocket

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/logger"
)

// markStatus records the latest online state for userID. Callers hold h.mu,
// which keeps transitions of one user in order.
func (h *Hub) markStatus(userID uuid.UUID, online bool) {
	h.statusMu.Lock()
	h.pendingStatus[userID] = online
	h.statusMu.Unlock()

	select {
	case h.statusSignal <- struct{}{}:
	default:
	}
}

func (h *Hub) takePendingStatus() map[uuid.UUID]bool {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()

	batch := h.pendingStatus
	h.pendingStatus = make(map[uuid.UUID]bool, len(batch))
	return batch
}

// runPresence publishes online flips off the registration path so directory
// and membership lookups never stall the hub. A flip that is undone before it
// is published collapses into nothing.
func (h *Hub) runPresence() {
	published := make(map[uuid.UUID]bool) // users last announced online

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.statusSignal:
		}

		for userID, online := range h.takePendingStatus() {
			if online == published[userID] {
				continue
			}
			if online {
				published[userID] = true
			} else {
				delete(published, userID)
			}
			h.publishStatus(userID, online)
		}
	}
}

func (h *Hub) publishStatus(userID uuid.UUID, online bool) {
	ctx, cancel := context.WithTimeout(h.ctx, h.opts.StoreTimeout)
	defer cancel()

	log := logger.L().With().Str(logger.FieldUserID, userID.String()).Bool("online", online).Logger()

	if h.directory != nil {
		if err := h.directory.SetOnline(ctx, userID, online); err != nil {
			log.Warn().Err(err).Msg("failed to update online flag")
		}
	}
	if h.membership == nil {
		return
	}

	roomIDs, err := h.membership.UserRoomIDs(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load rooms for status broadcast")
		return
	}

	for _, roomID := range roomIDs {
		members, err := h.membership.MemberIDs(ctx, roomID)
		if err != nil {
			log.Warn().Err(err).Str(logger.FieldChatID, roomID.String()).Msg("failed to load members for status broadcast")
			continue
		}

		frame, err := Encode(EventUserOnlineStatus, StatusPayload{
			MemberID:     userID.String(),
			ChatID:       roomID.String(),
			OnlineStatus: online,
		})
		if err != nil {
			continue
		}
		for _, memberID := range members {
			if memberID != userID {
				h.SendToUser(memberID, frame)
			}
		}
	}
	log.Debug().Int("rooms", len(roomIDs)).Msg("online status published")
}
