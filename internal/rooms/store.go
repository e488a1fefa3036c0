// Package rooms implements the room store: one-to-one and group rooms,
// membership and admin invariants.
package rooms

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/apperrors"
	"github.com/thereayou/loci-chat/internal/logger"
	"github.com/thereayou/loci-chat/internal/metrics"
	"github.com/thereayou/loci-chat/internal/models"
	"github.com/thereayou/loci-chat/internal/retry"
	"github.com/thereayou/loci-chat/internal/services"
	"golang.org/x/sync/errgroup"
)

const directoryLookupConcurrency = 8

// MessagePurger removes messages when membership or rooms go away.
type MessagePurger interface {
	DeleteAllBySender(ctx context.Context, roomID, senderID uuid.UUID) (int64, error)
	DeleteRoomMessages(ctx context.Context, roomID uuid.UUID) error
}

type Store struct {
	repo      services.RoomRepository
	directory services.UserDirectory
	purger    MessagePurger
}

func NewStore(repo services.RoomRepository, directory services.UserDirectory, purger MessagePurger) *Store {
	return &Store{repo: repo, directory: directory, purger: purger}
}

// CreateOneToOne opens a direct room between a and b. createdBy must be one of them.
func (s *Store) CreateOneToOne(ctx context.Context, a, b, createdBy uuid.UUID) (*models.Room, error) {
	if a == b {
		return nil, apperrors.ErrSelfChat
	}
	if createdBy != a && createdBy != b {
		return nil, apperrors.Validation("creator must be a member of the chat")
	}

	users, err := s.lookupUsers(ctx, []uuid.UUID{a, b})
	if err != nil {
		return nil, err
	}
	if users[0].HasBlocked(b) || users[1].HasBlocked(a) {
		return nil, apperrors.ErrBlocked
	}

	key := models.DirectKey(a, b)
	if _, err := s.repo.FindDirectRoom(ctx, key); err == nil {
		return nil, apperrors.ErrRoomExists
	} else if !errors.Is(err, apperrors.ErrRoomNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	room := &models.Room{
		ID:          uuid.New(),
		IsGroupChat: false,
		RoomPrivacy: models.PrivacyPrivate,
		CreatedBy:   createdBy,
		DirectKey:   &key,
		MemberCount: 2,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, id := range []uuid.UUID{a, b} {
		room.Members = append(room.Members, models.RoomMember{
			RoomID:   room.ID,
			UserID:   id,
			IsAdmin:  id == createdBy,
			JoinedAt: now,
		})
	}

	// The unique index on direct_key turns a lost race into ErrRoomExists.
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	metrics.RoomsCreated.WithLabelValues(room.Kind()).Inc()
	return room, nil
}

// FindOneToOne returns the direct room for the unordered pair.
func (s *Store) FindOneToOne(ctx context.Context, a, b uuid.UUID) (*models.Room, error) {
	if a == b {
		return nil, apperrors.ErrSelfChat
	}
	return retry.Value(ctx, func() (*models.Room, error) {
		return s.repo.FindDirectRoom(ctx, models.DirectKey(a, b))
	})
}

type GroupInput struct {
	RoomName     string
	Members      []uuid.UUID
	Admins       []uuid.UUID
	RoomPrivacy  models.RoomPrivacy
	ProfileImage *string
}

func (s *Store) CreateGroup(ctx context.Context, in GroupInput, createdBy uuid.UUID) (*models.Room, error) {
	name := strings.TrimSpace(in.RoomName)
	if name == "" {
		return nil, apperrors.Validation("roomName is required")
	}
	privacy, err := normalizePrivacy(in.RoomPrivacy)
	if err != nil {
		return nil, err
	}

	members := dedupe(append([]uuid.UUID{createdBy}, in.Members...))
	if len(members) < models.MinGroupMembers {
		return nil, apperrors.ErrInsufficientMembers
	}
	if len(members) > models.MaxGroupMembers {
		return nil, apperrors.ErrTooManyMembers
	}

	admins := dedupe(in.Admins)
	if len(admins) == 0 {
		admins = []uuid.UUID{createdBy}
	}
	if len(admins) > models.MaxGroupAdmins {
		return nil, apperrors.ErrTooManyAdmins
	}
	adminSet := make(map[uuid.UUID]bool, len(admins))
	for _, id := range admins {
		adminSet[id] = true
	}
	if !containsAll(members, admins) {
		return nil, apperrors.Validation("admins must be members of the chat")
	}

	if _, err := s.lookupUsers(ctx, members); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	room := &models.Room{
		ID:           uuid.New(),
		IsGroupChat:  true,
		RoomName:     name,
		RoomPrivacy:  privacy,
		ProfileImage: in.ProfileImage,
		CreatedBy:    createdBy,
		MemberCount:  len(members),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, id := range members {
		room.Members = append(room.Members, models.RoomMember{
			RoomID:   room.ID,
			UserID:   id,
			IsAdmin:  adminSet[id],
			JoinedAt: now,
		})
	}

	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	metrics.RoomsCreated.WithLabelValues(room.Kind()).Inc()
	return room, nil
}

func (s *Store) AddMember(ctx context.Context, roomID, memberID, actingAdminID uuid.UUID) (*models.Room, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsGroupChat {
		return nil, apperrors.ErrOneToOneImmutable
	}
	if !room.IsAdmin(actingAdminID) {
		return nil, apperrors.ErrNotAdmin
	}
	if room.HasMember(memberID) {
		return nil, apperrors.ErrAlreadyMember
	}
	if _, err := s.lookupUsers(ctx, []uuid.UUID{memberID}); err != nil {
		return nil, err
	}

	if err := s.repo.AddMember(ctx, roomID, memberID, models.MaxGroupMembers); err != nil {
		return nil, err
	}
	return s.repo.GetRoom(ctx, roomID)
}

// Removal describes the outcome of a member leaving or being removed.
type Removal struct {
	Room            *models.Room // state after removal, or the last state before deletion
	MemberID        uuid.UUID
	RoomDeleted     bool
	MessagesDeleted int64
}

func (s *Store) Leave(ctx context.Context, roomID, memberID uuid.UUID) (*Removal, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.remove(ctx, room, memberID)
}

// RemoveMember lets an admin remove another member. Removing yourself is a leave.
func (s *Store) RemoveMember(ctx context.Context, roomID, memberID, actingAdminID uuid.UUID) (*Removal, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if memberID != actingAdminID && !room.IsAdmin(actingAdminID) {
		if !room.IsGroupChat {
			return nil, apperrors.ErrOneToOneImmutable
		}
		return nil, apperrors.ErrNotAdmin
	}
	return s.remove(ctx, room, memberID)
}

func (s *Store) remove(ctx context.Context, room *models.Room, memberID uuid.UUID) (*Removal, error) {
	if !room.IsGroupChat {
		return nil, apperrors.ErrOneToOneImmutable
	}
	if !room.HasMember(memberID) {
		return nil, apperrors.ErrNotMember
	}

	remaining, err := s.repo.RemoveMember(ctx, room.ID, memberID)
	if err != nil {
		return nil, err
	}

	log := logger.Ctx(ctx).With().Str(logger.FieldChatID, room.ID.String()).Str(logger.FieldUserID, memberID.String()).Logger()
	out := &Removal{MemberID: memberID}

	purged, err := s.purger.DeleteAllBySender(ctx, room.ID, memberID)
	if err != nil {
		log.Error().Err(err).Msg("failed to delete messages of removed member")
	}
	out.MessagesDeleted = purged

	if remaining <= 1 {
		if err := s.deleteRoom(ctx, room.ID); err != nil {
			return nil, err
		}
		kept := room.Members[:0:0]
		for _, m := range room.Members {
			if m.UserID != memberID {
				kept = append(kept, m)
			}
		}
		room.Members = kept
		out.Room = room
		out.RoomDeleted = true
		log.Info().Msg("chat deleted after last member left")
		return out, nil
	}

	updated, err := s.repo.GetRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	out.Room = updated
	return out, nil
}

// UpdateDetails patches name, privacy, image or the admin set. Admin only.
func (s *Store) UpdateDetails(ctx context.Context, roomID, actingAdminID uuid.UUID, patch services.RoomPatch) (*models.Room, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsGroupChat {
		return nil, apperrors.ErrOneToOneImmutable
	}
	if !room.IsAdmin(actingAdminID) {
		return nil, apperrors.ErrNotAdmin
	}

	if patch.RoomName != nil {
		name := strings.TrimSpace(*patch.RoomName)
		if name == "" {
			return nil, apperrors.Validation("roomName cannot be empty")
		}
		patch.RoomName = &name
	}
	if patch.RoomPrivacy != nil {
		p, err := normalizePrivacy(*patch.RoomPrivacy)
		if err != nil {
			return nil, err
		}
		patch.RoomPrivacy = &p
	}
	if patch.Admins != nil {
		admins := dedupe(patch.Admins)
		if len(admins) == 0 {
			return nil, apperrors.Validation("admins cannot be empty")
		}
		if len(admins) > models.MaxGroupAdmins {
			return nil, apperrors.ErrTooManyAdmins
		}
		if !containsAll(room.MemberIDs(), admins) {
			return nil, apperrors.ErrNotMember.WithMessage("admins must be members of the chat")
		}
		patch.Admins = admins
	}

	if err := s.repo.UpdateRoomDetails(ctx, roomID, patch); err != nil {
		return nil, err
	}
	return s.repo.GetRoom(ctx, roomID)
}

// Delete removes the room and its messages. Admin only.
func (s *Store) Delete(ctx context.Context, roomID, actingAdminID uuid.UUID) (*models.Room, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsAdmin(actingAdminID) {
		if !room.HasMember(actingAdminID) {
			return nil, apperrors.ErrNotMember
		}
		return nil, apperrors.ErrNotAdmin
	}
	if err := s.deleteRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return room, nil
}

// deleteRoom drops messages first, then the room. A failure in between leaves
// orphan messages but never a room pointing at missing data.
func (s *Store) deleteRoom(ctx context.Context, roomID uuid.UUID) error {
	if err := s.purger.DeleteRoomMessages(ctx, roomID); err != nil {
		return err
	}
	return s.repo.DeleteRoom(ctx, roomID)
}

// Get returns the room if requesterID is a member.
func (s *Store) Get(ctx context.Context, roomID, requesterID uuid.UUID) (*models.Room, error) {
	room, err := retry.Value(ctx, func() (*models.Room, error) { return s.repo.GetRoom(ctx, roomID) })
	if err != nil {
		return nil, err
	}
	if !room.HasMember(requesterID) {
		return nil, apperrors.ErrNotMember
	}
	return room, nil
}

func (s *Store) List(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	return retry.Value(ctx, func() ([]models.Room, error) { return s.repo.ListUserRooms(ctx, userID) })
}

func (s *Store) MemberIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	return retry.Value(ctx, func() ([]uuid.UUID, error) { return s.repo.RoomMemberIDs(ctx, roomID) })
}

func (s *Store) UserRoomIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return retry.Value(ctx, func() ([]uuid.UUID, error) { return s.repo.UserRoomIDs(ctx, userID) })
}

// lookupUsers resolves ids concurrently, preserving order.
func (s *Store) lookupUsers(ctx context.Context, ids []uuid.UUID) ([]*services.DirectoryUser, error) {
	users := make([]*services.DirectoryUser, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(directoryLookupConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			u, err := retry.Value(gctx, func() (*services.DirectoryUser, error) {
				return s.directory.GetUser(gctx, id)
			})
			if err != nil {
				return err
			}
			users[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return users, nil
}

func normalizePrivacy(p models.RoomPrivacy) (models.RoomPrivacy, error) {
	switch models.RoomPrivacy(strings.ToUpper(string(p))) {
	case "", models.PrivacyPrivate:
		return models.PrivacyPrivate, nil
	case models.PrivacyPublic:
		return models.PrivacyPublic, nil
	}
	return "", apperrors.Validation("roomPrivacy must be PUBLIC or PRIVATE")
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func containsAll(set, subset []uuid.UUID) bool {
	in := make(map[uuid.UUID]bool, len(set))
	for _, id := range set {
		in[id] = true
	}
	for _, id := range subset {
		if !in[id] {
			return false
		}
	}
	return true
}
