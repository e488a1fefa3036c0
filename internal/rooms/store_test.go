package rooms

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/apperrors"
	"github.com/thereayou/loci-chat/internal/database"
	"github.com/thereayou/loci-chat/internal/database/databasetest"
	"github.com/thereayou/loci-chat/internal/messages"
	"github.com/thereayou/loci-chat/internal/models"
	"github.com/thereayou/loci-chat/internal/services"
)

type fixture struct {
	db    *database.Database
	dir   *database.Directory
	log   *messages.Log
	store *Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := databasetest.New(t)
	dir := db.Directory()
	log := messages.NewLog(db, db, dir, db.Notifications(), messages.Options{})
	return &fixture{db: db, dir: dir, log: log, store: NewStore(db, dir, log)}
}

func (f *fixture) user(t *testing.T, name string) uuid.UUID {
	t.Helper()
	u := &models.User{ID: uuid.New(), Name: name, NickName: name}
	if err := f.dir.SaveUser(context.Background(), u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return u.ID
}

func (f *fixture) group(t *testing.T, creator uuid.UUID, members ...uuid.UUID) *models.Room {
	t.Helper()
	room, err := f.store.CreateGroup(context.Background(), GroupInput{RoomName: "team", Members: members}, creator)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return room
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestCreateOneToOneRejectsDuplicatePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")

	room, err := f.store.CreateOneToOne(ctx, a, b, a)
	if err != nil {
		t.Fatalf("CreateOneToOne: %v", err)
	}
	if room.IsGroupChat || len(room.Members) != 2 {
		t.Fatalf("expected direct room with 2 members, got %+v", room)
	}
	if !room.IsAdmin(a) || room.IsAdmin(b) {
		t.Fatal("expected creator to be the only admin")
	}

	_, err = f.store.CreateOneToOne(ctx, b, a, b)
	expectErr(t, err, apperrors.ErrRoomExists)

	list, err := f.store.List(ctx, a)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly one room, got %d", len(list))
	}

	found, err := f.store.FindOneToOne(ctx, b, a)
	if err != nil || found.ID != room.ID {
		t.Fatalf("FindOneToOne: %v", err)
	}
}

func TestCreateOneToOneValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "a")

	_, err := f.store.CreateOneToOne(ctx, a, a, a)
	expectErr(t, err, apperrors.ErrSelfChat)

	_, err = f.store.CreateOneToOne(ctx, a, uuid.New(), a)
	expectErr(t, err, apperrors.ErrUnknownUser)
}

func TestCreateOneToOneBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")
	if err := f.dir.BlockUser(ctx, b, a); err != nil {
		t.Fatalf("BlockUser: %v", err)
	}

	_, err := f.store.CreateOneToOne(ctx, a, b, a)
	expectErr(t, err, apperrors.ErrBlocked)
}

func TestCreateGroupBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")

	_, err := f.store.CreateGroup(ctx, GroupInput{RoomName: "g", Members: []uuid.UUID{b, b, a}}, a)
	expectErr(t, err, apperrors.ErrInsufficientMembers)

	many := make([]uuid.UUID, 0, 21)
	for i := 0; i < 21; i++ {
		many = append(many, f.user(t, fmt.Sprintf("u%d", i)))
	}
	_, err = f.store.CreateGroup(ctx, GroupInput{RoomName: "g", Members: many}, a)
	expectErr(t, err, apperrors.ErrTooManyMembers)

	_, err = f.store.CreateGroup(ctx, GroupInput{RoomName: "g", Members: many[:8], Admins: many[:6]}, a)
	expectErr(t, err, apperrors.ErrTooManyAdmins)

	_, err = f.store.CreateGroup(ctx, GroupInput{RoomName: " ", Members: many[:3]}, a)
	expectErr(t, err, apperrors.ErrInvalidInput)

	room := f.group(t, a, many[:2]...)
	if len(room.Members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(room.Members))
	}
	if admins := room.AdminIDs(); len(admins) != 1 || admins[0] != a {
		t.Fatalf("expected creator as default admin, got %v", admins)
	}
}

func TestAddMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c, d := f.user(t, "a"), f.user(t, "b"), f.user(t, "c"), f.user(t, "d")
	room := f.group(t, a, b, c)

	_, err := f.store.AddMember(ctx, room.ID, d, b)
	expectErr(t, err, apperrors.ErrNotAdmin)

	_, err = f.store.AddMember(ctx, room.ID, c, a)
	expectErr(t, err, apperrors.ErrAlreadyMember)

	updated, err := f.store.AddMember(ctx, room.ID, d, a)
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if !updated.HasMember(d) || updated.MemberCount != 4 {
		t.Fatalf("expected d added and count 4, got %d", updated.MemberCount)
	}
	if updated.UnreadCounts()[d] != 0 {
		t.Fatal("new member must start with zero unread")
	}
}

func TestAddMemberRoomFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "a")
	others := make([]uuid.UUID, 0, models.MaxGroupMembers-1)
	for i := 0; i < models.MaxGroupMembers-1; i++ {
		others = append(others, f.user(t, fmt.Sprintf("u%d", i)))
	}
	room := f.group(t, a, others...)
	if room.MemberCount != models.MaxGroupMembers {
		t.Fatalf("expected full room, got %d", room.MemberCount)
	}

	_, err := f.store.AddMember(ctx, room.ID, f.user(t, "late"), a)
	expectErr(t, err, apperrors.ErrRoomFull)
}

func TestOneToOneMembershipIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
	room, err := f.store.CreateOneToOne(ctx, a, b, a)
	if err != nil {
		t.Fatalf("CreateOneToOne: %v", err)
	}

	_, err = f.store.AddMember(ctx, room.ID, c, a)
	expectErr(t, err, apperrors.ErrOneToOneImmutable)

	_, err = f.store.Leave(ctx, room.ID, b)
	expectErr(t, err, apperrors.ErrOneToOneImmutable)
}

func TestGroupScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")

	room, err := f.store.CreateGroup(ctx, GroupInput{RoomName: "abc", Members: []uuid.UUID{a, b, c}, Admins: []uuid.UUID{a}}, a)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	sent, err := f.log.Send(ctx, room.ID, a, messages.Content{Text: "hi"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, err := f.store.Get(ctx, room.ID, a)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LastMessageID == nil || *got.LastMessageID != sent.Message.ID {
		t.Fatalf("expected last message %s, got %v", sent.Message.ID, got.LastMessageID)
	}
	assertUnread(t, got, map[uuid.UUID]int{a: 0, b: 1, c: 1})

	if err := f.log.ResetUnread(ctx, room.ID, b); err != nil {
		t.Fatalf("ResetUnread: %v", err)
	}
	got, _ = f.store.Get(ctx, room.ID, a)
	assertUnread(t, got, map[uuid.UUID]int{a: 0, b: 0, c: 1})

	_, err = f.store.Leave(ctx, room.ID, a)
	expectErr(t, err, apperrors.ErrLastAdmin)

	if _, err := f.store.UpdateDetails(ctx, room.ID, a, services.RoomPatch{Admins: []uuid.UUID{a, b}}); err != nil {
		t.Fatalf("promote: %v", err)
	}
	removal, err := f.store.Leave(ctx, room.ID, a)
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if removal.RoomDeleted {
		t.Fatal("room with two members left must survive")
	}

	final := removal.Room
	if admins := final.AdminIDs(); len(admins) != 1 || admins[0] != b {
		t.Fatalf("expected admins [b], got %v", admins)
	}
	if members := final.MemberIDs(); len(members) != 2 || !final.HasMember(b) || !final.HasMember(c) {
		t.Fatalf("expected members [b c], got %v", members)
	}
}

func TestLeaveDeletesRoomWhenOneMemberRemains(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
	room := f.group(t, a, b, c)

	if _, err := f.log.Send(ctx, room.ID, b, messages.Content{Text: "bye"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := f.store.Leave(ctx, room.ID, b); err != nil {
		t.Fatalf("Leave b: %v", err)
	}
	removal, err := f.store.RemoveMember(ctx, room.ID, c, a)
	if err != nil {
		t.Fatalf("RemoveMember c: %v", err)
	}
	if !removal.RoomDeleted {
		t.Fatal("expected room to be deleted when one member remains")
	}

	_, err = f.store.Get(ctx, room.ID, a)
	expectErr(t, err, apperrors.ErrRoomNotFound)
}

func TestLeaveDeletesMembersMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c, d := f.user(t, "a"), f.user(t, "b"), f.user(t, "c"), f.user(t, "d")
	room := f.group(t, a, b, c, d)

	first, _ := f.log.Send(ctx, room.ID, a, messages.Content{Text: "from a"})
	if _, err := f.log.Send(ctx, room.ID, b, messages.Content{Text: "from b"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	removal, err := f.store.Leave(ctx, room.ID, b)
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if removal.MessagesDeleted != 1 {
		t.Fatalf("expected 1 purged message, got %d", removal.MessagesDeleted)
	}
	if removal.Room.LastMessageID == nil || *removal.Room.LastMessageID != first.Message.ID {
		t.Fatalf("expected pointer back on a's message, got %v", removal.Room.LastMessageID)
	}
}

func TestRemoveMemberRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
	room := f.group(t, a, b, c)

	_, err := f.store.RemoveMember(ctx, room.ID, c, b)
	expectErr(t, err, apperrors.ErrNotAdmin)

	_, err = f.store.RemoveMember(ctx, room.ID, uuid.New(), a)
	expectErr(t, err, apperrors.ErrNotMember)
}

func TestUpdateDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
	room := f.group(t, a, b, c)

	name := "renamed"
	_, err := f.store.UpdateDetails(ctx, room.ID, b, services.RoomPatch{RoomName: &name})
	expectErr(t, err, apperrors.ErrNotAdmin)

	_, err = f.store.UpdateDetails(ctx, room.ID, a, services.RoomPatch{Admins: []uuid.UUID{}})
	expectErr(t, err, apperrors.ErrInvalidInput)

	_, err = f.store.UpdateDetails(ctx, room.ID, a, services.RoomPatch{Admins: []uuid.UUID{uuid.New()}})
	expectErr(t, err, apperrors.ErrNotMember)

	public := models.PrivacyPublic
	updated, err := f.store.UpdateDetails(ctx, room.ID, a, services.RoomPatch{RoomName: &name, RoomPrivacy: &public})
	if err != nil {
		t.Fatalf("UpdateDetails: %v", err)
	}
	if updated.RoomName != name || updated.RoomPrivacy != models.PrivacyPublic {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if !updated.IsAdmin(a) {
		t.Fatal("admins must be unchanged when not in the patch")
	}
}

func TestDeleteCascadesMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
	room := f.group(t, a, b, c)
	sent, _ := f.log.Send(ctx, room.ID, b, messages.Content{Text: "x"})

	_, err := f.store.Delete(ctx, room.ID, b)
	expectErr(t, err, apperrors.ErrNotAdmin)

	if _, err := f.store.Delete(ctx, room.ID, a); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = f.db.GetMessage(ctx, sent.Message.ID)
	expectErr(t, err, apperrors.ErrNotFound)

	_, err = f.store.Get(ctx, room.ID, a)
	expectErr(t, err, apperrors.ErrRoomNotFound)
}

func TestMembershipBoundsAfterAddAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "a")
	others := make([]uuid.UUID, 0, 6)
	for i := 0; i < 6; i++ {
		others = append(others, f.user(t, fmt.Sprintf("u%d", i)))
	}
	room := f.group(t, a, others[:2]...)

	for _, id := range others[2:] {
		if _, err := f.store.AddMember(ctx, room.ID, id, a); err != nil {
			t.Fatalf("AddMember: %v", err)
		}
	}
	for _, id := range others[:3] {
		if _, err := f.store.RemoveMember(ctx, room.ID, id, a); err != nil {
			t.Fatalf("RemoveMember: %v", err)
		}
	}

	got, err := f.store.Get(ctx, room.ID, a)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.MemberCount != len(got.Members) || len(got.Members) != 4 {
		t.Fatalf("member_count %d out of sync with %d rows", got.MemberCount, len(got.Members))
	}
	if n := len(got.AdminIDs()); n < 1 || n > models.MaxGroupAdmins {
		t.Fatalf("admin count %d out of bounds", n)
	}
}

func assertUnread(t *testing.T, room *models.Room, want map[uuid.UUID]int) {
	t.Helper()
	got := room.UnreadCounts()
	for id, n := range want {
		if got[id] != n {
			t.Fatalf("unread for %s: want %d, got %d", id, n, got[id])
		}
	}
}
