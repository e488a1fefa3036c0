package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/apperrors"
	"github.com/thereayou/loci-chat/internal/database/databasetest"
	"github.com/thereayou/loci-chat/internal/models"
)

func TestDirectoryBlocksAndOnline(t *testing.T) {
	db := databasetest.New(t)
	dir := db.Directory()
	ctx := context.Background()

	a := &models.User{ID: uuid.New(), Name: "a", NickName: "a"}
	b := &models.User{ID: uuid.New(), Name: "b", NickName: "b"}
	for _, u := range []*models.User{a, b} {
		if err := dir.SaveUser(ctx, u); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	if err := dir.BlockUser(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("block: %v", err)
	}
	if err := dir.BlockUser(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("blocking twice should be a no-op: %v", err)
	}

	got, err := dir.GetUser(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.HasBlocked(b.ID) || len(got.Blocked) != 1 {
		t.Fatalf("expected a to block b, got %v", got.Blocked)
	}

	if err := dir.SetOnline(ctx, b.ID, true); err != nil {
		t.Fatalf("set online: %v", err)
	}
	online, err := dir.IsOnline(ctx, b.ID)
	if err != nil || !online {
		t.Fatalf("expected b online, got %v %v", online, err)
	}

	if _, err := dir.GetUser(ctx, uuid.New()); !errors.Is(err, apperrors.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestNotificationsPageNewestFirst(t *testing.T) {
	db := databasetest.New(t)
	log := db.Notifications()
	ctx := context.Background()
	user := uuid.New()

	for _, body := range []string{"first", "second", "third"} {
		if err := log.Append(ctx, &models.Notification{UserID: user, ActorID: uuid.New(), Kind: models.NotificationReaction, Body: body}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	items, total, err := log.List(ctx, user, 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(items), total)
	}
}
