package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/apperrors"
	"github.com/thereayou/loci-chat/internal/services"
)

type stubDirectory struct {
	users  map[uuid.UUID]*services.DirectoryUser
	calls  int
	online map[uuid.UUID]bool
}

func (s *stubDirectory) GetUser(_ context.Context, id uuid.UUID) (*services.DirectoryUser, error) {
	s.calls++
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, apperrors.ErrUnknownUser
}

func (s *stubDirectory) SetOnline(_ context.Context, id uuid.UUID, online bool) error {
	if s.online == nil {
		s.online = make(map[uuid.UUID]bool)
	}
	s.online[id] = online
	return nil
}

// unreachable returns a client whose every command fails fast.
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestDirectoryFallsBackWhenRedisDown(t *testing.T) {
	id := uuid.New()
	backend := &stubDirectory{users: map[uuid.UUID]*services.DirectoryUser{id: {ID: id, Name: "ann"}}}
	client := unreachable()
	defer client.Close()

	dir := NewDirectory(backend, client, time.Minute)
	ctx := context.Background()

	user, err := dir.GetUser(ctx, id)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.Name != "ann" || backend.calls != 1 {
		t.Fatalf("expected backend lookup, got %+v after %d calls", user, backend.calls)
	}

	if _, err := dir.GetUser(ctx, uuid.New()); !errors.Is(err, apperrors.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}

	if err := dir.SetOnline(ctx, id, true); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	if !backend.online[id] {
		t.Fatal("SetOnline should write through to the backend")
	}
}

func TestRevocationsSurfacesRedisErrors(t *testing.T) {
	client := unreachable()
	defer client.Close()

	revoked, err := NewRevocations(client).IsRevoked(context.Background(), "token")
	if err == nil || revoked {
		t.Fatalf("expected error and not revoked, got %v %v", revoked, err)
	}
}
