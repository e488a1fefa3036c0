package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/thereayou/loci-chat/internal/apperrors"
)

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return apperrors.Transient(errors.New("conn reset"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return apperrors.ErrRoomNotFound
	})
	if !errors.Is(err, apperrors.ErrRoomNotFound) {
		t.Fatalf("expected ROOM_NOT_FOUND, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestValue(t *testing.T) {
	v, err := Value(context.Background(), func() (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Fatalf("expected 42, got %d (%v)", v, err)
	}
}
