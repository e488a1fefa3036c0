package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("leave: %w", ErrLastAdmin.WithMessage("custom"))
	if !errors.Is(err, ErrLastAdmin) {
		t.Fatal("expected errors.Is to match LAST_ADMIN through wrapping")
	}
	if errors.Is(err, ErrNotAdmin) {
		t.Fatal("LAST_ADMIN must not match NOT_ADMIN")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrSelfChat, http.StatusBadRequest},
		{ErrBadEvent, http.StatusBadRequest},
		{ErrRoomNotFound, http.StatusNotFound},
		{ErrNotMember, http.StatusNotFound},
		{ErrNotAdmin, http.StatusNotAcceptable},
		{ErrLastAdmin, http.StatusNotAcceptable},
		{ErrRoomExists, http.StatusConflict},
		{Transient(errors.New("conn reset")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestPublicMessageHidesInternalCause(t *testing.T) {
	err := errors.New("pq: relation \"rooms\" does not exist")
	if got := PublicMessage(err); got != ErrInternal.Message {
		t.Fatalf("expected generic message, got %q", got)
	}
	if got := PublicMessage(ErrRoomFull); got != ErrRoomFull.Message {
		t.Fatalf("expected typed message, got %q", got)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(fmt.Errorf("wrapped: %w", Transient(errors.New("x")))) {
		t.Fatal("expected transient")
	}
	if IsTransient(ErrNotFound) {
		t.Fatal("not_found is not transient")
	}
}
