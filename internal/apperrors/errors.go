package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups errors by how callers should react to them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindInvariant     Kind = "invariant"
	KindTransient     Kind = "transient"
	KindProtocol      Kind = "protocol"
	KindInternal      Kind = "internal"
)

// Error is the typed error surfaced by the chat core.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy carrying a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// Wrap returns a copy of e with err attached as the cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrSelfChat                   = newErr(KindValidation, "SELF_CHAT", "cannot start a chat with yourself")
	ErrInvalidInput               = newErr(KindValidation, "INVALID_INPUT", "invalid input")
	ErrPrivateChatRequiresContent = newErr(KindValidation, "PRIVATE_CHAT_REQUIRES_CONTENT", "message text or media is required")

	ErrUnknownUser  = newErr(KindNotFound, "UNKNOWN_USER", "user not found")
	ErrNotFound     = newErr(KindNotFound, "NOT_FOUND", "not found")
	ErrRoomNotFound = newErr(KindNotFound, "ROOM_NOT_FOUND", "chat not found")

	ErrNotAdmin      = newErr(KindAuthorization, "NOT_ADMIN", "only admins can do this")
	ErrNotMember     = newErr(KindAuthorization, "NOT_MEMBER", "not a member of this chat")
	ErrBlocked       = newErr(KindAuthorization, "BLOCKED", "you cannot message this user")
	ErrNotIdentified = newErr(KindAuthorization, "NOT_IDENTIFIED", "connection is not identified")

	ErrRoomExists          = newErr(KindInvariant, "ROOM_EXISTS", "chat already exists")
	ErrInsufficientMembers = newErr(KindInvariant, "INSUFFICIENT_MEMBERS", "a group needs at least 3 members")
	ErrTooManyMembers      = newErr(KindInvariant, "TOO_MANY_MEMBERS", "a group can have at most 20 members")
	ErrTooManyAdmins       = newErr(KindInvariant, "TOO_MANY_ADMINS", "a group can have at most 5 admins")
	ErrAlreadyMember       = newErr(KindInvariant, "ALREADY_MEMBER", "user is already a member")
	ErrRoomFull            = newErr(KindInvariant, "ROOM_FULL", "chat is full")
	ErrLastAdmin           = newErr(KindInvariant, "LAST_ADMIN", "reassign admin before leaving")
	ErrOneToOneImmutable   = newErr(KindInvariant, "ONE_TO_ONE_IMMUTABLE", "direct chats cannot change membership")

	ErrStoreUnavailable = newErr(KindTransient, "STORE_UNAVAILABLE", "storage temporarily unavailable")

	ErrBadEvent = newErr(KindProtocol, "BAD_EVENT", "malformed event")

	ErrInternal = newErr(KindInternal, "INTERNAL", "internal error")
)

// Validation builds an INVALID_INPUT error with a specific message.
func Validation(msg string) *Error {
	return ErrInvalidInput.WithMessage(msg)
}

// BadEvent builds a BAD_EVENT error with a specific message.
func BadEvent(msg string) *Error {
	return ErrBadEvent.WithMessage(msg)
}

// Transient wraps a driver error as STORE_UNAVAILABLE.
func Transient(err error) *Error {
	return ErrStoreUnavailable.Wrap(err)
}

// Internal wraps an unexpected error. Its message never carries the cause.
func Internal(err error) *Error {
	return ErrInternal.Wrap(err)
}

// From extracts an *Error from err, converting anything untyped into an internal error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// KindOf returns the Kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	return From(err).Kind
}

// IsTransient reports whether err may be retried automatically.
func IsTransient(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTransient
}

// HTTPStatus maps an error onto the status codes used by the HTTP surface.
func HTTPStatus(err error) int {
	e := From(err)
	switch e.Kind {
	case KindValidation, KindProtocol:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		if e.Code == ErrNotMember.Code {
			return http.StatusNotFound
		}
		return http.StatusNotAcceptable
	case KindInvariant:
		if e.Code == ErrRoomExists.Code {
			return http.StatusConflict
		}
		return http.StatusNotAcceptable
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to show a client.
func PublicMessage(err error) string {
	e := From(err)
	if e.Kind == KindInternal {
		return ErrInternal.Message
	}
	return e.Message
}
