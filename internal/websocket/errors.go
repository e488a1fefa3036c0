package websocket

import (
	"errors"

	"github.com/thereayou/loci-chat/internal/apperrors"
)

var (
	ErrClientQueueFull   = errors.New("client message queue is full")
	ErrNotRegistered     = errors.New("client is not registered")
	ErrAlreadyIdentified = apperrors.BadEvent("connection is already identified as another user")
)
