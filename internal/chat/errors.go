package chat

import "errors"

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrRoomNotFound     = errors.New("room not found")
	ErrForbidden        = errors.New("not a member of this room")
	ErrPersistence      = errors.New("persistence failure")
	ErrTransportFailure = errors.New("transport failure")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrRateLimited      = errors.New("rate limit exceeded")
)
