package core

import "fmt"

// Error codes for domain errors.
const (
	ErrCodeRoomExists         = "room_exists"
	ErrCodeRoomNotFound       = "room_not_found"
	ErrCodeBadRequest         = "bad_request"
	ErrCodeStorageUnavailable = "storage_unavailable"
)

// DomainError wraps a code and human-readable message. Two domain errors
// match under errors.Is when their codes are equal, so the sentinels below
// can be compared against wrapped instances carrying more specific messages.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

var (
	ErrRoomExists         = &DomainError{Code: ErrCodeRoomExists, Message: "Room already exists"}
	ErrRoomNotFound       = &DomainError{Code: ErrCodeRoomNotFound, Message: "Room not found"}
	ErrBadRequest         = &DomainError{Code: ErrCodeBadRequest, Message: "bad request"}
	ErrStorageUnavailable = &DomainError{Code: ErrCodeStorageUnavailable, Message: "storage unavailable"}
)

func badRequest(msg string) *DomainError {
	return &DomainError{Code: ErrCodeBadRequest, Message: msg}
}

func storageUnavailable(op string, err error) *DomainError {
	return &DomainError{Code: ErrCodeStorageUnavailable, Message: op + " failed", Err: err}
}
