package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeRegistryFull      = "registry_full"
	ErrCodeNicknameTaken     = "nickname_taken"
	ErrCodeNicknameInvalid   = "nickname_invalid"
	ErrCodeSessionNotFound   = "session_not_found"
	ErrCodeRoomNotFound      = "room_not_found"
	ErrCodeHubClosed         = "hub_closed"
	ErrCodeInvalidTransition = "invalid_transition"
)

var (
	ErrRegistryFull      = errors.New("registry full")
	ErrNicknameTaken     = errors.New("nickname already taken")
	ErrNicknameInvalid   = errors.New("invalid nickname")
	ErrSessionNotFound   = errors.New("session not found")
	ErrRoomNotFound      = errors.New("room not found")
	ErrHubClosed         = errors.New("hub closed")
	ErrInvalidTransition = errors.New("invalid session state transition")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRegistryFull, ErrCodeRegistryFull},
	{ErrNicknameTaken, ErrCodeNicknameTaken},
	{ErrNicknameInvalid, ErrCodeNicknameInvalid},
	{ErrSessionNotFound, ErrCodeSessionNotFound},
	{ErrRoomNotFound, ErrCodeRoomNotFound},
	{ErrHubClosed, ErrCodeHubClosed},
	{ErrInvalidTransition, ErrCodeInvalidTransition},
}

// ErrorCode maps a domain error, possibly wrapped, to its stable code.
// Foreign errors map to "".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ""
}
