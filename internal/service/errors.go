package service

type ErrorCode string

const (
	ErrorCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrorCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrorCodeAlreadyRegistered ErrorCode = "ALREADY_REGISTERED"
	ErrorCodeEventFull         ErrorCode = "EVENT_FULL"
	ErrorCodeTeamExists        ErrorCode = "TEAM_EXISTS"
	ErrorCodeUserExists        ErrorCode = "USER_EXISTS"
	ErrorCodeHasRegistration   ErrorCode = "HAS_REGISTRATION"
	ErrorCodeInvalidBody       ErrorCode = "INVALID_BODY"
	ErrorCodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	ErrorCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	// ErrorCodeUnavailable marks store/transaction failures. It is the
	// only code callers may retry; every other code is terminal for the
	// given input.
	ErrorCodeUnavailable ErrorCode = "UNAVAILABLE"
	ErrorCodeUnspecified ErrorCode = "UNSPECIFIED"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func (e *Error) Error() string {
	return e.Message
}
