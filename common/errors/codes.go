package errors

type ErrorCode string

const (
	// Generic codes
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeAlreadyExists        ErrorCode = "ALREADY_EXISTS"
	CodeInvalidInput         ErrorCode = "INVALID_INPUT"
	CodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	CodeForbidden            ErrorCode = "FORBIDDEN"
	CodeConflict             ErrorCode = "CONFLICT"
	CodeInternalServer       ErrorCode = "INTERNAL_SERVER"
	CodeServiceUnavailable   ErrorCode = "SERVICE_UNAVAILABLE"
	CodeEventPublishError    ErrorCode = "EVENT_PUBLISH_ERROR"
	CodeObjectMarshalError   ErrorCode = "OBJECT_MARSHALL_ERROR"
	CodeObjectUnmarshalError ErrorCode = "OBJECT_UNMARSHALL_ERROR"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeTransactionError     ErrorCode = "TRANSACTION_ERROR"
	CodeCacheError           ErrorCode = "CACHE_ERROR"
)
