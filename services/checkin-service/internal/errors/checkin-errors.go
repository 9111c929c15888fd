package errors

import (
	"fmt"

	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
)

func CheckInNotFoundError() *apperrors.AppError {
	return apperrors.New(apperrors.CodeNotFound, "Check-in not found")
}

func NotAssignedError(err error) *apperrors.AppError {
	return apperrors.Wrap(err, apperrors.CodeForbidden, "You are not assigned to this check-in")
}

func CheckInAccessError() *apperrors.AppError {
	return apperrors.New(apperrors.CodeForbidden,
		"Access denied: only the creator or an assigned member can view this check-in")
}

func InvalidDueDateError(value string) *apperrors.AppError {
	return apperrors.NewValidation([]apperrors.FieldError{{
		Field:   "dueDate",
		Message: fmt.Sprintf("%q is not an RFC 3339 timestamp", value),
		Code:    "invalid",
	}})
}

func MissingIdentityError() *apperrors.AppError {
	return apperrors.New(apperrors.CodeUnauthorized, "Authentication required")
}
