package errors

import (
	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
)

func InvalidTokenTypeError(err error) *apperrors.AppError {
	return apperrors.Wrap(err, apperrors.CodeUnauthorized, "Invalid token type")
}

func InvalidRefreshTokenError(err error) *apperrors.AppError {
	return apperrors.Wrap(err, apperrors.CodeUnauthorized, "Invalid refresh token")
}

func TokenIssueError(err error) *apperrors.AppError {
	return apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to issue tokens")
}
