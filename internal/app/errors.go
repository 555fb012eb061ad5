package app

import (
	"errors"
	"net/http"

	"ecocivic/api/internal/apperr"
)

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
