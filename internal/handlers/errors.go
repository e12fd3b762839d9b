package handlers

import (
	"errors"
	"net/http"

	"github.com/IlyacloudDev/QuickTalk/internal/ports"
	"github.com/IlyacloudDev/QuickTalk/internal/services"
)

// statusForError maps the shared sentinels onto HTTP statuses; anything
// unrecognized is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ports.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ports.ErrForbidden),
		errors.Is(err, ports.ErrNotAMember),
		errors.Is(err, ports.ErrPersonalChatImmutable):
		return http.StatusForbidden
	case errors.Is(err, ports.ErrChatNotFound),
		errors.Is(err, ports.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInsufficientMembers):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
