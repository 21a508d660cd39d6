package httpadapter

import (
	"net/http"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrJobNotFound), domain.IsKind(err, domain.ErrBlobNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDuplicateJob),
		domain.IsKind(err, domain.ErrInvalidTransition),
		domain.IsKind(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
