package httpadapter

import (
	"net/http"

	"github.com/ragcore/ragcore/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrChunkingFailed):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrEmbeddingFailed):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
