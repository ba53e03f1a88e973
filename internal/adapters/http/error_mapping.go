package httpadapter

import (
	"net/http"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrConversion):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrBatchTimeout):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrInvalidResponse),
		domain.IsKind(err, domain.ErrSubmission),
		domain.IsKind(err, domain.ErrBatchExecution),
		domain.IsKind(err, domain.ErrResultParse),
		domain.IsKind(err, domain.ErrResultIntegrity):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
