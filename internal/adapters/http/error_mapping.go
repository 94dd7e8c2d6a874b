package httpadapter

import (
	"net/http"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrPipeline):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrIndexService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage hides internal causes behind 5xx responses.
func publicErrorMessage(status int, err error) string {
	switch {
	case domain.IsKind(err, domain.ErrPipeline):
		return "failed to answer the query"
	case status == http.StatusServiceUnavailable:
		return "dependency temporarily unavailable"
	case status == http.StatusBadGateway:
		return "index service failure"
	case status >= 500:
		return "internal error"
	default:
		return err.Error()
	}
}
