package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

// HTTPStatusError is a non-2xx reply from an upstream JSON service.
type HTTPStatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "upstream status error"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s status: %s", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, e.Status, body)
}

// NewHTTPStatusError captures at most 2 KiB of the response body.
func NewHTTPStatusError(service, operation string, resp *http.Response) *HTTPStatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Service:    service,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

// IsStatus reports whether err carries an upstream reply with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

var (
	notRecorded = ErrorClassification{Retryable: false, RecordFailure: false}
	transient   = ErrorClassification{Retryable: true, RecordFailure: true}
	permanent   = ErrorClassification{Retryable: false, RecordFailure: true}
)

// ClassifyCommon covers the cases every adapter shares: caller cancellation,
// an open breaker, upstream HTTP status and network errors. ok is false when
// none applies and the adapter has to decide.
func ClassifyCommon(err error) (class ErrorClassification, ok bool) {
	switch {
	case err == nil:
		return ErrorClassification{}, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return notRecorded, true
	case IsCircuitOpen(err):
		return transient, true
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if IsRetryableHTTPStatus(statusErr.StatusCode) {
			return transient, true
		}
		return notRecorded, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return transient, true
	}
	return ErrorClassification{}, false
}

// ClassifyHTTP is ClassifyCommon with unknown errors counted as permanent
// failures.
func ClassifyHTTP(err error) ErrorClassification {
	if class, ok := ClassifyCommon(err); ok {
		return class
	}
	return permanent
}

// WrapTemporary marks errors the classifier considers retryable, or a
// rejection by an open breaker, as domain.ErrTemporary.
func WrapTemporary(operation string, err error, classify ErrorClassifier) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classify == nil {
		classify = ClassifyHTTP
	}
	if classify(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
