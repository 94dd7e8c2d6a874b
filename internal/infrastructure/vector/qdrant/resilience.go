package qdrant

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/resilience"
)

const serviceName = "qdrant"

// HTTPStatusError is kept as an alias so callers can match Qdrant replies
// without importing resilience.
type HTTPStatusError = resilience.HTTPStatusError

// classifyQdrantError adds Qdrant's own failure modes to the shared HTTP rules.
func classifyQdrantError(err error) resilience.ErrorClassification {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(statusErr.Body), "dimension") {
		// The collection was created for another embedding model; every call
		// will fail until it is recreated.
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
	return resilience.ClassifyHTTP(err)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.WrapTemporary(operation, err, classifyQdrantError)
}

// isMissingCollection reports a search against a collection that has not
// been created yet, i.e. nothing was indexed.
func isMissingCollection(err error) bool {
	return resilience.IsStatus(err, http.StatusNotFound)
}
