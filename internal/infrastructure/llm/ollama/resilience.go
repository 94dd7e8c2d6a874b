package ollama

import (
	"errors"
	"io"
	"net/http"

	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/resilience"
)

const serviceName = "ollama"

// HTTPStatusError is kept as an alias so callers can match Ollama replies
// without importing resilience.
type HTTPStatusError = resilience.HTTPStatusError

// classifyOllamaError adds Ollama's own failure modes to the shared HTTP rules.
func classifyOllamaError(err error) resilience.ErrorClassification {
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		// The server drops the stream while a model is still loading.
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case resilience.IsStatus(err, http.StatusNotFound):
		// Model not pulled: a deployment fault, so it counts toward the breaker.
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
	return resilience.ClassifyHTTP(err)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.WrapTemporary(operation, err, classifyOllamaError)
}
