package httpadapter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

func TestUploadMapsInvalidInputTo400(t *testing.T) {
	handler := newTestHandler(testConfig(), Services{
		Ingestor: ingestFake{err: domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("only PDF files are supported"))},
	})

	body, contentType := multipartBody(t, "notes.txt", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "only PDF files are supported") {
		t.Fatalf("expected validation message, got %s", res.Body.String())
	}
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	handler := newTestHandler(testConfig(), Services{
		Documents: docsFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing"))},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestChatPipelineErrorIs500WithGenericMessage(t *testing.T) {
	cause := domain.WrapError(domain.ErrGeneration, "generate answer", errors.New("ollama: connection refused"))
	handler := newTestHandler(testConfig(), Services{
		Chat: &chatFake{err: domain.NewPipelineError(cause)},
	})

	res := postJSON(t, handler, "/v1/chat", map[string]any{"query": "q"})
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "connection refused") {
		t.Fatalf("internal cause leaked: %s", res.Body.String())
	}
}

func TestRetrieveIndexFailureIs502(t *testing.T) {
	indexErr := domain.WrapError(domain.ErrIndexService, "similarity search", errors.New("qdrant status 500"))
	handler := newTestHandler(testConfig(), Services{
		Retriever: &retrieverFake{err: domain.WrapError(domain.ErrRetrieval, "retrieve", indexErr)},
	})

	res := postJSON(t, handler, "/v1/retrieve", map[string]any{"query": "q"})
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	temporaryIndex := domain.WrapError(domain.ErrIndexService, "search", domain.WrapError(domain.ErrTemporary, "qdrant", errors.New("timeout")))
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrUnauthorized, "op", errors.New("x")), http.StatusUnauthorized},
		{domain.WrapError(domain.ErrDocumentNotFound, "op", errors.New("x")), http.StatusNotFound},
		{domain.NewPipelineError(errors.New("x")), http.StatusInternalServerError},
		{temporaryIndex, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
