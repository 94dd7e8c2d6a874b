package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type retrieverFake struct {
	lastTopK      int
	lastThreshold float64
	err           error
}

func (f *retrieverFake) Retrieve(_ context.Context, query string, topK int, threshold float64) (*domain.Retrieval, error) {
	f.lastTopK = topK
	f.lastThreshold = threshold
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Retrieval{Results: []domain.RankedResult{{ChunkID: "report_pg2_ch1", DocID: "report", PageNum: "2", Content: query}}}, nil
}

type chatFake struct {
	lastSession string
	err         error
}

func (f *chatFake) Chat(_ context.Context, sessionID, query string) (*domain.Reply, error) {
	f.lastSession = sessionID
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Reply{SessionID: "s-new", Reply: "answer to " + query}, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

func TestSearchUsesDefaultsAndReturnsJSON(t *testing.T) {
	retriever := &retrieverFake{}
	srv := NewServer(retriever, &chatFake{}, Settings{TopK: 5, ScoreThreshold: 0.4}, nil)

	result, err := srv.handleSearch(context.Background(), callRequest(ToolSearchDocuments, map[string]any{"query": "revenue"}))
	if err != nil {
		t.Fatalf("handleSearch() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if retriever.lastTopK != 5 || retriever.lastThreshold != 0.4 {
		t.Fatalf("unexpected settings %d/%v", retriever.lastTopK, retriever.lastThreshold)
	}

	var retrieval domain.Retrieval
	if err := json.Unmarshal([]byte(resultText(t, result)), &retrieval); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(retrieval.Results) != 1 || retrieval.Results[0].ChunkID != "report_pg2_ch1" {
		t.Fatalf("unexpected retrieval: %+v", retrieval)
	}
}

func TestSearchCapsTopK(t *testing.T) {
	retriever := &retrieverFake{}
	srv := NewServer(retriever, &chatFake{}, Settings{TopK: 5}, nil)

	if _, err := srv.handleSearch(context.Background(), callRequest(ToolSearchDocuments, map[string]any{"query": "q", "top_k": 900.0})); err != nil {
		t.Fatalf("handleSearch() error = %v", err)
	}
	if retriever.lastTopK != maxTopK {
		t.Fatalf("expected top_k capped at %d, got %d", maxTopK, retriever.lastTopK)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	srv := NewServer(&retrieverFake{}, &chatFake{}, Settings{}, nil)
	result, err := srv.handleSearch(context.Background(), callRequest(ToolSearchDocuments, map[string]any{}))
	if err != nil {
		t.Fatalf("handleSearch() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing query")
	}
}

func TestAskForwardsSession(t *testing.T) {
	chat := &chatFake{}
	srv := NewServer(&retrieverFake{}, chat, Settings{}, nil)

	result, err := srv.handleAsk(context.Background(), callRequest(ToolAsk, map[string]any{"query": "why?", "session_id": "s-1"}))
	if err != nil {
		t.Fatalf("handleAsk() error = %v", err)
	}
	if chat.lastSession != "s-1" {
		t.Fatalf("session not forwarded: %q", chat.lastSession)
	}
	if !strings.Contains(resultText(t, result), "answer to why?") {
		t.Fatalf("unexpected result: %s", resultText(t, result))
	}
}

func TestAskHidesPipelineCause(t *testing.T) {
	chat := &chatFake{err: domain.NewPipelineError(errors.New("ollama: connection refused"))}
	srv := NewServer(&retrieverFake{}, chat, Settings{}, nil)

	result, err := srv.handleAsk(context.Background(), callRequest(ToolAsk, map[string]any{"query": "q"}))
	if err != nil {
		t.Fatalf("handleAsk() error = %v", err)
	}
	if !result.IsError || strings.Contains(resultText(t, result), "connection refused") {
		t.Fatalf("expected generic tool error, got %s", resultText(t, result))
	}
}

func TestMCPServerListsTools(t *testing.T) {
	srv := NewServer(&retrieverFake{}, &chatFake{}, Settings{}, nil).MCPServer()
	response := srv.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))

	raw, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("encode response: %v", err)
	}
	for _, name := range []string{ToolSearchDocuments, ToolAsk} {
		if !strings.Contains(string(raw), `"`+name+`"`) {
			t.Fatalf("tool %s is not listed: %s", name, raw)
		}
	}
}
