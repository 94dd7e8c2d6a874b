package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

const (
	ToolSearchDocuments = "search_documents"
	ToolAsk             = "ask"

	maxTopK = 50
)

type Settings struct {
	Version        string
	TopK           int
	ScoreThreshold float64
}

// Server exposes retrieval and chat as MCP tools.
type Server struct {
	retriever ports.Retriever
	chat      ports.ChatService
	settings  Settings
	logger    *slog.Logger
}

func NewServer(retriever ports.Retriever, chat ports.ChatService, settings Settings, logger *slog.Logger) *Server {
	if settings.TopK <= 0 {
		settings.TopK = 5
	}
	if settings.Version == "" {
		settings.Version = "1.0.0"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		retriever: retriever,
		chat:      chat,
		settings:  settings,
		logger:    logger,
	}
}

// MCPServer registers the tools on a new protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("pdf-rag-assistant", s.settings.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	srv.AddTool(mcp.NewTool(ToolSearchDocuments,
		mcp.WithDescription("Search indexed PDF documents and return ranked passages with doc_id, page and score."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text question or keywords.")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of passages to return.")),
		mcp.WithNumber("score_threshold", mcp.Description("Minimum similarity score a passage must reach.")),
	), s.handleSearch)

	srv.AddTool(mcp.NewTool(ToolAsk,
		mcp.WithDescription("Answer a question from the indexed PDFs with page citations."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question to answer.")),
		mcp.WithString("session_id", mcp.Description("Conversation session to continue. Omit to start a new one.")),
	), s.handleAsk)

	return srv
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	topK := request.GetInt("top_k", s.settings.TopK)
	if topK <= 0 {
		topK = s.settings.TopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}
	threshold := request.GetFloat("score_threshold", s.settings.ScoreThreshold)

	retrieval, err := s.retriever.Retrieve(ctx, query, topK, threshold)
	if err != nil {
		s.logger.Error("mcp_tool_failed", "tool", ToolSearchDocuments, "error", err)
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}
	if retrieval.Results == nil {
		retrieval.Results = []domain.RankedResult{}
	}
	return jsonResult(retrieval)
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	sessionID := request.GetString("session_id", "")

	reply, err := s.chat.Chat(ctx, sessionID, query)
	if err != nil {
		attrs := []any{"tool", ToolAsk, "error", err}
		var pipelineErr *domain.PipelineError
		if errors.As(err, &pipelineErr) {
			attrs = append(attrs, "cause", pipelineErr.Cause())
		}
		s.logger.Error("mcp_tool_failed", attrs...)
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}
	if reply.Retrieved == nil {
		reply.Retrieved = []domain.RankedResult{}
	}
	return jsonResult(reply)
}

func toolErrorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return err.Error()
	case domain.IsKind(err, domain.ErrPipeline):
		return "failed to answer the query"
	default:
		return "retrieval failed"
	}
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
