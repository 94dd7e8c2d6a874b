package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

// FilterExtractor asks a language model to turn a free-text query into
// metadata constraints. It never fails: any problem disables filtering.
type FilterExtractor struct {
	model  ports.ChatModel
	logger *slog.Logger
}

func NewFilterExtractor(model ports.ChatModel, logger *slog.Logger) *FilterExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilterExtractor{model: model, logger: logger}
}

func (e *FilterExtractor) ExtractFilters(ctx context.Context, query string) domain.FilterSet {
	ctx, span := tracer.Start(ctx, "rag.extract_filters")
	defer span.End()

	raw, err := e.model.Invoke(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: filterSystemPrompt},
		{Role: domain.RoleUser, Content: buildFilterPrompt(query)},
	})
	if err != nil {
		e.warn(query, domain.WrapError(domain.ErrFilterExtraction, "invoke model", err))
		return domain.FilterSet{}
	}

	filters, err := parseFilterSet(raw)
	if err != nil {
		e.warn(query, domain.WrapError(domain.ErrFilterExtraction, "parse filters", err))
		return domain.FilterSet{}
	}
	span.SetAttributes(attribute.Int("rag.filters", len(filters)))
	return filters
}

func (e *FilterExtractor) warn(query string, err error) {
	e.logger.Warn("filter_extraction_failed", "query", query, "error", err)
}

func parseFilterSet(raw string) (domain.FilterSet, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return nil, fmt.Errorf("decode filter json: %w", err)
	}

	filters := make(domain.FilterSet, len(payload))
	for key, value := range payload {
		if !domain.IsFilterKey(key) {
			continue
		}
		s, ok := filterValueString(value)
		if !ok {
			continue
		}
		filters[key] = s
	}
	return filters, nil
}

func filterValueString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		val = strings.TrimSpace(val)
		return val, val != ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
