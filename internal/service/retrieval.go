package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_orchestrator.go -package=mocks mailrag/internal/service Orchestrator
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_retrieval_service.go -package=mocks -mock_names=RetrievalService=MockRetrievalService mailrag/internal/service RetrievalService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"mailrag/internal/contextutil"
	"mailrag/internal/orchestrator"
	"mailrag/internal/retriever"
)

// Request limits.
const (
	MaxQueryLength   = 2000
	MaxTopK          = 100
	DefaultMaxTokens = 3000
)

// Orchestrator runs one retrieval.
// This interface is defined from the service layer's perspective (consumer-first).
type Orchestrator interface {
	Retrieve(ctx context.Context, query string, topK, maxTokens int) (*orchestrator.Result, error)
}

// RetrieveRequest represents a retrieval request in the domain layer.
type RetrieveRequest struct {
	Query string
	// TopK of 0 lets the intent pick the result count.
	TopK int
	// MaxTokens nil applies the default budget; 0 means unbounded.
	MaxTokens *int
}

// RetrievalService validates requests and runs them through the orchestrator.
type RetrievalService interface {
	Retrieve(ctx context.Context, req RetrieveRequest) (*orchestrator.Result, error)
}

type retrievalService struct {
	orchestrator     Orchestrator
	defaultMaxTokens int
	logger           *slog.Logger
}

// NewRetrievalService creates a new RetrievalService. defaultMaxTokens <= 0 uses DefaultMaxTokens.
func NewRetrievalService(o Orchestrator, defaultMaxTokens int, logger *slog.Logger) RetrievalService {
	if defaultMaxTokens <= 0 {
		defaultMaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retrievalService{
		orchestrator:     o,
		defaultMaxTokens: defaultMaxTokens,
		logger:           logger,
	}
}

// Retrieve validates req and returns the orchestrator result.
// Validation failures are *ValidationError; unreachable collaborators wrap ErrExternalService.
func (s *retrievalService) Retrieve(ctx context.Context, req RetrieveRequest) (*orchestrator.Result, error) {
	logger := contextutil.LoggerFromContextOr(ctx, s.logger)

	query := strings.TrimSpace(req.Query)
	if err := validate(query, req); err != nil {
		logger.WarnContext(ctx, "invalid retrieve request", "error", err)
		return nil, err
	}

	maxTokens := s.defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	result, err := s.orchestrator.Retrieve(ctx, query, req.TopK, maxTokens)
	if err != nil {
		if errors.Is(err, retriever.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %w", ErrExternalService, err)
		}
		return nil, WrapError(err, "failed to retrieve")
	}

	logger.InfoContext(ctx, "retrieve request processed",
		"query_length", len(query),
		"chunks", result.Metadata.ChunkCount,
		"strategy", result.Metadata.StrategyUsed,
	)
	return result, nil
}

func validate(query string, req RetrieveRequest) error {
	switch {
	case query == "":
		return &ValidationError{Field: "query", Message: "cannot be empty"}
	case utf8.RuneCountInString(query) > MaxQueryLength:
		return &ValidationError{Field: "query", Message: fmt.Sprintf("must be at most %d characters", MaxQueryLength)}
	case req.TopK < 0:
		return &ValidationError{Field: "top_k", Message: "must not be negative"}
	case req.TopK > MaxTopK:
		return &ValidationError{Field: "top_k", Message: fmt.Sprintf("must be at most %d", MaxTopK)}
	case req.MaxTokens != nil && *req.MaxTokens < 0:
		return &ValidationError{Field: "max_tokens", Message: "must not be negative"}
	}
	return nil
}
