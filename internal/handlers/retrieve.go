package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"mailrag/internal/chunk"
	"mailrag/internal/contextutil"
	"mailrag/internal/intent"
	"mailrag/internal/orchestrator"
	"mailrag/internal/service"
	"mailrag/internal/strategy"
)

// RetrieveHandler handles HTTP requests for email context retrieval.
type RetrieveHandler struct {
	svc service.RetrievalService
}

// NewRetrieveHandler creates a new RetrieveHandler.
func NewRetrieveHandler(svc service.RetrievalService) *RetrieveHandler {
	return &RetrieveHandler{svc: svc}
}

// RetrieveRequest represents the HTTP request payload for retrieval.
type RetrieveRequest struct {
	Query string `json:"query"`
	// TopK of 0 or absent lets the detected intent choose.
	TopK int `json:"top_k,omitempty"`
	// MaxTokens absent applies the server default; 0 means unbounded.
	MaxTokens *int `json:"max_tokens,omitempty"`
}

// ChunkResponse is one retrieved chunk with its provenance.
type ChunkResponse struct {
	ID          string         `json:"id"`
	DocID       string         `json:"doc_id"`
	Text        string         `json:"text"`
	ContentKind string         `json:"content_kind"`
	Score       float32        `json:"score,omitempty"`
	Retriever   string         `json:"retriever"`
	Subject     string         `json:"subject,omitempty"`
	Sender      string         `json:"sender,omitempty"`
	SenderName  string         `json:"sender_name,omitempty"`
	Date        string         `json:"date,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RetrieveResponse represents the HTTP response payload for retrieval.
type RetrieveResponse struct {
	// Context is the assembled, token-bounded context block.
	Context  string                `json:"context"`
	Chunks   []ChunkResponse       `json:"chunks"`
	Intent   intent.Intent         `json:"intent"`
	Strategy strategy.Strategy     `json:"strategy"`
	Metadata orchestrator.Metadata `json:"metadata"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ServeHTTP handles POST /api/v1/retrieve.
// Responds 400 on invalid input, 503 when the vector index or chunk store is unreachable
// and 500 on any other failure.
func (h *RetrieveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.svc.Retrieve(ctx, service.RetrieveRequest{
		Query:     req.Query,
		TopK:      req.TopK,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		var ve *service.ValidationError
		switch {
		case errors.As(err, &ve):
			writeError(ctx, w, http.StatusBadRequest, ve.Error())
		case errors.Is(err, service.ErrExternalService):
			logger.ErrorContext(ctx, "retrieval backend unavailable", "error", err)
			writeError(ctx, w, http.StatusServiceUnavailable, "Retrieval backend unavailable")
		default:
			logger.ErrorContext(ctx, "retrieval failed", "error", err)
			writeError(ctx, w, http.StatusInternalServerError, "Failed to retrieve context")
		}
		return
	}

	resp := RetrieveResponse{
		Context:  result.Context,
		Chunks:   make([]ChunkResponse, 0, len(result.Chunks)),
		Intent:   result.Intent,
		Strategy: result.Strategy,
		Metadata: result.Metadata,
	}
	for _, c := range result.Chunks {
		resp.Chunks = append(resp.Chunks, toChunkResponse(c))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// promotedKeys are reported as top-level fields rather than in metadata.
var promotedKeys = map[string]bool{
	chunk.KeySubject:    true,
	chunk.KeySender:     true,
	chunk.KeySenderName: true,
	chunk.KeyDate:       true,
	chunk.KeyRetriever:  true,
}

func toChunkResponse(c chunk.Chunk) ChunkResponse {
	var extra map[string]any
	for k, v := range c.Metadata {
		if promotedKeys[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}

	return ChunkResponse{
		ID:          c.ID,
		DocID:       c.DocID,
		Text:        c.Text(),
		ContentKind: c.Content.Kind.String(),
		Score:       c.Score,
		Retriever:   c.Retriever(),
		Subject:     c.Subject(),
		Sender:      c.Sender(),
		SenderName:  c.SenderName(),
		Date:        c.Metadata.String(chunk.KeyDate),
		Metadata:    extra,
	}
}

// writeError writes an error response tagged with the request id, if any.
func writeError(ctx context.Context, w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:     message,
		RequestID: contextutil.RequestIDFromContext(ctx),
	})
}
