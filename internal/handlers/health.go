package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"mailrag/internal/contextutil"
	"mailrag/internal/vectorstore"
)

// ChunkCounter is satisfied by *storage.ChunkRepo.
type ChunkCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthHandler reports whether the retrieval backends are reachable.
type HealthHandler struct {
	vectorStore    vectorstore.VectorStore
	chunks         ChunkCounter
	collectionName string
	timeout        time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(vectorStore vectorstore.VectorStore, chunks ChunkCounter, collectionName string) *HealthHandler {
	return &HealthHandler{
		vectorStore:    vectorStore,
		chunks:         chunks,
		collectionName: collectionName,
		timeout:        5 * time.Second,
	}
}

// CheckResult is the outcome of one backend check.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
	// ChunkCount is the number of stored chunks, when the chunk store answered.
	ChunkCount *int `json:"chunk_count,omitempty"`
}

// ServeHTTP handles GET /api/health.
// Both checks run concurrently; either failing yields 503.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		vectorResult, chunkResult CheckResult
		count                     int
	)
	// Checks never return errors to the group so one failure does not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		vectorResult = h.checkVectorStore(checkCtx, logger)
		return nil
	})
	g.Go(func() error {
		chunkResult, count = h.checkChunkStore(checkCtx, logger)
		return nil
	})
	_ = g.Wait()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks: map[string]CheckResult{
			"vector_store": vectorResult,
			"chunk_store":  chunkResult,
		},
	}
	if chunkResult.Status == "ok" {
		resp.ChunkCount = &count
	}

	httpStatus := http.StatusOK
	for _, c := range resp.Checks {
		if c.Status != "ok" {
			resp.Status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}

func (h *HealthHandler) checkVectorStore(ctx context.Context, logger *slog.Logger) CheckResult {
	start := time.Now()
	exists, err := h.vectorStore.CollectionExists(ctx, h.collectionName)
	res := CheckResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
	switch {
	case err != nil:
		logger.WarnContext(ctx, "vector store health check failed", "error", err)
		res.Status, res.Error = "error", err.Error()
	case !exists:
		logger.WarnContext(ctx, "vector store collection does not exist", "collection", h.collectionName)
		res.Status, res.Error = "error", "collection "+h.collectionName+" not found"
	}
	return res
}

func (h *HealthHandler) checkChunkStore(ctx context.Context, logger *slog.Logger) (CheckResult, int) {
	start := time.Now()
	n, err := h.chunks.Count(ctx)
	res := CheckResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		logger.WarnContext(ctx, "chunk store health check failed", "error", err)
		res.Status, res.Error = "error", err.Error()
	}
	return res, n
}
