package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mailrag/internal/chunk"
	"mailrag/internal/contextutil"
)

// SenderRetriever keeps semantically relevant chunks written by one person.
type SenderRetriever struct {
	search SemanticSearch
	cfg    Config
	logger *slog.Logger
}

// NewSenderRetriever creates a sender retriever.
func NewSenderRetriever(search SemanticSearch, cfg Config, logger *slog.Logger) *SenderRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &SenderRetriever{search: search, cfg: cfg.withDefaults(), logger: logger}
}

// Retrieve returns up to topK chunks from senderName in relevance order.
// No match yields an empty slice; an empty senderName applies no filter.
func (r *SenderRetriever) Retrieve(ctx context.Context, query, senderName string, topK int) ([]chunk.Chunk, error) {
	logger := contextutil.LoggerFromContextOr(ctx, r.logger)

	candidates, err := r.search.Search(ctx, query, r.cfg.overFetch(topK))
	if err != nil {
		return nil, fmt.Errorf("failed to search sender candidates: %w", err)
	}
	candidates = chunk.FilterDocType(candidates, r.cfg.DocType)

	if strings.TrimSpace(senderName) == "" {
		logger.WarnContext(ctx, "sender retrieval without sender, returning unfiltered results")
	}

	out := FilterSender(candidates, senderName)
	out = truncate(out, topK)
	out = tagAll(out, TagSender)

	logger.InfoContext(ctx, "sender retrieval complete",
		"sender", senderName,
		"candidates", len(candidates),
		"chunks", len(out),
	)
	return out, nil
}

// MatchSender reports whether the chunk was sent by name: a case-insensitive substring of
// the display name or address, or an exact match of the display name's first word.
func MatchSender(c chunk.Chunk, name string) bool {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return true
	}
	display := strings.ToLower(strings.TrimSpace(c.SenderName()))
	address := strings.ToLower(strings.TrimSpace(c.Sender()))
	if strings.Contains(display, needle) || strings.Contains(address, needle) {
		return true
	}
	if fields := strings.Fields(display); len(fields) > 0 && fields[0] == needle {
		return true
	}
	return false
}

// FilterSender keeps the chunks matching name, preserving order.
func FilterSender(chunks []chunk.Chunk, name string) []chunk.Chunk {
	out := make([]chunk.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if MatchSender(c, name) {
			out = append(out, c)
		}
	}
	return out
}
