// Package retriever implements the thread, temporal, sender and multi-aspect retrieval
// strategies on top of a semantic search port.
package retriever

import (
	"context"
	"errors"
	"time"

	"mailrag/internal/chunk"
)

// ErrUnavailable marks a collaborator (embedding service, vector index, metadata store)
// that could not be reached at all.
var ErrUnavailable = errors.New("retrieval unavailable")

// Provenance tags written to chunk metadata.
const (
	TagThread      = "thread"
	TagTemporal    = "temporal"
	TagSender      = "sender"
	TagMultiAspect = "multi-aspect"
)

// SemanticSearch returns chunks in descending similarity order. Every chunk carries doc_type.
type SemanticSearch interface {
	Search(ctx context.Context, query string, topK int) ([]chunk.Chunk, error)
}

// MetadataStore scans every persisted chunk of a document type.
type MetadataStore interface {
	ReadAll(ctx context.Context, docType string) ([]chunk.Chunk, error)
}

// Defaults for Config.
const (
	DefaultDocType         = "email"
	DefaultSeedK           = 10
	DefaultTopThreads      = 3
	DefaultOverFetchFactor = 10
	DefaultOverFetchCap    = 100
)

// Config holds the knobs shared by all retrievers.
type Config struct {
	DocType         string
	SeedK           int
	OverFetchFactor int
	OverFetchCap    int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.DocType == "" {
		c.DocType = DefaultDocType
	}
	if c.SeedK <= 0 {
		c.SeedK = DefaultSeedK
	}
	if c.OverFetchFactor <= 0 {
		c.OverFetchFactor = DefaultOverFetchFactor
	}
	if c.OverFetchCap <= 0 {
		c.OverFetchCap = DefaultOverFetchCap
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// overFetch is the candidate count requested before post-filtering down to topK.
func (c Config) overFetch(topK int) int {
	return min(topK*c.OverFetchFactor, c.OverFetchCap)
}

func truncate(chunks []chunk.Chunk, topK int) []chunk.Chunk {
	if topK > 0 && len(chunks) > topK {
		return chunks[:topK]
	}
	return chunks
}

func tagAll(chunks []chunk.Chunk, name string) []chunk.Chunk {
	out := make([]chunk.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = c.Tagged(name)
	}
	return out
}
