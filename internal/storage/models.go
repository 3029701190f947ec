package storage

import (
	"encoding/json"
	"fmt"

	"mailrag/internal/chunk"
)

// ChunkRecord is a row of the chunks table.
type ChunkRecord struct {
	ID          string // UUID (same as Qdrant point ID)
	DocID       string // Source message id
	Text        string
	ContentKind string // "text" or "image_description"
	TokenCount  int
	DocType     string
	Subject     string
	Sender      string // Address
	SenderName  string // Display name
	Date        string // As received; parsed lazily by chunk.ParseDate
	Metadata    string // JSON object with any extra keys
}

// promoted lists the metadata keys stored in their own columns.
var promoted = []string{
	chunk.KeyDocType,
	chunk.KeySubject,
	chunk.KeySender,
	chunk.KeySenderName,
	chunk.KeyDate,
}

// ToChunk converts the row into a domain chunk.
func (r *ChunkRecord) ToChunk() (chunk.Chunk, error) {
	meta := chunk.Metadata{}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
			return chunk.Chunk{}, fmt.Errorf("failed to decode metadata of chunk %s: %w", r.ID, err)
		}
	}

	columns := map[string]string{
		chunk.KeyDocType:    r.DocType,
		chunk.KeySubject:    r.Subject,
		chunk.KeySender:     r.Sender,
		chunk.KeySenderName: r.SenderName,
		chunk.KeyDate:       r.Date,
	}
	for k, v := range columns {
		if v != "" {
			meta[k] = v
		}
	}

	return chunk.Chunk{
		ID:         r.ID,
		DocID:      r.DocID,
		Content:    chunk.Content{Kind: chunk.ParseContentKind(r.ContentKind), Body: r.Text},
		TokenCount: r.TokenCount,
		Metadata:   meta,
	}, nil
}

// RecordFromChunk converts a domain chunk into a row. Retrieval-only keys such as
// the provenance tag are not persisted.
func RecordFromChunk(c chunk.Chunk) (*ChunkRecord, error) {
	extra := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		extra[k] = v
	}
	for _, k := range promoted {
		delete(extra, k)
	}
	delete(extra, chunk.KeyRetriever)

	raw, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata of chunk %s: %w", c.ID, err)
	}

	return &ChunkRecord{
		ID:          c.ID,
		DocID:       c.DocID,
		Text:        c.Content.Body,
		ContentKind: c.Content.Kind.String(),
		TokenCount:  c.TokenCount,
		DocType:     c.DocType(),
		Subject:     c.Subject(),
		Sender:      c.Sender(),
		SenderName:  c.SenderName(),
		Date:        c.Metadata.String(chunk.KeyDate),
		Metadata:    string(raw),
	}, nil
}
