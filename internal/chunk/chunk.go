package chunk

import (
	"fmt"
	"strings"
	"time"
)

// Recognized metadata keys.
const (
	KeySubject    = "subject"
	KeySender     = "sender"
	KeySenderName = "sender_name"
	KeyDate       = "date"
	KeyDocType    = "doc_type"
	KeyRetriever  = "_retriever"
)

// ContentKind distinguishes what a chunk body holds.
type ContentKind int

const (
	// KindText is plain message text.
	KindText ContentKind = iota
	// KindImageDescription is a generated description of an image attachment.
	KindImageDescription
)

// String returns the storage name of the kind.
func (k ContentKind) String() string {
	switch k {
	case KindImageDescription:
		return "image_description"
	default:
		return "text"
	}
}

// ParseContentKind maps a storage name back to a ContentKind. Unknown names are text.
func ParseContentKind(s string) ContentKind {
	if s == "image_description" {
		return KindImageDescription
	}
	return KindText
}

// Content is the body of a chunk: either message text or an image description.
type Content struct {
	Kind ContentKind
	Body string
}

// Text builds text content.
func Text(s string) Content {
	return Content{Kind: KindText, Body: s}
}

// ImageDescription builds image-description content.
func ImageDescription(s string) Content {
	return Content{Kind: KindImageDescription, Body: s}
}

// String returns the body regardless of kind.
func (c Content) String() string {
	return c.Body
}

// Metadata is the open key/value map attached to a chunk.
type Metadata map[string]any

// String returns the value of key as a string, or "" if absent.
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Clone returns a shallow copy of the map. A nil map clones to an empty one.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Chunk is a retrievable unit of message text with metadata.
type Chunk struct {
	ID         string   `json:"id"`
	DocID      string   `json:"doc_id"`
	Content    Content  `json:"-"`
	TokenCount int      `json:"token_count"`
	Score      float32  `json:"score,omitempty"`
	Metadata   Metadata `json:"metadata"`
}

// Text returns the chunk body.
func (c Chunk) Text() string {
	return c.Content.Body
}

// Subject returns the raw subject line.
func (c Chunk) Subject() string { return c.Metadata.String(KeySubject) }

// Sender returns the sender address.
func (c Chunk) Sender() string { return c.Metadata.String(KeySender) }

// SenderName returns the sender display name.
func (c Chunk) SenderName() string { return c.Metadata.String(KeySenderName) }

// DocType returns the document type.
func (c Chunk) DocType() string { return c.Metadata.String(KeyDocType) }

// Retriever returns the provenance tag.
func (c Chunk) Retriever() string { return c.Metadata.String(KeyRetriever) }

// ThreadKey returns the normalized subject used to group a conversation.
func (c Chunk) ThreadKey() string {
	return NormalizeSubject(c.Subject())
}

// Date parses the chunk date. ok is false when the date is missing or malformed.
func (c Chunk) Date() (time.Time, bool) {
	return ParseDate(c.Metadata.String(KeyDate))
}

// Tagged returns a copy of the chunk with the provenance tag set to name.
// Metadata is copied so shared maps from a store are never mutated.
func (c Chunk) Tagged(name string) Chunk {
	c.Metadata = c.Metadata.Clone()
	c.Metadata[KeyRetriever] = name
	return c
}

// TaggedIfMissing tags the chunk only when it carries no provenance tag yet.
func (c Chunk) TaggedIfMissing(name string) Chunk {
	if strings.TrimSpace(c.Retriever()) != "" {
		return c
	}
	return c.Tagged(name)
}

// FilterDocType keeps the chunks whose doc_type equals docType. An empty docType keeps everything.
func FilterDocType(chunks []Chunk, docType string) []Chunk {
	if docType == "" {
		return chunks
	}
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.DocType() == docType {
			out = append(out, c)
		}
	}
	return out
}
