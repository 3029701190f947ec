package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mailrag/internal/chunk"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

const chunkColumns = "id, doc_id, text, content_kind, token_count, doc_type, subject, sender, sender_name, date, metadata"

// ChunkStore defines the interface for chunk storage operations.
type ChunkStore interface {
	// Insert stores a chunk. An empty ID is replaced with a new UUID.
	Insert(ctx context.Context, c *chunk.Chunk) error
	// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (chunk.Chunk, error)
	// GetByIDs returns the chunks for ids in the given order. Unknown IDs are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]chunk.Chunk, error)
	// ReadAll returns every chunk of docType ("" for all) in insertion order.
	ReadAll(ctx context.Context, docType string) ([]chunk.Chunk, error)
}

// ChunkRepo provides methods for chunk operations.
type ChunkRepo struct {
	db *sql.DB
}

var _ ChunkStore = (*ChunkRepo)(nil)

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Insert stores a chunk. An empty ID is replaced with a new UUID, written back to c.
func (r *ChunkRepo) Insert(ctx context.Context, c *chunk.Chunk) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	rec, err := RecordFromChunk(*c)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO chunks ("+chunkColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.DocID, rec.Text, rec.ContentKind, rec.TokenCount,
		rec.DocType, rec.Subject, rec.Sender, rec.SenderName, rec.Date, rec.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (chunk.Chunk, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chunk.Chunk{}, ErrNotFound
	}
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("failed to query chunk: %w", err)
	}

	return rec.ToChunk()
}

// GetByIDs returns the chunks for ids in the order given. IDs without a row are skipped.
// Used to hydrate vector search hits.
func (r *ChunkRepo) GetByIDs(ctx context.Context, ids []string) ([]chunk.Chunk, error) {
	if len(ids) == 0 {
		return []chunk.Chunk{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	byID := make(map[string]chunk.Chunk, len(ids))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c, err := rec.ToChunk()
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	out := make([]chunk.Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ReadAll returns every chunk of docType in insertion order; an empty docType returns all chunks.
// The scan runs in a read-only transaction so it sees one snapshot while appends continue.
func (r *ChunkRepo) ReadAll(ctx context.Context, docType string) ([]chunk.Chunk, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := "SELECT " + chunkColumns + " FROM chunks"
	var args []any
	if docType != "" {
		query += " WHERE doc_type = ?"
		args = append(args, docType)
	}
	query += " ORDER BY rowid"

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := []chunk.Chunk{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c, err := rec.ToChunk()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return out, nil
}

// Count returns the number of stored chunks.
func (r *ChunkRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*ChunkRecord, error) {
	var rec ChunkRecord
	err := s.Scan(&rec.ID, &rec.DocID, &rec.Text, &rec.ContentKind, &rec.TokenCount,
		&rec.DocType, &rec.Subject, &rec.Sender, &rec.SenderName, &rec.Date, &rec.Metadata)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
