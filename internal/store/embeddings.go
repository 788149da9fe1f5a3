// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"
)

// TextHash is the cache key of a text: hex SHA-256 of its bytes.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GetEmbedding returns the cached vector for (model, text), if any.
func (s *Store) GetEmbedding(ctx context.Context, model, text string) ([]float64, bool, error) {
	var (
		dims int
		blob []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT dims, vector FROM embeddings WHERE model = ? AND text_hash = ?`,
		model, TextHash(text),
	).Scan(&dims, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying embedding: %w", err)
	}
	vec, err := decodeVector(blob, dims)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// PutEmbedding caches vec for (model, text), replacing any earlier value.
func (s *Store) PutEmbedding(ctx context.Context, model, text string, vec []float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO embeddings (model, text_hash, dims, vector, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(model, text_hash) DO UPDATE SET dims=excluded.dims, vector=excluded.vector, created_at=excluded.created_at`,
		model, TextHash(text), len(vec), encodeVector(vec), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing embedding: %w", err)
	}
	return nil
}

// CountEmbeddings returns the number of cached vectors.
func (s *Store) CountEmbeddings(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return n, nil
}

// Vectors are stored as little-endian float64s.
func encodeVector(vec []float64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeVector(buf []byte, dims int) ([]float64, error) {
	if len(buf) != 8*dims {
		return nil, fmt.Errorf("embedding blob has %d bytes, want %d", len(buf), 8*dims)
	}
	vec := make([]float64, dims)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return vec, nil
}
