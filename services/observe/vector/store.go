// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vector wraps the Weaviate client for document storage and
// nearest-neighbor search. Vectors are supplied by the caller; the
// class is created with Vectorizer "none".
package vector

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// DefaultClass is the document class used when none is configured.
const DefaultClass = "ObserveDocument"

// Document is one item to store alongside its embedding vector.
type Document struct {
	Content string
	Source  string
	UserID  string
}

// Hit is one search result.
type Hit struct {
	Content    string
	Source     string
	Certainty  float64
	DocumentID string
}

// Store is a thin, class-scoped wrapper over the Weaviate client.
type Store struct {
	client *weaviate.Client
	class  string
	logger *slog.Logger
}

// NewStore connects to the Weaviate instance at rawURL. The URL must
// carry a scheme; host and scheme are split out for the client config.
func NewStore(rawURL, class string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if class == "" {
		class = DefaultClass
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid Weaviate URL %q: %v", rawURL, err)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create Weaviate client: %w", err)
	}

	return &Store{client: client, class: class, logger: logger}, nil
}

// EnsureSchema creates the document class if it does not exist yet.
// Existing classes are left untouched.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.client.Schema().ClassGetter().WithClassName(s.class).Do(ctx)
	if err == nil {
		s.logger.Debug("Weaviate class already exists", "class", s.class)
		return nil
	}

	class := &models.Class{
		Class:       s.class,
		Description: "Documents ingested through the observe service",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
			{Name: "user_id", DataType: []string{"text"}},
			{Name: "ingested_at", DataType: []string{"int"}},
		},
	}
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create Weaviate class %q: %w", s.class, err)
	}
	s.logger.Info("Created Weaviate class", "class", s.class)
	return nil
}

// AddDocuments batch-imports the documents with their vectors and
// returns how many items Weaviate accepted. Object ids are derived
// from a content hash so re-ingesting the same text is idempotent.
func (s *Store) AddDocuments(ctx context.Context, docs []Document, vectors [][]float32) (int, error) {
	if len(docs) != len(vectors) {
		return 0, fmt.Errorf("document count %d does not match vector count %d", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return 0, nil
	}

	objects := make([]*models.Object, len(docs))
	for i, doc := range docs {
		hash := sha256.Sum256([]byte(doc.Content))
		docUUID, _ := uuid.FromBytes(hash[:16])

		objects[i] = &models.Object{
			Class:  s.class,
			ID:     strfmt.UUID(docUUID.String()),
			Vector: vectors[i],
			Properties: map[string]interface{}{
				"content":     doc.Content,
				"source":      doc.Source,
				"user_id":     doc.UserID,
				"ingested_at": time.Now().UnixMilli(),
			},
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("batch import to Weaviate: %w", err)
	}

	stored := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			stored++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil {
			for _, errItem := range item.Result.Errors.Error {
				s.logger.Warn("Weaviate batch item failed", "class", s.class, "error", errItem.Message)
			}
		}
	}
	return stored, nil
}

// Search runs a near-vector query and returns up to limit hits ordered
// by certainty.
func (s *Store) Search(ctx context.Context, vec []float32, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 5
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
			{Name: "id"},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := parseGraphQLResponse[documentQueryResponse](result, s.class)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	hits := make([]Hit, 0, len(parsed))
	for _, item := range parsed {
		hits = append(hits, Hit{
			Content:    item.Content,
			Source:     item.Source,
			Certainty:  item.Additional.Certainty,
			DocumentID: item.Additional.ID,
		})
	}
	return hits, nil
}

// Count returns the number of stored documents via an aggregate query.
func (s *Store) Count(ctx context.Context) (int, error) {
	result, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(graphql.Field{
			Name:   "meta",
			Fields: []graphql.Field{{Name: "count"}},
		}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("weaviate aggregate failed: %w", err)
	}

	counts, err := parseAggregateCount(result, s.class)
	if err != nil {
		return 0, fmt.Errorf("parse aggregate results: %w", err)
	}
	return counts, nil
}

// Class returns the Weaviate class this store is scoped to.
func (s *Store) Class() string {
	return s.class
}
