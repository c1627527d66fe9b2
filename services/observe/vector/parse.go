// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vector

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// documentQueryResponse is one document row from a Get query.
//
// The class name is runtime configuration, so responses are decoded
// through a class-keyed map rather than a fixed struct. Type
// mismatches decode to zero values, not errors.
type documentQueryResponse struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	Additional struct {
		Certainty float64 `json:"certainty"`
		ID        string  `json:"id"`
	} `json:"_additional"`
}

type getEnvelope[T any] struct {
	Get map[string][]T `json:"Get"`
}

type aggregateEnvelope struct {
	Aggregate map[string][]struct {
		Meta struct {
			Count float64 `json:"count"`
		} `json:"meta"`
	} `json:"Aggregate"`
}

// parseGraphQLResponse decodes the rows for class out of a Get query
// response by re-marshaling the untyped Data payload.
func parseGraphQLResponse[T any](resp *models.GraphQLResponse, class string) ([]T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("GraphQL error: %s", resp.Errors[0].Message)
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal GraphQL response data: %w", err)
	}

	var envelope getEnvelope[T]
	if err := json.Unmarshal(respBytes, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal into target type: %w", err)
	}
	return envelope.Get[class], nil
}

// parseAggregateCount pulls meta.count for class out of an Aggregate
// query response.
func parseAggregateCount(resp *models.GraphQLResponse, class string) (int, error) {
	if resp == nil {
		return 0, fmt.Errorf("nil GraphQL response")
	}
	if len(resp.Errors) > 0 {
		return 0, fmt.Errorf("GraphQL error: %s", resp.Errors[0].Message)
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return 0, fmt.Errorf("marshal GraphQL response data: %w", err)
	}

	var envelope aggregateEnvelope
	if err := json.Unmarshal(respBytes, &envelope); err != nil {
		return 0, fmt.Errorf("unmarshal aggregate response: %w", err)
	}

	rows := envelope.Aggregate[class]
	if len(rows) == 0 {
		return 0, nil
	}
	return int(rows[0].Meta.Count), nil
}
