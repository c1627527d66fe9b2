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
	"testing"

	"github.com/weaviate/weaviate/entities/models"
)

func TestNewStore_RejectsBadURLs(t *testing.T) {
	cases := []string{"", "localhost:8080", "not a url", "//missing-scheme"}
	for _, raw := range cases {
		if _, err := NewStore(raw, "Doc", nil); err == nil {
			t.Errorf("NewStore(%q) error = nil, want non-nil", raw)
		}
	}
}

func TestNewStore_DefaultsClass(t *testing.T) {
	s, err := NewStore("http://localhost:8080", "", nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if s.Class() != DefaultClass {
		t.Errorf("class = %q, want %q", s.Class(), DefaultClass)
	}
}

func TestParseGraphQLResponse_Documents(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				"ObserveDocument": []interface{}{
					map[string]interface{}{
						"content": "go is a language",
						"source":  "notes.md",
						"_additional": map[string]interface{}{
							"certainty": 0.93,
							"id":        "aaaa-bbbb",
						},
					},
				},
			},
		},
	}

	rows, err := parseGraphQLResponse[documentQueryResponse](resp, "ObserveDocument")
	if err != nil {
		t.Fatalf("parseGraphQLResponse() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Content != "go is a language" || rows[0].Source != "notes.md" {
		t.Errorf("row = %+v", rows[0])
	}
	if rows[0].Additional.Certainty != 0.93 || rows[0].Additional.ID != "aaaa-bbbb" {
		t.Errorf("additional = %+v", rows[0].Additional)
	}
}

func TestParseGraphQLResponse_NilAndErrors(t *testing.T) {
	if _, err := parseGraphQLResponse[documentQueryResponse](nil, "Doc"); err == nil {
		t.Error("nil response: error = nil, want non-nil")
	}

	resp := &models.GraphQLResponse{
		Errors: []*models.GraphQLError{{Message: "class not found"}},
	}
	if _, err := parseGraphQLResponse[documentQueryResponse](resp, "Doc"); err == nil {
		t.Error("response with errors: error = nil, want non-nil")
	}
}

func TestParseGraphQLResponse_MissingClassIsEmpty(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{},
		},
	}
	rows, err := parseGraphQLResponse[documentQueryResponse](resp, "Doc")
	if err != nil {
		t.Fatalf("parseGraphQLResponse() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

func TestParseAggregateCount(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Aggregate": map[string]interface{}{
				"ObserveDocument": []interface{}{
					map[string]interface{}{
						"meta": map[string]interface{}{"count": float64(42)},
					},
				},
			},
		},
	}
	n, err := parseAggregateCount(resp, "ObserveDocument")
	if err != nil {
		t.Fatalf("parseAggregateCount() error = %v", err)
	}
	if n != 42 {
		t.Errorf("count = %d, want 42", n)
	}
}

func TestParseAggregateCount_EmptyClass(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Aggregate": map[string]interface{}{},
		},
	}
	n, err := parseAggregateCount(resp, "Doc")
	if err != nil {
		t.Fatalf("parseAggregateCount() error = %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}
