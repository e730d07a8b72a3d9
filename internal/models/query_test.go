package models

import "testing"

func TestSimilarityQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *SimilarityQuery
		wantErr bool
	}{
		{"empty collection", &SimilarityQuery{Vector: []float32{1}}, true},
		{"no vector or text", &SimilarityQuery{Collection: "c"}, true},
		{"both vector and text", &SimilarityQuery{Collection: "c", Vector: []float32{1}, Text: "x"}, true},
		{"valid vector query", &SimilarityQuery{Collection: "c", Vector: []float32{1, 2}}, false},
		{"valid text query", &SimilarityQuery{Collection: "c", Text: "hello"}, false},
		{"sets default k", &SimilarityQuery{Collection: "c", Text: "x", K: 0}, false},
		{"caps k at 100", &SimilarityQuery{Collection: "c", Text: "x", K: 500}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if tt.query.K <= 0 {
					t.Error("expected default K to be set")
				}
				if tt.query.K > 100 {
					t.Errorf("expected K capped at 100, got %d", tt.query.K)
				}
			}
		})
	}
}
