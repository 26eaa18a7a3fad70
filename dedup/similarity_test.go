package dedup

import (
	"math"
	"testing"
)

func TestCalculateSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", "oferta", "oferta", 1.0},
		{"normalized equal", "Aluguel Salão", "aluguel salao", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "oferta", "", 0.0},
		{"whitespace only vs text", "   ", "oferta", 0.0},
		{"one edit in ten", "pagamentos", "pagamentoz", 0.9},
		{"completely different", "abc", "xyz", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CalculateSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCalculateSimilarity_Symmetric(t *testing.T) {
	a, b := "Aluguel do Salão", "Aluguel do Salon"
	if CalculateSimilarity(a, b) != CalculateSimilarity(b, a) {
		t.Errorf("similarity not symmetric for %q / %q", a, b)
	}
}

func TestCalculateSimilarity_ThresholdBoundary(t *testing.T) {
	// One edit in ten characters sits exactly on the 0.90 threshold and
	// must count as a match; one edit in nine falls below it.
	atBoundary := CalculateSimilarity("pagamentos", "pagamentoz")
	if atBoundary < SimilarityThreshold {
		t.Errorf("similarity %v at boundary should be >= threshold %v", atBoundary, SimilarityThreshold)
	}

	below := CalculateSimilarity("descartes", "descartez")
	if below >= SimilarityThreshold {
		t.Errorf("similarity %v should be below threshold %v", below, SimilarityThreshold)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a    string
		b    string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"oferta", "oferta", 0},
	}

	for _, tt := range tests {
		got := levenshtein([]rune(tt.a), []rune(tt.b))
		if got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
