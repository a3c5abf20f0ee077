package fuzzy

import (
	"testing"
)

func TestNormalizer_NormalizeArtist(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple artist name", "The Beatles", "the beatles"},
		{"Artist with and", "Artist and Someone", "artist & someone"},
		{"Artist with vs", "Artist vs Someone", "artist vs. someone"},
		{"Artist with punctuation", "P!nk", "p nk"},
		{"Artist with accents", "Björk", "bjork"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizer.NormalizeArtist(tt.input); got != tt.expected {
				t.Errorf("NormalizeArtist(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizer_NormalizeTitle(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple title", "Hey Jude", "hey jude"},
		{"Featured artist stripped", "Song (feat. Someone)", "song"},
		{"Remaster suffix stripped", "Song (2011 Remaster)", "song 2011"},
		{"Unicode normalized", "Café del Mar", "cafe del mar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizer.NormalizeTitle(tt.input); got != tt.expected {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizer_CalculateSimilarity(t *testing.T) {
	normalizer := NewNormalizer()

	if got := normalizer.CalculateSimilarity("hey jude", "hey jude"); got != 1.0 {
		t.Errorf("Identical strings should score 1.0, got %f", got)
	}

	if got := normalizer.CalculateSimilarity("", "hey jude"); got != 0.0 {
		t.Errorf("Empty string should score 0.0, got %f", got)
	}

	close := normalizer.CalculateSimilarity("bohemian rhapsody", "bohemian rhapsody live")
	far := normalizer.CalculateSimilarity("bohemian rhapsody", "smells like teen spirit")

	if close <= far {
		t.Errorf("Similar titles should outscore dissimilar ones: %f vs %f", close, far)
	}
}
