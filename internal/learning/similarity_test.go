package learning_test

import (
	"math"
	"testing"

	"github.com/MrWong99/quillfix/internal/learning"
)

func TestSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b    string
		atLeast float64
		below   float64
	}{
		{a: "teh", b: "the", atLeast: 0.7, below: 1},
		{a: "adn", b: "and", atLeast: 0.7, below: 1},
		{a: "recieve", b: "receive", atLeast: 0.9, below: 1},
		{a: "definately", b: "definitely", atLeast: 0.9, below: 1},
		{a: "seperate", b: "separate", atLeast: 0.85, below: 1},
		{a: "hello", b: "world", atLeast: 0, below: 0.7},
		{a: "cat", b: "dog", atLeast: 0, below: 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			t.Parallel()
			got := learning.Similarity(tt.a, tt.b)
			if got < tt.atLeast || got >= tt.below {
				t.Errorf("Similarity(%q, %q) = %.4f, want in [%.2f, %.2f)", tt.a, tt.b, got, tt.atLeast, tt.below)
			}
		})
	}
}

func TestSimilarity_Identity(t *testing.T) {
	t.Parallel()

	for _, w := range []string{"a", "the", "receive", "Hello", "ÜBER", ""} {
		if got := learning.Similarity(w, w); got != 1 {
			t.Errorf("Similarity(%q, %q) = %v, want 1", w, w, got)
		}
	}
}

func TestSimilarity_IgnoresCase(t *testing.T) {
	t.Parallel()

	if got := learning.Similarity("HELLO", "hello"); got != 1 {
		t.Errorf("Similarity(HELLO, hello) = %v, want 1", got)
	}
	if a, b := learning.Similarity("Teh", "THE"), learning.Similarity("teh", "the"); a != b {
		t.Errorf("Similarity(Teh, THE) = %v, Similarity(teh, the) = %v, want equal", a, b)
	}
}

func TestSimilarity_EmptyAgainstWord(t *testing.T) {
	t.Parallel()

	if got := learning.Similarity("", "word"); got != 0 {
		t.Errorf("Similarity(\"\", word) = %v, want 0", got)
	}
}

func TestSimilarity_SymmetricAndBounded(t *testing.T) {
	t.Parallel()

	words := []string{"teh", "the", "then", "recieve", "receive", "mail", "male", "a", "an", "form", "from", "quick", "quack", "hello", "help", "I", "it's", "its"}
	for _, a := range words {
		for _, b := range words {
			ab, ba := learning.Similarity(a, b), learning.Similarity(b, a)
			if math.Abs(ab-ba) > 1e-12 {
				t.Errorf("Similarity(%q, %q) = %v, Similarity(%q, %q) = %v, want symmetric", a, b, ab, b, a, ba)
			}
			if ab < 0 || ab > 1 {
				t.Errorf("Similarity(%q, %q) = %v, want within [0, 1]", a, b, ab)
			}
		}
	}
}

func TestSimilarity_ShortTokenBoundary(t *testing.T) {
	t.Parallel()

	// Three-rune pairs use a match window of 1. Once either side has four
	// runes the standard window applies, so "teh" scores lower against
	// "thee" than against "the".
	tests := []struct {
		a, b string
		want float64
	}{
		{a: "teh", b: "the", want: 0.9},
		{a: "adn", b: "and", want: 0.9},
		{a: "teh", b: "thee", want: 0.825},
		{a: "thee", b: "teh", want: 0.825},
	}

	for _, tt := range tests {
		if got := learning.Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %.6f, want %.6f", tt.a, tt.b, got, tt.want)
		}
	}
}
