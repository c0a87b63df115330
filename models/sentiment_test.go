package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentimentVector_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   SentimentVector
		want SentimentVector
	}{
		{"already normal", SentimentVector{0.2, 0.3, 0.5}, SentimentVector{0.2, 0.3, 0.5}},
		{"rescaled", SentimentVector{2, 2, 4}, SentimentVector{0.25, 0.25, 0.5}},
		{"all zero", SentimentVector{}, SentimentVector{Neutral: 1}},
		{"negatives ignored", SentimentVector{-1, 1, 1}, SentimentVector{0, 0.5, 0.5}},
		{"nan ignored", SentimentVector{math.NaN(), 1, 0}, SentimentVector{0, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.InDelta(t, tt.want.Positive, got.Positive, 1e-9)
			assert.InDelta(t, tt.want.Negative, got.Negative, 1e-9)
			assert.InDelta(t, tt.want.Neutral, got.Neutral, 1e-9)
			assert.InDelta(t, 1, got.Positive+got.Negative+got.Neutral, 1e-6)
		})
	}
}

func TestSentimentVector_Dominant(t *testing.T) {
	assert.Equal(t, Positive, SentimentVector{0.4, 0.4, 0.2}.Dominant())
	assert.Equal(t, Negative, SentimentVector{0.2, 0.4, 0.4}.Dominant())
	assert.Equal(t, Positive, SentimentVector{1.0 / 3, 1.0 / 3, 1.0 / 3}.Dominant())
	assert.Equal(t, Neutral, SentimentVector{0.1, 0.2, 0.7}.Dominant())
	assert.Equal(t, Neutral, NeutralSentiment().Dominant())
}

func TestProviderError(t *testing.T) {
	err := NewProviderError("ollama", "embed", "some text", assert.AnError)
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "some text")
}
