package models

import "math"

// SentimentLabel is one of the three sentiment classes.
type SentimentLabel string

const (
	Positive SentimentLabel = "positive"
	Negative SentimentLabel = "negative"
	Neutral  SentimentLabel = "neutral"
)

// SentimentVector is a probability distribution over the three labels.
type SentimentVector struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// NeutralSentiment is the fail-safe vector {0,0,1}.
func NeutralSentiment() SentimentVector {
	return SentimentVector{Neutral: 1}
}

// Normalize rescales the vector so its components sum to 1. Negative or
// non-finite components count as zero; an all-zero vector becomes neutral.
func (v SentimentVector) Normalize() SentimentVector {
	p, n, u := clampComponent(v.Positive), clampComponent(v.Negative), clampComponent(v.Neutral)
	total := p + n + u
	if total == 0 {
		return NeutralSentiment()
	}
	return SentimentVector{Positive: p / total, Negative: n / total, Neutral: u / total}
}

// Dominant returns the arg-max label. Ties resolve positive > negative > neutral.
func (v SentimentVector) Dominant() SentimentLabel {
	return dominantOf(v.Positive, v.Negative, v.Neutral)
}

func clampComponent(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
		return 0
	}
	return x
}

func dominantOf(pos, neg, neu float64) SentimentLabel {
	switch {
	case pos >= neg && pos >= neu:
		return Positive
	case neg >= neu:
		return Negative
	default:
		return Neutral
	}
}

// SentimentAggregate summarises the sentiment of a set of evidence items.
type SentimentAggregate struct {
	Positive   float64        `json:"positive"`
	Negative   float64        `json:"negative"`
	Neutral    float64        `json:"neutral"`
	Dominant   SentimentLabel `json:"dominant"`
	TotalItems int            `json:"total_items"`
}

// EmptyAggregate is the aggregate over zero items.
func EmptyAggregate() SentimentAggregate {
	return SentimentAggregate{Dominant: Neutral}
}

// NewAggregate builds an aggregate from mean components.
func NewAggregate(pos, neg, neu float64, total int) SentimentAggregate {
	return SentimentAggregate{
		Positive:   pos,
		Negative:   neg,
		Neutral:    neu,
		Dominant:   dominantOf(pos, neg, neu),
		TotalItems: total,
	}
}
