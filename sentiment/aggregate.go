package sentiment

import (
	"math"
	"strconv"

	"github.com/dyk-im/Break-Bias/models"
)

// Aggregate averages the normalised vectors with equal weight.
func Aggregate(vectors []models.SentimentVector) models.SentimentAggregate {
	return AggregateWeighted(vectors, nil)
}

// AggregateWeighted averages vectors using weights[i] for vectors[i]. A nil
// slice, a length mismatch, or a non-positive total weight falls back to
// equal weights.
func AggregateWeighted(vectors []models.SentimentVector, weights []float64) models.SentimentAggregate {
	if len(vectors) == 0 {
		return models.EmptyAggregate()
	}
	if !usableWeights(weights, len(vectors)) {
		weights = make([]float64, len(vectors))
		for i := range weights {
			weights[i] = 1
		}
	}

	var pos, neg, neu, total float64
	for i, v := range vectors {
		v = v.Normalize()
		w := weights[i]
		pos += v.Positive * w
		neg += v.Negative * w
		neu += v.Neutral * w
		total += w
	}
	return models.NewAggregate(pos/total, neg/total, neu/total, len(vectors))
}

func usableWeights(weights []float64, n int) bool {
	if len(weights) != n {
		return false
	}
	var total float64
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return false
		}
		total += w
	}
	return total > 0
}

// Weigher assigns an aggregation weight to one piece of evidence.
type Weigher func(models.RetrievalResult) float64

// Uniform weighs every item equally. It is the default.
func Uniform(models.RetrievalResult) float64 { return 1 }

// ByLikes favours comments with more likes, logarithmically.
func ByLikes(r models.RetrievalResult) float64 {
	likes, err := strconv.ParseInt(r.Item.Metadata[models.MetaLikeCount], 10, 64)
	if err != nil || likes < 0 {
		likes = 0
	}
	return 1 + math.Log1p(float64(likes))
}

// ByRelevance weighs items by their retrieval score.
func ByRelevance(r models.RetrievalResult) float64 { return r.Score }

// Weights applies w to every result.
func Weights(results []models.RetrievalResult, w Weigher) []float64 {
	if w == nil {
		return nil
	}
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = w(r)
	}
	return out
}
