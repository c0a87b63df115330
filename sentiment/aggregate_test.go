package sentiment

import (
	"testing"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		agg := Aggregate(nil)
		assert.Equal(t, 0, agg.TotalItems)
		assert.Equal(t, models.Neutral, agg.Dominant)
		assert.Zero(t, agg.Positive+agg.Negative+agg.Neutral)
	})

	t.Run("mean", func(t *testing.T) {
		agg := Aggregate([]models.SentimentVector{
			{Positive: 1},
			{Negative: 1},
			{Neutral: 1},
			{Positive: 1},
		})
		assert.Equal(t, 4, agg.TotalItems)
		assert.InDelta(t, 0.5, agg.Positive, 1e-9)
		assert.InDelta(t, 0.25, agg.Negative, 1e-9)
		assert.InDelta(t, 0.25, agg.Neutral, 1e-9)
		assert.InDelta(t, 1, agg.Positive+agg.Negative+agg.Neutral, 1e-6)
		assert.Equal(t, models.Positive, agg.Dominant)
	})

	t.Run("tie prefers positive then negative", func(t *testing.T) {
		agg := Aggregate([]models.SentimentVector{{Positive: 1}, {Negative: 1}})
		assert.Equal(t, models.Positive, agg.Dominant)

		agg = Aggregate([]models.SentimentVector{{Negative: 1}, {Neutral: 1}})
		assert.Equal(t, models.Negative, agg.Dominant)
	})
}

func TestAggregateWeighted(t *testing.T) {
	vectors := []models.SentimentVector{{Positive: 1}, {Negative: 1}}

	agg := AggregateWeighted(vectors, []float64{3, 1})
	assert.InDelta(t, 0.75, agg.Positive, 1e-9)
	assert.Equal(t, 2, agg.TotalItems)

	agg = AggregateWeighted(vectors, []float64{0, 0})
	assert.InDelta(t, 0.5, agg.Positive, 1e-9, "zero weights fall back to uniform")

	agg = AggregateWeighted(vectors, []float64{1})
	assert.InDelta(t, 0.5, agg.Positive, 1e-9, "length mismatch falls back to uniform")
}

func TestWeighers(t *testing.T) {
	popular := models.RetrievalResult{Score: 0.9, Item: models.Item{Metadata: map[string]string{models.MetaLikeCount: "100"}}}
	plain := models.RetrievalResult{Score: 0.3, Item: models.Item{}}

	assert.Equal(t, 1.0, Uniform(popular))
	assert.Greater(t, ByLikes(popular), ByLikes(plain))
	assert.Equal(t, 1.0, ByLikes(plain))
	assert.Equal(t, []float64{0.9, 0.3}, Weights([]models.RetrievalResult{popular, plain}, ByRelevance))
	assert.Nil(t, Weights(nil, nil))
}
