// Package sentiment scores text as a positive/negative/neutral distribution
// and aggregates scores over evidence sets.
package sentiment

import (
	"context"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/dyk-im/Break-Bias/providers"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Instruction is the system prompt of every scoring call.
const Instruction = `Analyze the sentiment of the user's text. Score how positive, negative and neutral it is so the three scores sum to 1.

Reply with exactly these three lines and nothing else:
positive: <number between 0 and 1>
negative: <number between 0 and 1>
neutral: <number between 0 and 1>`

// DefaultTemperature keeps scoring close to deterministic.
const DefaultTemperature float32 = 0.1

// Scorer asks a generation provider for a sentiment distribution. It never
// fails: provider or format errors degrade to neutral.
type Scorer struct {
	gen         providers.Generator
	temperature float32
	log         *logrus.Entry
}

// NewScorer creates a Scorer. A nil generator scores everything neutral.
func NewScorer(gen providers.Generator, temperature float32) *Scorer {
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	return &Scorer{
		gen:         gen,
		temperature: temperature,
		log:         logrus.WithField("component", "sentiment"),
	}
}

// Score returns the normalised sentiment of text.
func (s *Scorer) Score(ctx context.Context, text string) models.SentimentVector {
	if s.gen == nil {
		return models.NeutralSentiment()
	}

	reply, err := s.gen.Complete(ctx, []models.ChatMessage{
		{Role: models.RoleSystem, Content: Instruction},
		{Role: models.RoleUser, Content: text},
	}, providers.GenerateOptions{Temperature: s.temperature})
	if err != nil {
		s.log.WithError(err).Warn("sentiment provider failed, using neutral")
		return models.NeutralSentiment()
	}

	v, err := Decode(reply)
	if err != nil {
		s.log.WithError(err).Warn("could not decode sentiment reply, using neutral")
		return models.NeutralSentiment()
	}
	return v
}

// ScoreAll scores texts with at most workers concurrent provider calls.
// Results are in input order.
func (s *Scorer) ScoreAll(ctx context.Context, texts []string, workers int) []models.SentimentVector {
	out := make([]models.SentimentVector, len(texts))
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, text := range texts {
		g.Go(func() error {
			out[i] = s.Score(gctx, text)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
