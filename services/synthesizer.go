package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/dyk-im/Break-Bias/providers"
	"github.com/dyk-im/Break-Bias/sentiment"
	"github.com/sirupsen/logrus"
)

// SynthesizerConfig tunes how evidence is summarised.
type SynthesizerConfig struct {
	Temperature     float32
	MaxEvidence     int
	MaxContentChars int
	ScoreWorkers    int
	// Weigher sets per-item aggregation weights. Nil means uniform.
	Weigher sentiment.Weigher
}

// Synthesizer turns retrieved evidence into an opinion summary and the
// sentiment aggregate it is based on.
type Synthesizer struct {
	gen    providers.Generator
	scorer *sentiment.Scorer
	cfg    SynthesizerConfig
	log    *logrus.Entry
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(gen providers.Generator, scorer *sentiment.Scorer, cfg SynthesizerConfig) *Synthesizer {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxEvidence <= 0 {
		cfg.MaxEvidence = 20
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = 200
	}
	if cfg.ScoreWorkers <= 0 {
		cfg.ScoreWorkers = 4
	}
	return &Synthesizer{
		gen:    gen,
		scorer: scorer,
		cfg:    cfg,
		log:    logrus.WithField("component", "synthesizer"),
	}
}

// Synthesize always returns some text. With no evidence it returns a fixed
// no-data answer without calling any provider; when generation fails it
// returns a fixed error text alongside the computed aggregate.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, evidence []models.RetrievalResult, detailed bool) (string, models.SentimentAggregate) {
	if len(evidence) == 0 {
		return noDataResponse(query), models.EmptyAggregate()
	}

	agg := s.aggregate(ctx, evidence)

	template := summaryPrompt
	if detailed {
		template = detailedAnalysisPrompt
	}
	system := fmt.Sprintf(template,
		formatEvidence(evidence, s.cfg.MaxEvidence, s.cfg.MaxContentChars),
		formatSentimentStats(agg))

	if s.gen == nil {
		s.log.Warn("no generator configured")
		return synthesisFailedResponse(agg), agg
	}
	text, err := s.gen.Complete(ctx, []models.ChatMessage{
		{Role: models.RoleSystem, Content: system},
		{Role: models.RoleUser, Content: "Question: " + query},
	}, providers.GenerateOptions{Temperature: s.cfg.Temperature})
	if err != nil {
		s.log.WithError(err).Warn("opinion generation failed")
		return synthesisFailedResponse(agg), agg
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return synthesisFailedResponse(agg), agg
	}
	return text, agg
}

// aggregate uses each item's stored sentiment and scores the rest.
func (s *Synthesizer) aggregate(ctx context.Context, evidence []models.RetrievalResult) models.SentimentAggregate {
	vectors := make([]models.SentimentVector, len(evidence))
	var missing []int
	var texts []string
	for i, r := range evidence {
		if r.Item.Sentiment != nil {
			vectors[i] = *r.Item.Sentiment
			continue
		}
		missing = append(missing, i)
		texts = append(texts, r.Item.Content)
	}
	if len(missing) > 0 {
		var scored []models.SentimentVector
		if s.scorer != nil {
			scored = s.scorer.ScoreAll(ctx, texts, s.cfg.ScoreWorkers)
		}
		for j, i := range missing {
			if scored != nil {
				vectors[i] = scored[j]
			} else {
				vectors[i] = models.NeutralSentiment()
			}
		}
	}
	return sentiment.AggregateWeighted(vectors, sentiment.Weights(evidence, s.cfg.Weigher))
}
