package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/dyk-im/Break-Bias/models"
)

var sampleComments = []string{
	"Really great video, thanks for making it! 👍",
	"I want to learn more about this topic",
	"I disagree. There are other perspectives worth hearing",
	"Totally agree with this!",
	"Thanks for explaining it so clearly",
	"I think this needs a more detailed explanation",
	"Excellent analysis",
	"This part seems wrong to me?",
	"Looking forward to the next one",
	"Subscribed!",
}

// SampleSource is a deterministic offline comment source used when no
// YouTube API key is configured.
type SampleSource struct {
	videos int
}

// NewSampleSource returns a source producing three videos per query.
func NewSampleSource() *SampleSource {
	return &SampleSource{videos: 3}
}

// Name returns the identifier of this comment source.
func (s *SampleSource) Name() string { return "sample" }

// SearchSources returns up to max synthetic videos for query.
func (s *SampleSource) SearchSources(_ context.Context, query string, max int) ([]models.SourceRef, error) {
	n := s.videos
	if max < n {
		n = max
	}
	refs := make([]models.SourceRef, 0, n)
	for i := 0; i < n; i++ {
		refs = append(refs, models.SourceRef{
			ID:          fmt.Sprintf("sample_video_%d", i),
			Title:       fmt.Sprintf("%s video %d", query, i+1),
			Channel:     fmt.Sprintf("Channel %d", i+1),
			PublishedAt: "2024-01-01T00:00:00Z",
		})
	}
	return refs, nil
}

// FetchItems returns up to max fixed comments attributed to ref.
func (s *SampleSource) FetchItems(_ context.Context, ref models.SourceRef, max int) ([]models.RawItem, error) {
	published := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := make([]models.RawItem, 0, len(sampleComments))
	for i, text := range sampleComments {
		if i >= max {
			break
		}
		items = append(items, models.RawItem{
			ID:          fmt.Sprintf("sample_comment_%s_%d", ref.ID, i),
			Text:        text,
			Author:      fmt.Sprintf("user%d", i+1),
			Weight:      int64(i * 2),
			PublishedAt: published,
			SourceRef:   ref,
		})
	}
	return items, nil
}
