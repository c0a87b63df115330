package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	maxSearchPage  = 50
	maxCommentPage = 100
)

// RateLimiter throttles YouTube Data API calls with a token bucket and backs
// off after quota errors.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a limiter allowing rps sustained requests per second.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request can be made without exceeding the rate limit.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		if err := sleepCtx(ctx, d); err != nil {
			return err
		}
	}
	return r.limiter.Wait(ctx)
}

// RecordRateLimitError pauses all requests for the given period.
func (r *RateLimiter) RecordRateLimitError(backoff time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if backoff <= 0 {
		backoff = time.Minute
	}
	r.retryAt = time.Now().Add(backoff)
}

// YouTubeSource collects comments through the YouTube Data API v3.
type YouTubeSource struct {
	service *youtube.Service
	limiter *RateLimiter
	log     *logrus.Entry
}

// NewYouTubeSource creates a comment source authenticated with an API key.
// Extra client options (an endpoint override in tests) are appended.
func NewYouTubeSource(ctx context.Context, apiKey string, rps float64, opts ...option.ClientOption) (*YouTubeSource, error) {
	if apiKey == "" {
		return nil, errors.New("youtube api key is empty")
	}
	svc, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}
	return &YouTubeSource{
		service: svc,
		limiter: NewRateLimiter(rps, 1),
		log:     logrus.WithField("component", "youtube"),
	}, nil
}

// Name returns the identifier of this comment source.
func (y *YouTubeSource) Name() string { return "youtube" }

// SearchSources returns up to max videos relevant to query.
func (y *YouTubeSource) SearchSources(ctx context.Context, query string, max int) ([]models.SourceRef, error) {
	if max <= 0 {
		return nil, nil
	}
	if max > maxSearchPage {
		max = maxSearchPage
	}
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := y.service.Search.List([]string{"id", "snippet"}).
		Q(query).
		Type("video").
		Order("relevance").
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		y.observe(err)
		return nil, models.NewProviderError(y.Name(), "search", query, err)
	}

	refs := make([]models.SourceRef, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		ref := models.SourceRef{ID: item.Id.VideoId}
		if item.Snippet != nil {
			ref.Title = item.Snippet.Title
			ref.Channel = item.Snippet.ChannelTitle
			ref.PublishedAt = item.Snippet.PublishedAt
		}
		refs = append(refs, ref)
	}
	y.log.WithFields(logrus.Fields{"query": query, "videos": len(refs)}).Info("searched videos")
	return refs, nil
}

// FetchItems returns up to max top-level comments of the video, most relevant
// first, following page tokens as needed.
func (y *YouTubeSource) FetchItems(ctx context.Context, ref models.SourceRef, max int) ([]models.RawItem, error) {
	var items []models.RawItem
	pageToken := ""
	for len(items) < max {
		if err := y.limiter.Wait(ctx); err != nil {
			return items, err
		}
		pageSize := max - len(items)
		if pageSize > maxCommentPage {
			pageSize = maxCommentPage
		}

		call := y.service.CommentThreads.List([]string{"snippet"}).
			VideoId(ref.ID).
			Order("relevance").
			TextFormat("plainText").
			MaxResults(int64(pageSize))
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			y.observe(err)
			return nil, models.NewProviderError(y.Name(), "fetch comments", ref.ID, err)
		}

		for _, thread := range resp.Items {
			if thread.Snippet == nil || thread.Snippet.TopLevelComment == nil || thread.Snippet.TopLevelComment.Snippet == nil {
				continue
			}
			c := thread.Snippet.TopLevelComment
			published, _ := time.Parse(time.RFC3339, c.Snippet.PublishedAt)
			items = append(items, models.RawItem{
				ID:          c.Id,
				Text:        c.Snippet.TextDisplay,
				Author:      c.Snippet.AuthorDisplayName,
				Weight:      c.Snippet.LikeCount,
				PublishedAt: published,
				SourceRef:   ref,
			})
			if len(items) == max {
				break
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" || len(resp.Items) == 0 {
			break
		}
	}
	return items, nil
}

func (y *YouTubeSource) observe(err error) {
	if isRateLimited(err) {
		y.log.WithError(err).Warn("youtube quota or rate limit hit, backing off")
		y.limiter.RecordRateLimitError(time.Minute)
	}
}

// isRateLimited reports a 429, or a 403 whose reason is a quota or rate
// limit. Other 403s (comments disabled, private video) concern one video only.
func isRateLimited(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	switch gerr.Code {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		for _, item := range gerr.Errors {
			switch item.Reason {
			case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
				return true
			}
		}
	}
	return false
}
