package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

func newTestYouTube(t *testing.T, handler http.HandlerFunc) *YouTubeSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	src, err := NewYouTubeSource(context.Background(), "test-key", 1000, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return src
}

func TestYouTubeSource_SearchAndFetch(t *testing.T) {
	src := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/search"):
			assert.Equal(t, "evs", r.URL.Query().Get("q"))
			_, _ = w.Write([]byte(`{"items":[
				{"id":{"kind":"youtube#video","videoId":"vid1"},"snippet":{"title":"EV review","channelTitle":"Cars","publishedAt":"2024-03-01T00:00:00Z"}},
				{"id":{"kind":"youtube#channel"}}
			]}`))
		case strings.HasSuffix(r.URL.Path, "/commentThreads"):
			assert.Equal(t, "vid1", r.URL.Query().Get("videoId"))
			_, _ = w.Write([]byte(`{"items":[
				{"snippet":{"topLevelComment":{"id":"c1","snippet":{"textDisplay":"love it","authorDisplayName":"ann","likeCount":7,"publishedAt":"2024-03-02T10:00:00Z"}}}},
				{"snippet":{"topLevelComment":{"id":"c2","snippet":{"textDisplay":"meh","authorDisplayName":"bob","likeCount":0,"publishedAt":"2024-03-02T11:00:00Z"}}}}
			]}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	refs, err := src.SearchSources(ctx, "evs", 5)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, models.SourceRef{ID: "vid1", Title: "EV review", Channel: "Cars", PublishedAt: "2024-03-01T00:00:00Z"}, refs[0])

	items, err := src.FetchItems(ctx, refs[0], 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "c1", items[0].ID)
	assert.Equal(t, "love it", items[0].Text)
	assert.Equal(t, int64(7), items[0].Weight)
	assert.Equal(t, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), items[0].PublishedAt.UTC())
}

func TestYouTubeSource_ErrorIsProviderError(t *testing.T) {
	src := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad video"}}`))
	})

	_, err := src.FetchItems(context.Background(), models.SourceRef{ID: "nope"}, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrProvider))
}

func TestYouTubeSource_CommentsDisabledDoesNotBackOff(t *testing.T) {
	src := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("videoId") == "closed" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"comments disabled","errors":[{"reason":"commentsDisabled","domain":"youtube.commentThread"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[
			{"snippet":{"topLevelComment":{"id":"c1","snippet":{"textDisplay":"love it","authorDisplayName":"ann","publishedAt":"2024-03-02T10:00:00Z"}}}}
		]}`))
	})

	_, err := src.FetchItems(context.Background(), models.SourceRef{ID: "closed"}, 10)
	require.ErrorIs(t, err, models.ErrProvider)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	items, err := src.FetchItems(ctx, models.SourceRef{ID: "open"}, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestIsRateLimited(t *testing.T) {
	for name, tc := range map[string]struct {
		err  error
		want bool
	}{
		"too many requests":   {&googleapi.Error{Code: http.StatusTooManyRequests}, true},
		"quota exceeded":      {&googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}}}, true},
		"rate limit exceeded": {&googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}}, true},
		"comments disabled":   {&googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "commentsDisabled"}}}, false},
		"bare forbidden":      {&googleapi.Error{Code: http.StatusForbidden}, false},
		"wrapped":             {fmt.Errorf("fetch: %w", &googleapi.Error{Code: http.StatusTooManyRequests}), true},
		"other error":         {errors.New("boom"), false},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, isRateLimited(tc.err))
		})
	}
}

func TestRateLimiter_BackoffRespectsContext(t *testing.T) {
	l := NewRateLimiter(1000, 1)
	l.RecordRateLimitError(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx))
}
