package services

import (
	"context"
	"testing"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVideoURL(t *testing.T) {
	tests := []struct {
		name    string
		message string
		url     string
		videoID string
		ok      bool
	}{
		{"watch", "what about https://www.youtube.com/watch?v=dQw4w9WgXcQ ?", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"short", "https://youtu.be/abc_def-123", "https://youtu.be/abc_def-123", "abc_def-123", true},
		{"embed", "see https://youtube.com/embed/AAAAAAAAAAA", "https://youtube.com/embed/AAAAAAAAAAA", "AAAAAAAAAAA", true},
		{"v path", "http://www.youtube.com/v/BBBBBBBBBBB", "http://www.youtube.com/v/BBBBBBBBBBB", "BBBBBBBBBBB", true},
		{"id too short", "https://youtu.be/abc", "", "", false},
		{"other site", "https://example.com/watch?v=dQw4w9WgXcQ", "", "", false},
		{"plain text", "what do people think of the new law?", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, id, ok := extractVideoURL(tt.message)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.url, url)
			assert.Equal(t, tt.videoID, id)
		})
	}
}

func newTestChat(t *testing.T, historyLimit int) (*testEngine, *ChatService) {
	t.Helper()
	e := newTestEngine(t)
	e.convs = NewConversationStore(historyLimit)
	return e, NewChatService(e.service, e.gen, e.convs, ChatConfig{})
}

func TestChatService_DirectReply(t *testing.T) {
	ctx := context.Background()
	e, chat := newTestChat(t, 20)
	e.gen.reply = "Hello there."

	for i := 0; i < 4; i++ {
		_, err := chat.ProcessMessage(ctx, "c1", "message", false)
		require.NoError(t, err)
	}
	resp, err := chat.ProcessMessage(ctx, "c1", "last one", false)
	require.NoError(t, err)
	assert.Equal(t, "c1", resp.ConversationID)
	assert.Equal(t, "Hello there.", resp.Reply)
	assert.Nil(t, resp.Aggregate)

	// system instruction, the last five earlier messages, the new message
	msgs := e.gen.lastMessages
	require.Len(t, msgs, 7)
	assert.Equal(t, models.RoleSystem, msgs[0].Role)
	assert.Equal(t, models.RoleUser, msgs[6].Role)
	assert.Equal(t, "last one", msgs[6].Content)

	assert.Len(t, chat.History("c1"), 10)
}

func TestChatService_NewConversationID(t *testing.T) {
	_, chat := newTestChat(t, 20)
	resp, err := chat.ProcessMessage(context.Background(), "", "hi", false)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Len(t, chat.History(resp.ConversationID), 2)
	assert.Equal(t, 1, chat.ConversationCount())
}

func TestChatService_EmptyMessage(t *testing.T) {
	_, chat := newTestChat(t, 20)
	_, err := chat.ProcessMessage(context.Background(), "c1", "   ", true)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, chat.History("c1"))
}

func TestChatService_RetrievalReply(t *testing.T) {
	ctx := context.Background()
	e, chat := newTestChat(t, 20)
	e.comments.set("t1", "v1", "great!", "terrible")
	_, err := e.service.IngestTopic(ctx, "t1", 10, 100)
	require.NoError(t, err)

	resp, err := chat.ProcessMessage(ctx, "c1", "what do people think?", true)
	require.NoError(t, err)
	assert.Equal(t, "People are divided.", resp.Reply)
	require.NotNil(t, resp.Aggregate)
	assert.Equal(t, 2, resp.Aggregate.TotalItems)
	assert.Len(t, resp.Evidence, 2)
}

func TestChatService_VideoLink(t *testing.T) {
	ctx := context.Background()
	e, chat := newTestChat(t, 20)
	e.comments.set("unused", "dQw4w9WgXcQ", "great!", "terrible", "it's okay")

	resp, err := chat.ProcessMessage(ctx, "c1", "https://youtu.be/dQw4w9WgXcQ", true)
	require.NoError(t, err)
	assert.Contains(t, resp.Reply, "Comments collected: 3")
	assert.Contains(t, resp.Reply, "https://youtu.be/dQw4w9WgXcQ")
	require.NotNil(t, resp.Aggregate)
	assert.Equal(t, 3, resp.Aggregate.TotalItems)

	// the default question was asked, restricted to the video
	last := e.gen.lastMessages
	assert.Equal(t, "Question: "+defaultVideoQuestion, last[len(last)-1].Content)

	src, err := e.service.GetSource(ctx, "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", src.Params.VideoID)
}

func TestChatService_FailureBecomesApology(t *testing.T) {
	e, chat := newTestChat(t, 20)
	e.gen.failOther = true

	resp, err := chat.ProcessMessage(context.Background(), "c1", "hello", false)
	require.NoError(t, err)
	assert.Contains(t, resp.Reply, "Sorry")

	history := chat.History("c1")
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
	assert.Equal(t, resp.Reply, history[1].Content)
}

func TestChatService_HistoryIsBounded(t *testing.T) {
	ctx := context.Background()
	_, chat := newTestChat(t, 4)
	for i := 0; i < 5; i++ {
		_, err := chat.ProcessMessage(ctx, "c1", "hi", false)
		require.NoError(t, err)
	}
	assert.Len(t, chat.History("c1"), 4)

	assert.True(t, chat.Clear("c1"))
	assert.Empty(t, chat.History("c1"))
	assert.False(t, chat.Clear("c1"))
}
