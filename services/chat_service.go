package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/dyk-im/Break-Bias/providers"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var videoURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://(?:www\.)?youtube\.com/watch\?v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`https?://youtu\.be/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`https?://(?:www\.)?youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`https?://(?:www\.)?youtube\.com/v/([a-zA-Z0-9_-]{11})`),
}

// extractVideoURL returns the first video link in message and its video id.
func extractVideoURL(message string) (url, videoID string, ok bool) {
	for _, re := range videoURLPatterns {
		if m := re.FindStringSubmatch(message); m != nil {
			return m[0], m[1], true
		}
	}
	return "", "", false
}

// ChatConfig tunes the chat service.
type ChatConfig struct {
	// DirectHistory is how many earlier messages accompany a direct reply.
	DirectHistory int
	// VideoMaxItems caps the comments collected for a linked video.
	VideoMaxItems int
	Temperature   float32
}

// ChatService routes chat messages to video analysis, retrieval-backed
// opinion answers or direct generation.
type ChatService struct {
	opinions OpinionService
	gen      providers.Generator
	convs    *ConversationStore
	cfg      ChatConfig
	log      *logrus.Entry
}

// NewChatService creates a ChatService.
func NewChatService(opinions OpinionService, gen providers.Generator, convs *ConversationStore, cfg ChatConfig) *ChatService {
	if cfg.DirectHistory <= 0 {
		cfg.DirectHistory = 5
	}
	if cfg.VideoMaxItems <= 0 {
		cfg.VideoMaxItems = 200
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if convs == nil {
		convs = NewConversationStore(defaultMaxMessages)
	}
	return &ChatService{
		opinions: opinions,
		gen:      gen,
		convs:    convs,
		cfg:      cfg,
		log:      logrus.WithField("component", "chat"),
	}
}

// ProcessMessage handles one user turn. Failures while answering become an
// apology from the assistant; only an empty message is an error.
func (c *ChatService) ProcessMessage(ctx context.Context, conversationID, message string, useRAG bool) (*models.ChatResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, models.NewValidationError("message is empty")
	}
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	unlock := c.convs.Lock(conversationID)
	defer unlock()

	prior := c.convs.History(conversationID)
	c.convs.Append(conversationID, models.RoleUser, message)

	resp := &models.ChatResponse{ConversationID: conversationID}
	var err error
	if url, videoID, ok := extractVideoURL(message); ok {
		err = c.analyseVideo(ctx, resp, message, url, videoID)
	} else if useRAG {
		err = c.answerWithEvidence(ctx, resp, message)
	} else {
		err = c.answerDirect(ctx, resp, prior, message)
	}
	if err != nil {
		c.log.WithError(err).WithField("conversation_id", conversationID).Warn("chat turn failed")
		resp.Reply = apologyResponse(err)
		resp.Aggregate = nil
		resp.Evidence = nil
	}

	c.convs.Append(conversationID, models.RoleAssistant, resp.Reply)
	return resp, nil
}

func (c *ChatService) analyseVideo(ctx context.Context, resp *models.ChatResponse, message, url, videoID string) error {
	question := strings.TrimSpace(strings.Replace(message, url, "", 1))
	if len([]rune(question)) < 3 {
		question = defaultVideoQuestion
	}

	c.log.WithField("video_id", videoID).Info("analysing linked video")
	result, err := c.opinions.IngestSingleSource(ctx, models.SourceRef{ID: videoID}, c.cfg.VideoMaxItems)
	if err != nil {
		return err
	}
	opinion, err := c.opinions.QueryOpinion(ctx, models.OpinionQuery{Query: question, Topic: videoID, Detailed: true})
	if err != nil {
		return err
	}
	resp.Reply = videoAnalysisResponse(url, result, opinion.Text)
	resp.Aggregate = &opinion.Aggregate
	resp.Evidence = opinion.Evidence
	return nil
}

func (c *ChatService) answerWithEvidence(ctx context.Context, resp *models.ChatResponse, message string) error {
	opinion, err := c.opinions.QueryOpinion(ctx, models.OpinionQuery{Query: message})
	if err != nil {
		return err
	}
	resp.Reply = opinion.Text
	resp.Aggregate = &opinion.Aggregate
	resp.Evidence = opinion.Evidence
	return nil
}

func (c *ChatService) answerDirect(ctx context.Context, resp *models.ChatResponse, prior []models.ChatMessage, message string) error {
	if c.gen == nil {
		return errors.New("no generator configured")
	}
	if len(prior) > c.cfg.DirectHistory {
		prior = prior[len(prior)-c.cfg.DirectHistory:]
	}
	messages := make([]models.ChatMessage, 0, len(prior)+2)
	messages = append(messages, models.ChatMessage{Role: models.RoleSystem, Content: directChatPrompt})
	messages = append(messages, prior...)
	messages = append(messages, models.ChatMessage{Role: models.RoleUser, Content: message})

	reply, err := c.gen.Complete(ctx, messages, providers.GenerateOptions{Temperature: c.cfg.Temperature})
	if err != nil {
		return err
	}
	resp.Reply = strings.TrimSpace(reply)
	return nil
}

// History returns the messages of a conversation, oldest first.
func (c *ChatService) History(conversationID string) []models.ChatMessage {
	return c.convs.History(conversationID)
}

// Clear forgets a conversation. Unknown ids are a no-op.
func (c *ChatService) Clear(conversationID string) bool {
	return c.convs.Clear(conversationID)
}

// ConversationCount returns the number of live conversations.
func (c *ChatService) ConversationCount() int {
	return c.convs.Count()
}
