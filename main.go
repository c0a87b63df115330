// Command break-bias mines public opinion from video comments and documents.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dyk-im/Break-Bias/chunker"
	"github.com/dyk-im/Break-Bias/config"
	"github.com/dyk-im/Break-Bias/providers"
	"github.com/dyk-im/Break-Bias/sentiment"
	"github.com/dyk-im/Break-Bias/services"
	"github.com/dyk-im/Break-Bias/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "break-bias",
	Short: "Opinion analysis over video comments and documents",
	Long: `break-bias collects comments and documents, indexes them with embeddings
and answers questions about the public opinion they express.

Run "break-bias serve" for the HTTP API, or use the subcommands directly.
Subcommands print JSON.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML config file")
	rootCmd.Version = Version
}

// app holds the wired engine.
type app struct {
	cfg      *config.AppConfig
	store    *store.EmbeddingStore
	convs    *services.ConversationStore
	opinions services.OpinionService
	chat     *services.ChatService
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logrus.WithError(err).Warn("failed to close vector store")
	}
}

// loadApp reads the config and wires every component.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log)
	return buildApp(ctx, cfg)
}

func setupLogging(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetOutput(os.Stderr)
}

func buildApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	log := logrus.WithField("component", "main")

	if err := services.ConfigurePDFLicense(cfg.UnidocKey); err != nil {
		log.WithError(err).Warn("PDF extraction will be unavailable")
	}

	// A nil generator degrades scoring to neutral and synthesis to the
	// fixed fallback text.
	var gen providers.Generator
	geminiClient, err := providers.NewGeminiClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		log.WithError(err).Warn("generation disabled")
	} else {
		gen = providers.NewGeminiGenerator(geminiClient, cfg.Gemini.Model)
		log.Info("Successfully connected to Google Gemini.")
	}

	var embedder providers.Embedder
	switch cfg.Embedder.Type {
	case "gemini":
		if geminiClient == nil {
			return nil, fmt.Errorf("embedder.type gemini needs GEMINI_API_KEY")
		}
		embedder = providers.NewGeminiEmbedder(geminiClient, cfg.Embedder.Model, cfg.Embedder.BatchSize)
	default:
		embedder = providers.NewOllamaEmbedder(providers.OllamaConfig{
			BaseURL:   cfg.Embedder.OllamaURL,
			Model:     cfg.Embedder.Model,
			BatchSize: cfg.Embedder.BatchSize,
			Timeout:   time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
		})
	}

	var index store.Index
	switch cfg.VectorStore.Type {
	case "chroma":
		index, err = store.NewChromaIndex(ctx, cfg.VectorStore.ChromaURL, cfg.VectorStore.Collection)
	default:
		index, err = store.NewLocalIndex(cfg.VectorStore.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	st := store.NewEmbeddingStore(index, embedder, cfg.Embedder.BatchSize)

	var comments providers.CommentSource
	if cfg.YouTube.APIKey != "" {
		yt, err := providers.NewYouTubeSource(ctx, cfg.YouTube.APIKey, cfg.YouTube.RequestsPerSecond)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		comments = yt
	} else {
		log.Warn("YOUTUBE_API_KEY not set, using sample comments")
		comments = providers.NewSampleSource()
	}

	docs, err := services.NewDocumentFiles(cfg.Paths.Documents)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	docChunker := chunker.New(
		chunker.WithChunkSize(cfg.Chunker.ChunkSize),
		chunker.WithOverlap(cfg.Chunker.ChunkOverlap),
		chunker.WithMinContentChars(cfg.Chunker.MinContentChars),
	)
	scorer := sentiment.NewScorer(gen, cfg.Gemini.SentimentTemperature)
	synth := services.NewSynthesizer(gen, scorer, services.SynthesizerConfig{
		Temperature:     cfg.Gemini.Temperature,
		MaxEvidence:     cfg.Analysis.MaxEvidence,
		MaxContentChars: cfg.Analysis.MaxContentChars,
		ScoreWorkers:    cfg.Analysis.ScoreWorkers,
	})
	convs := services.NewConversationStore(cfg.Analysis.HistoryLimit)

	opinions := services.NewOpinionService(services.OpinionServiceDeps{
		Store:          st,
		Retriever:      services.NewRetriever(st),
		Synthesizer:    synth,
		Scorer:         scorer,
		Registry:       services.NewRegistry(),
		Comments:       comments,
		Documents:      docs,
		Conversations:  convs,
		DocChunker:     docChunker,
		CommentChunker: docChunker.WithCommentSeparators(),
		Config: services.OpinionServiceConfig{
			TopK:              cfg.Analysis.TopK,
			ScoreWorkers:      cfg.Analysis.ScoreWorkers,
			ReindexWorkers:    cfg.Analysis.ReindexWorkers,
			MaxSources:        cfg.YouTube.MaxVideos,
			MaxItemsPerSource: cfg.YouTube.MaxCommentsPerVid,
		},
	})
	if _, err := opinions.Restore(ctx); err != nil {
		log.WithError(err).Warn("could not restore sources from index")
	}

	chat := services.NewChatService(opinions, gen, convs, services.ChatConfig{
		DirectHistory: cfg.Analysis.DirectHistory,
		Temperature:   cfg.Gemini.Temperature,
	})

	return &app{cfg: cfg, store: st, convs: convs, opinions: opinions, chat: chat}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
