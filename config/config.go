package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ChunkerConfig configures how text is split before embedding.
type ChunkerConfig struct {
	ChunkSize       int `yaml:"chunk_size"`
	ChunkOverlap    int `yaml:"chunk_overlap"`
	MinContentChars int `yaml:"min_content_chars"`
}

// EmbedderConfig selects the embedding provider ("ollama" or "gemini").
type EmbedderConfig struct {
	Type        string `yaml:"type"`
	OllamaURL   string `yaml:"ollama_url"`
	Model       string `yaml:"model"`
	BatchSize   int    `yaml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeminiConfig holds the generation provider settings.
type GeminiConfig struct {
	APIKey               string  `yaml:"api_key"`
	Model                string  `yaml:"model"`
	Temperature          float32 `yaml:"temperature"`
	SentimentTemperature float32 `yaml:"sentiment_temperature"`
}

// YouTubeConfig configures the comment source. An empty APIKey selects the
// offline sample source.
type YouTubeConfig struct {
	APIKey            string  `yaml:"api_key"`
	MaxVideos         int     `yaml:"max_videos"`
	MaxCommentsPerVid int     `yaml:"max_comments_per_video"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// VectorStoreConfig selects the index backend ("local" or "chroma").
type VectorStoreConfig struct {
	Type       string `yaml:"type"`
	Path       string `yaml:"path"`
	ChromaURL  string `yaml:"chroma_url"`
	Collection string `yaml:"collection"`
}

// AnalysisConfig tunes retrieval and synthesis.
type AnalysisConfig struct {
	TopK            int `yaml:"top_k"`
	MaxEvidence     int `yaml:"max_evidence"`
	MaxContentChars int `yaml:"max_content_chars"`
	ScoreWorkers    int `yaml:"score_workers"`
	ReindexWorkers  int `yaml:"reindex_workers"`
	HistoryLimit    int `yaml:"history_limit"`
	DirectHistory   int `yaml:"direct_history"`
}

// PathsConfig holds on-disk locations.
type PathsConfig struct {
	Documents string `yaml:"documents"`
	Inbox     string `yaml:"inbox"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	YouTube     YouTubeConfig     `yaml:"youtube"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Paths       PathsConfig       `yaml:"paths"`
	UnidocKey   string            `yaml:"unidoc_license_key"`
}

// Load reads .env (if present), then the YAML file at path, then applies
// defaults and environment overrides. A missing file yields defaults.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	applyConfigDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns a config with every default applied and no overrides.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

// Validate rejects settings the engine cannot run with.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	switch c.VectorStore.Type {
	case "local", "chroma":
	default:
		return fmt.Errorf("unknown vector_store.type %q", c.VectorStore.Type)
	}
	switch c.Embedder.Type {
	case "ollama", "gemini":
	default:
		return fmt.Errorf("unknown embedder.type %q", c.Embedder.Type)
	}
	return nil
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = 200
	}
	if cfg.Chunker.MinContentChars == 0 {
		cfg.Chunker.MinContentChars = 3
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "ollama"
	}
	if cfg.Embedder.OllamaURL == "" {
		cfg.Embedder.OllamaURL = "http://localhost:11434"
	}
	if cfg.Embedder.Model == "" {
		if cfg.Embedder.Type == "gemini" {
			cfg.Embedder.Model = "text-embedding-004"
		} else {
			cfg.Embedder.Model = "nomic-embed-text"
		}
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.5-flash"
	}
	if cfg.Gemini.Temperature == 0 {
		cfg.Gemini.Temperature = 0.7
	}
	if cfg.Gemini.SentimentTemperature == 0 {
		cfg.Gemini.SentimentTemperature = 0.1
	}
	if cfg.YouTube.MaxVideos == 0 {
		cfg.YouTube.MaxVideos = 10
	}
	if cfg.YouTube.MaxCommentsPerVid == 0 {
		cfg.YouTube.MaxCommentsPerVid = 100
	}
	if cfg.YouTube.RequestsPerSecond == 0 {
		cfg.YouTube.RequestsPerSecond = 5
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "local"
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = filepath.Join("data", "vector_store.gob")
	}
	if cfg.VectorStore.ChromaURL == "" {
		cfg.VectorStore.ChromaURL = "http://localhost:8000"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "break_bias"
	}
	if cfg.Analysis.TopK == 0 {
		cfg.Analysis.TopK = 20
	}
	if cfg.Analysis.MaxEvidence == 0 {
		cfg.Analysis.MaxEvidence = 20
	}
	if cfg.Analysis.MaxContentChars == 0 {
		cfg.Analysis.MaxContentChars = 200
	}
	if cfg.Analysis.ScoreWorkers == 0 {
		cfg.Analysis.ScoreWorkers = 4
	}
	if cfg.Analysis.ReindexWorkers == 0 {
		cfg.Analysis.ReindexWorkers = 2
	}
	if cfg.Analysis.HistoryLimit == 0 {
		cfg.Analysis.HistoryLimit = 20
	}
	if cfg.Analysis.DirectHistory == 0 {
		cfg.Analysis.DirectHistory = 5
	}
	if cfg.Paths.Documents == "" {
		cfg.Paths.Documents = filepath.Join("data", "documents")
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.YouTube.APIKey, "YOUTUBE_API_KEY")
	setString(&cfg.UnidocKey, "UNIDOC_LICENSE_KEY")
	setString(&cfg.VectorStore.ChromaURL, "CHROMA_URL")
	setString(&cfg.VectorStore.Path, "VECTOR_STORE_PATH")
	setString(&cfg.Embedder.OllamaURL, "OLLAMA_URL")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Paths.Inbox, "INBOX_DIR")
	if v := os.Getenv("TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Analysis.TopK = n
		}
	}
}
