package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dyk-im/Break-Bias/controller"
	"github.com/dyk-im/Break-Bias/models"
	"github.com/dyk-im/Break-Bias/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	collectMaxVideos   int
	collectMaxComments int
	analyzeTopic       string
	analyzeDetailed    bool
	analyzeTopK        int
	videoTitle         string
)

func init() {
	collectCmd.Flags().IntVar(&collectMaxVideos, "max-videos", 0, "Maximum number of videos to collect (0 = config default)")
	collectCmd.Flags().IntVar(&collectMaxComments, "max-comments", 0, "Maximum comments per video (0 = config default)")
	collectVideoCmd.Flags().IntVar(&collectMaxComments, "max-comments", 0, "Maximum comments to collect (0 = config default)")
	collectVideoCmd.Flags().StringVar(&videoTitle, "title", "", "Title to record for the video")
	analyzeCmd.Flags().StringVar(&analyzeTopic, "topic", "", "Restrict evidence to one topic or video source")
	analyzeCmd.Flags().BoolVar(&analyzeDetailed, "detailed", false, "Produce the multi-section analysis")
	analyzeCmd.Flags().IntVar(&analyzeTopK, "top-k", 0, "Number of evidence items to retrieve (0 = config default)")

	rootCmd.AddCommand(serveCmd, ingestCmd, collectCmd, collectVideoCmd, analyzeCmd, sourcesCmd, deleteCmd, reindexCmd, statsCmd)
}

// runWithApp wires the engine, runs fn and closes the store.
func runWithApp(fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(serve)
	},
}

func serve(ctx context.Context, a *app) error {
	log := logrus.WithField("component", "main")
	gin.SetMode(a.cfg.Server.Mode)

	router := controller.NewRouter(
		controller.NewOpinionController(a.opinions),
		controller.NewChatController(a.chat),
	)
	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if inbox := a.cfg.Paths.Inbox; inbox != "" {
		watcher := services.NewInboxWatcher(a.opinions, inbox)
		go func() {
			if err := os.MkdirAll(inbox, 0o755); err != nil {
				log.WithError(err).Error("could not create inbox directory")
				return
			}
			if _, err := watcher.ScanAndIndexDirectory(ctx); err != nil {
				log.WithError(err).Error("inbox scan failed")
			}
			if err := watcher.WatchDirectory(ctx); err != nil {
				log.WithError(err).Error("inbox watcher stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("server starting on http://localhost:%s", a.cfg.Server.Port)
		log.Infof("health check available at http://localhost:%s/health", a.cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a .txt, .md or .pdf document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(func(ctx context.Context, a *app) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			filename := filepath.Base(args[0])
			id, err := a.opinions.IngestDocument(ctx, data, filename)
			if err != nil {
				return err
			}
			return printJSON(models.IngestDocumentResponse{SourceID: id, Filename: filename, Message: "Document ingested successfully"})
		})
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect <topic>",
	Short: "Collect and index comments of videos matching a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(func(ctx context.Context, a *app) error {
			result, err := a.opinions.IngestTopic(ctx, args[0], collectMaxVideos, collectMaxComments)
			if err != nil {
				return err
			}
			return printJSON(result)
		})
	},
}

var collectVideoCmd = &cobra.Command{
	Use:   "collect-video <video-id>",
	Short: "Collect and index the comments of one video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(func(ctx context.Context, a *app) error {
			ref := models.SourceRef{ID: args[0], Title: videoTitle}
			result, err := a.opinions.IngestSingleSource(ctx, ref, collectMaxComments)
			if err != nil {
				return err
			}
			return printJSON(result)
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <query>",
	Short: "Summarise the opinion on a question from indexed evidence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(func(ctx context.Context, a *app) error {
			resp, err := a.opinions.QueryOpinion(ctx, models.OpinionQuery{
				Query:    args[0],
				Topic:    analyzeTopic,
				Detailed: analyzeDetailed,
				TopK:     analyzeTopK,
			})
			if err != nil {
				return err
			}
			return printJSON(resp)
		})
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources [document|comment]",
	Short: "List indexed sources",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var kind models.OriginType
		if len(args) == 1 {
			kind = models.OriginType(args[0])
		}
		return runWithApp(func(ctx context.Context, a *app) error {
			return printJSON(a.opinions.ListSources(ctx, kind))
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <source-id>",
	Short: "Delete a source and all of its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(func(ctx context.Context, a *app) error {
			deleted, err := a.opinions.DeleteSource(ctx, args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("source %s: %w", args[0], models.ErrNotFound)
			}
			return printJSON(map[string]any{"source_id": args[0], "deleted": true})
		})
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-ingest every known source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(func(ctx context.Context, a *app) error {
			report, err := a.opinions.ReindexAll(ctx)
			if err != nil {
				return err
			}
			return printJSON(report)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(func(ctx context.Context, a *app) error {
			stats, err := a.opinions.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(stats)
		})
	},
}
