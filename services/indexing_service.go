package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// InboxWatcher keeps the documents dropped into a directory indexed. Each
// file is its own document source, re-ingested when its content changes and
// deleted when the file goes away.
type InboxWatcher struct {
	service OpinionService
	dir     string
	log     *logrus.Entry
}

// NewInboxWatcher creates a watcher for dir.
func NewInboxWatcher(service OpinionService, dir string) *InboxWatcher {
	return &InboxWatcher{
		service: service,
		dir:     dir,
		log:     logrus.WithFields(logrus.Fields{"component": "inbox", "dir": dir}),
	}
}

// SourceIDForPath derives the stable source id of an inbox file.
func SourceIDForPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	return "file-" + hex.EncodeToString(sum[:8])
}

// WatchDirectory starts a long-running process to watch for file changes in
// real-time. It returns when ctx is cancelled.
func (w *InboxWatcher) WatchDirectory(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}
	w.log.Info("watching directory")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watcher error")
		case <-ctx.Done():
			w.log.Info("context cancelled, shutting down watcher")
			return nil
		}
	}
}

func (w *InboxWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	// We only care about supported file types.
	if !IsSupportedDocument(event.Name) {
		return
	}
	log := w.log.WithField("file", event.Name)

	switch {
	// Editors often write via temp file plus rename, so Create and Write
	// are handled the same way.
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		if _, err := w.syncFile(ctx, event.Name); err != nil {
			log.WithError(err).Error("failed to index file")
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if _, err := w.service.DeleteSource(ctx, SourceIDForPath(event.Name)); err != nil {
			log.WithError(err).Error("failed to remove file from index")
		} else {
			log.Info("file removed from index")
		}
	}
}

// ScanAndIndexDirectory syncs the directory with the index: new or changed
// files are ingested and sources of files no longer present are deleted.
// It returns the number of files ingested.
func (w *InboxWatcher) ScanAndIndexDirectory(ctx context.Context) (int, error) {
	w.log.Info("starting directory scan")

	local := make(map[string]bool)
	ingested := 0
	err := filepath.Walk(w.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !IsSupportedDocument(path) {
			return nil
		}
		local[SourceIDForPath(path)] = true
		changed, err := w.syncFile(ctx, path)
		if err != nil {
			w.log.WithError(err).WithField("file", path).Error("failed to index file")
			return nil
		}
		if changed {
			ingested++
		}
		return ctx.Err()
	})
	if err != nil {
		return ingested, err
	}

	// Handle deletions
	for _, src := range w.service.ListSources(ctx, models.OriginDocument) {
		if !strings.HasPrefix(src.ID, "file-") || local[src.ID] {
			continue
		}
		w.log.WithField("source_id", src.ID).Info("file deleted, removing from index")
		if _, err := w.service.DeleteSource(ctx, src.ID); err != nil {
			w.log.WithError(err).WithField("source_id", src.ID).Error("failed to remove deleted file")
		}
	}
	w.log.WithField("ingested", ingested).Info("directory scan finished")
	return ingested, nil
}

// syncFile ingests path unless the indexed copy has the same content hash.
func (w *InboxWatcher) syncFile(ctx context.Context, path string) (bool, error) {
	id := SourceIDForPath(path)
	hash, err := calculateFileHash(path)
	if err != nil {
		return false, err
	}
	if src, err := w.service.GetSource(ctx, id); err == nil && src.ContentHash == hash && src.Status == models.StatusCompleted {
		return false, nil // File is unchanged, skip.
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	w.log.WithField("file", path).Info("indexing new or modified file")
	if err := w.service.IngestDocumentWithID(ctx, id, data, filepath.Base(path)); err != nil {
		return false, err
	}
	return true, nil
}

func calculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
