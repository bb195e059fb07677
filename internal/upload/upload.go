package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/irontracks/musclemap/internal/importer"
	"github.com/irontracks/musclemap/internal/ingest"
	"github.com/irontracks/musclemap/internal/ingest/alpha"
)

// Stats tracks upload progress.
type Stats struct {
	FilesTotal    int
	FilesUploaded int
	FilesSkipped  int
	FilesErrored  int

	SessionsSent     int
	WorkoutsInserted int
	WorkoutsUpdated  int
	SetsSent         int
}

// Sender delivers one export to the server. *Client satisfies it.
type Sender interface {
	SendExport(ctx context.Context, csv []byte) (*ingest.Result, error)
}

// Uploader walks a directory of Alpha Progression exports and sends every
// new or changed file to the server.
type Uploader struct {
	sender Sender
	state  *StateDB
	root   string
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates a new Uploader. sender may be nil in dry-run mode.
func New(sender Sender, state *StateDB, root string, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		sender: sender,
		state:  state,
		root:   root,
		dryRun: dryRun,
		log:    log,
	}
}

// Run executes the upload pipeline. Files the server rejects are counted as
// errored and retried on the next run; a transport failure stops the run.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	files, err := importer.FindExports(u.root)
	if err != nil {
		return &u.stats, err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &u.stats, err
		}
		if err := u.processFile(ctx, f); err != nil {
			return &u.stats, fmt.Errorf("uploading %s: %w", filepath.Base(f), err)
		}
	}
	return &u.stats, nil
}

func (u *Uploader) processFile(ctx context.Context, path string) error {
	u.stats.FilesTotal++

	relPath, err := filepath.Rel(u.root, path)
	if err != nil || relPath == "." {
		relPath = filepath.Base(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		u.log.Warn("stat failed", "file", path, "error", err)
		u.stats.FilesErrored++
		return nil
	}
	hash, err := HashFile(path)
	if err != nil {
		u.log.Warn("hash failed", "file", path, "error", err)
		u.stats.FilesErrored++
		return nil
	}

	uploaded, err := u.state.IsUploaded(relPath, info.Size(), hash)
	if err != nil {
		u.log.Warn("state check failed", "file", path, "error", err)
		u.stats.FilesErrored++
		return nil
	}
	if uploaded {
		u.stats.FilesSkipped++
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		u.log.Warn("read failed", "file", path, "error", err)
		u.stats.FilesErrored++
		return nil
	}

	// Parse locally so malformed files never reach the server.
	sessions, err := alpha.Parse(bytes.NewReader(data), nil)
	if err != nil {
		u.log.Warn("parse failed", "file", path, "error", err)
		u.stats.FilesErrored++
		return nil
	}
	if len(sessions) == 0 {
		u.stats.FilesSkipped++
		// Mark empty files as uploaded so we don't re-check them
		_ = u.state.MarkUploaded(relPath, info.Size(), hash, 0)
		return nil
	}

	if u.dryRun {
		u.log.Info("dry-run: would send", "file", relPath, "sessions", len(sessions))
		u.stats.FilesUploaded++
		u.stats.SessionsSent += len(sessions)
		return nil
	}

	res, err := u.sender.SendExport(ctx, data)
	if errors.Is(err, ErrRejected) {
		u.log.Warn("server rejected export", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return nil
	}
	if err != nil {
		return err
	}
	u.stats.FilesUploaded++
	u.stats.SessionsSent += res.SessionsReceived
	u.stats.WorkoutsInserted += res.WorkoutsInserted
	u.stats.WorkoutsUpdated += res.WorkoutsUpdated
	u.stats.SetsSent += res.SetsReceived

	if err := u.state.MarkUploaded(relPath, info.Size(), hash, res.SessionsReceived); err != nil {
		u.log.Warn("failed to mark uploaded", "file", relPath, "error", err)
	}
	u.log.Info("uploaded", "file", relPath, "sessions", res.SessionsReceived)
	return nil
}
