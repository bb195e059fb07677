package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/irontracks/musclemap/internal/ingest"
	"github.com/irontracks/musclemap/internal/ingest/alpha"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	SessionsFound    int
	WorkoutsInserted int
	WorkoutsUpdated  int
	SetsFound        int
}

// Ingester stores one export for a user. *alpha.Provider satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, r io.Reader, userID int) (*ingest.Result, error)
}

// Importer reads Alpha Progression CSV exports from a file or a directory
// tree and stores them for one user.
type Importer struct {
	ingester Ingester
	userID   int
	log      *slog.Logger
	dryRun   bool
	stats    Stats
}

// New creates a new Importer. In dry-run mode files are parsed and counted
// but nothing is written.
func New(ingester Ingester, userID int, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{ingester: ingester, userID: userID, log: log, dryRun: dryRun}
}

// Import processes path, which is either a single export or a directory
// searched recursively for *.csv files. Unreadable or malformed files are
// counted and skipped. A storage failure stops the import.
func (imp *Importer) Import(ctx context.Context, path string) (*Stats, error) {
	files, err := FindExports(path)
	if err != nil {
		return &imp.stats, err
	}
	if len(files) == 0 {
		imp.log.Warn("no exports found", "path", path)
		return &imp.stats, nil
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &imp.stats, err
		}
		if err := imp.importFile(ctx, f); err != nil {
			return &imp.stats, fmt.Errorf("importing %s: %w", filepath.Base(f), err)
		}
	}
	return &imp.stats, nil
}

func (imp *Importer) importFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		imp.log.Warn("read failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return nil
	}
	sessions, err := alpha.Parse(bytes.NewReader(data), nil)
	if err != nil {
		imp.log.Warn("parse failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return nil
	}
	if len(sessions) == 0 {
		imp.stats.FilesSkipped++
		return nil
	}

	imp.stats.FilesProcessed++
	if imp.dryRun {
		imp.stats.SessionsFound += len(sessions)
		for _, s := range sessions {
			for _, ex := range s.Exercises {
				imp.stats.SetsFound += len(ex.Sets)
			}
		}
		return nil
	}

	res, err := imp.ingester.Ingest(ctx, bytes.NewReader(data), imp.userID)
	if err != nil {
		return err
	}
	imp.stats.SessionsFound += res.SessionsReceived
	imp.stats.WorkoutsInserted += res.WorkoutsInserted
	imp.stats.WorkoutsUpdated += res.WorkoutsUpdated
	imp.stats.SetsFound += res.SetsReceived
	return nil
}

// FindExports lists the CSV files under path in lexical order. A path naming
// a regular file is returned as-is whatever its extension.
func FindExports(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(d.Name()), ".csv") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", path, err)
	}
	sort.Strings(files)
	return files, nil
}
