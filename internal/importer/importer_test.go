package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irontracks/musclemap/internal/ingest/alpha"
	"github.com/irontracks/musclemap/internal/models"
)

const pushCSV = `"Push · Day 1 · Week 4 · Push-Pull-Legs";"2026-02-17 5:04 h";"1:12 hr"
"1. Bench Press · Barbell · 6 reps";"WU1 · 22,5 kg · 10 reps"
#;KG;REPS;RIR
1;102,5;6;0
2;102,5;6;0
3;100;6;0
`

const pullCSV = `"Pull · Day 2 · Week 4 · Push-Pull-Legs";"2026-02-18 6:10 h";"0:58 hr"
"1. Lat Pulldown · Cable · 10 reps"
#;KG;REPS;RIR
1;60;10;2
2;60;9;1
`

type memWriter struct {
	rows map[string]models.Workout
	err  error
}

func (m *memWriter) UpsertWorkout(_ context.Context, w models.Workout) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.rows == nil {
		m.rows = map[string]models.Workout{}
	}
	_, exists := m.rows[w.ID.String()]
	m.rows[w.ID.String()] = w
	return !exists, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// exportTree lays out two valid exports, an empty one, a malformed one and
// files that must be ignored.
func exportTree(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "push.csv"), pushCSV)
	writeFile(t, filepath.Join(dir, "2026", "pull.CSV"), pullCSV)
	writeFile(t, filepath.Join(dir, "empty.csv"), "")
	writeFile(t, filepath.Join(dir, "broken.csv"), "\"Legs\";\"2026-02-19 4:54 h\";\"1:02 hr\"\n1;115;8;1\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), pushCSV)
	writeFile(t, filepath.Join(dir, ".trash", "old.csv"), pushCSV)
	return dir
}

func newImporter(store *memWriter, dryRun bool) *Importer {
	return New(alpha.NewProvider(store, nil, discard()), 3, discard(), dryRun)
}

func TestFindExports(t *testing.T) {
	dir := exportTree(t)

	files, err := FindExports(dir)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		rel, err := filepath.Rel(dir, f)
		require.NoError(t, err)
		names = append(names, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"2026/pull.CSV", "broken.csv", "empty.csv", "push.csv"}, names)

	single := filepath.Join(dir, "notes.txt")
	files, err = FindExports(single)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, files)

	_, err = FindExports(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestImportDirectory(t *testing.T) {
	store := &memWriter{}
	imp := newImporter(store, false)

	stats, err := imp.Import(context.Background(), exportTree(t))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesProcessed)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, 1, stats.FilesErrored)
	assert.Equal(t, 2, stats.SessionsFound)
	assert.Equal(t, 2, stats.WorkoutsInserted)
	assert.Equal(t, 6, stats.SetsFound)
	assert.Len(t, store.rows, 2)
	for _, w := range store.rows {
		assert.Equal(t, 3, w.UserID)
		assert.Equal(t, models.SourceAlpha, w.Source)
	}
}

func TestImportTwiceUpdates(t *testing.T) {
	dir := exportTree(t)
	store := &memWriter{}

	_, err := newImporter(store, false).Import(context.Background(), dir)
	require.NoError(t, err)
	stats, err := newImporter(store, false).Import(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.WorkoutsInserted)
	assert.Equal(t, 2, stats.WorkoutsUpdated)
	assert.Len(t, store.rows, 2)
}

func TestImportDryRun(t *testing.T) {
	store := &memWriter{}
	stats, err := newImporter(store, true).Import(context.Background(), exportTree(t))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesProcessed)
	assert.Equal(t, 2, stats.SessionsFound)
	assert.Equal(t, 6, stats.SetsFound)
	assert.Zero(t, stats.WorkoutsInserted)
	assert.Empty(t, store.rows)
}

func TestImportStopsOnStorageError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "push.csv"), pushCSV)
	store := &memWriter{err: errors.New("disk full")}

	stats, err := newImporter(store, false).Import(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, stats.FilesProcessed)
	assert.Zero(t, stats.WorkoutsInserted)
}

var _ Ingester = (*alpha.Provider)(nil)
