package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesFile(t *testing.T) {
	db := openTestDB(t)
	if _, err := os.Stat(db.Path()); os.IsNotExist(err) {
		t.Errorf("expected database file at %s", db.Path())
	}

	// Reopening applies the schema again.
	require.NoError(t, db.Close())
	db2, err := Open(db.Path())
	require.NoError(t, err)
	db2.Close()
}

func TestRuns(t *testing.T) {
	db := openTestDB(t)

	r1, err := db.BeginRun("marlin", "cfg1")
	require.NoError(t, err)
	r2, err := db.BeginRun("busybox", "cfg1")
	require.NoError(t, err)
	assert.NotEqual(t, r1.ID, r2.ID)

	got, err := db.GetRun(r1.ID)
	require.NoError(t, err)
	assert.Equal(t, "marlin", got.Repo)
	assert.Equal(t, "cfg1", got.Config)
	assert.False(t, got.Finished())

	require.NoError(t, db.FinishRun(r1.ID))
	got, err = db.GetRun(r1.ID)
	require.NoError(t, err)
	assert.True(t, got.Finished())
	assert.ErrorIs(t, db.FinishRun(r1.ID), ErrRunFinished)
	assert.ErrorIs(t, db.FinishRun("missing"), ErrRunNotFound)

	_, err = db.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	all, err := db.ListRuns("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	only, err := db.ListRuns("busybox")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, r2.ID, only[0].ID)
}

func TestRecord_Idempotent(t *testing.T) {
	db := openTestDB(t)
	run, err := db.BeginRun("repo", "cfg")
	require.NoError(t, err)

	patches := []Patch{
		{Repo: "repo", Commit: "c1", Path: "a.c", Digest: "d1", Nodes: 5,
			Patterns: map[string]int{"AddToPC": 2, "Untouched": 1}},
		{Repo: "repo", Commit: "c1", Path: "b.c", Digest: "d2", ErrorKind: "NotAllAnnotationsClosed"},
	}
	n, err := db.Record(run.ID, patches)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	digests, err := db.PatchDigests("repo")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"d1": true, "d2": true}, digests)
	digests, err = db.PatchDigests("other")
	require.NoError(t, err)
	assert.Empty(t, digests)

	// A second run over the same history stores nothing new.
	run2, err := db.BeginRun("repo", "cfg")
	require.NoError(t, err)
	n, err = db.Record(run2.ID, patches)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	counts, err := db.PatternCounts(run2.ID)
	require.NoError(t, err)
	assert.Empty(t, counts)

	// Counts accumulate within a run.
	n, err = db.Record(run.ID, []Patch{
		{Repo: "repo", Commit: "c2", Path: "a.c", Digest: "d3", Nodes: 3, Patterns: map[string]int{"AddToPC": 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	counts, err = db.PatternCounts(run.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"AddToPC": 3, "Untouched": 1}, counts)

	stats, err := db.RunStats(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Patches)
	assert.Equal(t, 8, stats.Nodes)
	assert.Equal(t, map[string]int{"NotAllAnnotationsClosed": 1}, stats.Errors)
}

func TestRecord_UnknownRun(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Record("missing", []Patch{{Repo: "r", Commit: "c", Path: "p", Digest: "d"}})
	assert.Error(t, err)
}
