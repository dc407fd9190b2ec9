package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ngmaloney/park-terminal/internal/database"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func TestRepository_RecordAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	first := &Entry{Action: "create", ParkID: "7", ParkName: "Parque del Perro", Message: "Park created", CreatedAt: base}
	second := &Entry{Level: LevelError, Action: "delete", ParkID: "7", Message: "The request took too long to complete.", ErrorKind: "timeout", CreatedAt: base.Add(time.Minute)}

	require.NoError(t, repo.Record(ctx, first))
	require.NoError(t, repo.Record(ctx, second))
	require.NotEmpty(t, first.ID)
	require.Equal(t, LevelInfo, first.Level)

	entries, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first
	require.Equal(t, "delete", entries[0].Action)
	require.Equal(t, LevelError, entries[0].Level)
	require.Equal(t, "timeout", entries[0].ErrorKind)
	require.Equal(t, "Parque del Perro", entries[1].ParkName)
	require.True(t, entries[1].CreatedAt.Equal(base), "CreatedAt = %v, want %v", entries[1].CreatedAt, base)
}

func TestRepository_ListLimit(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Record(ctx, &Entry{Action: "list", Message: "Parks loaded"}))
	}

	entries, err := repo.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestDiscard(t *testing.T) {
	var r Recorder = Discard{}
	require.NoError(t, r.Record(context.Background(), &Entry{Message: "ignored"}))
}
