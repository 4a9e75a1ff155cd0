package storage

import (
	"context"
	"testing"

	"github.com/annel0/cavegen/internal/layout"
	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/annel0/cavegen/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout(name string, seed uint32) *layout.Layout {
	return &layout.Layout{
		Sublevel: name,
		Seed:     seed,
		Units: []layout.PlacedUnit{
			{
				Name: "start", Kind: sublevel.KindRoom, Rotation: 1, Pos: vec.V2(0, 0), Width: 2, Height: 2,
				Doors: []layout.PlacedDoor{{Dir: sublevel.East, Anchor: vec.V2(2, 0)}},
			},
		},
		Entities: []layout.Entity{
			{Kind: layout.EntityStart, Name: "start", Pos: vec.V3[float32](170, 0, 170), Count: 1},
		},
	}
}

func testRecord(t *testing.T, name string, seed uint32) *Record {
	t.Helper()
	rec, err := NewRecord(testLayout(name, seed))
	require.NoError(t, err)
	return rec
}

// runRepoSuite проверяет общий контракт ResultRepo
func runRepoSuite(t *testing.T, repo ResultRepo) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		rec := testRecord(t, "hole-1", 42)
		require.NoError(t, repo.Save(ctx, rec))

		got, found, err := repo.Load(ctx, "hole-1", 42)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, rec.Slug, got.Slug)
		assert.Equal(t, rec.ShareCode, got.ShareCode)
		assert.Equal(t, rec.Fingerprint, got.Fingerprint)

		l, err := got.DecodeLayout()
		require.NoError(t, err)
		assert.Equal(t, rec.Slug, l.Slug())
	})

	t.Run("Load missing", func(t *testing.T) {
		rec, found, err := repo.Load(ctx, "hole-1", 999)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, rec)
	})

	t.Run("Overwrite", func(t *testing.T) {
		rec := testRecord(t, "hole-1", 7)
		require.NoError(t, repo.Save(ctx, rec))
		rec.Slug = "changed"
		require.NoError(t, repo.Save(ctx, rec))

		got, found, err := repo.Load(ctx, "hole-1", 7)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "changed", got.Slug)
	})

	t.Run("BatchSave and List", func(t *testing.T) {
		recs := []*Record{
			testRecord(t, "hole-2", 300),
			testRecord(t, "hole-2", 5),
			testRecord(t, "hole-2", 0x10000),
			testRecord(t, "other", 1),
		}
		require.NoError(t, repo.BatchSave(ctx, recs))

		list, err := repo.List(ctx, "hole-2", 0)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []uint32{5, 300, 0x10000}, []uint32{list[0].Seed, list[1].Seed, list[2].Seed})

		limited, err := repo.List(ctx, "hole-2", 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		empty, err := repo.List(ctx, "nothing", 0)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "hole-2", 5))
		_, found, err := repo.Load(ctx, "hole-2", 5)
		require.NoError(t, err)
		assert.False(t, found)

		assert.Error(t, repo.Delete(ctx, "hole-2", 5), "повторное удаление")
	})

	t.Run("Invalid record", func(t *testing.T) {
		assert.Error(t, repo.Save(ctx, &Record{Seed: 1}))
		assert.Error(t, repo.Save(ctx, nil))
	})
}

func TestMemoryResultRepo(t *testing.T) {
	repo := NewMemoryResultRepo()
	defer repo.Close()

	runRepoSuite(t, repo)

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := repo.Save(ctx, testRecord(t, "hole-1", 1))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Stored copy is detached", func(t *testing.T) {
		rec := testRecord(t, "copy", 1)
		require.NoError(t, repo.Save(context.Background(), rec))
		rec.Slug = "mutated"

		got, _, err := repo.Load(context.Background(), "copy", 1)
		require.NoError(t, err)
		assert.NotEqual(t, "mutated", got.Slug)
	})
}

func TestBadgerResultRepo(t *testing.T) {
	repo, err := NewBadgerResultRepo(t.TempDir())
	require.NoError(t, err)
	defer repo.Close()

	runRepoSuite(t, repo)
}

func TestBadgerResultRepo_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := NewBadgerResultRepo(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, testRecord(t, "hole-1", 11)))
	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close(), "повторное закрытие безопасно")

	_, _, err = repo.Load(ctx, "hole-1", 11)
	assert.ErrorIs(t, err, ErrNotReady)

	reopened, err := NewBadgerResultRepo(dir)
	require.NoError(t, err)
	defer reopened.Close()

	_, found, err := reopened.Load(ctx, "hole-1", 11)
	require.NoError(t, err)
	assert.True(t, found, "данные пережили перезапуск")
}

func TestRecordKey(t *testing.T) {
	assert.Equal(t, "layout:hole-1:0000002a", RecordKey("hole-1", 42))

	rec := &Record{Fingerprint: 0xDEADBEEF00000001}
	assert.Equal(t, "deadbeef00000001", rec.FingerprintHex())
	v, err := parseFingerprintHex(rec.FingerprintHex())
	require.NoError(t, err)
	assert.Equal(t, rec.Fingerprint, v)
}

func TestParseRecordKey(t *testing.T) {
	name, seed, err := ParseRecordKey(RecordKey("hole:1", 0xFFFFFFFF))
	require.NoError(t, err)
	assert.Equal(t, "hole:1", name)
	assert.Equal(t, uint32(0xFFFFFFFF), seed)

	for _, bad := range []string{"", "layout:", "layout:hole-1:2a", "cache:hole-1:0000002a", "layout::0000002a", "layout:hole-1:zzzzzzzz"} {
		_, _, err := ParseRecordKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestOpen(t *testing.T) {
	repo, err := Open(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryResultRepo{}, repo)

	repo, err = Open(context.Background(), Config{Driver: "badger", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &BadgerResultRepo{}, repo)
	require.NoError(t, repo.Close())

	_, err = Open(context.Background(), Config{Driver: "badger"})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{Driver: "floppy"})
	assert.Error(t, err)
}
