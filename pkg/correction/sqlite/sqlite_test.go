package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/quillfix/pkg/correction"
	"github.com/MrWong99/quillfix/pkg/correction/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "quillfix.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func save(t *testing.T, s correction.Store, original, corrected string, times int) correction.Correction {
	t.Helper()
	var rec correction.Correction
	for range times {
		var err error
		rec, err = s.SaveCorrection(context.Background(), correction.New(original, corrected, correction.SourceUserEdit))
		require.NoError(t, err)
	}
	return rec
}

func TestSaveCorrection_Upserts(t *testing.T) {
	s := newTestStore(t)

	first := save(t, s, "Teh", "the", 1)
	assert.Equal(t, "teh", first.Original)
	assert.Equal(t, "the", first.Corrected)
	assert.Equal(t, 1, first.Occurrences)
	assert.InDelta(t, correction.ConfidenceFor(1), first.Confidence, 1e-9)
	assert.Equal(t, correction.SourceUserEdit, first.Source)
	assert.False(t, first.CreatedAt.IsZero())

	third := save(t, s, "teh", "the", 2)
	assert.Equal(t, 3, third.Occurrences)
	assert.InDelta(t, correction.ConfidenceFor(3), third.Confidence, 1e-9)
	assert.Equal(t, first.CreatedAt, third.CreatedAt)

	n, err := s.CountCorrections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveCorrection_KeepsFirstSource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveCorrection(ctx, correction.New("adn", "and", correction.SourceImported))
	require.NoError(t, err)
	rec := save(t, s, "adn", "and", 1)
	assert.Equal(t, correction.SourceImported, rec.Source)
}

func TestGetCorrections_FiltersAndOrders(t *testing.T) {
	s := newTestStore(t)

	save(t, s, "teh", "the", 4)
	save(t, s, "recieve", "receive", 3)
	save(t, s, "adn", "and", 1)

	got, err := s.GetCorrections(context.Background(), 0.55)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "teh", got[0].Original)
	assert.Equal(t, "recieve", got[1].Original)
	assert.GreaterOrEqual(t, got[0].Confidence, got[1].Confidence)

	all, err := s.GetCorrections(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	save(t, s, "teh", "the", 2)
	save(t, s, "teh", "tea", 1)
	save(t, s, "adn", "and", 1)

	list, err := s.ListCorrections(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "adn", list[0].Original)
	assert.Equal(t, "tea", list[1].Corrected)
	assert.Equal(t, 2, list[2].Occurrences)

	require.NoError(t, s.DeleteCorrection(ctx, "ADN", "and"))
	assert.ErrorIs(t, s.DeleteCorrection(ctx, "adn", "and"), correction.ErrNotFound)

	n, err := s.DeleteByOriginal(ctx, "teh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := s.CountCorrections(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "quillfix.db")
	ctx := context.Background()

	s, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	save(t, s, "teh", "the", 3)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close must be idempotent")

	s, err = sqlite.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.GetCorrections(ctx, 0.55)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "the", got[0].Corrected)
}

func TestInMemory(t *testing.T) {
	s, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	save(t, s, "teh", "the", 1)
	require.NoError(t, s.Ping(context.Background()))
}

func TestConcurrentSaves(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				_, err := s.SaveCorrection(context.Background(), correction.New("teh", "the", correction.SourceUserEdit))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	list, err := s.ListCorrections(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 40, list[0].Occurrences)
	assert.InDelta(t, correction.ConfidenceFor(40), list[0].Confidence, 1e-9)
}

func TestCancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetCorrections(ctx, 0)
	assert.ErrorIs(t, err, correction.ErrStorage)
}
