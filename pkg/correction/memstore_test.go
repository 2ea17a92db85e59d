package correction_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrWong99/quillfix/pkg/correction"
)

func TestMemStore_UpsertIncrementsOccurrences(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := correction.NewMemStore()

	var got correction.Correction
	var err error
	for i := 0; i < 3; i++ {
		got, err = s.SaveCorrection(ctx, correction.New("TEH", "the", correction.SourceUserEdit))
		if err != nil {
			t.Fatalf("SaveCorrection #%d: %v", i+1, err)
		}
	}
	if got.Occurrences != 3 {
		t.Errorf("Occurrences = %d, want 3", got.Occurrences)
	}
	if got.Original != "teh" {
		t.Errorf("Original = %q, want lower-cased %q", got.Original, "teh")
	}
	if got.Confidence != correction.ConfidenceFor(3) {
		t.Errorf("Confidence = %f, want %f", got.Confidence, correction.ConfidenceFor(3))
	}

	n, _ := s.CountCorrections(ctx)
	if n != 1 {
		t.Errorf("CountCorrections = %d, want 1 (no duplicates)", n)
	}
}

func TestMemStore_DistinctCorrectedAreDistinctRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := correction.NewMemStore()

	_, _ = s.SaveCorrection(ctx, correction.New("teh", "the", correction.SourceUserEdit))
	_, _ = s.SaveCorrection(ctx, correction.New("teh", "The", correction.SourceUserEdit))

	n, _ := s.CountCorrections(ctx)
	if n != 2 {
		t.Errorf("CountCorrections = %d, want 2", n)
	}
}

func TestMemStore_GetCorrectionsFiltersAndOrders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := correction.NewMemStore()

	save := func(orig, corr string, times int) {
		for i := 0; i < times; i++ {
			if _, err := s.SaveCorrection(ctx, correction.New(orig, corr, correction.SourceUserEdit)); err != nil {
				t.Fatalf("SaveCorrection: %v", err)
			}
		}
	}
	save("teh", "the", 4)
	save("recieve", "receive", 3)
	save("adn", "and", 1)

	entries, err := s.GetCorrections(ctx, 0.55)
	if err != nil {
		t.Fatalf("GetCorrections: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2: %+v", len(entries), entries)
	}
	if entries[0].Original != "teh" || entries[1].Original != "recieve" {
		t.Errorf("order = [%s %s], want [teh recieve]", entries[0].Original, entries[1].Original)
	}
}

func TestMemStore_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := correction.NewMemStore()
	_, _ = s.SaveCorrection(ctx, correction.New("teh", "the", correction.SourceUserEdit))
	_, _ = s.SaveCorrection(ctx, correction.New("teh", "tea", correction.SourceUserEdit))

	if err := s.DeleteCorrection(ctx, "TEH", "tea"); err != nil {
		t.Fatalf("DeleteCorrection: %v", err)
	}
	if err := s.DeleteCorrection(ctx, "teh", "tea"); !errors.Is(err, correction.ErrNotFound) {
		t.Errorf("second DeleteCorrection err = %v, want ErrNotFound", err)
	}
	n, err := s.DeleteByOriginal(ctx, "teh")
	if err != nil || n != 1 {
		t.Errorf("DeleteByOriginal = (%d, %v), want (1, nil)", n, err)
	}
}

func TestMemStore_CancelledContextIsStorageError(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := correction.NewMemStore().SaveCorrection(ctx, correction.New("teh", "the", correction.SourceUserEdit))
	if !errors.Is(err, correction.ErrStorage) {
		t.Errorf("err = %v, want ErrStorage", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want to wrap context.Canceled", err)
	}
}

func TestMemStore_ConcurrentUpserts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var s correction.MemStore // zero value must be usable

	const workers, each = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				_, _ = s.SaveCorrection(ctx, correction.New("teh", "the", correction.SourceUserEdit))
			}
		}()
	}
	wg.Wait()

	list, _ := s.ListCorrections(ctx)
	if len(list) != 1 || list[0].Occurrences != workers*each {
		t.Errorf("got %+v, want one record with %d occurrences", list, workers*each)
	}
}

func TestStorageError_WrapsOnce(t *testing.T) {
	t.Parallel()

	base := errors.New("disk full")
	err := correction.StorageError("save", base)
	again := correction.StorageError("outer", err)
	if again != err {
		t.Errorf("StorageError re-wrapped an existing storage error: %v", again)
	}
	if !errors.Is(err, base) || !errors.Is(err, correction.ErrStorage) {
		t.Errorf("err = %v, want both ErrStorage and cause", err)
	}
	if correction.StorageError("noop", nil) != nil {
		t.Error("StorageError(nil) != nil")
	}
}
