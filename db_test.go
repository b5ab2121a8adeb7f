package tinyvec

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "vectors.db")
}

func mustOpen(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := Open(context.Background(), tempDBPath(t), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	db := mustOpen(t, WithDimensions(4))
	ctx := context.Background()

	records := []Record{
		{Vector: []float32{1, 0, 0, 0}, Payload: []byte(`{"id":1}`)},
		{Vector: []float32{0.707, 0.707, 0, 0}, Payload: []byte(`{"id":2}`)},
		{Vector: []float32{0, 1, 0, 0}, Payload: []byte(`{"id":3}`)},
	}
	n, err := db.Insert(ctx, records)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if n != 3 {
		t.Fatalf("want 3 inserted, got %d", n)
	}

	results, err := db.Search(ctx, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[0].Similarity < 0.999 || results[0].Similarity > 1.001 {
		t.Fatalf("want first similarity ~1, got %v", results[0].Similarity)
	}
	if string(results[0].Payload) != `{"id":1}` {
		t.Fatalf("want payload {\"id\":1}, got %q", results[0].Payload)
	}
	if results[1].Similarity < 0.706 || results[1].Similarity > 0.708 {
		t.Fatalf("want second similarity ~0.707, got %v", results[1].Similarity)
	}
	if string(results[1].Payload) != `{"id":2}` {
		t.Fatalf("want payload {\"id\":2}, got %q", results[1].Payload)
	}
}

func TestSearchOrthogonalQueryYieldsNearZeroSimilarities(t *testing.T) {
	db := mustOpen(t, WithDimensions(4))
	ctx := context.Background()

	records := []Record{
		{Vector: []float32{1, 0, 0, 0}, Payload: []byte(`{"id":1}`)},
		{Vector: []float32{0.707, 0.707, 0, 0}, Payload: []byte(`{"id":2}`)},
		{Vector: []float32{0, 1, 0, 0}, Payload: []byte(`{"id":3}`)},
	}
	if _, err := db.Insert(ctx, records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := db.Search(ctx, []float32{0, 0, 1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("want 3 results, got %d", len(results))
	}
	for _, r := range results {
		if math.Abs(float64(r.Similarity)) > 1e-4 {
			t.Fatalf("want near-zero similarity, got %v", r.Similarity)
		}
		if len(r.Payload) == 0 {
			t.Fatalf("want non-empty payload for id %d", r.ID)
		}
	}
}

func TestStatsOnEmptyFileWithExplicitDimension(t *testing.T) {
	db := mustOpen(t, WithDimensions(8))

	stats, err := db.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.N != 0 || stats.D != 8 {
		t.Fatalf("want {N:0 D:8}, got %+v", stats)
	}
	if stats.VectorFileBytes <= 0 || stats.MetadataFileBytes <= 0 {
		t.Fatalf("want positive file sizes even for an empty store, got %+v", stats)
	}
}

func TestDeleteByIDsRemovesVectorsAndUpdatesStats(t *testing.T) {
	db := mustOpen(t, WithDimensions(64))
	ctx := context.Background()

	rng := rand.New(rand.NewSource(42))
	records := make([]Record, 1000)
	for i := range records {
		v := make([]float32, 64)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		records[i] = Record{Vector: v, Payload: []byte(fmt.Sprintf(`{"i":%d}`, i))}
	}
	if _, err := db.Insert(ctx, records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	idAt42 := int64(stats.N) // placeholder, replaced below via paginate

	page, err := db.Paginate(ctx, 0, 1000)
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	if len(page) != 1000 {
		t.Fatalf("want 1000 page items, got %d", len(page))
	}
	ids := make([]int64, len(page))
	for i, p := range page {
		ids[i] = p.ID
	}
	idAt42 = ids[42]
	query42 := page[42].Vector

	removed, err := db.DeleteByIDs(ctx, []int64{ids[7], idAt42, ids[999]})
	if err != nil {
		t.Fatalf("DeleteByIDs: %v", err)
	}
	if removed != 3 {
		t.Fatalf("want 3 removed, got %d", removed)
	}

	stats, err = db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.N != 997 || stats.D != 64 {
		t.Fatalf("want {N:997 D:64}, got %+v", stats)
	}

	results, err := db.Search(ctx, query42, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID == idAt42 {
		t.Fatalf("want a result excluding deleted id %d, got %+v", idAt42, results)
	}
}

func TestSearchWithFilterMatchesExactTagCount(t *testing.T) {
	db := mustOpen(t, WithDimensions(4))
	ctx := context.Background()

	var records []Record
	for i := 0; i < 3; i++ {
		records = append(records, Record{
			Vector:  []float32{float32(i) + 1, 0, 0, 0},
			Payload: []byte(`{"tag":"a"}`),
		})
	}
	for i := 0; i < 3; i++ {
		records = append(records, Record{
			Vector:  []float32{0, float32(i) + 1, 0, 0},
			Payload: []byte(`{"tag":"b"}`),
		})
	}
	if _, err := db.Insert(ctx, records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := db.SearchWithFilter(ctx, []float32{1, 1, 0, 0}, 10, []byte(`{"tag":{"$eq":"a"}}`))
	if err != nil {
		t.Fatalf("SearchWithFilter: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("want 3 results, got %d", len(results))
	}
	for _, r := range results {
		if string(r.Payload) != `{"tag":"a"}` {
			t.Fatalf("want tag a, got %q", r.Payload)
		}
	}
}

func TestDeleteByFilterRemovesAllMatchingAndZeroesStats(t *testing.T) {
	db := mustOpen(t, WithDimensions(4))
	ctx := context.Background()

	var records []Record
	for i := 0; i < 3; i++ {
		records = append(records, Record{Vector: []float32{float32(i) + 1, 0, 0, 0}, Payload: []byte(`{"tag":"a"}`)})
	}
	for i := 0; i < 3; i++ {
		records = append(records, Record{Vector: []float32{0, float32(i) + 1, 0, 0}, Payload: []byte(`{"tag":"b"}`)})
	}
	if _, err := db.Insert(ctx, records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	removed, err := db.DeleteByFilter(ctx, []byte(`{"tag":{"$in":["a","b"]}}`))
	if err != nil {
		t.Fatalf("DeleteByFilter: %v", err)
	}
	if removed != 6 {
		t.Fatalf("want 6 removed, got %d", removed)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.N != 0 {
		t.Fatalf("want N=0, got %d", stats.N)
	}
}

func TestSearchOnCorruptFileReturnsCorruptionError(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(context.Background(), path, WithDimensions(4))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.Insert(context.Background(), []Record{
		{Vector: []float32{1, 0, 0, 0}, Payload: []byte(`{}`)},
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	original := info.Size()

	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := f.Truncate(original - 4); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := Open(context.Background(), path, WithDimensions(4))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db2.Close()

	_, err = db2.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	if !errors.Is(err, ErrCorruption) {
		t.Fatalf("want corruption error, got %v", err)
	}

	info2, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info2.Size() != original-4 {
		t.Fatalf("want file unmodified at truncated size, got %d want %d", info2.Size(), original-4)
	}
}

func TestOperationsAfterCloseReturnErrClosed(t *testing.T) {
	db := mustOpen(t, WithDimensions(4))
	if _, err := db.Insert(context.Background(), []Record{
		{Vector: []float32{1, 0, 0, 0}, Payload: []byte(`{}`)},
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := db.Stats(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Stats after Close: want ErrClosed, got %v", err)
	}
	if _, err := db.Search(context.Background(), []float32{1, 0, 0, 0}, 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("Search after Close: want ErrClosed, got %v", err)
	}
	if _, err := db.Insert(context.Background(), []Record{
		{Vector: []float32{0, 1, 0, 0}, Payload: []byte(`{}`)},
	}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Insert after Close: want ErrClosed, got %v", err)
	}
	// Close is idempotent: a second call is a no-op, not an error.
	if err := db.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
