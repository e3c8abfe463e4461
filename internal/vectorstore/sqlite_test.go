package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T, dim int) *SQLiteStore {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", dim)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func unitVec(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot%dim] = 1
	return v
}

func mustRow(id, userID string, vec []float32) Row {
	now := time.Now()
	return Row{
		ID:        id,
		Memory:    "memory " + id,
		Chunk:     "chunk " + id,
		UserID:    userID,
		Vector:    vec,
		Metadata:  map[string]string{"k": "v"},
		Type:      "fact",
		Hash:      "hash-" + id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInsertAndScan(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	r := mustRow("m1", "u1", unitVec(4, 0))
	if err := s.Insert(ctx, []Row{r}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rows, err := s.Scan(ctx, "u1", ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "m1" {
		t.Fatalf("Scan returned %+v", rows)
	}
	if rows[0].Metadata["k"] != "v" {
		t.Errorf("metadata not round-tripped: %+v", rows[0].Metadata)
	}
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	r := mustRow("m1", "u1", unitVec(4, 0))
	if err := s.Insert(ctx, []Row{r}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := s.Insert(ctx, []Row{r})
	if err == nil {
		t.Fatal("expected error inserting duplicate id")
	}
	var se *Error
	if !errors.As(err, &se) || se.Kind != KindArg {
		t.Errorf("got %v, want KindArg", err)
	}
}

func TestInsertRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	r := mustRow("m1", "u1", unitVec(3, 0))
	err := s.Insert(ctx, []Row{r})
	if !errors.Is(err, ErrDim) {
		t.Errorf("got %v, want ErrDim", err)
	}
}

func TestSearchByVectorIsScopedToUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	if err := s.Insert(ctx, []Row{
		mustRow("a", "u1", unitVec(4, 0)),
		mustRow("b", "u2", unitVec(4, 0)),
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := s.SearchByVector(ctx, unitVec(4, 0), "u1", 10, 0)
	if err != nil {
		t.Fatalf("SearchByVector: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("cross-user leak: %+v", results)
	}
}

func TestSearchByVectorHonorsThreshold(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	if err := s.Insert(ctx, []Row{
		mustRow("close", "u1", unitVec(4, 0)),
		mustRow("far", "u1", []float32{0, 1, 0, 0}),
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := s.SearchByVector(ctx, unitVec(4, 0), "u1", 10, 0.99)
	if err != nil {
		t.Fatalf("SearchByVector: %v", err)
	}
	if len(results) != 1 || results[0].ID != "close" {
		t.Fatalf("threshold not applied: %+v", results)
	}
}

func TestSearchByVectorExcludesSuperseded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	if err := s.Insert(ctx, []Row{mustRow("m1", "u1", unitVec(4, 0))}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	by := "m2"
	if err := s.Update(ctx, "m1", Patch{SupersededBy: &by}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	results, err := s.SearchByVector(ctx, unitVec(4, 0), "u1", 10, 0)
	if err != nil {
		t.Fatalf("SearchByVector: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("superseded row returned: %+v", results)
	}
}

func TestUpdateIsBoundedAndPartial(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	if err := s.Insert(ctx, []Row{mustRow("m1", "u1", unitVec(4, 0))}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	newMemory := "updated text"
	if err := s.Update(ctx, "m1", Patch{Memory: &newMemory}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	rows, err := s.Scan(ctx, "u1", ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if rows[0].Memory != newMemory {
		t.Errorf("Memory = %q, want %q", rows[0].Memory, newMemory)
	}
	if rows[0].Chunk != "chunk m1" {
		t.Errorf("Chunk was touched by an unrelated patch field: %q", rows[0].Chunk)
	}
}

func TestUpdateUnknownIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	newMemory := "x"
	err := s.Update(ctx, "missing", Patch{Memory: &newMemory})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesFromScanAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	if err := s.Insert(ctx, []Row{mustRow("m1", "u1", unitVec(4, 0))}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Delete(ctx, "m1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	rows, err := s.Scan(ctx, "u1", ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("row survived delete: %+v", rows)
	}

	results, err := s.SearchByVector(ctx, unitVec(4, 0), "u1", 10, 0)
	if err != nil {
		t.Fatalf("SearchByVector: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("vec index entry survived delete: %+v", results)
	}
}

func TestDeleteUnknownIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestCountExcludesSuperseded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	if err := s.Insert(ctx, []Row{
		mustRow("m1", "u1", unitVec(4, 0)),
		mustRow("m2", "u1", unitVec(4, 1)),
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	by := "m2"
	if err := s.Update(ctx, "m1", Patch{SupersededBy: &by}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	n, err := s.Count(ctx, "u1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestScanIncludeSuperseded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	if err := s.Insert(ctx, []Row{mustRow("m1", "u1", unitVec(4, 0))}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	by := "m2"
	if err := s.Update(ctx, "m1", Patch{SupersededBy: &by}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	active, err := s.Scan(ctx, "u1", ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("superseded row in default scan: %+v", active)
	}

	all, err := s.Scan(ctx, "u1", ScanOptions{IncludeSuperseded: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("Scan(IncludeSuperseded) = %+v, want 1 row", all)
	}
}

func TestScanRespectsLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	rows := make([]Row, 0, 5)
	for i := 0; i < 5; i++ {
		rows = append(rows, mustRow(string(rune('a'+i)), "u1", unitVec(4, i)))
	}
	if err := s.Insert(ctx, rows); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Scan(ctx, "u1", ScanOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Scan with Limit=2 returned %d rows", len(got))
	}
}

func TestFindActiveByHashReturnsMatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	r := mustRow("m1", "u1", unitVec(4, 0))
	if err := s.Insert(ctx, []Row{r}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.FindActiveByHash(ctx, "u1", r.Hash)
	if err != nil {
		t.Fatalf("FindActiveByHash: %v", err)
	}
	if got == nil || got.ID != "m1" {
		t.Fatalf("FindActiveByHash = %+v, want m1", got)
	}
}

func TestFindActiveByHashReturnsNilWithoutError(t *testing.T) {
	s := newTestStore(t, 4)
	got, err := s.FindActiveByHash(context.Background(), "u1", "nope")
	if err != nil {
		t.Fatalf("FindActiveByHash: %v", err)
	}
	if got != nil {
		t.Fatalf("FindActiveByHash = %+v, want nil", got)
	}
}

func TestFindActiveByHashExcludesSuperseded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 4)

	r := mustRow("m1", "u1", unitVec(4, 0))
	if err := s.Insert(ctx, []Row{r}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	by := "m2"
	if err := s.Update(ctx, "m1", Patch{SupersededBy: &by}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.FindActiveByHash(ctx, "u1", r.Hash)
	if err != nil {
		t.Fatalf("FindActiveByHash: %v", err)
	}
	if got != nil {
		t.Fatalf("FindActiveByHash returned superseded row: %+v", got)
	}
}

func TestRefreshIsNoop(t *testing.T) {
	s := newTestStore(t, 4)
	if err := s.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh returned error: %v", err)
	}
}
