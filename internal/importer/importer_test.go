package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/mieru/internal/config"
	"github.com/hyperjump/mieru/internal/embedding"
	"github.com/hyperjump/mieru/internal/keyword"
	"github.com/hyperjump/mieru/internal/storage"
)

func newTestImporter(t *testing.T) (*Importer, storage.Storage, keyword.KeywordIndex, *[]string) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	kw, err := keyword.NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kw.Close() })

	invalidated := &[]string{}
	imp := New(
		store,
		embedding.NewMockEmbedder(8),
		kw,
		nil,
		&config.ImportConfig{Collection: "documents", ChunkSize: 5, ChunkOverlap: 1},
		WithInvalidator(func(collection string) {
			*invalidated = append(*invalidated, collection)
		}),
	)
	return imp, store, kw, invalidated
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImporter_ImportDocument(t *testing.T) {
	imp, store, _, invalidated := newTestImporter(t)
	ctx := context.Background()

	// 9 words with chunk size 5, overlap 1 -> windows at 0, 4, 8.
	text := "alpha beta gamma delta epsilon zeta eta theta iota"
	ids, err := imp.ImportDocument(ctx, "Greek Letters", text, map[string]interface{}{"lang": "el"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("got %d ids, want 3", len(ids))
	}

	// The collection is created on demand with the embedder's dimensions.
	col, err := store.GetCollection(ctx, "documents")
	if err != nil {
		t.Fatal(err)
	}
	if col.Dimensions != 8 {
		t.Errorf("collection dimensions = %d, want 8", col.Dimensions)
	}

	rec, err := store.GetVector(ctx, "documents", ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if rec.Metadata["title"] != "Greek Letters" {
		t.Errorf("title = %v", rec.Metadata["title"])
	}
	if rec.Metadata["text"] != "alpha beta gamma delta epsilon" {
		t.Errorf("text snippet = %v", rec.Metadata["text"])
	}
	if rec.Metadata["lang"] != "el" {
		t.Errorf("base metadata not carried: %v", rec.Metadata)
	}
	batch, _ := rec.Metadata["import_batch"].(string)
	if batch == "" {
		t.Error("records should carry an import batch id")
	}
	rec2, err := store.GetVector(ctx, "documents", ids[1])
	if err != nil {
		t.Fatal(err)
	}
	if rec2.Metadata["import_batch"] != batch {
		t.Error("all chunks of one import should share a batch id")
	}
	if len(rec.Vector) != 8 {
		t.Errorf("vector dimensions = %d, want 8", len(rec.Vector))
	}

	if len(*invalidated) != 1 || (*invalidated)[0] != "documents" {
		t.Errorf("invalidator calls = %v, want [documents]", *invalidated)
	}
}

func TestImporter_ImportDocumentIndexesKeywords(t *testing.T) {
	imp, _, kw, _ := newTestImporter(t)
	ctx := context.Background()

	ids, err := imp.ImportDocument(ctx, "Notes", "tachyon propulsion research", nil)
	if err != nil {
		t.Fatal(err)
	}
	hits, err := kw.Search(ctx, "tachyon", 10, &keyword.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != ids[0] {
		t.Errorf("keyword hits = %+v, want record %d", hits, ids[0])
	}
}

func TestImporter_ImportFile(t *testing.T) {
	imp, store, _, _ := newTestImporter(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTestFile(t, dir, "report.txt", "quarterly report with many interesting numbers inside")

	ids, err := imp.ImportFile(ctx, path, []string{".txt"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) == 0 {
		t.Fatal("expected records from import")
	}
	rec, err := store.GetVector(ctx, "documents", ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if rec.Metadata["source"] == "" || rec.Metadata["source"] == nil {
		t.Error("records should carry a source tag")
	}
	if rec.Metadata["source_path"] != path {
		t.Errorf("source_path = %v, want %s", rec.Metadata["source_path"], path)
	}
	if rec.Metadata["file_type"] != "txt" {
		t.Errorf("file_type = %v", rec.Metadata["file_type"])
	}
	if rec.Metadata["title"] != "report.txt" {
		t.Errorf("title = %v", rec.Metadata["title"])
	}
}

func TestImporter_ImportFileSkipsUnchanged(t *testing.T) {
	imp, store, _, _ := newTestImporter(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTestFile(t, dir, "stable.txt", "content that never changes")

	first, err := imp.ImportFile(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) == 0 {
		t.Fatal("expected records from first import")
	}

	second, err := imp.ImportFile(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second != nil {
		t.Errorf("unchanged file should be skipped, got ids %v", second)
	}
	count, err := store.CountVectors(ctx, "documents")
	if err != nil {
		t.Fatal(err)
	}
	if count != int64(len(first)) {
		t.Errorf("record count = %d, want %d", count, len(first))
	}
}

func TestImporter_ReimportReplacesRecords(t *testing.T) {
	imp, store, _, _ := newTestImporter(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTestFile(t, dir, "draft.txt", "first version of the draft")

	first, err := imp.ImportFile(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Different size forces a re-import even when mtime resolution is coarse.
	writeTestFile(t, dir, "draft.txt", "second version of the draft with additional words")
	second, err := imp.ImportFile(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) == 0 {
		t.Fatal("expected records from re-import")
	}

	// Old records are gone.
	for _, id := range first {
		if _, err := store.GetVector(ctx, "documents", id); err == nil {
			t.Errorf("record %d from the first import should be deleted", id)
		}
	}
	count, err := store.CountVectors(ctx, "documents")
	if err != nil {
		t.Fatal(err)
	}
	if count != int64(len(second)) {
		t.Errorf("record count = %d, want %d", count, len(second))
	}
}

func TestImporter_ImportFileExtensionNotAllowed(t *testing.T) {
	imp, _, _, _ := newTestImporter(t)
	dir := t.TempDir()
	path := writeTestFile(t, dir, "binary.bin", "not text")

	if _, err := imp.ImportFile(context.Background(), path, []string{".txt", ".md"}); err == nil {
		t.Error("expected error for disallowed extension")
	}
}

func TestImporter_ImportDirectory(t *testing.T) {
	imp, _, _, _ := newTestImporter(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "first document text")
	writeTestFile(t, dir, "b.md", "second document text")
	writeTestFile(t, dir, "c.bin", "ignored binary")
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, sub, "d.txt", "nested document text")

	n, err := imp.ImportDirectory(ctx, dir, []string{".txt", ".md"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("imported %d files, want 3", n)
	}
}

func TestImporter_DeleteFile(t *testing.T) {
	imp, store, kw, invalidated := newTestImporter(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTestFile(t, dir, "gone.txt", "soon to be deleted document")

	if _, err := imp.ImportFile(ctx, path, nil); err != nil {
		t.Fatal(err)
	}
	*invalidated = nil

	if err := imp.DeleteFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	count, err := store.CountVectors(ctx, "documents")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("record count after delete = %d, want 0", count)
	}
	hits, err := kw.Search(ctx, "deleted", 10, &keyword.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("keyword index should be empty, got %+v", hits)
	}
	if len(*invalidated) != 1 {
		t.Errorf("delete should invalidate the search cache, calls = %v", *invalidated)
	}
}

func TestImporter_DeleteFileNothingImported(t *testing.T) {
	imp, _, _, _ := newTestImporter(t)
	if err := imp.DeleteFile(context.Background(), "/nonexistent/path.txt"); err != nil {
		t.Errorf("deleting an unimported file should be a no-op, got %v", err)
	}
}
