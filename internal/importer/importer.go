package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/mieru/internal/config"
	"github.com/hyperjump/mieru/internal/embedding"
	"github.com/hyperjump/mieru/internal/extract"
	"github.com/hyperjump/mieru/internal/fileid"
	"github.com/hyperjump/mieru/internal/keyword"
	"github.com/hyperjump/mieru/internal/models"
	"github.com/hyperjump/mieru/internal/storage"
)

// Metadata keys stamped on every imported record.
const (
	metaKeySource      = "source"
	metaKeySourcePath  = "source_path"
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
	metaKeyBatch       = "import_batch"
	metaKeyTitle       = "title"
	metaKeyChunk       = "chunk"
	metaKeyText        = "text"
	metaKeyPages       = "pages"
	metaKeyFileType    = "file_type"
)

// snippetLen caps the text preview stored in record metadata.
const snippetLen = 200

// Importer extracts documents, chunks them, embeds each chunk, and stores
// the resulting records in a collection. Chunk metadata is also fed to the
// keyword index so records can be found by text.
type Importer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	keywordIndex keyword.KeywordIndex
	extractor    *extract.Extractor
	chunker      *Chunker
	collection   string
	invalidate   func(collection string)
	logger       *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets a logger for debug output (file imported, records deleted, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(imp *Importer) { imp.logger = l }
}

// WithInvalidator sets a callback invoked after imports and deletes so
// cached search indexes can be rebuilt.
func WithInvalidator(fn func(collection string)) Option {
	return func(imp *Importer) { imp.invalidate = fn }
}

// New creates an importer with the given dependencies.
// keywordIndex may be nil; extractor may be nil, in which case files are
// read as plain text.
func New(
	store storage.Storage,
	embedder embedding.Embedder,
	keywordIndex keyword.KeywordIndex,
	extractor *extract.Extractor,
	cfg *config.ImportConfig,
	opts ...Option,
) *Importer {
	imp := &Importer{
		storage:      store,
		embedder:     embedder,
		keywordIndex: keywordIndex,
		extractor:    extractor,
		chunker:      NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		collection:   cfg.Collection,
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Collection returns the target collection name.
func (imp *Importer) Collection() string {
	return imp.collection
}

// ImportDocument chunks and embeds text, storing one record per chunk with
// the given base metadata. Returns the assigned record ids.
func (imp *Importer) ImportDocument(ctx context.Context, title, text string, base map[string]interface{}) ([]int64, error) {
	if err := imp.ensureCollection(ctx); err != nil {
		return nil, err
	}

	chunks := imp.chunker.Chunk(text)
	if len(chunks) == 0 {
		chunks = []Chunk{{Index: 0, Text: text}}
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embeddings, err := imp.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	// One batch id per import so all chunks of a document can be traced
	// back to the run that produced them.
	batchID := uuid.NewString()
	recs := make([]*models.VectorRecord, len(chunks))
	for i, ch := range chunks {
		metadata := make(map[string]interface{}, len(base)+4)
		for k, v := range base {
			metadata[k] = v
		}
		metadata[metaKeyBatch] = batchID
		metadata[metaKeyTitle] = title
		metadata[metaKeyChunk] = ch.Index
		metadata[metaKeyText] = snippet(ch.Text)
		recs[i] = &models.VectorRecord{Vector: embeddings[i], Metadata: metadata}
	}
	ids, err := imp.storage.BatchInsertVectors(ctx, imp.collection, recs)
	if err != nil {
		return nil, fmt.Errorf("failed to store records: %w", err)
	}

	if imp.keywordIndex != nil {
		for i, rec := range recs {
			if err := imp.keywordIndex.Index(ctx, ids[i], rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to index keywords: %w", err)
			}
		}
	}
	if imp.invalidate != nil {
		imp.invalidate(imp.collection)
	}
	return ids, nil
}

// ImportFile parses the file at path and imports its chunks. Records are
// tagged with a stable source tag derived from the absolute path so that
// re-imports replace the previous records. If allowedExts is non-empty the
// file's extension must be in the list. Unchanged files (same mtime and
// size) are skipped.
func (imp *Importer) ImportFile(ctx context.Context, path string, allowedExts []string) ([]int64, error) {
	if imp.logger != nil {
		imp.logger.Debug("importer importing file", zap.String("path", path))
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	tag := fileid.SourceTag(absPath)
	if skip, err := imp.shouldSkipFile(ctx, tag, info); err != nil {
		return nil, err
	} else if skip {
		if imp.logger != nil {
			imp.logger.Debug("importer skipping unchanged file", zap.String("path", absPath))
		}
		return nil, nil
	}

	doc, err := imp.parseContent(absPath)
	if err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	if err := imp.DeleteBySource(ctx, tag); err != nil {
		return nil, err
	}

	base := map[string]interface{}{
		metaKeySource:      tag,
		metaKeySourcePath:  absPath,
		metaKeySourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
		metaKeySourceSize:  strconv.FormatInt(info.Size(), 10),
		metaKeyPages:       doc.Pages,
		metaKeyFileType:    doc.FileType,
	}
	ids, err := imp.ImportDocument(ctx, filepath.Base(absPath), doc.Text, base)
	if err != nil {
		return nil, err
	}
	if imp.logger != nil {
		imp.logger.Debug("importer file imported",
			zap.String("path", absPath), zap.Int("records", len(ids)))
	}
	return ids, nil
}

// ImportDirectory walks dir recursively and imports each regular file whose
// extension is in allowedExts (if non-empty; otherwise all files). Returns
// the number of files imported and the first error encountered, if any.
func (imp *Importer) ImportDirectory(ctx context.Context, dir string, allowedExts []string) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		// Resolve symlinks so we only import regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil {
			return nil
		}
		if !finfo.Mode().IsRegular() {
			return nil
		}
		if _, importErr := imp.ImportFile(ctx, path, allowedExts); importErr != nil {
			return importErr
		}
		n++
		return nil
	})
	return n, err
}

// DeleteBySource removes all records tagged with the given source tag from
// storage and the keyword index.
func (imp *Importer) DeleteBySource(ctx context.Context, tag string) error {
	recs, err := imp.recordsBySource(ctx, tag)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if imp.keywordIndex != nil {
			if err := imp.keywordIndex.Delete(ctx, rec.ID); err != nil {
				return fmt.Errorf("failed to delete from keyword index: %w", err)
			}
		}
		if err := imp.storage.DeleteVector(ctx, imp.collection, rec.ID); err != nil {
			return fmt.Errorf("failed to delete record %d: %w", rec.ID, err)
		}
	}
	if len(recs) > 0 {
		if imp.logger != nil {
			imp.logger.Debug("importer source records deleted",
				zap.String("source", tag), zap.Int("records", len(recs)))
		}
		if imp.invalidate != nil {
			imp.invalidate(imp.collection)
		}
	}
	return nil
}

// DeleteFile removes all records previously imported from path.
func (imp *Importer) DeleteFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	return imp.DeleteBySource(ctx, fileid.SourceTag(absPath))
}

// shouldSkipFile returns true if the file is already imported with the same mtime and size.
func (imp *Importer) shouldSkipFile(ctx context.Context, tag string, info os.FileInfo) (bool, error) {
	recs, err := imp.recordsBySource(ctx, tag)
	if err != nil || len(recs) == 0 {
		return false, nil
	}
	m := recs[0].Metadata
	wantMtime := info.ModTime().UnixNano()
	wantSize := info.Size()
	// Values are stored as strings to avoid JSON float64 precision loss (UnixNano exceeds 53 bits).
	if metadataInt64(m, metaKeySourceMtime) != wantMtime || metadataInt64(m, metaKeySourceSize) != wantSize {
		return false, nil
	}
	return true, nil
}

// recordsBySource scans the collection for records carrying the source tag.
func (imp *Importer) recordsBySource(ctx context.Context, tag string) ([]*models.VectorRecord, error) {
	if _, err := imp.storage.GetCollection(ctx, imp.collection); err != nil {
		// Nothing imported yet.
		return nil, nil
	}
	all, err := imp.storage.ListVectors(ctx, imp.collection, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	var recs []*models.VectorRecord
	for _, rec := range all {
		if rec.Metadata != nil && rec.Metadata[metaKeySource] == tag {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (imp *Importer) ensureCollection(ctx context.Context) error {
	if _, err := imp.storage.GetCollection(ctx, imp.collection); err == nil {
		return nil
	}
	return imp.storage.CreateCollection(ctx, &models.Collection{
		Name:       imp.collection,
		Dimensions: imp.embedder.Dimensions(),
	})
}

func (imp *Importer) parseContent(path string) (*extract.ParsedDocument, error) {
	if imp.extractor != nil {
		return imp.extractor.Parse(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &extract.ParsedDocument{Text: string(content), Pages: 1, FileType: "txt"}, nil
}

func snippet(text string) string {
	if len(text) <= snippetLen {
		return text
	}
	cut := snippetLen
	// Back up to a rune boundary.
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func metadataInt64(m map[string]interface{}, key string) int64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case string:
		x, _ := strconv.ParseInt(n, 10, 64)
		return x
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
