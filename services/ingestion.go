package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledge-assistant/internal/logger"
	"knowledge-assistant/internal/telemetry"
	"knowledge-assistant/models"
)

// ChunkIndexer is the write side of the vector index. Satisfied by
// search.MongoIndex.
type ChunkIndexer interface {
	Upsert(ctx context.Context, chunks []models.Chunk) error
	DeleteBySource(ctx context.Context, source string) (int64, error)
}

// IngestionService turns raw files into indexed chunks: parse into
// units (table rows or pages), chunk, embed, and upsert. Re-ingesting a
// source first deletes its previous chunks, so a document is retired
// only by re-ingestion.
type IngestionService struct {
	chunker    *ChunkingService
	embedder   Embedder
	embedCache *EmbeddingCache
	index      ChunkIndexer
	docsCol    *mongo.Collection
	chunkCache *ChunkCacheService
	metrics    *telemetry.Metrics
}

func NewIngestionService(
	chunker *ChunkingService,
	embedder Embedder,
	embedCache *EmbeddingCache,
	index ChunkIndexer,
	docsCol *mongo.Collection,
	chunkCache *ChunkCacheService,
	metrics *telemetry.Metrics,
) *IngestionService {
	return &IngestionService{
		chunker:    chunker,
		embedder:   embedder,
		embedCache: embedCache,
		index:      index,
		docsCol:    docsCol,
		chunkCache: chunkCache,
		metrics:    metrics,
	}
}

// IngestDir ingests every supported file directly under dir. Returns
// the total chunk count; a failing file is logged and skipped so one
// bad document does not abort the whole scan.
func (is *IngestionService) IngestDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read data directory %s: %w", dir, err)
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".csv", ".xlsx", ".pdf":
		default:
			continue
		}
		n, err := is.IngestFile(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.Error("Skipping file after ingest failure",
				"file", entry.Name(),
				"error", err.Error())
			continue
		}
		total += n
	}

	if total > 0 {
		// Indexed content changed; cached query results are stale.
		if err := is.chunkCache.Invalidate(ctx); err != nil {
			logger.Warn("Failed to invalidate query cache after ingest", "error", err.Error())
		}
	}
	return total, nil
}

// IngestFile ingests one file and returns the number of chunks indexed.
func (is *IngestionService) IngestFile(ctx context.Context, path string) (int, error) {
	source := filepath.Base(path)

	var units []models.Document
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		units, err = readCSV(path, source)
	case ".xlsx":
		units, err = readXLSX(path, source)
	case ".pdf":
		units, err = readPDF(path, source)
	default:
		return 0, fmt.Errorf("unsupported file type: %s", path)
	}
	if err != nil {
		return 0, err
	}
	if len(units) == 0 {
		logger.Warn("No usable content in file", "source", source)
		return 0, nil
	}

	var chunks []models.Chunk
	for _, unit := range units {
		meta := map[string]string{
			"source": unit.Source,
			"kind":   string(unit.Kind),
			"unit":   fmt.Sprintf("%d", unit.Unit),
		}
		chunks = append(chunks, is.chunker.Chunk(unit.Text, unit.UnitID(), source, meta)...)
	}

	for i := range chunks {
		vec, err := is.embedChunk(ctx, chunks[i].Text)
		if err != nil {
			return 0, fmt.Errorf("embedding failed for %s: %w", chunks[i].ChunkID, err)
		}
		chunks[i].Vector = vec
	}

	if _, err := is.index.DeleteBySource(ctx, source); err != nil {
		return 0, err
	}
	if err := is.index.Upsert(ctx, chunks); err != nil {
		return 0, err
	}
	if err := is.storeDocuments(ctx, units); err != nil {
		logger.Warn("Failed to persist raw documents", "source", source, "error", err.Error())
	}

	if is.metrics != nil {
		is.metrics.ChunksIndexed.Add(ctx, int64(len(chunks)))
	}
	logger.Info("Ingested file", "source", source, "units", len(units), "chunks", len(chunks))
	return len(chunks), nil
}

func (is *IngestionService) embedChunk(ctx context.Context, text string) ([]float32, error) {
	if is.embedCache != nil {
		if vec, ok := is.embedCache.Get(text); ok {
			return vec, nil
		}
	}
	vec, err := is.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if is.embedCache != nil {
		is.embedCache.Put(text, vec)
	}
	return vec, nil
}

// storeDocuments upserts the raw units into the documents collection,
// keyed by source and unit ordinal.
func (is *IngestionService) storeDocuments(ctx context.Context, units []models.Document) error {
	if is.docsCol == nil {
		return nil
	}
	batch := make([]mongo.WriteModel, 0, len(units))
	now := time.Now()
	for _, unit := range units {
		unit.IngestedAt = now
		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"source": unit.Source, "unit": unit.Unit}).
			SetUpdate(bson.M{"$set": unit}).
			SetUpsert(true))
	}
	_, err := is.docsCol.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false))
	return err
}

// readCSV renders each row as "header: value" lines, one unit per row.
func readCSV(path, source string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV %s: %w", source, err)
	}
	if len(rows) < 2 {
		return nil, nil
	}
	return rowsToUnits(rows[0], rows[1:], source), nil
}

// readXLSX renders the first sheet the same way as a CSV.
func readXLSX(path, source string) ([]models.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, nil
	}
	return rowsToUnits(rows[0], rows[1:], source), nil
}

func rowsToUnits(header []string, rows [][]string, source string) []models.Document {
	var units []models.Document
	for i, row := range rows {
		var lines []string
		empty := true
		for j, cell := range row {
			if j >= len(header) {
				break
			}
			if strings.TrimSpace(cell) != "" {
				empty = false
			}
			lines = append(lines, fmt.Sprintf("%s: %s", header[j], cell))
		}
		if empty {
			continue
		}
		text := strings.TrimSpace(strings.Join(lines, "\n"))
		units = append(units, models.Document{
			Source: source,
			Unit:   i,
			Kind:   models.KindTableRow,
			Text:   text,
		})
	}
	return units
}

// readPDF extracts one unit per page, skipping pages with no text.
func readPDF(path, source string) ([]models.Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", source, err)
	}
	defer f.Close()

	var units []models.Document
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract PDF page", "source", source, "page", i, "error", err.Error())
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		units = append(units, models.Document{
			Source: source,
			Unit:   i - 1,
			Kind:   models.KindPage,
			Text:   text,
		})
	}
	return units, nil
}
