package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"knowledge-assistant/internal/logger"
)

const (
	TaskDocumentIngest = "document:ingest"
)

type DocumentIngestPayload struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

// Task creators
func NewDocumentIngestTask(path, source string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentIngestPayload{
		Path:   path,
		Source: source,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDocumentIngest,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("ingest"),
	), nil
}

// Ingestor processes one document file end to end: parse, chunk, embed,
// index. Satisfied by services.IngestionService.
type Ingestor interface {
	IngestFile(ctx context.Context, path string) (int, error)
}

// Task handlers
type TaskProcessor struct {
	ingestor Ingestor
}

func NewTaskProcessor(ingestor Ingestor) *TaskProcessor {
	return &TaskProcessor{ingestor: ingestor}
}

func (p *TaskProcessor) ProcessDocumentIngest(ctx context.Context, t *asynq.Task) error {
	var payload DocumentIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing document ingest task",
		"source", payload.Source,
		"path", payload.Path)

	chunks, err := p.ingestor.IngestFile(ctx, payload.Path)
	if err != nil {
		logger.Error("Document ingest failed",
			"source", payload.Source,
			"error", err.Error())
		return err
	}

	logger.Info("Document ingest complete",
		"source", payload.Source,
		"chunks", chunks)
	return nil
}
