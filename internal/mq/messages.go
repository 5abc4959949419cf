package mq

import (
	"Go_PanStore/internal/dto"
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// OrphanMessage reports a blob that lost its metadata but could not be deleted.
// Consumers reconcile it later; the engine never retries the delete itself.
type OrphanMessage struct {
	Bucket     string    `json:"bucket"`
	BlobKey    string    `json:"blob_key"`
	OwnerID    uint64    `json:"owner_id"`
	FileID     uint64    `json:"file_id"`
	Stage      string    `json:"stage"` // "eviction" | "purge" | "restore_rollback"
	Error      string    `json:"error"`
	ReportedAt time.Time `json:"reported_at"`
}

// DeadLetter wraps a sweep request the worker could not process.
type DeadLetter struct {
	Request  dto.SweepRequest `json:"request"`
	Error    string           `json:"error"`
	FailedAt time.Time        `json:"failed_at"`
}

// EncodeSweep serializes a sweep request.
func EncodeSweep(req dto.SweepRequest) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeSweep parses a sweep request body.
func DecodeSweep(body []byte) (dto.SweepRequest, error) {
	var req dto.SweepRequest
	err := json.Unmarshal(body, &req)
	return req, err
}

// ReportOrphan publishes an orphan blob report. Publish failures are logged only.
func ReportOrphan(ctx context.Context, msg OrphanMessage) {
	if msg.ReportedAt.IsZero() {
		msg.ReportedAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("blob_key", msg.BlobKey).Msg("encode orphan report failed")
		return
	}
	client, err := GetPublisher()
	if err != nil {
		log.Warn().Err(err).Str("blob_key", msg.BlobKey).Msg("orphan report dropped, broker unavailable")
		return
	}
	if err := client.PublishOrphan(ctx, body); err != nil {
		log.Warn().Err(err).Str("blob_key", msg.BlobKey).Msg("orphan report publish failed")
	}
}

// PublishSweep enqueues a sweep request for the worker.
func PublishSweep(ctx context.Context, req dto.SweepRequest) error {
	body, err := EncodeSweep(req)
	if err != nil {
		return err
	}
	client, err := GetPublisher()
	if err != nil {
		return err
	}
	return client.PublishSweep(ctx, body)
}
