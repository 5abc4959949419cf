package worker

import (
	"Go_PanStore/config"
	"Go_PanStore/internal/apperr"
	"Go_PanStore/internal/dto"
	"Go_PanStore/internal/mq"
	"Go_PanStore/internal/service"
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// deadLetterSink receives requests that could not be processed.
type deadLetterSink interface {
	PublishDLQ(ctx context.Context, body []byte) error
}

var (
	cleanupExpired = service.CleanupExpiredItems
	emptyBin       = service.EmptyRecycleBin
)

// RunSweepWorker consumes sweep requests from RabbitMQ until ctx is done.
func RunSweepWorker(ctx context.Context) error {
	client, err := mq.Dial()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeclareTopology(); err != nil {
		return err
	}

	prefetch := config.AppConfig.RabbitMQPrefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := client.Channel.Qos(prefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := client.Channel.Consume(
		mq.QueueSweep,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	concurrency := config.AppConfig.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	burst := config.AppConfig.WorkerBurst
	if burst <= 0 {
		burst = 1
	}
	var limiter *rate.Limiter
	if config.AppConfig.WorkerRate <= 0 {
		limiter = rate.NewLimiter(rate.Inf, burst)
	} else {
		limiter = rate.NewLimiter(rate.Limit(config.AppConfig.WorkerRate), burst)
	}

	log.Info().Int("concurrency", concurrency).Int("prefetch", prefetch).Msg("sweep worker consuming")
	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("sweep worker: delivery channel closed")
			}
			sem <- struct{}{}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				handleSweepMessage(ctx, client, limiter, d)
			}(delivery)
		}
	}
}

// processSweep runs the job a request names.
func processSweep(ctx context.Context, req dto.SweepRequest) (*dto.SweepResult, error) {
	switch req.Kind {
	case dto.SweepKindExpired:
		return cleanupExpired(ctx)
	case dto.SweepKindEmptyBin:
		if req.OwnerID == 0 {
			return nil, apperr.New(apperr.CodeInvalidArgument, "empty_bin needs an owner")
		}
		purged, err := emptyBin(ctx, req.OwnerID)
		return &dto.SweepResult{Scanned: purged, Purged: purged}, err
	default:
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "unknown sweep kind %q", req.Kind)
	}
}

// handleSweepMessage processes one delivery. Failed jobs go to the dead-letter
// queue once and are never retried here; only cancellation requeues.
func handleSweepMessage(ctx context.Context, sink deadLetterSink, limiter *rate.Limiter, delivery amqp.Delivery) {
	req, err := mq.DecodeSweep(delivery.Body)
	if err != nil {
		log.Warn().Err(err).Msg("sweep worker: invalid message")
		settle(ctx, sink, delivery, req, err)
		return
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			_ = delivery.Nack(false, true)
			return
		}
	}

	started := time.Now()
	result, err := processSweep(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			_ = delivery.Nack(false, true)
			return
		}
		log.Error().Err(err).Str("kind", req.Kind).Uint64("owner_id", req.OwnerID).Msg("sweep job failed")
		settle(ctx, sink, delivery, req, err)
		return
	}

	event := log.Info().Str("kind", req.Kind).Dur("took", time.Since(started))
	if result != nil {
		event = event.Int("purged", result.Purged).Int("failed", result.Failed).Bool("skipped", result.Skipped)
	}
	event.Msg("sweep job done")
	_ = delivery.Ack(false)
}

// settle dead-letters a failed request and acks it. If the dead-letter publish
// fails the delivery is requeued instead of lost.
func settle(ctx context.Context, sink deadLetterSink, delivery amqp.Delivery, req dto.SweepRequest, cause error) {
	body, err := json.Marshal(mq.DeadLetter{
		Request:  req,
		Error:    cause.Error(),
		FailedAt: time.Now().UTC(),
	})
	if err == nil {
		err = sink.PublishDLQ(ctx, body)
	}
	if err != nil {
		log.Error().Err(err).Msg("sweep worker: dead-letter publish failed")
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}
