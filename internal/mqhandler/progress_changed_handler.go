package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"journeytracker/internal/events"
	"journeytracker/internal/model"
	"journeytracker/internal/service"
	"journeytracker/pkg/logger"
	"journeytracker/pkg/metrics"
	"journeytracker/pkg/util"
)

// maxRetries bounds redelivery for retryable failures before the message
// is parked on the DLQ.
const maxRetries = 5

// MilestoneDetector is the detection entry point this handler drives.
type MilestoneDetector interface {
	DetectMilestones(ctx context.Context, companyID int64) ([]model.MilestoneEvent, error)
}

// RetryCounter tracks redelivery attempts per message key.
type RetryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// DeadLetterSink parks messages that must not be redelivered.
type DeadLetterSink interface {
	PublishToDLQ(routingKey string, payload []byte, originalError string) error
}

// ProgressChangedHandler reacts to progress.changed events: it re-runs
// milestone detection for the company and drops its cached
// recommendations. Detection is idempotent, so redeliveries are harmless.
// Returning an error requeues the message, so permanently bad messages go
// to the DLQ instead and retryable failures stop after maxRetries.
type ProgressChangedHandler struct {
	detector MilestoneDetector
	cache    service.RecommendationCache
	retries  RetryCounter
	dlq      DeadLetterSink
	logger   *zap.Logger
}

func NewProgressChangedHandler(
	detector MilestoneDetector,
	cache service.RecommendationCache,
	retries RetryCounter,
	dlq DeadLetterSink,
	logger *zap.Logger,
) *ProgressChangedHandler {
	return &ProgressChangedHandler{
		detector: detector,
		cache:    cache,
		retries:  retries,
		dlq:      dlq,
		logger:   logger,
	}
}

func (h *ProgressChangedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	start := time.Now()
	log := logger.WithTrace(ctx, h.logger)

	var p events.ProgressChangedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		// 数据格式错误，重投不可能成功
		log.Error("Failed to unmarshal ProgressChangedPayload (non-retryable, sending to DLQ)",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		return h.deadLetter(log, raw, err)
	}

	log.Info("Handling progress.changed event",
		zap.Int64("company_id", p.CompanyID),
		zap.String("step_id", p.StepID),
		zap.String("status", p.Status),
	)

	if p.CompanyID <= 0 {
		err := fmt.Errorf("invalid company_id: %d (must be > 0)", p.CompanyID)
		log.Error("Invalid company_id in progress.changed event (non-retryable, sending to DLQ)",
			zap.Int64("company_id", p.CompanyID),
		)
		return h.deadLetter(log, raw, err)
	}

	retryKey := util.FormatRetryKey("progress_changed", p.CompanyID)

	fired, err := h.detector.DetectMilestones(ctx, p.CompanyID)
	if err != nil {
		retryable, errType := util.IsRetryableError(err)
		log.Error("Milestone detection failed",
			zap.Int64("company_id", p.CompanyID),
			zap.String("error_type", errType),
			zap.Bool("retryable", retryable),
			zap.Error(err),
		)
		if !retryable {
			return h.deadLetter(log, raw, err)
		}

		count, cntErr := h.retries.IncrementAndGet(ctx, retryKey)
		if cntErr != nil {
			// 计数器不可用，退回普通重投
			log.Warn("Retry counter unavailable", zap.Error(cntErr))
			return err
		}
		if count > maxRetries {
			log.Error("Retry budget exhausted, sending to DLQ",
				zap.Int64("company_id", p.CompanyID),
				zap.Int64("retry_count", count),
			)
			_ = h.retries.Reset(ctx, retryKey)
			return h.deadLetter(log, raw, err)
		}
		return err
	}

	_ = h.retries.Reset(ctx, retryKey)

	if h.cache != nil {
		h.cache.Invalidate(ctx, p.CompanyID)
	}

	metrics.RecordMQConsumeLatency(events.ProgressChanged, "journey.progress.changed.q", time.Since(start))
	log.Info("progress.changed handled",
		zap.Int64("company_id", p.CompanyID),
		zap.Int("milestones_fired", len(fired)),
	)
	return nil
}

// deadLetter parks the raw message and acks it. Only a failed DLQ publish
// propagates, so the broker retries the handoff rather than the handler.
func (h *ProgressChangedHandler) deadLetter(log *zap.Logger, raw json.RawMessage, cause error) error {
	if h.dlq == nil {
		return nil
	}
	if err := h.dlq.PublishToDLQ(events.ProgressChanged, raw, cause.Error()); err != nil {
		log.Error("Failed to publish to DLQ", zap.Error(err))
		return err
	}
	return nil
}
