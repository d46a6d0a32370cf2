package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/mfigueroa/ordercore-backend/pkg/config"
	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
	"github.com/mfigueroa/ordercore-backend/pkg/metrics"
	"github.com/mfigueroa/ordercore-backend/pkg/outbox"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
	maxBackoff          = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

// Handler consumes one decoded outbox event. Returning an error leaves
// the event unpublished so a later poll retries it.
type Handler func(ctx context.Context, event models.OutboxEvent, envelope outbox.PayloadEnvelope) error

type outboxSource interface {
	FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error)
	CountUnpublished() (int64, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	Repository outboxSource
	Handlers   map[enums.OutboxEventType]Handler
	Metrics    *metrics.OutboxMetrics
}

// Service drains the outbox table: fetch a batch of unpublished events,
// dispatch each to its handler, and mark the outcome. Events with no
// registered handler are failed so they surface in last_error instead
// of being dropped.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	repo         outboxSource
	handlers     map[enums.OutboxEventType]Handler
	metrics      *metrics.OutboxMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if len(params.Handlers) == 0 {
		return nil, errors.New("at least one handler is required")
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := params.Config.Outbox.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		repo:         params.Repository,
		handlers:     params.Handlers,
		metrics:      params.Metrics,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: poll,
	}, nil
}

// Run polls until the context is canceled. Batch errors back off with
// jitter instead of tight-looping against a broken dependency.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := s.pollInterval
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox worker context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = s.pollInterval
		if processed {
			continue
		}
		if err := s.sleep(ctx, withJitter(s.pollInterval)); err != nil {
			return err
		}
	}
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	events, err := s.repo.FetchUnpublished(s.batchSize, s.maxAttempts)
	if err != nil {
		return false, fmt.Errorf("fetch unpublished: %w", err)
	}
	s.observePending()
	if len(events) == 0 {
		return false, nil
	}

	for _, event := range events {
		s.dispatch(ctx, event)
	}
	return true, nil
}

func (s *Service) dispatch(ctx context.Context, event models.OutboxEvent) {
	eventCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":     event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
		"attempt":      event.AttemptCount + 1,
	})

	handler, ok := s.handlers[event.EventType]
	if !ok {
		err := fmt.Errorf("no handler registered for event type %s", event.EventType)
		s.logg.Error(eventCtx, "outbox event undeliverable", err)
		s.markFailed(eventCtx, event, err)
		return
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		s.logg.Error(eventCtx, "outbox payload malformed", err)
		s.markFailed(eventCtx, event, err)
		return
	}

	if err := handler(eventCtx, event, envelope); err != nil {
		s.logg.Warn(s.logg.WithField(eventCtx, "error", err.Error()), "outbox delivery failed")
		s.markFailed(eventCtx, event, err)
		return
	}

	if err := s.repo.MarkPublished(event.ID); err != nil {
		s.logg.Error(eventCtx, "failed to mark event published", err)
		return
	}
	if s.metrics != nil {
		s.metrics.IncDelivered(string(event.EventType))
	}
	s.logg.Info(eventCtx, "outbox event delivered")
}

func (s *Service) markFailed(ctx context.Context, event models.OutboxEvent, cause error) {
	if s.metrics != nil {
		s.metrics.IncFailed(string(event.EventType))
	}
	if err := s.repo.MarkFailed(event.ID, cause); err != nil {
		s.logg.Error(ctx, "failed to record delivery failure", err)
	}
}

func (s *Service) observePending() {
	if s.metrics == nil {
		return
	}
	pending, err := s.repo.CountUnpublished()
	if err != nil {
		return
	}
	s.metrics.SetPending(int(pending))
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	next := current * 2
	if next < base {
		next = base
	}
	if next > ceiling {
		next = ceiling
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
