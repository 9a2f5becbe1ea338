package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/pkg/config"
	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	"github.com/streampass/streampass-backend/pkg/logger"
	"github.com/streampass/streampass-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
	publishTimeout      = 15 * time.Second
	backoffCeiling      = 10 * time.Second
	backoffJitter       = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// dispatchOutcome classifies what happened to one outbox row.
type dispatchOutcome int

const (
	outcomePublished dispatchOutcome = iota
	outcomeRetryScheduled
	outcomeDeadLettered
)

// ServiceParams collects the dependencies the publisher loop needs.
type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
}

// Service drains the purchase and playback events that API transactions
// committed to the outbox table, forwarding each to the Pub/Sub topic
// its event type maps to. A row either publishes, is rescheduled with
// its attempt count bumped, or moves to the DLQ once it is hopeless
// (unresolvable type, non-retryable publish error, or attempts
// exhausted), so one poisoned event never blocks purchase settlement
// or playback analytics behind it.
type Service struct {
	cfg              *config.Config
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	dlq              dlqRepository
	publisherFactory publisherFactory
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.DLQRepository == nil {
		return nil, errors.New("dlq repository is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			pub := params.PubSub.Publisher(topic)
			if pub == nil {
				return nil
			}
			return &gcpPublisher{Publisher: pub}
		}
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := time.Duration(params.Config.Outbox.PollIntervalMS) * time.Millisecond
	if poll <= 0 {
		poll = defaultPollInterval
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		cfg:              params.Config,
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		registry:         params.Registry,
		dlq:              params.DLQRepository,
		publisherFactory: factory,
		batchSize:        batch,
		maxAttempts:      maxAttempts,
		pollInterval:     poll,
	}, nil
}

// Run polls until the context is canceled. A failing batch widens the
// poll interval up to the ceiling; the first clean batch snaps it back.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.pubsub.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	delay := s.pollInterval
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		drained, err := s.drainBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox batch error", err)
			delay = widen(delay, s.pollInterval)
			if err := s.sleep(ctx, jittered(delay)); err != nil {
				return err
			}
			continue
		}
		delay = s.pollInterval

		if drained {
			continue
		}
		if err := s.sleep(ctx, jittered(s.pollInterval)); err != nil {
			return err
		}
	}
}

// drainBatch fetches one batch under a transaction and dispatches each
// row. It reports whether any rows were seen; a batch-level error rolls
// the whole transaction back so no row is half-marked.
func (s *Service) drainBatch(ctx context.Context) (bool, error) {
	sawRows := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		sawRows = true

		var published, retried, dead int
		for _, event := range events {
			outcome, err := s.dispatch(ctx, tx, event)
			if err != nil {
				return err
			}
			switch outcome {
			case outcomePublished:
				published++
			case outcomeRetryScheduled:
				retried++
			case outcomeDeadLettered:
				dead++
			}
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"published": published,
			"retried":   retried,
			"dead":      dead,
		}), "outbox batch drained")
		return nil
	})
	return sawRows, err
}

// dispatch pushes one event toward its topic and records the result on
// the row. Only marker failures propagate; publish failures resolve to
// a retry or the DLQ.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (dispatchOutcome, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, "")
	}
	topic := resolved.Descriptor.Topic

	err = s.publish(ctx, event, resolved)
	if err == nil {
		if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		s.logg.Info(s.logg.WithFields(ctx, s.rowFields(event, topic)), "outbox event published")
		return outcomePublished, nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, topic)
	}

	if event.AttemptCount+1 >= s.maxAttempts {
		terminalErr := fmt.Errorf("max publish attempts reached: %w", err)
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, terminalErr, topic)
	}

	fields := s.rowFields(event, topic)
	fields["attempt_count"] = event.AttemptCount + 1
	fields["error"] = err.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
	if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return outcomeRetryScheduled, fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	return outcomeRetryScheduled, nil
}

// deadLetter copies the row into the DLQ table and marks the original
// terminal, both under the batch transaction.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, topic string) error {
	fields := s.rowFields(event, topic)
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")

	var message *string
	if msg := cause.Error(); msg != "" {
		message = &msg
	}
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func (s *Service) rowFields(event models.OutboxEvent, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func widen(current, base time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > backoffCeiling {
		return backoffCeiling
	}
	return next
}

func jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(backoffJitter)))
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
