package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/internal/dto"
	"github.com/zonelab/geozone/internal/service"
	"github.com/zonelab/geozone/pkg/logger"
	"github.com/zonelab/geozone/pkg/retry"
)

const (
	// TopicUserDeactivated is the identity-system topic for deactivations
	TopicUserDeactivated = "identity.user.deactivated"
	// TopicUserUpserted is the identity-system topic for profile changes
	TopicUserUpserted = "identity.user.upserted"
)

// userUpsertedEvent mirrors the identity-system profile payload
type userUpsertedEvent struct {
	UserID      string   `json:"user_id"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	Active      bool     `json:"active"`
}

// UserEventsConsumerConfig holds configuration for UserEventsConsumer
type UserEventsConsumerConfig struct {
	Brokers          []string
	GroupID          string
	ClientID         string
	SessionTimeout   time.Duration
	RebalanceTimeout time.Duration
}

// UserEventsConsumer consumes identity-system user events and applies them
// to the zone store. Records are processed in order per partition; offsets
// commit only after processing, so a crash replays rather than drops events.
type UserEventsConsumer struct {
	client      *kgo.Client
	zoneService service.ZoneService
	userService service.UserService
	retryCfg    *retry.Config
	stopCh      chan struct{}
}

// NewUserEventsConsumer creates a new UserEventsConsumer
func NewUserEventsConsumer(ctx context.Context, cfg *UserEventsConsumerConfig, zoneService service.ZoneService, userService service.UserService) (*UserEventsConsumer, error) {
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.RebalanceTimeout == 0 {
		cfg.RebalanceTimeout = 60 * time.Second
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(TopicUserDeactivated, TopicUserUpserted),
		kgo.ClientID(cfg.ClientID),
		kgo.DisableAutoCommit(),
		kgo.SessionTimeout(cfg.SessionTimeout),
		kgo.RebalanceTimeout(cfg.RebalanceTimeout),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Kafka: %w", err)
	}

	return &UserEventsConsumer{
		client:      client,
		zoneService: zoneService,
		userService: userService,
		retryCfg: &retry.Config{
			MaxRetries:      3,
			InitialInterval: time.Second,
			MaxInterval:     10 * time.Second,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		},
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins consuming user events. Blocks until the context is cancelled
// or Stop is called.
func (c *UserEventsConsumer) Start(ctx context.Context) error {
	log := logger.Get()
	log.Info("user events consumer started",
		zap.Strings("topics", []string{TopicUserDeactivated, TopicUserUpserted}))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		default:
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, err := range errs {
				log.Error("fetch error",
					zap.String("topic", err.Topic),
					zap.Int32("partition", err.Partition),
					zap.Error(err.Err))
			}
			continue
		}

		failed := false
		fetches.EachRecord(func(record *kgo.Record) {
			if failed {
				return
			}
			err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
				return c.processRecord(ctx, record)
			})
			switch {
			case err == nil:
			case errors.Is(err, retry.ErrMaxAttemptsExceeded) || ctx.Err() != nil:
				// Transient failure, leave the batch uncommitted for redelivery
				log.Error("failed to process user event",
					zap.String("topic", record.Topic),
					zap.Int64("offset", record.Offset),
					zap.Error(err))
				failed = true
			default:
				// Malformed payload, committing past it is the only way forward
				log.Warn("skipping unprocessable user event",
					zap.String("topic", record.Topic),
					zap.Int64("offset", record.Offset),
					zap.Error(err))
			}
		})
		if failed {
			// Leave offsets uncommitted so the batch is redelivered
			continue
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			log.Error("failed to commit offsets", zap.Error(err))
		}
	}
}

// Stop stops the consumer
func (c *UserEventsConsumer) Stop() {
	close(c.stopCh)
	c.client.Close()
}

func (c *UserEventsConsumer) processRecord(ctx context.Context, record *kgo.Record) error {
	switch record.Topic {
	case TopicUserDeactivated:
		var event dto.UserDeactivatedEvent
		if err := json.Unmarshal(record.Value, &event); err != nil {
			return retry.Permanent(fmt.Errorf("failed to unmarshal deactivation event: %w", err))
		}
		if event.UserID == "" {
			return retry.Permanent(errors.New("deactivation event has no user_id"))
		}
		// An unknown successor surfaces as ErrUserNotFound; keep it
		// retryable, the successor's upsert event may simply not have
		// landed yet and redelivery will succeed once it does.
		return c.zoneService.HandleUserDeactivated(ctx, &event)

	case TopicUserUpserted:
		var event userUpsertedEvent
		if err := json.Unmarshal(record.Value, &event); err != nil {
			return retry.Permanent(fmt.Errorf("failed to unmarshal user event: %w", err))
		}
		if event.UserID == "" {
			return retry.Permanent(errors.New("user event has no user_id"))
		}
		return c.userService.SyncUser(ctx, &domain.User{
			ID:          event.UserID,
			DisplayName: event.DisplayName,
			Roles:       event.Roles,
			Active:      event.Active,
		})

	default:
		return nil
	}
}
