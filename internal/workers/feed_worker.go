package workers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
	"github.com/sirupsen/logrus"
)

// Subscriber is satisfied by *queue.KafkaConsumer.
type Subscriber interface {
	Subscribe(ctx context.Context, handler func(context.Context, queue.Message) error) error
}

// CounterStore is satisfied by *repository.UserRepository.
type CounterStore interface {
	RefreshCounters(ctx context.Context, id uuid.UUID) error
}

// FeedWorker consumes user and post events and keeps the denormalised
// follower, following and post counts on users in step with the source
// tables. Counts are recomputed rather than incremented, so a redelivered
// event leaves them unchanged.
type FeedWorker struct {
	consumer Subscriber
	counters CounterStore
	logger   *logger.Logger
}

func NewFeedWorker(consumer Subscriber, counters CounterStore, logger *logger.Logger) *FeedWorker {
	return &FeedWorker{
		consumer: consumer,
		counters: counters,
		logger:   logger,
	}
}

// Start blocks until ctx is cancelled or the consumer fails.
func (w *FeedWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting feed worker...")
	return w.consumer.Subscribe(ctx, w.Handle)
}

func (w *FeedWorker) Handle(ctx context.Context, msg queue.Message) error {
	eventType, data, err := queue.DecodeEvent(msg.Value)
	if err != nil {
		return err
	}

	w.logger.WithFields(logrus.Fields{
		"event_type": eventType,
		"topic":      msg.Topic,
	}).Debug("Processing event")

	switch eventType {
	case queue.EventPostCreated:
		var post queue.PostEventData
		if err := queue.DecodeData(data, &post); err != nil {
			return err
		}
		return w.refresh(ctx, post.UserID)

	case queue.EventFollowCreated, queue.EventFollowDeleted:
		var follow queue.FollowEventData
		if err := queue.DecodeData(data, &follow); err != nil {
			return err
		}
		if err := w.refresh(ctx, follow.FollowerID); err != nil {
			return err
		}
		return w.refresh(ctx, follow.FollowedID)

	case queue.EventUserRegistered, queue.EventUserUpdated:
		var user queue.UserEventData
		if err := queue.DecodeData(data, &user); err != nil {
			return err
		}
		w.logger.WithFields(logrus.Fields{
			"event_type": eventType,
			"user_id":    user.UserID,
			"username":   user.Username,
		}).Info("User event")
		return nil

	case queue.EventPasswordResetRequested:
		var reset queue.PasswordResetEventData
		if err := queue.DecodeData(data, &reset); err != nil {
			return err
		}
		w.logger.WithFields(logrus.Fields{
			"user_id":    reset.UserID,
			"expires_at": reset.ExpiresAt,
		}).Info("Password reset requested")
		return nil

	default:
		w.logger.WithField("event_type", eventType).Warn("Unknown event type")
		return nil
	}
}

func (w *FeedWorker) refresh(ctx context.Context, userID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q in event: %w", userID, err)
	}
	if err := w.counters.RefreshCounters(ctx, id); err != nil {
		return fmt.Errorf("failed to refresh counters for %s: %w", id, err)
	}
	return nil
}
