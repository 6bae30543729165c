package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/subscriber"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/repository"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

// SubscriberService maintains the shared registry of live client
// subscriptions. Subscribe is idempotent over (server, connection, view,
// context) so reconnect races never create duplicate records.
type SubscriberService struct {
	subscribers repository.SubscriberRepository
	servers     repository.ServerRepository
	bus         events.Publisher
	log         *logger.Logger
	now         func() time.Time
}

func NewSubscriberService(
	subscribers repository.SubscriberRepository,
	servers repository.ServerRepository,
	bus events.Publisher,
	log *logger.Logger,
) *SubscriberService {
	return &SubscriberService{
		subscribers: subscribers,
		servers:     servers,
		bus:         bus,
		log:         log,
		now:         time.Now,
	}
}

// Subscribe registers a client connection's subscription to a named view.
// A duplicate subscribe with identical parameters returns the existing record.
func (s *SubscriberService) Subscribe(ctx context.Context, serverID uuid.UUID, connection string, userID uuid.UUID, name string, viewContext map[string]string) (subscriber.Subscriber, error) {
	if connection == "" || name == "" {
		return subscriber.Subscriber{}, fmt.Errorf("subscribe: %w", jr_errors.ErrInvalidInput)
	}
	if _, err := s.servers.GetByID(ctx, serverID); err != nil {
		return subscriber.Subscriber{}, fmt.Errorf("subscribe: owning server: %w", err)
	}

	hash := subscriber.ScopeHashFor(serverID, connection, name, viewContext)
	if existing, err := s.subscribers.GetByScopeHash(ctx, hash); err == nil {
		return existing, nil
	} else if !errors.Is(err, jr_errors.ErrNotFound) {
		return subscriber.Subscriber{}, fmt.Errorf("subscribe: %w", err)
	}

	now := s.now()
	sub := subscriber.Subscriber{
		ID:         uuid.New(),
		ServerID:   serverID,
		Connection: connection,
		UserID:     userID,
		Name:       name,
		Context:    subscriber.EncodeContext(viewContext),
		ScopeHash:  hash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.subscribers.Create(ctx, &sub); err != nil {
		if errors.Is(err, jr_errors.ErrAlreadyExists) {
			// lost a reconnect race; the winner's record is the answer
			return s.subscribers.GetByScopeHash(ctx, hash)
		}
		return subscriber.Subscriber{}, fmt.Errorf("subscribe: %w", err)
	}
	s.publish(ctx, events.NewEnvelope(events.CollectionSubscribers, sub.ID.String(), events.OpAdded, sub))
	return sub, nil
}

// Unsubscribe removes a subscription record.
func (s *SubscriberService) Unsubscribe(ctx context.Context, subscriberID uuid.UUID) error {
	if err := s.subscribers.Delete(ctx, subscriberID); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", subscriberID, err)
	}
	s.publish(ctx, events.NewEnvelope(events.CollectionSubscribers, subscriberID.String(), events.OpRemoved, nil))
	return nil
}

// DropConnection removes every subscription a connection held. Called when a
// websocket closes, before the disconnect is acknowledged.
func (s *SubscriberService) DropConnection(ctx context.Context, serverID uuid.UUID, connection string) error {
	n, err := s.subscribers.DeleteByConnection(ctx, serverID, connection)
	if err != nil {
		return fmt.Errorf("drop connection %s: %w", connection, err)
	}
	if n > 0 {
		s.publish(ctx, events.NewEnvelope(events.CollectionSubscribers, connection, events.OpRemoved, nil))
	}
	return nil
}

// ListByView returns the current subscribers of a named view.
func (s *SubscriberService) ListByView(ctx context.Context, name string) ([]subscriber.Subscriber, error) {
	return s.subscribers.ListByName(ctx, name)
}

func (s *SubscriberService) publish(ctx context.Context, env events.Envelope) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, env); err != nil && s.log != nil {
		s.log.Warnf("publish %s/%s: %v", env.Collection, env.Op, err)
	}
}
