package memstore

import (
	"context"
	"time"

	"github.com/dmitrymomot/storefront/svc/billing"
)

func (s *Store) GetSubscriptionByExternalID(_ context.Context, externalID string) (*billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.subs[externalID]
	if !ok {
		return nil, billing.ErrSubscriptionNotFound
	}
	sub := cloneSubscription(e.v)
	return &sub, nil
}

func (s *Store) LatestSubscriptionForUser(_ context.Context, userID string) (*billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  billing.Subscription
		found bool
		rev   uint64
	)
	for _, e := range s.subs {
		if e.v.UserID == userID && (!found || e.rev > rev) {
			best, rev, found = e.v, e.rev, true
		}
	}
	if !found {
		return nil, billing.ErrSubscriptionNotFound
	}
	sub := cloneSubscription(best)
	return &sub, nil
}

func (s *Store) UpsertSubscription(ctx context.Context, sub *billing.Subscription) error {
	return s.write(ctx, func() error {
		now := s.now().UTC()
		next := cloneSubscription(*sub)

		if e, ok := s.subs[sub.ExternalID]; ok {
			next.ID, next.UserID, next.OrderID, next.CreatedAt = e.v.ID, e.v.UserID, e.v.OrderID, e.v.CreatedAt
		} else {
			next.ID = newID()
			next.CreatedAt = now
		}
		next.UpdatedAt = now

		s.subs[sub.ExternalID] = entry[billing.Subscription]{v: next, rev: s.nextRev()}
		*sub = cloneSubscription(next)
		return nil
	})
}

func (s *Store) MarkSubscriptionCancelled(ctx context.Context, externalID string, at time.Time) error {
	return s.write(ctx, func() error {
		e, ok := s.subs[externalID]
		if !ok {
			return billing.ErrSubscriptionNotFound
		}
		e.v.Status = billing.StatusCancelled
		e.v.CancelledAt = &at
		e.v.UpdatedAt = s.now().UTC()
		s.subs[externalID] = entry[billing.Subscription]{v: e.v, rev: s.nextRev()}
		return nil
	})
}

func cloneSubscription(sub billing.Subscription) billing.Subscription {
	sub.RenewsAt = cloneTime(sub.RenewsAt)
	sub.EndsAt = cloneTime(sub.EndsAt)
	sub.CancelledAt = cloneTime(sub.CancelledAt)
	return sub
}
