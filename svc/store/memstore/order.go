package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrymomot/storefront/svc/order"
)

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	return s.write(ctx, func() error {
		o.ID = newID()
		if o.CreatedAt.IsZero() {
			o.CreatedAt = s.now().UTC()
			o.UpdatedAt = o.CreatedAt
		}
		s.orders[o.ID] = entry[order.Order]{v: cloneOrder(*o), rev: s.nextRev()}
		return nil
	})
}

func (s *Store) GetOrder(_ context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	o := cloneOrder(e.v)
	return &o, nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []entry[order.Order]
	for _, e := range s.orders {
		if e.v.UserID == userID {
			found = append(found, e)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		a, b := found[i].v, found[j].v
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	out := make([]*order.Order, 0, len(found))
	for _, e := range found {
		o := cloneOrder(e.v)
		out = append(out, &o)
	}
	return out, nil
}

func (s *Store) FindOrderByPaymentReference(_ context.Context, provider order.Provider, reference string) (*order.Order, error) {
	if reference == "" {
		return nil, order.ErrOrderNotFound
	}
	return s.latestOrder(func(o *order.Order) bool {
		return o.PaymentProvider == provider && o.PaymentReference == reference
	})
}

func (s *Store) LatestPaidSubscriptionOrder(_ context.Context, userID string) (*order.Order, error) {
	return s.latestOrder(func(o *order.Order) bool {
		return o.UserID == userID && o.Type == order.TypeSubscription && o.Status == order.StatusPaid
	})
}

func (s *Store) AssignOwner(ctx context.Context, id, userID string) error {
	return s.updateOrder(ctx, id, func(o *order.Order) error {
		if o.UserID != "" && o.UserID != userID {
			return order.ErrOrderOwnedByOther
		}
		o.UserID = userID
		return nil
	})
}

func (s *Store) AttachPayment(ctx context.Context, id string, provider order.Provider, reference string) error {
	return s.updateOrder(ctx, id, func(o *order.Order) error {
		if o.Status != order.StatusPending {
			return order.ErrOrderNotPending
		}
		o.PaymentProvider = provider
		o.PaymentReference = reference
		return nil
	})
}

func (s *Store) MarkPaid(ctx context.Context, id string, p order.Payment) (*order.Order, error) {
	var prev order.Order
	err := s.updateOrder(ctx, id, func(o *order.Order) error {
		if !o.MatchesPayment(p) {
			return order.ErrPaymentMismatch
		}
		prev = cloneOrder(*o)
		o.Status = order.StatusPaid
		o.PaymentProvider = p.Provider
		o.PaymentReference = p.Reference
		if p.SubscriptionID != "" {
			o.SubscriptionID = p.SubscriptionID
		}
		if p.NextBillingDate != nil {
			o.NextBillingDate = cloneTime(p.NextBillingDate)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &prev, nil
}

func (s *Store) SetNextBillingDate(ctx context.Context, id, subscriptionID string, next *time.Time) error {
	return s.updateOrder(ctx, id, func(o *order.Order) error {
		if !o.MatchesSubscription(subscriptionID) {
			return order.ErrPaymentMismatch
		}
		o.NextBillingDate = cloneTime(next)
		if o.SubscriptionID == "" {
			o.SubscriptionID = subscriptionID
		}
		return nil
	})
}

func (s *Store) updateOrder(ctx context.Context, id string, fn func(*order.Order) error) error {
	return s.write(ctx, func() error {
		e, ok := s.orders[id]
		if !ok {
			return order.ErrOrderNotFound
		}
		o := cloneOrder(e.v)
		if err := fn(&o); err != nil {
			return err
		}
		o.UpdatedAt = s.now().UTC()
		s.orders[id] = entry[order.Order]{v: o, rev: s.nextRev()}
		return nil
	})
}

func (s *Store) latestOrder(match func(*order.Order) bool) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  order.Order
		found bool
		rev   uint64
	)
	for _, e := range s.orders {
		if match(&e.v) && (!found || e.rev > rev) {
			best, rev, found = e.v, e.rev, true
		}
	}
	if !found {
		return nil, order.ErrOrderNotFound
	}
	o := cloneOrder(best)
	return &o, nil
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]order.Item(nil), o.Items...)
	o.NextBillingDate = cloneTime(o.NextBillingDate)
	return o
}
