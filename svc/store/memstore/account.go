package memstore

import (
	"context"

	"github.com/dmitrymomot/storefront/svc/account"
)

func (s *Store) CreateUser(ctx context.Context, u *account.User) error {
	return s.write(ctx, func() error {
		for _, e := range s.users {
			if e.v.Subject == u.Subject || e.v.Email == u.Email || (u.Phone != "" && e.v.Phone == u.Phone) {
				return account.ErrUserExists
			}
		}

		u.ID = newID()
		if u.CreatedAt.IsZero() {
			u.CreatedAt = s.now().UTC()
			u.UpdatedAt = u.CreatedAt
		}
		s.users[u.ID] = entry[account.User]{v: cloneUser(*u), rev: s.nextRev()}
		return nil
	})
}

func (s *Store) GetUserByID(_ context.Context, id string) (*account.User, error) {
	return s.findUser(func(u *account.User) bool { return u.ID == id })
}

func (s *Store) GetUserBySubject(_ context.Context, subject string) (*account.User, error) {
	return s.findUser(func(u *account.User) bool { return u.Subject == subject })
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*account.User, error) {
	return s.findUser(func(u *account.User) bool { return u.Email == email })
}

func (s *Store) GetUserByPhone(_ context.Context, phone string) (*account.User, error) {
	return s.findUser(func(u *account.User) bool { return u.Phone == phone })
}

func (s *Store) UpdateUserProfile(ctx context.Context, id string, upd account.ProfileUpdate) (*account.User, error) {
	var out account.User
	err := s.write(ctx, func() error {
		e, ok := s.users[id]
		if !ok {
			return account.ErrUserNotFound
		}
		if upd.Phone != nil {
			for otherID, o := range s.users {
				if otherID != id && o.v.Phone == *upd.Phone {
					return account.ErrUserExists
				}
			}
		}

		u := e.v
		applyProfile(&u, upd)
		u.UpdatedAt = s.now().UTC()
		s.users[id] = entry[account.User]{v: u, rev: s.nextRev()}
		out = cloneUser(u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) SetSubscriptionSummary(ctx context.Context, userID string, sum *account.SubscriptionSummary) error {
	return s.write(ctx, func() error {
		e, ok := s.users[userID]
		if !ok {
			return account.ErrUserNotFound
		}
		e.v.Subscription = cloneSummary(sum)
		e.v.UpdatedAt = s.now().UTC()
		s.users[userID] = entry[account.User]{v: e.v, rev: s.nextRev()}
		return nil
	})
}

func (s *Store) findUser(match func(*account.User) bool) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.users {
		if match(&e.v) {
			u := cloneUser(e.v)
			return &u, nil
		}
	}
	return nil, account.ErrUserNotFound
}

func applyProfile(u *account.User, upd account.ProfileUpdate) {
	set(&u.FullName, upd.FullName)
	set(&u.Phone, upd.Phone)
	set(&u.Age, upd.Age)
	set(&u.Gender, upd.Gender)
	set(&u.Health.Height, upd.Height)
	set(&u.Health.Weight, upd.Weight)
	set(&u.Health.Goal, upd.Goal)
	set(&u.Health.Activity, upd.Activity)
	set(&u.Address.Line1, upd.Line1)
	set(&u.Address.Line2, upd.Line2)
	set(&u.Address.City, upd.City)
	set(&u.Address.PostalCode, upd.PostalCode)
	set(&u.Address.Country, upd.Country)
	if upd.Height != nil || upd.Weight != nil {
		u.Health.BMI = account.BMI(u.Health.Height, u.Health.Weight)
	}
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func cloneUser(u account.User) account.User {
	u.Subscription = cloneSummary(u.Subscription)
	return u
}

func cloneSummary(s *account.SubscriptionSummary) *account.SubscriptionSummary {
	if s == nil {
		return nil
	}
	c := *s
	c.NextBillingDate = cloneTime(s.NextBillingDate)
	c.CancelledAt = cloneTime(s.CancelledAt)
	return &c
}
