package account

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrymomot/storefront/pkg/logger"
)

var phonePattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

type RegisterParams struct {
	FullName string
	Email    string
	Phone    string
	Age      int
	Gender   string
	Health   HealthProfile
	Address  Address
}

type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store: store,
		log:   log.With(logger.Component("account")),
		now:   time.Now,
	}
}

// Register creates the user record for a verified identity. If the identity
// is already registered the existing user is returned and created is false.
func (s *Service) Register(ctx context.Context, id Identity, p RegisterParams) (user *User, created bool, err error) {
	if id.Subject == "" {
		return nil, false, ErrUnauthenticated
	}

	existing, err := s.store.GetUserBySubject(ctx, id.Subject)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, ErrUserNotFound):
		return nil, false, err
	}

	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if !phonePattern.MatchString(p.Phone) {
		return nil, false, ErrInvalidPhone
	}

	if _, err := s.store.GetUserByEmail(ctx, p.Email); err == nil {
		return nil, false, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}
	if _, err := s.store.GetUserByPhone(ctx, p.Phone); err == nil {
		return nil, false, ErrPhoneTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	health := p.Health
	if health.BMI == 0 {
		health.BMI = BMI(health.Height, health.Weight)
	}

	now := s.now().UTC()
	u := &User{
		Subject:   id.Subject,
		FullName:  strings.TrimSpace(p.FullName),
		Email:     p.Email,
		Phone:     p.Phone,
		Age:       p.Age,
		Gender:    p.Gender,
		Health:    health,
		Address:   p.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, false, err
	}

	s.log.InfoContext(ctx, "user registered", logger.UserID(u.ID))
	return u, true, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// UpdateProfile applies upd. A changed phone number must stay E.164 and
// unique.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*User, error) {
	if upd.Phone != nil {
		phone := strings.TrimSpace(*upd.Phone)
		if !phonePattern.MatchString(phone) {
			return nil, ErrInvalidPhone
		}
		other, err := s.store.GetUserByPhone(ctx, phone)
		switch {
		case err == nil && other.ID != userID:
			return nil, ErrPhoneTaken
		case err != nil && !errors.Is(err, ErrUserNotFound):
			return nil, err
		}
		upd.Phone = &phone
	}
	if upd.Age != nil && *upd.Age <= 0 {
		return nil, errors.Join(ErrInvalidProfile, errors.New("age must be positive"))
	}

	return s.store.UpdateUserProfile(ctx, userID, upd)
}

func (s *Service) GetHealth(ctx context.Context, userID string) (*HealthProfile, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	h := u.Health
	return &h, nil
}

// BMI returns weight(kg) / height(m)^2 rounded to one decimal, or 0 when
// either value is missing.
func BMI(heightCM, weightKG float64) float64 {
	if heightCM <= 0 || weightKG <= 0 {
		return 0
	}
	m := heightCM / 100
	return math.Round(weightKG/(m*m)*10) / 10
}
