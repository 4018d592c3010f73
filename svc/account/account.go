// Package account holds storefront customers: their profile, health answers
// and the denormalized subscription summary shown on the dashboard. It also
// resolves the bearer identity of a request to a registered user.
package account

import (
	"context"
	"time"
)

type User struct {
	ID       string `json:"id"`
	Subject  string `json:"-"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`

	Health  HealthProfile `json:"health"`
	Address Address       `json:"address"`

	Subscription *SubscriptionSummary `json:"subscription"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type HealthProfile struct {
	Height      float64 `json:"height,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	BMI         float64 `json:"bmi,omitempty"`
	Goal        string  `json:"goal,omitempty"`
	Activity    string  `json:"activity,omitempty"`
	Conditions  string  `json:"conditions,omitempty"`
	Diet        string  `json:"diet,omitempty"`
	SleepHours  float64 `json:"sleepHours,omitempty"`
	WaterIntake float64 `json:"waterIntake,omitempty"`
}

type Address struct {
	Line1      string `json:"addressLine1"`
	Line2      string `json:"addressLine2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// SubscriptionSummary is a read model of the user's gateway subscription.
// It is always written as a whole by the billing projection.
type SubscriptionSummary struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	Active          bool       `json:"active"`
	NextBillingDate *time.Time `json:"nextBillingDate"`
	CustomerID      string     `json:"customerId"`
	CancelledAt     *time.Time `json:"cancelledAt"`
}

// ProfileUpdate carries the editable profile fields. Nil fields are left as is.
type ProfileUpdate struct {
	FullName   *string
	Phone      *string
	Age        *int
	Gender     *string
	Height     *float64
	Weight     *float64
	Goal       *string
	Activity   *string
	Line1      *string
	Line2      *string
	City       *string
	PostalCode *string
	Country    *string
}

type Store interface {
	// CreateUser stores u and sets u.ID. A second user for the same subject,
	// e-mail or phone yields ErrUserExists.
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserBySubject(ctx context.Context, subject string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByPhone(ctx context.Context, phone string) (*User, error)
	UpdateUserProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error)
	// SetSubscriptionSummary replaces the embedded summary.
	SetSubscriptionSummary(ctx context.Context, userID string, s *SubscriptionSummary) error
}
