package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/storefront/svc/account"
)

type userDoc struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Subject      string        `bson:"subject"`
	FullName     string        `bson:"full_name"`
	Email        string        `bson:"email"`
	Phone        string        `bson:"phone"`
	Age          int           `bson:"age"`
	Gender       string        `bson:"gender"`
	Health       healthDoc     `bson:"health"`
	Address      addressDoc    `bson:"address"`
	Subscription *summaryDoc   `bson:"subscription"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

type healthDoc struct {
	Height      float64 `bson:"height"`
	Weight      float64 `bson:"weight"`
	BMI         float64 `bson:"bmi"`
	Goal        string  `bson:"goal"`
	Activity    string  `bson:"activity"`
	Conditions  string  `bson:"conditions,omitempty"`
	Diet        string  `bson:"diet,omitempty"`
	SleepHours  float64 `bson:"sleep_hours,omitempty"`
	WaterIntake float64 `bson:"water_intake,omitempty"`
}

type addressDoc struct {
	Line1      string `bson:"line1"`
	Line2      string `bson:"line2,omitempty"`
	City       string `bson:"city"`
	PostalCode string `bson:"postal_code"`
	Country    string `bson:"country"`
}

type summaryDoc struct {
	ID              string     `bson:"id"`
	Status          string     `bson:"status"`
	Active          bool       `bson:"active"`
	NextBillingDate *time.Time `bson:"next_billing_date"`
	CustomerID      string     `bson:"customer_id"`
	CancelledAt     *time.Time `bson:"cancelled_at"`
}

func newUserDoc(u *account.User) userDoc {
	h, a := u.Health, u.Address
	return userDoc{
		Subject:  u.Subject,
		FullName: u.FullName,
		Email:    u.Email,
		Phone:    u.Phone,
		Age:      u.Age,
		Gender:   u.Gender,
		Health: healthDoc{
			Height: h.Height, Weight: h.Weight, BMI: h.BMI, Goal: h.Goal, Activity: h.Activity,
			Conditions: h.Conditions, Diet: h.Diet, SleepHours: h.SleepHours, WaterIntake: h.WaterIntake,
		},
		Address: addressDoc{
			Line1: a.Line1, Line2: a.Line2, City: a.City, PostalCode: a.PostalCode, Country: a.Country,
		},
		Subscription: newSummaryDoc(u.Subscription),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) toUser() *account.User {
	h, a := d.Health, d.Address
	u := &account.User{
		ID:       d.ID.Hex(),
		Subject:  d.Subject,
		FullName: d.FullName,
		Email:    d.Email,
		Phone:    d.Phone,
		Age:      d.Age,
		Gender:   d.Gender,
		Health: account.HealthProfile{
			Height: h.Height, Weight: h.Weight, BMI: h.BMI, Goal: h.Goal, Activity: h.Activity,
			Conditions: h.Conditions, Diet: h.Diet, SleepHours: h.SleepHours, WaterIntake: h.WaterIntake,
		},
		Address: account.Address{
			Line1: a.Line1, Line2: a.Line2, City: a.City, PostalCode: a.PostalCode, Country: a.Country,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if s := d.Subscription; s != nil {
		u.Subscription = &account.SubscriptionSummary{
			ID:              s.ID,
			Status:          s.Status,
			Active:          s.Active,
			NextBillingDate: s.NextBillingDate,
			CustomerID:      s.CustomerID,
			CancelledAt:     s.CancelledAt,
		}
	}
	return u
}

func newSummaryDoc(s *account.SubscriptionSummary) *summaryDoc {
	if s == nil {
		return nil
	}
	return &summaryDoc{
		ID:              s.ID,
		Status:          s.Status,
		Active:          s.Active,
		NextBillingDate: s.NextBillingDate,
		CustomerID:      s.CustomerID,
		CancelledAt:     s.CancelledAt,
	}
}

func (s *Store) CreateUser(ctx context.Context, u *account.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
		u.UpdatedAt = u.CreatedAt
	}
	res, err := s.users.InsertOne(ctx, newUserDoc(u))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return account.ErrUserExists
		}
		return err
	}
	u.ID = res.InsertedID.(bson.ObjectID).Hex()
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*account.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, account.ErrUserNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *Store) GetUserBySubject(ctx context.Context, subject string) (*account.User, error) {
	return s.findUser(ctx, bson.M{"subject": subject})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*account.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*account.User, error) {
	return s.findUser(ctx, bson.M{"phone": phone})
}

func (s *Store) UpdateUserProfile(ctx context.Context, id string, upd account.ProfileUpdate) (*account.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, account.ErrUserNotFound
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	put := func(field string, v any, present bool) {
		if present {
			set[field] = v
		}
	}
	put("full_name", deref(upd.FullName), upd.FullName != nil)
	put("phone", deref(upd.Phone), upd.Phone != nil)
	put("age", deref(upd.Age), upd.Age != nil)
	put("gender", deref(upd.Gender), upd.Gender != nil)
	put("health.height", deref(upd.Height), upd.Height != nil)
	put("health.weight", deref(upd.Weight), upd.Weight != nil)
	put("health.goal", deref(upd.Goal), upd.Goal != nil)
	put("health.activity", deref(upd.Activity), upd.Activity != nil)
	put("address.line1", deref(upd.Line1), upd.Line1 != nil)
	put("address.line2", deref(upd.Line2), upd.Line2 != nil)
	put("address.city", deref(upd.City), upd.City != nil)
	put("address.postal_code", deref(upd.PostalCode), upd.PostalCode != nil)
	put("address.country", deref(upd.Country), upd.Country != nil)

	var d userDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&d)
	switch {
	case isNoDocuments(err):
		return nil, account.ErrUserNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, account.ErrUserExists
	case err != nil:
		return nil, err
	}

	if upd.Height != nil || upd.Weight != nil {
		bmi := account.BMI(d.Health.Height, d.Health.Weight)
		if _, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"health.bmi": bmi}}); err != nil {
			return nil, err
		}
		d.Health.BMI = bmi
	}
	return d.toUser(), nil
}

func (s *Store) SetSubscriptionSummary(ctx context.Context, userID string, sum *account.SubscriptionSummary) error {
	oid, ok := objectID(userID)
	if !ok {
		return account.ErrUserNotFound
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"subscription": newSummaryDoc(sum),
		"updated_at":   time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return account.ErrUserNotFound
	}
	return nil
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*account.User, error) {
	var d userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return nil, account.ErrUserNotFound
		}
		return nil, err
	}
	return d.toUser(), nil
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
