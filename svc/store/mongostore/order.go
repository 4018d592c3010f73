package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/storefront/svc/order"
)

type orderDoc struct {
	ID      bson.ObjectID `bson:"_id,omitempty"`
	UserID  string        `bson:"user_id,omitempty"`
	GuestID string        `bson:"guest_id,omitempty"`
	Type    order.Type    `bson:"order_type"`

	Items        []itemDoc `bson:"items"`
	Subtotal     float64   `bson:"subtotal"`
	ShippingCost float64   `bson:"shipping_cost"`
	Total        float64   `bson:"total"`

	ShippingMethod order.ShippingMethod `bson:"shipping_method"`
	Billing        billingDoc           `bson:"billing"`

	PaymentProvider  order.Provider `bson:"payment_provider"`
	PaymentReference string         `bson:"payment_reference,omitempty"`
	SubscriptionID   string         `bson:"subscription_id,omitempty"`
	NextBillingDate  *time.Time     `bson:"next_billing_date"`
	Status           order.Status   `bson:"status"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type itemDoc struct {
	ProductID string  `bson:"product_id"`
	Name      string  `bson:"name"`
	Price     float64 `bson:"price"`
	Quantity  int     `bson:"quantity"`
	LineTotal float64 `bson:"line_total"`
}

type billingDoc struct {
	FirstName string `bson:"first_name"`
	LastName  string `bson:"last_name"`
	Email     string `bson:"email"`
	Phone     string `bson:"phone"`
	Street    string `bson:"street"`
	Apartment string `bson:"apartment,omitempty"`
	City      string `bson:"city"`
	Postcode  string `bson:"postcode"`
	Country   string `bson:"country"`
}

func newOrderDoc(o *order.Order) orderDoc {
	d := orderDoc{
		UserID:           o.UserID,
		GuestID:          o.GuestID,
		Type:             o.Type,
		Subtotal:         o.Subtotal,
		ShippingCost:     o.ShippingCost,
		Total:            o.Total,
		ShippingMethod:   o.ShippingMethod,
		Billing:          billingDoc(o.Billing),
		PaymentProvider:  o.PaymentProvider,
		PaymentReference: o.PaymentReference,
		SubscriptionID:   o.SubscriptionID,
		NextBillingDate:  o.NextBillingDate,
		Status:           o.Status,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	for _, it := range o.Items {
		d.Items = append(d.Items, itemDoc(it))
	}
	return d
}

func (d orderDoc) toOrder() *order.Order {
	o := &order.Order{
		ID:               d.ID.Hex(),
		UserID:           d.UserID,
		GuestID:          d.GuestID,
		Type:             d.Type,
		Items:            make([]order.Item, 0, len(d.Items)),
		Subtotal:         d.Subtotal,
		ShippingCost:     d.ShippingCost,
		Total:            d.Total,
		ShippingMethod:   d.ShippingMethod,
		Billing:          order.BillingDetails(d.Billing),
		PaymentProvider:  d.PaymentProvider,
		PaymentReference: d.PaymentReference,
		SubscriptionID:   d.SubscriptionID,
		NextBillingDate:  d.NextBillingDate,
		Status:           d.Status,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	for _, it := range d.Items {
		o.Items = append(o.Items, order.Item(it))
	}
	return o
}

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
		o.UpdatedAt = o.CreatedAt
	}
	res, err := s.orders.InsertOne(ctx, newOrderDoc(o))
	if err != nil {
		return err
	}
	o.ID = res.InsertedID.(bson.ObjectID).Hex()
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return s.findOrder(ctx, bson.M{"_id": oid}, nil)
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.orders.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*order.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toOrder())
	}
	return out, nil
}

func (s *Store) FindOrderByPaymentReference(ctx context.Context, provider order.Provider, reference string) (*order.Order, error) {
	if reference == "" {
		return nil, order.ErrOrderNotFound
	}
	return s.findOrder(ctx, bson.M{"payment_provider": provider, "payment_reference": reference}, newestUpdated)
}

func (s *Store) LatestPaidSubscriptionOrder(ctx context.Context, userID string) (*order.Order, error) {
	return s.findOrder(ctx, bson.M{
		"user_id":    userID,
		"order_type": order.TypeSubscription,
		"status":     order.StatusPaid,
	}, newestUpdated)
}

func (s *Store) AssignOwner(ctx context.Context, id, userID string) error {
	return s.conditionalUpdate(ctx, id,
		bson.M{"user_id": bson.M{"$in": bson.A{nil, "", userID}}},
		bson.M{"user_id": userID},
		order.ErrOrderOwnedByOther,
	)
}

func (s *Store) AttachPayment(ctx context.Context, id string, provider order.Provider, reference string) error {
	return s.conditionalUpdate(ctx, id,
		bson.M{"status": order.StatusPending},
		bson.M{"payment_provider": provider, "payment_reference": reference},
		order.ErrOrderNotPending,
	)
}

// MarkPaid applies the payment guard of order.Order.MatchesPayment as an
// update filter and returns the document as it was before the update.
func (s *Store) MarkPaid(ctx context.Context, id string, p order.Payment) (*order.Order, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, order.ErrOrderNotFound
	}

	filter := bson.M{
		"_id":              oid,
		"payment_provider": p.Provider,
		"status":           bson.M{"$in": order.Transitions.Sources(order.StatusPaid)},
	}
	switch {
	case p.Claimed && p.Reference != "":
		filter["$or"] = bson.A{
			bson.M{"status": order.StatusPending},
			bson.M{"payment_reference": p.Reference},
		}
	case p.Claimed:
		filter["status"] = order.StatusPending
	case p.Reference == "":
		return nil, order.ErrPaymentMismatch
	default:
		filter["payment_reference"] = p.Reference
	}
	if p.Provider == order.ProviderLemonSubscription {
		filter["subscription_id"] = bson.M{"$in": bson.A{nil, "", p.SubscriptionID}}
	}

	set := bson.M{
		"status":            order.StatusPaid,
		"payment_provider":  p.Provider,
		"payment_reference": p.Reference,
		"updated_at":        time.Now().UTC(),
	}
	if p.SubscriptionID != "" {
		set["subscription_id"] = p.SubscriptionID
	}
	if p.NextBillingDate != nil {
		set["next_billing_date"] = p.NextBillingDate
	}

	var prev orderDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	err := s.orders.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&prev)
	if isNoDocuments(err) {
		return nil, s.missOrMismatch(ctx, oid, order.ErrPaymentMismatch)
	}
	if err != nil {
		return nil, err
	}
	return prev.toOrder(), nil
}

func (s *Store) SetNextBillingDate(ctx context.Context, id, subscriptionID string, next *time.Time) error {
	return s.conditionalUpdate(ctx, id,
		bson.M{
			"payment_provider": order.ProviderLemonSubscription,
			"subscription_id":  bson.M{"$in": bson.A{nil, "", subscriptionID}},
		},
		bson.M{"next_billing_date": next, "subscription_id": subscriptionID},
		order.ErrPaymentMismatch,
	)
}

// conditionalUpdate sets fields on the order when cond holds. It returns
// ErrOrderNotFound for a missing order and failed when cond does not hold.
func (s *Store) conditionalUpdate(ctx context.Context, id string, cond, fields bson.M, failed error) error {
	oid, ok := objectID(id)
	if !ok {
		return order.ErrOrderNotFound
	}

	filter := bson.M{"_id": oid}
	for k, v := range cond {
		filter[k] = v
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}

	res, err := s.orders.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.missOrMismatch(ctx, oid, failed)
	}
	return nil
}

func (s *Store) missOrMismatch(ctx context.Context, oid bson.ObjectID, failed error) error {
	ok, err := exists(ctx, s.orders, oid)
	if err != nil {
		return err
	}
	if !ok {
		return order.ErrOrderNotFound
	}
	return failed
}

func (s *Store) findOrder(ctx context.Context, filter bson.M, sort bson.D) (*order.Order, error) {
	opts := options.FindOne()
	if sort != nil {
		opts.SetSort(sort)
	}
	var d orderDoc
	if err := s.orders.FindOne(ctx, filter, opts).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return d.toOrder(), nil
}

