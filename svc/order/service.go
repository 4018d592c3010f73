package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/storefront/pkg/logger"
	"github.com/dmitrymomot/storefront/pkg/metrics"
	"github.com/dmitrymomot/storefront/svc/catalog"
)

// ProductCatalog resolves the current price of a product.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

type ItemParams struct {
	ProductID string
	Quantity  int
}

type CreateOrderParams struct {
	Items          []ItemParams
	Billing        BillingDetails
	ShippingMethod ShippingMethod
	PurchaseType   Type
	// UserID is set for authenticated requests, GuestID otherwise.
	UserID  string
	GuestID string
}

type Service struct {
	store   Store
	catalog ProductCatalog
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, products ProductCatalog, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:   store,
		catalog: products,
		cfg:     cfg,
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("order"))
	return s
}

// CreateOrder prices the items from the catalog and stores a pending order.
// Prices sent by the client are never used.
func (s *Service) CreateOrder(ctx context.Context, p CreateOrderParams) (*Order, error) {
	if err := validateParams(&p); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(p.Items))
	subtotal := decimal.Zero
	for _, ip := range p.Items {
		product, err := s.catalog.GetProduct(ctx, ip.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return nil, errors.Join(ErrProductNotFound, fmt.Errorf("product %q", ip.ProductID))
			}
			return nil, err
		}

		price := decimal.NewFromFloat(product.Price).Round(2)
		line := price.Mul(decimal.NewFromInt(int64(ip.Quantity))).Round(2)
		subtotal = subtotal.Add(line)

		items = append(items, Item{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     price.InexactFloat64(),
			Quantity:  ip.Quantity,
			LineTotal: line.InexactFloat64(),
		})
	}

	shipping := decimal.Zero
	if p.ShippingMethod == ShippingExpress {
		shipping = decimal.NewFromFloat(s.cfg.ExpressShippingFee).Round(2)
	}

	now := s.now().UTC()
	o := &Order{
		UserID:          p.UserID,
		Type:            p.PurchaseType,
		Items:           items,
		Subtotal:        subtotal.InexactFloat64(),
		ShippingCost:    shipping.InexactFloat64(),
		ShippingMethod:  p.ShippingMethod,
		Billing:         p.Billing,
		PaymentProvider: ProviderBankTransfer,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if p.UserID == "" {
		o.GuestID = p.GuestID
	}
	o.Total = o.Subtotal + o.ShippingCost

	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	s.metrics.OrderCreated(string(o.Type))
	s.log.InfoContext(ctx, "order created",
		logger.OrderID(o.ID),
		slog.String("order_type", string(o.Type)),
		slog.Float64("total", o.Total),
	)
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrOrderNotFound
	}
	return s.store.GetOrder(ctx, id)
}

func (s *Service) ListUserOrders(ctx context.Context, userID string) ([]*Order, error) {
	if userID == "" {
		return []*Order{}, nil
	}
	orders, err := s.store.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*Order{}
	}
	return orders, nil
}

// GetUserOrder returns the order only when userID owns it. Orders of other
// users are reported as not found.
func (s *Service) GetUserOrder(ctx context.Context, id, userID string) (*Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.OwnedBy(userID) {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func validateParams(p *CreateOrderParams) error {
	if p.UserID == "" && strings.TrimSpace(p.GuestID) == "" {
		return ErrOwnerRequired
	}
	if len(p.Items) == 0 {
		return errors.Join(ErrInvalidOrder, errors.New("cart is empty"))
	}
	for i, it := range p.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return errors.Join(ErrInvalidOrder, fmt.Errorf("item %d has no product", i))
		}
		if it.Quantity <= 0 {
			return errors.Join(ErrInvalidOrder, fmt.Errorf("item %d quantity must be positive", i))
		}
	}

	b := p.Billing
	required := []struct{ field, value string }{
		{"firstName", b.FirstName},
		{"lastName", b.LastName},
		{"email", b.Email},
		{"phone", b.Phone},
		{"street", b.Street},
		{"city", b.City},
		{"postcode", b.Postcode},
		{"country", b.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.Join(ErrInvalidOrder, fmt.Errorf("billing %s is required", r.field))
		}
	}

	if p.ShippingMethod == "" {
		p.ShippingMethod = ShippingLocalPickup
	}
	if p.ShippingMethod != ShippingLocalPickup && p.ShippingMethod != ShippingExpress {
		return errors.Join(ErrInvalidOrder, fmt.Errorf("unknown shipping method %q", p.ShippingMethod))
	}

	if p.PurchaseType == "" {
		p.PurchaseType = TypeOneTime
	}
	if p.PurchaseType != TypeOneTime && p.PurchaseType != TypeSubscription {
		return errors.Join(ErrInvalidOrder, fmt.Errorf("unknown purchase type %q", p.PurchaseType))
	}
	return nil
}
