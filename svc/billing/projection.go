package billing

import (
	"strings"
	"time"

	"github.com/dmitrymomot/storefront/svc/account"
)

// Projection is the input of Summarize.
type Projection struct {
	SubscriptionID  string
	Status          string
	NextBillingDate *time.Time
	CustomerID      string
	CancelledAt     *time.Time
	// ForceInactive marks the summary inactive whatever the status says.
	ForceInactive bool
}

// Summarize builds the user's subscription summary. Every path that writes
// the summary goes through here.
func Summarize(p Projection) *account.SubscriptionSummary {
	return &account.SubscriptionSummary{
		ID:              p.SubscriptionID,
		Status:          p.Status,
		Active:          !p.ForceInactive && IsActive(p.Status),
		NextBillingDate: p.NextBillingDate,
		CustomerID:      p.CustomerID,
		CancelledAt:     p.CancelledAt,
	}
}

// IsActive reports whether a gateway status keeps the subscription usable.
func IsActive(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "on_trial", "past_due":
		return true
	}
	return false
}

// SummaryFromSubscription projects a stored subscription record.
func SummaryFromSubscription(s *Subscription) *account.SubscriptionSummary {
	return Summarize(Projection{
		SubscriptionID:  s.ExternalID,
		Status:          s.Status,
		NextBillingDate: s.RenewsAt,
		CustomerID:      s.CustomerID,
		CancelledAt:     s.CancelledAt,
	})
}
