package lemonsqueezy

import "time"

type Config struct {
	APIKey        string        `env:"LEMONSQUEEZY_API_KEY,required"`
	StoreID       string        `env:"LEMONSQUEEZY_STORE_ID,required"`
	WebhookSecret string        `env:"LEMONSQUEEZY_WEBHOOK_SECRET,required"`
	BaseURL       string        `env:"LEMONSQUEEZY_BASE_URL" envDefault:"https://api.lemonsqueezy.com/v1"`
	Timeout       time.Duration `env:"LEMONSQUEEZY_TIMEOUT" envDefault:"15s"`
}
