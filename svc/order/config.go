package order

type Config struct {
	// ExpressShippingFee is added to orders shipped with express_3_days.
	ExpressShippingFee float64 `env:"EXPRESS_SHIPPING_FEE" envDefault:"500"`
}
