// Package config loads application settings from the process environment.
//
// Values are read from an optional `.env` file (github.com/joho/godotenv) and
// parsed into tagged structs with github.com/caarlos0/env/v11:
//
//	type Config struct {
//		URL     string        `env:"MONGODB_URL,required"`
//		Timeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
//	}
//
//	cfg, err := config.Load[Config]()
//
// Each package that needs settings owns its Config struct; the binary loads
// them all at startup and passes them into constructors.
package config
