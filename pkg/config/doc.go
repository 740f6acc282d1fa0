// Package config provides a type-safe, generic and cached way to load
// application configuration from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11 to
// deliver an API that:
//
//   - Loads values from a `.env` file in the working directory when present.
//   - Parses the environment into any Go struct using `env` field tags.
//   - Caches each successfully loaded configuration type so it is parsed at
//     most once for the lifetime of the process.
//   - Exposes MustLoad for bootstrap paths where configuration is critical.
//
// # Usage
//
// Describe the configuration as a tagged struct:
//
//	type ServerConfig struct {
//	    Addr string `env:"SERVER_ADDR" envDefault:":8080"`
//	}
//
// Then load it wherever it is needed; repeated calls return the cached copy:
//
//	var cfg ServerConfig
//	if err := config.Load(&cfg); err != nil {
//	    // handle error
//	}
//
//	config.MustLoad(&cfg) // panics on failure
package config
