package ceremony

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls relying party settings and challenge timing.
type Config struct {
	RPDisplayName string        `env:"WEBAUTHN_CEREMONY_RP_DISPLAY_NAME" envDefault:"SplitSecure"`
	RPID          string        `env:"WEBAUTHN_CEREMONY_RP_ID"           envDefault:"localhost"`
	RPOrigin      string        `env:"WEBAUTHN_CEREMONY_RP_ORIGIN"       envDefault:"http://localhost:8086"`
	ChallengeTTL  time.Duration `env:"WEBAUTHN_CEREMONY_CHALLENGE_TTL"   envDefault:"5m"`
	StorePath     string        `env:"WEBAUTHN_CEREMONY_STORE_PATH"`
}

// LoadConfigFromEnv returns ceremony configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{
			RPDisplayName: "SplitSecure",
			RPID:          "localhost",
			RPOrigin:      "http://localhost:8086",
			ChallengeTTL:  5 * time.Minute,
		}
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 5 * time.Minute
	}
	return cfg
}
