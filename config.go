package identity

import (
	"encoding/base64"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// Config holds the startup configuration for token signing and PII
// encryption. Values are treated as opaque: the signing key and issuer come
// from whatever secret store feeds the environment.
type Config struct {
	SigningKey string   `env:"BOOKSWAP_SIGNING_KEY,required"`
	Issuer     string   `env:"BOOKSWAP_JWT_ISSUER" envDefault:"bookswap"`
	Audience   []string `env:"BOOKSWAP_JWT_AUDIENCE" envDefault:"bookswap"`

	// PIIKey is the base64-encoded 32-byte AES key shared by every
	// encrypt/decrypt call in the process.
	PIIKey string `env:"BOOKSWAP_PII_KEY,required"`

	RefreshTokenTTL time.Duration `env:"BOOKSWAP_REFRESH_TTL" envDefault:"168h"`
}

// LoadConfig parses configuration from the environment and validates the PII
// key eagerly so a misconfigured key fails at startup, not on first signup.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse environment")
	}

	if _, err := cfg.DecodePIIKey(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoadConfig is LoadConfig for program startup; a bad key length or
// missing secret is non-recoverable.
func MustLoadConfig() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		log.Panic(err)
	}
	return cfg
}

// DecodePIIKey decodes and length-checks the configured PII key.
func (c *Config) DecodePIIKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.PIIKey)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "PII key is not valid base64")
	}
	if len(key) != PIIKeySize {
		return nil, goerrors.New("PII key must decode to 32 bytes", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"length": len(key)})
	}
	return key, nil
}

func (c *Config) GetSigningKey() string {
	return c.SigningKey
}

func (c *Config) GetIssuer() string {
	return c.Issuer
}

func (c *Config) GetAudience() []string {
	return c.Audience
}

func (c *Config) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTL <= 0 {
		return RefreshTokenTTL
	}
	return c.RefreshTokenTTL
}
