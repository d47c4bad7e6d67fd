// Package stripe holds the Stripe credentials and API client used for parcel
// payments and webhook verification.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/zipshift-backend/pkg/config"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
)

const (
	modeTest = "test"
	modeLive = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", modeTest, modeLive)
)

// Client is safe for concurrent use. It never touches the stripe package globals.
type Client struct {
	api           *stripe.Client
	mode          string
	signingSecret string
}

// NewClient checks that the key matches the configured mode: a test deployment
// cannot be handed a live key or the reverse.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	mode, err := parseMode(cfg.Environment())
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.Secret)
	switch {
	case key == "":
		return nil, errAPIKeyRequired
	case secret == "":
		return nil, errSecretRequired
	}
	if keyMode(key) != mode {
		return nil, fmt.Errorf("stripe %s mode requires an sk_%s_ or rk_%s_ key", mode, mode, mode)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_mode", mode), "stripe client initialized")
	}
	return &Client{api: stripe.NewClient(key), mode: mode, signingSecret: secret}, nil
}

// PaymentIntent retrieves a PaymentIntent by id.
func (c *Client) PaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("stripe client not initialized")
	}
	return c.api.V1PaymentIntents.Retrieve(ctx, id, nil)
}

func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment is "test" or "live".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.mode
}

// SigningSecret is the webhook endpoint secret (whsec_...).
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func parseMode(raw string) (string, error) {
	switch mode := strings.ToLower(strings.TrimSpace(raw)); mode {
	case "":
		return modeTest, nil
	case modeTest, modeLive:
		return mode, nil
	default:
		return "", errInvalidStripeEnv
	}
}

// keyMode reads the mode out of secret (sk_) and restricted (rk_) keys.
func keyMode(key string) string {
	kind, rest, ok := strings.Cut(key, "_")
	if !ok || (kind != "sk" && kind != "rk") {
		return ""
	}
	mode, _, _ := strings.Cut(rest, "_")
	return mode
}
