package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"raceday/internal/config"
	"raceday/internal/model"
	"raceday/internal/repository"

	"github.com/stripe/stripe-go/v76"
	stripeCheckoutSession "github.com/stripe/stripe-go/v76/checkout/session"
)

var (
	ErrDisabled = errors.New("payments are not configured")
	ErrFree     = errors.New("category has no entry fee")
)

// Client creates Stripe checkout sessions for registration entry fees. The
// checkout reference is stored on the participant so the payment can be matched
// during verification.
type Client struct {
	logger     *slog.Logger
	repo       repository.Repository
	apiKey     string
	enabled    bool
	currency   string
	successURL string
	cancelURL  string
}

func NewClient(logger *slog.Logger, repo repository.Repository, cfg config.StripeConfig, currency string) *Client {
	return &Client{
		logger:     logger,
		repo:       repo,
		apiKey:     cfg.APIKey,
		enabled:    cfg.Enabled && cfg.APIKey != "",
		currency:   currency,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
}

func (c *Client) Enabled() bool {
	return c.enabled
}

type CheckoutParams struct {
	Participant model.Participant
	Event       model.Event
	Category    model.Category
	SuccessURL  string
	CancelURL   string
}

// CreateCheckoutSession opens a one-time payment session for the category's
// entry fee and records the session ID on the participant.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	if !c.enabled {
		return "", ErrDisabled
	}
	if params.Category.PriceCents == nil || *params.Category.PriceCents <= 0 {
		return "", ErrFree
	}

	successURL := params.SuccessURL
	if successURL == "" {
		successURL = c.successURL
	}
	cancelURL := params.CancelURL
	if cancelURL == "" {
		cancelURL = c.cancelURL
	}

	stripe.Key = c.apiKey

	session, err := stripeCheckoutSession.New(&stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(c.currency),
					UnitAmount: stripe.Int64(*params.Category.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%s - %s", params.Event.Name, params.Category.Name)),
					},
				},
			},
		},
		ClientReferenceID: stripe.String(params.Participant.ID.String()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe checkout session: %w", err)
	}

	if err := c.repo.SetParticipantPaymentRef(ctx, params.Participant.ID, session.ID); err != nil {
		return "", fmt.Errorf("failed to record payment reference: %w", err)
	}

	c.logger.Info("Checkout session created", "participant_id", params.Participant.ID, "session_id", session.ID)
	return session.URL, nil
}
