// Package payments creates and confirms payment intents, either against
// Stripe or with a simulated checkout in demo mode.
package payments

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// Company is recorded in the metadata of every intent.
const Company = "PromptPlace"

const defaultCurrency = "usd"

type Status string

const (
	StatusRequiresPaymentMethod Status = "requires_payment_method"
	StatusRequiresConfirmation  Status = "requires_confirmation"
	StatusSucceeded             Status = "succeeded"
	StatusCanceled              Status = "canceled"
	StatusFailed                Status = "failed"
)

// ErrInvalidAmount is returned for non-positive amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// IntentParams describe a charge. Amount is in the smallest currency unit.
type IntentParams struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (p IntentParams) validate() (IntentParams, error) {
	if p.Amount <= 0 {
		return p, ErrInvalidAmount
	}
	p.Currency = strings.ToLower(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = defaultCurrency
	}
	return p, nil
}

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       Status `json:"status"`
}

type Confirmation struct {
	ID       string `json:"id"`
	Status   Status `json:"status"`
	ChargeID string `json:"chargeId,omitempty"`
}

// Processor is implemented by Demo and Stripe.
type Processor interface {
	PublishableKey() string
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	Confirm(ctx context.Context, intentID string) (*Confirmation, error)
}
