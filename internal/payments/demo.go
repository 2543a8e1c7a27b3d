package payments

import (
	"context"
	"time"

	"github.com/segmentio/ksuid"
)

// DemoPublishableKey is handed to the checkout page in demo mode.
const DemoPublishableKey = "pk_demo_fake_key"

// DefaultDemoDelay simulates the network round trip of a confirmation.
const DefaultDemoDelay = 800 * time.Millisecond

// Demo is a simulated checkout. Every confirmation succeeds.
type Demo struct {
	Delay time.Duration
}

func (d *Demo) PublishableKey() string {
	return DemoPublishableKey
}

func (d *Demo) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	params, err := params.validate()
	if err != nil {
		return nil, err
	}
	id := ksuid.New().String()
	return &Intent{
		ID:           "demo_pi_" + id,
		ClientSecret: "demo_secret_" + id,
		Amount:       params.Amount,
		Currency:     params.Currency,
		Status:       StatusRequiresPaymentMethod,
	}, nil
}

func (d *Demo) Confirm(ctx context.Context, intentID string) (*Confirmation, error) {
	if d.Delay > 0 {
		timer := time.NewTimer(d.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return &Confirmation{
		ID:       intentID,
		Status:   StatusSucceeded,
		ChargeID: "demo_ch_" + ksuid.New().String(),
	}, nil
}
