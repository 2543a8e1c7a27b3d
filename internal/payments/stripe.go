package payments

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Stripe creates real PaymentIntents. Confirmation happens in the browser;
// Confirm reads back the resulting status.
type Stripe struct {
	api            *client.API
	publishableKey string
}

// NewStripe builds a processor. Nil backends use Stripe's defaults.
func NewStripe(secretKey, publishableKey string, backends *stripe.Backends) *Stripe {
	return &Stripe{
		api:            client.New(secretKey, backends),
		publishableKey: publishableKey,
	}
}

// Backends routes API calls to url and logs through log.
func Backends(url string, log zerolog.Logger) *stripe.Backends {
	cfg := &stripe.BackendConfig{
		LeveledLogger:     stripeLogger{log},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if url != "" {
		cfg.URL = stripe.String(url)
	}
	return &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
}

func (s *Stripe) PublishableKey() string {
	return s.publishableKey
}

func (s *Stripe) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	params, err := params.validate()
	if err != nil {
		return nil, err
	}

	p := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.Amount),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	p.Context = ctx
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	p.AddMetadata("company", Company)

	pi, err := s.api.PaymentIntents.New(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create payment intent")
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       Status(pi.Status),
	}, nil
}

func (s *Stripe) Confirm(ctx context.Context, intentID string) (*Confirmation, error) {
	p := &stripe.PaymentIntentParams{}
	p.Context = ctx
	pi, err := s.api.PaymentIntents.Get(intentID, p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get payment intent %s", intentID)
	}

	conf := &Confirmation{ID: pi.ID, Status: StatusFailed}
	if pi.Status == stripe.PaymentIntentStatusSucceeded {
		conf.Status = StatusSucceeded
	}
	if pi.LatestCharge != nil {
		conf.ChargeID = pi.LatestCharge.ID
	}
	return conf, nil
}

// stripeLogger adapts zerolog to stripe.LeveledLoggerInterface.
type stripeLogger struct {
	log zerolog.Logger
}

func (l stripeLogger) Debugf(format string, v ...any) { l.log.Debug().Msgf(format, v...) }
func (l stripeLogger) Infof(format string, v ...any)  { l.log.Debug().Msgf(format, v...) }
func (l stripeLogger) Warnf(format string, v ...any)  { l.log.Warn().Msgf(format, v...) }
func (l stripeLogger) Errorf(format string, v ...any) { l.log.Error().Msgf(format, v...) }
