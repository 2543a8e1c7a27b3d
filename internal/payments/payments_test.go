package payments

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoCreateIntent(t *testing.T) {
	d := &Demo{}
	assert.Equal(t, "pk_demo_fake_key", d.PublishableKey())

	intent, err := d.CreateIntent(context.Background(), IntentParams{Amount: 1999})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(intent.ID, "demo_pi_"))
	assert.True(t, strings.HasPrefix(intent.ClientSecret, "demo_secret_"))
	assert.Equal(t, int64(1999), intent.Amount)
	assert.Equal(t, "usd", intent.Currency)
	assert.Equal(t, StatusRequiresPaymentMethod, intent.Status)

	other, err := d.CreateIntent(context.Background(), IntentParams{Amount: 1, Currency: " EUR "})
	require.NoError(t, err)
	assert.NotEqual(t, intent.ID, other.ID)
	assert.Equal(t, "eur", other.Currency)

	_, err = d.CreateIntent(context.Background(), IntentParams{Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDemoConfirm(t *testing.T) {
	d := &Demo{Delay: 10 * time.Millisecond}

	start := time.Now()
	conf, err := d.Confirm(context.Background(), "demo_pi_abc")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.Equal(t, "demo_pi_abc", conf.ID)
	assert.Equal(t, StatusSucceeded, conf.Status)
	assert.True(t, strings.HasPrefix(conf.ChargeID, "demo_ch_"))

	slow := &Demo{Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = slow.Confirm(ctx, "demo_pi_abc")
	assert.ErrorIs(t, err, context.Canceled)
}

type stripeCall struct {
	method string
	path   string
	form   url.Values
}

// fakeStripe serves canned JSON per "METHOD path" and records each call.
func fakeStripe(t *testing.T, responses map[string]string) (*Stripe, *[]stripeCall) {
	t.Helper()
	var calls []stripeCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		calls = append(calls, stripeCall{method: r.Method, path: r.URL.Path, form: form})

		w.Header().Set("Content-Type", "application/json")
		resp, ok := responses[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","message":"No such payment_intent"}}`)
			return
		}
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)

	return NewStripe("sk_test_123", "pk_test_123", Backends(srv.URL, zerolog.Nop())), &calls
}

func TestStripeCreateIntent(t *testing.T) {
	s, calls := fakeStripe(t, map[string]string{
		"POST /v1/payment_intents": `{
			"id": "pi_123",
			"object": "payment_intent",
			"client_secret": "pi_123_secret_456",
			"amount": 2500,
			"currency": "usd",
			"status": "requires_payment_method"
		}`,
	})
	assert.Equal(t, "pk_test_123", s.PublishableKey())

	intent, err := s.CreateIntent(context.Background(), IntentParams{
		Amount:   2500,
		Metadata: map[string]string{"promptId": "p1"},
	})
	require.NoError(t, err)
	assert.Equal(t, &Intent{
		ID:           "pi_123",
		ClientSecret: "pi_123_secret_456",
		Amount:       2500,
		Currency:     "usd",
		Status:       StatusRequiresPaymentMethod,
	}, intent)

	require.Len(t, *calls, 1)
	form := (*calls)[0].form
	assert.Equal(t, "2500", form.Get("amount"))
	assert.Equal(t, "usd", form.Get("currency"))
	assert.Equal(t, "true", form.Get("automatic_payment_methods[enabled]"))
	assert.Equal(t, "PromptPlace", form.Get("metadata[company]"))
	assert.Equal(t, "p1", form.Get("metadata[promptId]"))

	_, err = s.CreateIntent(context.Background(), IntentParams{Amount: -5})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Len(t, *calls, 1)
}

func TestStripeConfirm(t *testing.T) {
	s, calls := fakeStripe(t, map[string]string{
		"GET /v1/payment_intents/pi_ok": `{
			"id": "pi_ok",
			"object": "payment_intent",
			"status": "succeeded",
			"latest_charge": "ch_789"
		}`,
		"GET /v1/payment_intents/pi_pending": `{
			"id": "pi_pending",
			"object": "payment_intent",
			"status": "processing"
		}`,
	})

	conf, err := s.Confirm(context.Background(), "pi_ok")
	require.NoError(t, err)
	assert.Equal(t, &Confirmation{ID: "pi_ok", Status: StatusSucceeded, ChargeID: "ch_789"}, conf)

	conf, err = s.Confirm(context.Background(), "pi_pending")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, conf.Status)
	assert.Empty(t, conf.ChargeID)

	_, err = s.Confirm(context.Background(), "pi_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pi_missing")

	assert.Len(t, *calls, 3)
}
