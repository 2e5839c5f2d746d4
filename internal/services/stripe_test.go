package services_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"yetkaz/internal/apperrors"
	"yetkaz/internal/config"
	"yetkaz/internal/models"
)

const webhookSecret = "whsec_test"

// signPayload builds a gateway signature header over the raw payload,
// the same scheme ConstructEvent verifies.
func signPayload(payload []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// api_version must match the pinned client version or ConstructEvent rejects
// the event outright.
func intentSucceededPayload(intentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_1","api_version":"2023-10-16","type":"payment_intent.succeeded","data":{"object":{"id":"%s"}}}`, intentID))
}

func TestStripeWebhook_RejectsBadSignature(t *testing.T) {
	f := newPaymentFixture(t, config.Config{StripeWebhookSecret: webhookSecret})
	payload := intentSucceededPayload("pi_1")

	_, err := f.svc.HandleStripeWebhook(payload, signPayload(payload, "whsec_wrong", time.Now()))
	assertErrorKind(t, err, apperrors.KindProviderProtocol)

	// A tampered body invalidates a previously valid signature.
	sig := signPayload(payload, webhookSecret, time.Now())
	_, err = f.svc.HandleStripeWebhook(intentSucceededPayload("pi_other"), sig)
	assertErrorKind(t, err, apperrors.KindProviderProtocol)
}

func TestStripeWebhook_SettlesKnownIntent(t *testing.T) {
	f := newPaymentFixture(t, config.Config{StripeWebhookSecret: webhookSecret})
	order := f.seedOrder(t, 42000)
	res, err := f.svc.Initiate(order.ID, "user-1", models.ProviderStripe)
	assert.NoError(t, err)

	// The intent id lands on the payment when the intent is created; stamp it
	// directly since no gateway is reachable in tests.
	payment, err := f.payments.GetByID(res.PaymentID)
	assert.NoError(t, err)
	payment.ExternalID = "pi_42"
	assert.NoError(t, f.payments.Update(payment))

	payload := intentSucceededPayload("pi_42")
	events, err := f.svc.HandleStripeWebhook(payload, signPayload(payload, webhookSecret, time.Now()))
	assert.NoError(t, err)
	assert.Len(t, events, 1)

	stored, err := f.orders.GetByID(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)

	// Redelivery is acknowledged without re-emitting the settlement event.
	events, err = f.svc.HandleStripeWebhook(payload, signPayload(payload, webhookSecret, time.Now()))
	assert.NoError(t, err)
	assert.Empty(t, events)
}

func TestStripeWebhook_AcksWhenOrderSettledElsewhere(t *testing.T) {
	f := newPaymentFixture(t, config.Config{StripeWebhookSecret: webhookSecret})
	order := f.seedOrder(t, 42000)
	res, err := f.svc.Initiate(order.ID, "user-1", models.ProviderStripe)
	assert.NoError(t, err)
	payment, err := f.payments.GetByID(res.PaymentID)
	assert.NoError(t, err)
	payment.ExternalID = "pi_late"
	assert.NoError(t, f.payments.Update(payment))

	// A wallet payment settles the order before the card webhook lands.
	wallet, err := f.svc.Initiate(order.ID, "user-1", models.ProviderPayme)
	assert.NoError(t, err)
	_, _, err = f.svc.MarkPaid(wallet.PaymentID, "payme-first", "")
	assert.NoError(t, err)

	payload := intentSucceededPayload("pi_late")
	events, err := f.svc.HandleStripeWebhook(payload, signPayload(payload, webhookSecret, time.Now()))
	assert.NoError(t, err)
	assert.Empty(t, events)

	// The card payment did not settle on top of the wallet one.
	stored, err := f.payments.GetByID(res.PaymentID)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
}

func TestStripeWebhook_IgnoresOtherEventsAndUnknownIntents(t *testing.T) {
	f := newPaymentFixture(t, config.Config{StripeWebhookSecret: webhookSecret})

	payload := []byte(`{"id":"evt_2","api_version":"2023-10-16","type":"payment_intent.created","data":{"object":{"id":"pi_9"}}}`)
	events, err := f.svc.HandleStripeWebhook(payload, signPayload(payload, webhookSecret, time.Now()))
	assert.NoError(t, err)
	assert.Empty(t, events)

	payload = intentSucceededPayload("pi_unknown")
	events, err = f.svc.HandleStripeWebhook(payload, signPayload(payload, webhookSecret, time.Now()))
	assert.NoError(t, err)
	assert.Empty(t, events)
}
