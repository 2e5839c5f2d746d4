package services

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"yetkaz/internal/apperrors"
	"yetkaz/internal/models"
	"yetkaz/internal/repositories"
)

// StripeIntentResult is returned to the client confirming the card payment.
type StripeIntentResult struct {
	PaymentID       string `json:"payment_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
}

// CreateStripeIntent creates a card-gateway payment intent for the order and
// stores the intent id on the payment row so the later webhook can find it.
// Intent amounts are in the gateway's minor unit; zero-decimal currencies
// are not scaled.
func (s *PaymentService) CreateStripeIntent(orderID, callerID string) (*StripeIntentResult, error) {
	api := s.stripe
	if api == nil {
		return nil, apperrors.Validation("card gateway is not configured")
	}
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.NotFound("order")
	}
	if order.UserID != callerID {
		return nil, apperrors.Forbidden("order belongs to another user")
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil, apperrors.InvalidState("order is already paid")
	}

	payment, err := s.payments.LatestPending(orderID, models.ProviderStripe)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		payment = &models.Payment{
			OrderID:  orderID,
			Provider: models.ProviderStripe,
			Amount:   order.TotalPrice,
			Status:   models.PaymentStatusPending,
		}
		if err := s.payments.Create(payment); err != nil {
			return nil, err
		}
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(payment.Amount, s.cfg.Currency)),
		Currency: stripe.String(strings.ToLower(s.cfg.Currency)),
	}
	params.AddMetadata("order_id", orderID)
	params.AddMetadata("payment_id", payment.ID)
	intent, err := api.PaymentIntents.New(params)
	if err != nil {
		return nil, apperrors.Internal("card gateway rejected intent creation", err)
	}

	payment.ExternalID = intent.ID
	if err := s.payments.Update(payment); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateFields(orderID, map[string]any{"payment_method": string(models.ProviderStripe)}); err != nil {
		return nil, err
	}

	return &StripeIntentResult{
		PaymentID:       payment.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
	}, nil
}

// HandleStripeWebhook verifies the gateway signature over the raw body before
// trusting anything in it; an unverified payload is rejected with no state
// change. Only payment_intent.succeeded settles; every other event type is
// acknowledged and ignored.
func (s *PaymentService) HandleStripeWebhook(payload []byte, signature string) ([]Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.StripeWebhookSecret)
	if err != nil {
		return nil, apperrors.ProviderProtocol("webhook signature verification failed", err)
	}

	if event.Type != "payment_intent.succeeded" {
		s.log.Debugw("ignoring card gateway event", "type", event.Type)
		return nil, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, apperrors.ProviderProtocol("malformed payment_intent payload", err)
	}

	payment, err := s.payments.GetByExternalID(models.ProviderStripe, intent.ID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		// Unknown intent: acknowledge so the gateway stops retrying, but
		// leave a trace for reconciliation.
		s.log.Warnw("card gateway webhook for unknown intent", "intent_id", intent.ID)
		return nil, nil
	}

	_, events, err := s.MarkPaid(payment.ID, intent.ID, string(event.Data.Raw))
	if err != nil {
		if errors.Is(err, repositories.ErrOrderAlreadyPaid) {
			// The order settled through another provider; acknowledge so
			// the gateway stops retrying, but leave a trace for
			// reconciliation.
			s.log.Warnw("card gateway webhook for an already settled order",
				"payment_id", payment.ID, "order_id", payment.OrderID, "intent_id", intent.ID)
			return nil, nil
		}
		return nil, err
	}
	return events, nil
}
