package services

import (
	"encoding/base64"
	"errors"
	"fmt"

	stripeclient "github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"yetkaz/internal/apperrors"
	"yetkaz/internal/config"
	"yetkaz/internal/models"
	"yetkaz/internal/repositories"
)

// InitiateResult is handed to the client to start a checkout.
type InitiateResult struct {
	PaymentID   string                 `json:"payment_id"`
	RedirectURL string                 `json:"redirect_url"`
	Amount      float64                `json:"amount"`
	Provider    models.PaymentProvider `json:"provider"`
}

// PaymentStatusResult combines the latest payment with the order's mirror.
type PaymentStatusResult struct {
	OrderID            string               `json:"order_id"`
	OrderPaymentStatus models.PaymentStatus `json:"order_payment_status"`
	Payment            *models.Payment      `json:"payment,omitempty"`
}

// PaymentService owns Payment rows and the shared settlement path every
// provider adapter funnels into.
type PaymentService struct {
	payments repositories.PaymentRepository
	orders   repositories.OrderRepository
	cfg      config.Config
	log      *zap.SugaredLogger
	stripe   *stripeclient.API // nil when no StripeSecretKey is configured
}

// NewPaymentService creates a new PaymentService. The card gateway client is
// built here once so concurrent requests never race on it.
func NewPaymentService(
	payments repositories.PaymentRepository,
	orders repositories.OrderRepository,
	cfg config.Config,
	log *zap.SugaredLogger,
) *PaymentService {
	s := &PaymentService{payments: payments, orders: orders, cfg: cfg, log: log}
	if cfg.StripeSecretKey != "" {
		api := &stripeclient.API{}
		api.Init(cfg.StripeSecretKey, nil)
		s.stripe = api
	}
	return s
}

// Initiate starts (or resumes) a checkout for the order with the chosen
// provider. An existing PENDING payment for the same order+provider is reused
// so repeated clicks cannot spam duplicate rows. The amount snapshots the
// order total at initiation time.
func (s *PaymentService) Initiate(orderID, callerID string, provider models.PaymentProvider) (*InitiateResult, error) {
	if !provider.Valid() {
		return nil, apperrors.Validation("unknown payment provider %q", provider)
	}
	if provider == models.ProviderSimulator && s.cfg.Production() {
		return nil, apperrors.Validation("unknown payment provider %q", provider)
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

	payment, err := s.payments.LatestPending(orderID, provider)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		payment = &models.Payment{
			OrderID:  orderID,
			Provider: provider,
			Amount:   order.TotalPrice,
			Status:   models.PaymentStatusPending,
		}
		if err := s.payments.Create(payment); err != nil {
			return nil, err
		}
	}

	payment.PayURL = s.redirectURL(payment)
	if err := s.payments.Update(payment); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateFields(orderID, map[string]any{"payment_method": string(provider)}); err != nil {
		return nil, err
	}

	s.log.Infow("payment initiated", "payment_id", payment.ID, "order_id", orderID, "provider", provider)
	return &InitiateResult{
		PaymentID:   payment.ID,
		RedirectURL: payment.PayURL,
		Amount:      payment.Amount,
		Provider:    provider,
	}, nil
}

// redirectURL builds the provider checkout link. When the provider's
// credentials are not configured the simulator link is used instead, so
// development setups work without real merchant accounts.
func (s *PaymentService) redirectURL(p *models.Payment) string {
	switch p.Provider {
	case models.ProviderClick:
		if s.cfg.ClickMerchantID != "" {
			return fmt.Sprintf("https://my.click.uz/services/pay?merchant_id=%s&amount=%.2f&transaction_param=%s&return_url=%s/payment/success",
				s.cfg.ClickMerchantID, p.Amount, p.OrderID, s.cfg.PublicBaseURL)
		}
	case models.ProviderPayme:
		if s.cfg.PaymeMerchantID != "" {
			params := fmt.Sprintf("m=%s;ac.order_id=%s;a=%d",
				s.cfg.PaymeMerchantID, p.OrderID, MinorUnits(p.Amount, s.cfg.Currency))
			return "https://checkout.paycom.uz/" + base64.StdEncoding.EncodeToString([]byte(params))
		}
	case models.ProviderStripe:
		if s.cfg.StripeSecretKey != "" {
			return fmt.Sprintf("%s/checkout/%s", s.cfg.PublicBaseURL, p.ID)
		}
	}
	return s.simulatorURL(p.ID)
}

func (s *PaymentService) simulatorURL(paymentID string) string {
	return fmt.Sprintf("%s/api/v1/payments/simulate/%s/success", s.cfg.PublicBaseURL, paymentID)
}

// MarkPaid settles a payment through the repository's atomic path and emits
// the payment_received event on the first settlement only. Replays return
// the payment unchanged with no events.
func (s *PaymentService) MarkPaid(paymentID, externalID, metadata string) (*models.Payment, []Event, error) {
	payment, settled, err := s.payments.MarkPaid(paymentID, externalID, metadata)
	if err != nil {
		return nil, nil, err
	}
	if !settled {
		return payment, nil, nil
	}
	s.log.Infow("payment settled", "payment_id", payment.ID, "order_id", payment.OrderID, "provider", payment.Provider)
	events := []Event{{
		Type:    EventPaymentReceived,
		OrderID: payment.OrderID,
		Data:    map[string]any{"payment_id": payment.ID, "amount": payment.Amount, "provider": payment.Provider},
	}}
	return payment, events, nil
}

// Status returns the latest payment for the order plus the order's own
// payment status mirror.
func (s *PaymentService) Status(orderID, callerID, role string) (*PaymentStatusResult, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.NotFound("order")
	}
	if order.UserID != callerID && role != models.RoleAdmin {
		return nil, apperrors.Forbidden("order belongs to another user")
	}
	payment, err := s.payments.LatestByOrder(orderID)
	if err != nil {
		return nil, err
	}
	return &PaymentStatusResult{
		OrderID:            orderID,
		OrderPaymentStatus: order.PaymentStatus,
		Payment:            payment,
	}, nil
}

// Simulate forces a PENDING payment straight to PAID without any external
// call and returns the success URL to redirect the browser to. The whole
// path is unavailable in production.
func (s *PaymentService) Simulate(paymentID string) (string, []Event, error) {
	if s.cfg.Production() {
		return "", nil, apperrors.NotFound("resource")
	}
	payment, err := s.payments.GetByID(paymentID)
	if err != nil {
		return "", nil, err
	}
	if payment == nil {
		return "", nil, apperrors.NotFound("payment")
	}
	_, events, err := s.MarkPaid(paymentID, "sim-"+paymentID, `{"simulated":true}`)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderAlreadyPaid) {
			return "", nil, apperrors.InvalidState("order is already paid")
		}
		return "", nil, err
	}
	return fmt.Sprintf("%s/payment/success?order=%s", s.cfg.PublicBaseURL, payment.OrderID), events, nil
}
