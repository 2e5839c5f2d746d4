package services_test

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"yetkaz/internal/apperrors"
	"yetkaz/internal/config"
	"yetkaz/internal/models"
	"yetkaz/internal/repositories"
	"yetkaz/internal/services"
)

type paymentFixture struct {
	orders   *repositories.MockOrderRepository
	payments *repositories.MockPaymentRepository
	svc      *services.PaymentService
}

func newPaymentFixture(t *testing.T, cfg config.Config) *paymentFixture {
	t.Helper()
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost:8080"
	}
	if cfg.Currency == "" {
		cfg.Currency = "UZS"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	orders := repositories.NewMockOrderRepository()
	payments := repositories.NewMockPaymentRepository(orders)
	return &paymentFixture{
		orders:   orders,
		payments: payments,
		svc:      services.NewPaymentService(payments, orders, cfg, zap.NewNop().Sugar()),
	}
}

func (f *paymentFixture) seedOrder(t *testing.T, total float64) *models.Order {
	t.Helper()
	order := &models.Order{
		UserID:        "user-1",
		TotalPrice:    total,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
	}
	assert.NoError(t, f.orders.Create(order))
	return order
}

func TestPaymentInitiate_CreatesAndReusesPending(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 75000)

	first, err := f.svc.Initiate(order.ID, "user-1", models.ProviderClick)
	assert.NoError(t, err)
	assert.Equal(t, float64(75000), first.Amount)
	assert.NotEmpty(t, first.RedirectURL)

	// A second initiation reuses the pending row instead of creating another.
	second, err := f.svc.Initiate(order.ID, "user-1", models.ProviderClick)
	assert.NoError(t, err)
	assert.Equal(t, first.PaymentID, second.PaymentID)

	// The chosen method is stamped onto the order.
	stored, err := f.orders.GetByID(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, "click", stored.PaymentMethod)
}

func TestPaymentInitiate_Rejections(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 10000)

	_, err := f.svc.Initiate(order.ID, "user-1", models.PaymentProvider("paypal"))
	assertErrorKind(t, err, apperrors.KindValidation)

	_, err = f.svc.Initiate(order.ID, "someone-else", models.ProviderClick)
	assertErrorKind(t, err, apperrors.KindForbidden)

	_, err = f.svc.Initiate("missing-order", "user-1", models.ProviderClick)
	assertErrorKind(t, err, apperrors.KindNotFound)

	assert.NoError(t, f.orders.SetPaymentStatus(order.ID, models.PaymentStatusPaid))
	_, err = f.svc.Initiate(order.ID, "user-1", models.ProviderClick)
	assertErrorKind(t, err, apperrors.KindInvalidState)
}

func TestPaymentInitiate_SimulatorDisabledInProduction(t *testing.T) {
	f := newPaymentFixture(t, config.Config{Environment: "production"})
	order := f.seedOrder(t, 10000)

	_, err := f.svc.Initiate(order.ID, "user-1", models.ProviderSimulator)
	assertErrorKind(t, err, apperrors.KindValidation)
}

func TestPaymentInitiate_RedirectURLsPerProvider(t *testing.T) {
	f := newPaymentFixture(t, config.Config{
		ClickMerchantID: "click-m",
		PaymeMerchantID: "payme-m",
	})
	order := f.seedOrder(t, 75000)

	click, err := f.svc.Initiate(order.ID, "user-1", models.ProviderClick)
	assert.NoError(t, err)
	assert.Contains(t, click.RedirectURL, "my.click.uz")
	assert.Contains(t, click.RedirectURL, "transaction_param="+order.ID)

	payme, err := f.svc.Initiate(order.ID, "user-1", models.ProviderPayme)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(payme.RedirectURL, "https://checkout.paycom.uz/"))

	// No stripe credentials configured: falls back to the simulator link.
	card, err := f.svc.Initiate(order.ID, "user-1", models.ProviderStripe)
	assert.NoError(t, err)
	assert.Contains(t, card.RedirectURL, "/payments/simulate/")
}

func TestPaymentMarkPaid_Idempotent(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 50000)
	res, err := f.svc.Initiate(order.ID, "user-1", models.ProviderClick)
	assert.NoError(t, err)

	first, events, err := f.svc.MarkPaid(res.PaymentID, "ext-1", "")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, first.Status)
	assert.NotNil(t, first.PaidAt)
	if assert.Len(t, events, 1) {
		assert.Equal(t, services.EventPaymentReceived, events[0].Type)
	}

	// The order mirror flipped in the same settlement.
	stored, err := f.orders.GetByID(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)

	// Second call is a no-op returning the same settled record, and the
	// event is not emitted again.
	second, replayEvents, err := f.svc.MarkPaid(res.PaymentID, "ext-other", "")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "ext-1", second.ExternalID)
	assert.True(t, first.PaidAt.Equal(*second.PaidAt))
	assert.Empty(t, replayEvents)
}

func TestPaymentMarkPaid_SecondProviderRejected(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 75000)

	// The customer opened both checkouts before either provider confirmed.
	_, err := f.svc.Initiate(order.ID, "user-1", models.ProviderClick)
	assert.NoError(t, err)
	_, err = f.svc.Initiate(order.ID, "user-1", models.ProviderPayme)
	assert.NoError(t, err)

	resp, events := f.svc.HandleClickCallback(services.ClickCallbackInput{
		ClickTransID:    "ct-race",
		MerchantTransID: order.ID,
		Status:          "success",
	})
	assert.Equal(t, services.ClickCodeOK, resp.Error)
	assert.Len(t, events, 1)

	// The wallet provider confirms second; its perform must not double-settle.
	payme, events := paymeCall(t, f, services.PaymePerform, map[string]any{
		"id":      "payme-race",
		"amount":  7500000,
		"account": map[string]any{"order_id": order.ID},
	})
	if assert.NotNil(t, payme.Error) {
		assert.Equal(t, services.PaymeErrAlreadyPaid, payme.Error.Code)
	}
	assert.Empty(t, events)

	clickPaid, err := f.payments.GetByExternalID(models.ProviderClick, "ct-race")
	assert.NoError(t, err)
	if assert.NotNil(t, clickPaid) {
		assert.Equal(t, models.PaymentStatusPaid, clickPaid.Status)
	}
}

func TestClickCallback_OrderSettledByOtherProvider(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 50000)

	_, err := f.svc.Initiate(order.ID, "user-1", models.ProviderClick)
	assert.NoError(t, err)
	payme, err := f.svc.Initiate(order.ID, "user-1", models.ProviderPayme)
	assert.NoError(t, err)
	_, _, err = f.svc.MarkPaid(payme.PaymentID, "payme-won", "")
	assert.NoError(t, err)

	resp, events := f.svc.HandleClickCallback(services.ClickCallbackInput{
		ClickTransID:    "ct-late",
		MerchantTransID: order.ID,
		Status:          "success",
	})
	assert.Equal(t, services.ClickCodeFailed, resp.Error)
	assert.Equal(t, "Order already paid", resp.ErrorNote)
	assert.Empty(t, events)

	// The losing attempt is closed out so it cannot be retried.
	pending, err := f.payments.LatestPending(order.ID, models.ProviderClick)
	assert.NoError(t, err)
	assert.Nil(t, pending)
	stored, err := f.orders.GetByID(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
}

func TestPaymentStatus(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 50000)
	res, err := f.svc.Initiate(order.ID, "user-1", models.ProviderClick)
	assert.NoError(t, err)

	status, err := f.svc.Status(order.ID, "user-1", models.RoleCustomer)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, status.OrderPaymentStatus)
	if assert.NotNil(t, status.Payment) {
		assert.Equal(t, res.PaymentID, status.Payment.ID)
	}

	_, err = f.svc.Status(order.ID, "stranger", models.RoleCustomer)
	assertErrorKind(t, err, apperrors.KindForbidden)

	// Admins can read any order's payment state.
	_, err = f.svc.Status(order.ID, "stranger", models.RoleAdmin)
	assert.NoError(t, err)
}

func TestPaymentSimulate(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 50000)
	res, err := f.svc.Initiate(order.ID, "user-1", models.ProviderSimulator)
	assert.NoError(t, err)

	url, events, err := f.svc.Simulate(res.PaymentID)
	assert.NoError(t, err)
	assert.Contains(t, url, "order="+order.ID)
	assert.Len(t, events, 1)

	stored, err := f.orders.GetByID(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
}

func TestPaymentSimulate_HiddenInProduction(t *testing.T) {
	f := newPaymentFixture(t, config.Config{Environment: "production"})
	_, _, err := f.svc.Simulate("whatever")
	assertErrorKind(t, err, apperrors.KindNotFound)
}

func TestClickCallback_SuccessAndReplay(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 50000)
	_, err := f.svc.Initiate(order.ID, "user-1", models.ProviderClick)
	assert.NoError(t, err)

	in := services.ClickCallbackInput{
		ClickTransID:    "ct-100",
		MerchantTransID: order.ID,
		Status:          "success",
	}
	resp, events := f.svc.HandleClickCallback(in)
	assert.Equal(t, services.ClickCodeOK, resp.Error)
	assert.Len(t, events, 1)

	stored, err := f.orders.GetByID(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)

	// The provider retries the same callback; it is acknowledged, not re-settled.
	resp, events = f.svc.HandleClickCallback(in)
	assert.Equal(t, services.ClickCodeOK, resp.Error)
	assert.Empty(t, events)
}

func TestClickCallback_UnknownReference(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})

	resp, _ := f.svc.HandleClickCallback(services.ClickCallbackInput{
		ClickTransID:    "ct-1",
		MerchantTransID: "no-such-order",
		Status:          "success",
	})
	assert.Equal(t, services.ClickCodeNotFound, resp.Error)
}

func TestClickCallback_Failure(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 50000)
	res, err := f.svc.Initiate(order.ID, "user-1", models.ProviderClick)
	assert.NoError(t, err)

	resp, events := f.svc.HandleClickCallback(services.ClickCallbackInput{
		ClickTransID:    "ct-2",
		MerchantTransID: order.ID,
		Status:          "error",
	})
	assert.Equal(t, services.ClickCodeFailed, resp.Error)
	assert.Empty(t, events)

	payment, err := f.payments.GetByID(res.PaymentID)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	stored, err := f.orders.GetByID(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, stored.PaymentStatus)
}

func paymeCall(t *testing.T, f *paymentFixture, method services.PaymeMethod, params any) (services.PaymeResponse, []services.Event) {
	t.Helper()
	raw, err := json.Marshal(params)
	assert.NoError(t, err)
	return f.svc.HandlePaymeRequest(services.PaymeRequest{Method: method, Params: raw, ID: 1})
}

func TestPaymeCheckPerform(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 75000)

	// Amount is in tiyin (minor units).
	resp, _ := paymeCall(t, f, services.PaymeCheckPerform, map[string]any{
		"amount":  7500000,
		"account": map[string]any{"order_id": order.ID},
	})
	assert.Nil(t, resp.Error)

	resp, _ = paymeCall(t, f, services.PaymeCheckPerform, map[string]any{
		"amount":  123,
		"account": map[string]any{"order_id": order.ID},
	})
	if assert.NotNil(t, resp.Error) {
		assert.Equal(t, services.PaymeErrInvalidAmount, resp.Error.Code)
	}

	resp, _ = paymeCall(t, f, services.PaymeCheckPerform, map[string]any{
		"amount":  7500000,
		"account": map[string]any{"order_id": "missing"},
	})
	if assert.NotNil(t, resp.Error) {
		assert.Equal(t, services.PaymeErrOrderNotFound, resp.Error.Code)
	}

	assert.NoError(t, f.orders.SetPaymentStatus(order.ID, models.PaymentStatusPaid))
	resp, _ = paymeCall(t, f, services.PaymeCheckPerform, map[string]any{
		"amount":  7500000,
		"account": map[string]any{"order_id": order.ID},
	})
	if assert.NotNil(t, resp.Error) {
		assert.Equal(t, services.PaymeErrAlreadyPaid, resp.Error.Code)
	}
}

func TestPaymePerform_SettlesAndReplays(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 75000)
	_, err := f.svc.Initiate(order.ID, "user-1", models.ProviderPayme)
	assert.NoError(t, err)

	params := map[string]any{
		"id":      "payme-tx-1",
		"amount":  7500000,
		"account": map[string]any{"order_id": order.ID},
	}
	resp, events := paymeCall(t, f, services.PaymePerform, params)
	assert.Nil(t, resp.Error)
	assert.Len(t, events, 1)
	result := resp.Result.(map[string]any)
	assert.Equal(t, 2, result["state"])

	stored, err := f.orders.GetByID(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)

	// Replay with the same transaction id returns the settled row again.
	replay, events := paymeCall(t, f, services.PaymePerform, params)
	assert.Nil(t, replay.Error)
	assert.Empty(t, events)
	replayResult := replay.Result.(map[string]any)
	assert.Equal(t, result["transaction"], replayResult["transaction"])
	assert.Equal(t, result["perform_time"], replayResult["perform_time"])
}

func TestPaymePerform_NoPendingPayment(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 75000)

	resp, _ := paymeCall(t, f, services.PaymePerform, map[string]any{
		"id":      "payme-tx-2",
		"amount":  7500000,
		"account": map[string]any{"order_id": order.ID},
	})
	if assert.NotNil(t, resp.Error) {
		assert.Equal(t, services.PaymeErrTxNotFound, resp.Error.Code)
	}
}

func TestPaymeCancel(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 75000)
	res, err := f.svc.Initiate(order.ID, "user-1", models.ProviderPayme)
	assert.NoError(t, err)

	// The cancel addresses the provider's transaction id, which we only learn
	// once a perform or callback has recorded it. Stamp it directly here.
	payment, err := f.payments.GetByID(res.PaymentID)
	assert.NoError(t, err)
	payment.ExternalID = "payme-tx-3"
	assert.NoError(t, f.payments.Update(payment))

	resp, _ := paymeCall(t, f, services.PaymeCancel, map[string]any{"id": "payme-tx-3", "reason": 5})
	assert.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	assert.Equal(t, -1, result["state"])

	stored, err := f.payments.GetByID(res.PaymentID)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
}

func TestPaymeCancel_SettledTransactionRejected(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 75000)
	res, err := f.svc.Initiate(order.ID, "user-1", models.ProviderPayme)
	assert.NoError(t, err)
	_, _, err = f.svc.MarkPaid(res.PaymentID, "payme-tx-4", "")
	assert.NoError(t, err)

	resp, _ := paymeCall(t, f, services.PaymeCancel, map[string]any{"id": "payme-tx-4", "reason": 5})
	if assert.NotNil(t, resp.Error) {
		assert.Equal(t, services.PaymeErrAlreadyPaid, resp.Error.Code)
	}
}

func TestPaymeUnknownMethod(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	resp, _ := f.svc.HandlePaymeRequest(services.PaymeRequest{Method: "GetStatement", ID: 7})
	if assert.NotNil(t, resp.Error) {
		assert.Equal(t, 7, resp.ID)
		assert.NotZero(t, resp.Error.Code)
	}
}

func clickSign(clickTransID, merchantTransID, secret, signTime string) string {
	sum := md5.Sum([]byte(clickTransID + merchantTransID + secret + signTime))
	return hex.EncodeToString(sum[:])
}

func TestClickCallback_SignatureChecked(t *testing.T) {
	const secret = "click-secret"
	f := newPaymentFixture(t, config.Config{ClickSecretKey: secret})
	order := f.seedOrder(t, 50000)
	_, err := f.svc.Initiate(order.ID, "user-1", models.ProviderClick)
	assert.NoError(t, err)

	in := services.ClickCallbackInput{
		ClickTransID:    "ct-signed",
		MerchantTransID: order.ID,
		Status:          "success",
		SignTime:        "2026-08-31 12:00:00",
	}

	// A forged digest is rejected before any state changes.
	in.SignString = "deadbeef"
	resp, events := f.svc.HandleClickCallback(in)
	assert.Equal(t, services.ClickCodeSignFailed, resp.Error)
	assert.Empty(t, events)
	stored, err := f.orders.GetByID(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)

	in.SignString = clickSign(in.ClickTransID, in.MerchantTransID, secret, in.SignTime)
	resp, events = f.svc.HandleClickCallback(in)
	assert.Equal(t, services.ClickCodeOK, resp.Error)
	assert.Len(t, events, 1)
}

func TestClickCallback_SignatureSkippedWithoutSecret(t *testing.T) {
	f := newPaymentFixture(t, config.Config{})
	order := f.seedOrder(t, 50000)
	_, err := f.svc.Initiate(order.ID, "user-1", models.ProviderClick)
	assert.NoError(t, err)

	resp, _ := f.svc.HandleClickCallback(services.ClickCallbackInput{
		ClickTransID:    "ct-unsigned",
		MerchantTransID: order.ID,
		Status:          "success",
	})
	assert.Equal(t, services.ClickCodeOK, resp.Error)
}

func TestVerifyPaymeAuth(t *testing.T) {
	f := newPaymentFixture(t, config.Config{PaymeSecretKey: "payme-secret"})

	good := "Basic " + base64.StdEncoding.EncodeToString([]byte("Paycom:payme-secret"))
	assert.True(t, f.svc.VerifyPaymeAuth(good))

	bad := "Basic " + base64.StdEncoding.EncodeToString([]byte("Paycom:wrong"))
	assert.False(t, f.svc.VerifyPaymeAuth(bad))
	assert.False(t, f.svc.VerifyPaymeAuth(""))

	// Without a configured key the check is disabled.
	open := newPaymentFixture(t, config.Config{})
	assert.True(t, open.svc.VerifyPaymeAuth(""))
}
