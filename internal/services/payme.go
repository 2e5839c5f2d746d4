package services

import (
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"yetkaz/internal/models"
	"yetkaz/internal/repositories"
)

// PaymeMethod is the closed set of JSON-RPC methods the provider multiplexes
// over a single endpoint. Adding a method means adding a case to the switch
// in HandlePaymeRequest; the default arm rejects anything else.
type PaymeMethod string

const (
	PaymeCheckPerform PaymeMethod = "CheckPerformTransaction"
	PaymePerform      PaymeMethod = "PerformTransaction"
	PaymeCancel       PaymeMethod = "CancelTransaction"
)

// Provider-reserved error codes.
const (
	PaymeErrOrderNotFound  = -31050
	PaymeErrInvalidAmount  = -31001
	PaymeErrAlreadyPaid    = -31051
	PaymeErrTxNotFound     = -31003
	PaymeErrUnauthorized   = -32504
	paymeErrMethodNotFound = -32601
	paymeErrParse          = -32700
	paymeErrInternal       = -32603
)

// PaymeRequest is the JSON-RPC envelope posted to the single endpoint.
type PaymeRequest struct {
	Method PaymeMethod     `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     any             `json:"id"`
}

// PaymeError is the provider's structured error.
type PaymeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// PaymeResponse is the JSON-RPC reply. Exactly one of Result/Error is set;
// the envelope is returned even on internal failure.
type PaymeResponse struct {
	Result any         `json:"result,omitempty"`
	Error  *PaymeError `json:"error,omitempty"`
	ID     any         `json:"id"`
}

type paymeAccount struct {
	OrderID string `json:"order_id"`
}

type paymeCheckParams struct {
	Amount  int64        `json:"amount"` // minor units (tiyin)
	Account paymeAccount `json:"account"`
}

type paymePerformParams struct {
	ID      string       `json:"id"` // provider transaction id
	Amount  int64        `json:"amount"`
	Account paymeAccount `json:"account"`
}

type paymeCancelParams struct {
	ID     string `json:"id"`
	Reason int    `json:"reason"`
}

func paymeFail(id any, code int, message string) PaymeResponse {
	return PaymeResponse{Error: &PaymeError{Code: code, Message: message}, ID: id}
}

// VerifyPaymeAuth checks the Basic credentials the provider sends with every
// request, login "Paycom" and the merchant key as the password. An unset key
// disables the check so development setups work without merchant credentials.
func (s *PaymentService) VerifyPaymeAuth(header string) bool {
	if s.cfg.PaymeSecretKey == "" {
		return true
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("Paycom:"+s.cfg.PaymeSecretKey))
	return hmac.Equal([]byte(header), []byte(want))
}

// HandlePaymeRequest dispatches one JSON-RPC request. Every outcome,
// including malformed input and internal failures, is wrapped in the
// provider envelope so webhook retries stay controlled.
func (s *PaymentService) HandlePaymeRequest(req PaymeRequest) (PaymeResponse, []Event) {
	switch req.Method {
	case PaymeCheckPerform:
		var p paymeCheckParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return paymeFail(req.ID, paymeErrParse, "malformed params"), nil
		}
		return s.paymeCheckPerform(req.ID, p), nil
	case PaymePerform:
		var p paymePerformParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return paymeFail(req.ID, paymeErrParse, "malformed params"), nil
		}
		return s.paymePerform(req.ID, p)
	case PaymeCancel:
		var p paymeCancelParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return paymeFail(req.ID, paymeErrParse, "malformed params"), nil
		}
		return s.paymeCancel(req.ID, p), nil
	default:
		return paymeFail(req.ID, paymeErrMethodNotFound, "method not found"), nil
	}
}

// paymeCheckPerform validates that the referenced order can accept the
// payment. It never mutates state.
func (s *PaymentService) paymeCheckPerform(id any, p paymeCheckParams) PaymeResponse {
	order, err := s.orders.GetByID(p.Account.OrderID)
	if err != nil {
		s.log.Errorw("payme check lookup failed", "order_id", p.Account.OrderID, "error", err)
		return paymeFail(id, paymeErrInternal, "internal error")
	}
	if order == nil {
		return paymeFail(id, PaymeErrOrderNotFound, "order not found")
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return paymeFail(id, PaymeErrAlreadyPaid, "order already paid")
	}
	if MinorUnits(order.TotalPrice, s.cfg.Currency) != p.Amount {
		return paymeFail(id, PaymeErrInvalidAmount, "invalid amount")
	}
	return PaymeResponse{Result: map[string]any{"allow": true}, ID: id}
}

// paymePerform settles the pending payment for the order, recording the
// provider's transaction id. Replays resolve to the already settled row.
func (s *PaymentService) paymePerform(id any, p paymePerformParams) (PaymeResponse, []Event) {
	if settled, err := s.payments.GetByExternalID(models.ProviderPayme, p.ID); err == nil &&
		settled != nil && settled.Status == models.PaymentStatusPaid {
		return PaymeResponse{Result: map[string]any{
			"transaction":  settled.ID,
			"perform_time": settled.PaidAt.UnixMilli(),
			"state":        2,
		}, ID: id}, nil
	}

	payment, err := s.payments.LatestPending(p.Account.OrderID, models.ProviderPayme)
	if err != nil {
		s.log.Errorw("payme perform lookup failed", "order_id", p.Account.OrderID, "error", err)
		return paymeFail(id, paymeErrInternal, "internal error"), nil
	}
	if payment == nil {
		return paymeFail(id, PaymeErrTxNotFound, "transaction not found"), nil
	}

	settled, events, err := s.MarkPaid(payment.ID, p.ID, "")
	if err != nil {
		if errors.Is(err, repositories.ErrOrderAlreadyPaid) {
			return paymeFail(id, PaymeErrAlreadyPaid, "order already paid"), nil
		}
		s.log.Errorw("payme perform settlement failed", "payment_id", payment.ID, "error", err)
		return paymeFail(id, paymeErrInternal, "internal error"), nil
	}
	return PaymeResponse{Result: map[string]any{
		"transaction":  settled.ID,
		"perform_time": settled.PaidAt.UnixMilli(),
		"state":        2,
	}, ID: id}, events
}

// paymeCancel fails the payment addressed by the provider's transaction id.
func (s *PaymentService) paymeCancel(id any, p paymeCancelParams) PaymeResponse {
	payment, err := s.payments.GetByExternalID(models.ProviderPayme, p.ID)
	if err != nil {
		s.log.Errorw("payme cancel lookup failed", "tx_id", p.ID, "error", err)
		return paymeFail(id, paymeErrInternal, "internal error")
	}
	if payment == nil {
		return paymeFail(id, PaymeErrTxNotFound, "transaction not found")
	}
	if payment.Status == models.PaymentStatusPaid {
		return paymeFail(id, PaymeErrAlreadyPaid, "transaction already settled")
	}
	if err := s.payments.MarkFailed(payment.ID); err != nil {
		s.log.Errorw("payme cancel failed", "payment_id", payment.ID, "error", err)
		return paymeFail(id, paymeErrInternal, "internal error")
	}
	return PaymeResponse{Result: map[string]any{
		"transaction": payment.ID,
		"cancel_time": time.Now().UnixMilli(),
		"state":       -1,
	}, ID: id}
}
