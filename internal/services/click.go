package services

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"

	"yetkaz/internal/models"
	"yetkaz/internal/repositories"
)

// Click callback protocol. The provider posts a form-encoded status update
// and expects its own error/error_note pair in the response body, always,
// even when we fail internally, otherwise the provider retries uncontrollably.
const (
	clickStatusSuccess = "success"

	ClickCodeOK         = 0
	ClickCodeSignFailed = -1
	ClickCodeNotFound   = -6
	ClickCodeFailed     = -9
)

// ClickCallbackInput is the form body posted by the provider.
type ClickCallbackInput struct {
	ClickTransID    string `form:"click_trans_id" json:"click_trans_id"`
	MerchantTransID string `form:"merchant_trans_id" json:"merchant_trans_id"` // our order id
	Status          string `form:"status" json:"status"`
	SignTime        string `form:"sign_time" json:"sign_time"`
	SignString      string `form:"sign_string" json:"sign_string"`
}

// ClickResponse is the provider's expected response envelope.
type ClickResponse struct {
	Error     int    `json:"error"`
	ErrorNote string `json:"error_note"`
}

// clickSignValid checks the provider's md5 digest over the callback fields
// and the shared merchant secret. An unset secret disables the check so
// development setups work without merchant credentials.
func (s *PaymentService) clickSignValid(in ClickCallbackInput) bool {
	if s.cfg.ClickSecretKey == "" {
		return true
	}
	sum := md5.Sum([]byte(in.ClickTransID + in.MerchantTransID + s.cfg.ClickSecretKey + in.SignTime))
	want := hex.EncodeToString(sum[:])
	return hmac.Equal([]byte(want), []byte(strings.ToLower(in.SignString)))
}

// HandleClickCallback ingests one callback. The digest over the shared
// merchant secret is verified first; nothing in an unsigned callback is
// trusted. The transaction reference is our order id; the most recent
// PENDING payment for it is resolved, a success status settles it and
// anything else fails it. Replayed callbacks for an already settled payment
// land in the idempotent MarkPaid no-op.
func (s *PaymentService) HandleClickCallback(in ClickCallbackInput) (ClickResponse, []Event) {
	if !s.clickSignValid(in) {
		s.log.Warnw("click callback signature rejected", "order_id", in.MerchantTransID, "click_trans_id", in.ClickTransID)
		return ClickResponse{Error: ClickCodeSignFailed, ErrorNote: "Sign check failed"}, nil
	}

	payment, err := s.payments.LatestPending(in.MerchantTransID, models.ProviderClick)
	if err != nil {
		s.log.Errorw("click callback lookup failed", "order_id", in.MerchantTransID, "error", err)
		return ClickResponse{Error: ClickCodeFailed, ErrorNote: "Internal error"}, nil
	}
	if payment == nil {
		// No pending payment left: either the reference is bogus or this is
		// a replay of an already settled transaction.
		settled, err := s.payments.GetByExternalID(models.ProviderClick, in.ClickTransID)
		if err == nil && settled != nil && settled.Status == models.PaymentStatusPaid {
			return ClickResponse{Error: ClickCodeOK, ErrorNote: "Already confirmed"}, nil
		}
		return ClickResponse{Error: ClickCodeNotFound, ErrorNote: "Transaction does not exist"}, nil
	}

	if in.Status != clickStatusSuccess {
		if err := s.payments.MarkFailed(payment.ID); err != nil {
			s.log.Errorw("click callback failed to mark payment failed", "payment_id", payment.ID, "error", err)
			return ClickResponse{Error: ClickCodeFailed, ErrorNote: "Internal error"}, nil
		}
		return ClickResponse{Error: ClickCodeFailed, ErrorNote: "Transaction failed"}, nil
	}

	_, events, err := s.MarkPaid(payment.ID, in.ClickTransID, "")
	if err != nil {
		if errors.Is(err, repositories.ErrOrderAlreadyPaid) {
			// Another provider won the race for this order. Fail the stale
			// pending payment so it cannot be retried into a second charge.
			if ferr := s.payments.MarkFailed(payment.ID); ferr != nil {
				s.log.Errorw("click callback failed to fail stale payment", "payment_id", payment.ID, "error", ferr)
			}
			return ClickResponse{Error: ClickCodeFailed, ErrorNote: "Order already paid"}, nil
		}
		s.log.Errorw("click callback settlement failed", "payment_id", payment.ID, "error", err)
		return ClickResponse{Error: ClickCodeFailed, ErrorNote: "Internal error"}, nil
	}
	return ClickResponse{Error: ClickCodeOK, ErrorNote: "Success"}, events
}
