package models

import "time"

// PaymentProvider is the closed set of settlement backends.
type PaymentProvider string

const (
	ProviderStripe    PaymentProvider = "stripe"
	ProviderClick     PaymentProvider = "click"
	ProviderPayme     PaymentProvider = "payme"
	ProviderSimulator PaymentProvider = "simulator"
)

// Valid reports whether p is a known provider.
func (p PaymentProvider) Valid() bool {
	switch p {
	case ProviderStripe, ProviderClick, ProviderPayme, ProviderSimulator:
		return true
	}
	return false
}

// Payment is one settlement attempt against an order. An order may accumulate
// several rows across retries, but at most one ever reaches PAID; the amount
// is snapshotted so later order edits cannot change what was charged.
type Payment struct {
	ID         string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID    string          `json:"order_id" gorm:"index;type:varchar(36)"`
	Provider   PaymentProvider `json:"provider" gorm:"type:varchar(20)"`
	Amount     float64         `json:"amount"`
	Status     PaymentStatus   `json:"status" gorm:"type:varchar(10);default:'PENDING'"`
	ExternalID string          `json:"external_id,omitempty" gorm:"index;type:varchar(100)"`
	PayURL     string          `json:"pay_url,omitempty"`
	Metadata   string          `json:"metadata,omitempty"` // free-form provider payload, JSON
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
