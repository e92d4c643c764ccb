package domain

import "time"

// Product mirrors a billing provider product. Owned by the ledger
// synchronizer; read-only from the rest of the system.
type Product struct {
	Ref         string    `json:"ref"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	Livemode    bool      `json:"livemode"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Price mirrors a billing provider price, keyed by the provider's id.
type Price struct {
	Ref        string    `json:"ref"`
	ProductRef string    `json:"product_ref"`
	UnitAmount int64     `json:"unit_amount"`
	Currency   string    `json:"currency"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Subscription mirrors a billing provider subscription.
type Subscription struct {
	Ref              string     `json:"ref"`
	CustomerRef      string     `json:"customer_ref"`
	PriceRef         string     `json:"price_ref,omitempty"`
	Status           string     `json:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
