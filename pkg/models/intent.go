package models

import (
	"math/big"
	"time"
)

// Frequency represents how often an intent fires after a successful execution.
type Frequency string

const (
	FrequencyOnce    Frequency = "ONCE"
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// IntentStatus represents the lifecycle state of an intent.
type IntentStatus string

const (
	IntentStatusActive    IntentStatus = "ACTIVE"
	IntentStatusPaused    IntentStatus = "PAUSED"
	IntentStatusCancelled IntentStatus = "CANCELLED"
	IntentStatusFailed    IntentStatus = "FAILED"
)

// OffRampDetails holds the destination for a mobile-money payout.
type OffRampDetails struct {
	PhoneNumber string `json:"phone_number"`
	Country     string `json:"country"`
}

// Intent is a user's standing payment instruction.
//
// Amounts are denominated in the token's base units. Optional constraints are
// modeled explicitly: a nil MaxGasPrice means no gas ceiling, empty time
// window strings mean no window, and a nil NextExecution means the intent is
// never due (the terminal state of a ONCE intent after it has fired).
type Intent struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Recipient     string    `json:"recipient"`
	Amount        *big.Int  `json:"amount"`
	Token         string    `json:"token"`
	TokenAddress  string    `json:"token_address"`
	WalletAddress string    `json:"wallet_address"`
	Frequency     Frequency `json:"frequency"`

	SafetyBuffer    *big.Int `json:"safety_buffer"`
	MaxGasPrice     *big.Int `json:"max_gas_price,omitempty"`
	TimeWindowStart string   `json:"time_window_start,omitempty"` // "HH:MM", zero-padded
	TimeWindowEnd   string   `json:"time_window_end,omitempty"`

	IsOffRamp bool            `json:"is_off_ramp"`
	OffRamp   *OffRampDetails `json:"off_ramp,omitempty"`

	Status         IntentStatus `json:"status"`
	NextExecution  *time.Time   `json:"next_execution,omitempty"`
	LastExecution  *time.Time   `json:"last_execution,omitempty"`
	ExecutionCount int          `json:"execution_count"`
	FailureCount   int          `json:"failure_count"`
	OnChainID      *big.Int     `json:"on_chain_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequiredBalance returns the wallet balance needed for one execution,
// amount plus the safety buffer the user wants preserved.
func (i *Intent) RequiredBalance() *big.Int {
	required := new(big.Int).Set(i.Amount)
	if i.SafetyBuffer != nil {
		required.Add(required, i.SafetyBuffer)
	}
	return required
}

// HasTimeWindow reports whether a time-of-day window constraint is set.
// The window only applies when both bounds are present.
func (i *Intent) HasTimeWindow() bool {
	return i.TimeWindowStart != "" && i.TimeWindowEnd != ""
}
