package models

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// CreateIntentParams carries the user-supplied fields for a new intent.
// Amounts arrive as decimal strings in token base units.
type CreateIntentParams struct {
	UserID        string `validate:"required"`
	Name          string `validate:"required"`
	Recipient     string `validate:"required"`
	Amount        string `validate:"required"`
	Token         string `validate:"required"`
	TokenAddress  string `validate:"required"`
	WalletAddress string `validate:"required"`
	Frequency     string `validate:"required,oneof=ONCE DAILY WEEKLY MONTHLY YEARLY"`
	SafetyBuffer  string `validate:"required"`

	MaxGasPrice     string `validate:"omitempty"`
	TimeWindowStart string `validate:"omitempty"`
	TimeWindowEnd   string `validate:"omitempty"`

	IsOffRamp bool
	OffRamp   *OffRampDetails
}

var (
	validate    = validator.New()
	timeOfDayRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// Validate checks creation parameters before anything is persisted.
// Unknown frequencies are a hard error here rather than a silent fallback in
// the scheduler, so an intent that reaches the engine always carries a
// frequency it knows how to advance.
func (p *CreateIntentParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}

	amount, ok := new(big.Int).SetString(p.Amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount: %s", p.Amount)
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("amount must be greater than zero")
	}

	buffer, ok := new(big.Int).SetString(p.SafetyBuffer, 10)
	if !ok {
		return fmt.Errorf("invalid safety buffer: %s", p.SafetyBuffer)
	}
	if buffer.Sign() < 0 {
		return fmt.Errorf("safety buffer must not be negative")
	}

	if p.MaxGasPrice != "" {
		gas, ok := new(big.Int).SetString(p.MaxGasPrice, 10)
		if !ok || gas.Sign() <= 0 {
			return fmt.Errorf("invalid max gas price: %s", p.MaxGasPrice)
		}
	}

	// The window applies only when both bounds are set; a half-open window is
	// almost certainly a user mistake, so reject it.
	if (p.TimeWindowStart == "") != (p.TimeWindowEnd == "") {
		return fmt.Errorf("time window requires both start and end")
	}
	if p.TimeWindowStart != "" {
		if !timeOfDayRe.MatchString(p.TimeWindowStart) {
			return fmt.Errorf("invalid time window start: %s", p.TimeWindowStart)
		}
		if !timeOfDayRe.MatchString(p.TimeWindowEnd) {
			return fmt.Errorf("invalid time window end: %s", p.TimeWindowEnd)
		}
	}

	if p.IsOffRamp {
		if p.OffRamp == nil || p.OffRamp.PhoneNumber == "" || p.OffRamp.Country == "" {
			return fmt.Errorf("off-ramp intents require phone number and country")
		}
	}

	return nil
}
