package engine

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/streampay-hq/streampay-engine/pkg/models"
)

func testIntent() *models.Intent {
	return &models.Intent{
		ID:           "intent-1",
		UserID:       "user-1",
		Name:         "Rent",
		Amount:       big.NewInt(1000),
		SafetyBuffer: big.NewInt(100),
		Frequency:    models.FrequencyMonthly,
		Status:       models.IntentStatusActive,
	}
}

func TestEvaluateBalanceConstraint(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		balance *big.Int
		proceed bool
	}{
		{"balance well above required", big.NewInt(5000), true},
		{"balance exactly amount plus buffer", big.NewInt(1100), true},
		{"balance covers amount but not buffer", big.NewInt(1050), false},
		{"balance one below required", big.NewInt(1099), false},
		{"zero balance", big.NewInt(0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Evaluate(testIntent(), tt.balance, nil, now)
			assert.Equal(t, tt.proceed, decision.Proceed)
			if !tt.proceed {
				assert.Equal(t, ReasonInsufficientBalance, decision.Reason)
			}
		})
	}
}

func TestEvaluateGasPriceConstraint(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	balance := big.NewInt(5000)

	tests := []struct {
		name        string
		maxGasPrice *big.Int
		gasPrice    *big.Int
		proceed     bool
	}{
		{"no ceiling configured", nil, big.NewInt(999999), true},
		{"gas below ceiling", big.NewInt(50), big.NewInt(30), true},
		{"gas exactly at ceiling", big.NewInt(50), big.NewInt(50), true},
		{"gas above ceiling", big.NewInt(50), big.NewInt(51), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := testIntent()
			intent.MaxGasPrice = tt.maxGasPrice
			decision := Evaluate(intent, balance, tt.gasPrice, now)
			assert.Equal(t, tt.proceed, decision.Proceed)
			if !tt.proceed {
				assert.Equal(t, ReasonGasPriceAboveLimit, decision.Reason)
			}
		})
	}
}

func TestEvaluateTimeWindowConstraint(t *testing.T) {
	balance := big.NewInt(5000)

	at := func(hour, minute int) time.Time {
		return time.Date(2026, 3, 15, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name    string
		start   string
		end     string
		now     time.Time
		proceed bool
	}{
		{"no window configured", "", "", at(3, 0), true},
		{"inside window", "09:00", "17:00", at(12, 30), true},
		{"exactly at start boundary", "09:00", "17:00", at(9, 0), true},
		{"exactly at end boundary", "09:00", "17:00", at(17, 0), false},
		{"before window", "09:00", "17:00", at(8, 59), false},
		{"after window", "09:00", "17:00", at(17, 1), false},
		{"single-minute window", "09:00", "09:01", at(9, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := testIntent()
			intent.TimeWindowStart = tt.start
			intent.TimeWindowEnd = tt.end
			decision := Evaluate(intent, balance, nil, tt.now)
			assert.Equal(t, tt.proceed, decision.Proceed)
			if !tt.proceed {
				assert.Equal(t, ReasonOutsideTimeWindow, decision.Reason)
			}
		})
	}
}

func TestEvaluateConstraintOrder(t *testing.T) {
	// When several constraints fail at once the first check wins, so the
	// recorded reason is deterministic.
	intent := testIntent()
	intent.MaxGasPrice = big.NewInt(50)
	intent.TimeWindowStart = "09:00"
	intent.TimeWindowEnd = "17:00"

	now := time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)

	decision := Evaluate(intent, big.NewInt(0), big.NewInt(100), now)
	assert.False(t, decision.Proceed)
	assert.Equal(t, ReasonInsufficientBalance, decision.Reason)

	decision = Evaluate(intent, big.NewInt(5000), big.NewInt(100), now)
	assert.False(t, decision.Proceed)
	assert.Equal(t, ReasonGasPriceAboveLimit, decision.Reason)

	decision = Evaluate(intent, big.NewInt(5000), big.NewInt(10), now)
	assert.False(t, decision.Proceed)
	assert.Equal(t, ReasonOutsideTimeWindow, decision.Reason)
}

func TestEvaluateNilSafetyBuffer(t *testing.T) {
	intent := testIntent()
	intent.SafetyBuffer = nil

	decision := Evaluate(intent, big.NewInt(1000), nil, time.Now())
	assert.True(t, decision.Proceed)

	decision = Evaluate(intent, big.NewInt(999), nil, time.Now())
	assert.False(t, decision.Proceed)
}
