package engine

import (
	"math/big"
	"time"

	"github.com/streampay-hq/streampay-engine/pkg/models"
)

// Delay reasons recorded on DELAYED executions and surfaced to users.
const (
	ReasonInsufficientBalance = "Insufficient balance"
	ReasonGasPriceAboveLimit  = "Gas price above limit"
	ReasonOutsideTimeWindow   = "Outside execution time window"
	ReasonGatewayUnavailable  = "Gateway temporarily unavailable"
)

// Decision is the outcome of constraint evaluation: proceed, or delay with a
// human-readable reason.
type Decision struct {
	Proceed bool
	Reason  string
}

func proceed() Decision            { return Decision{Proceed: true} }
func delay(reason string) Decision { return Decision{Reason: reason} }

// Evaluate runs the intent's constraints against a live balance, gas price
// and clock reading. Checks run in a fixed order and the first failing one
// wins. The function is pure: callers supply every input, nothing is fetched.
//
// gasPrice may be nil when the intent carries no gas ceiling; it is only
// consulted when MaxGasPrice is set.
func Evaluate(intent *models.Intent, balance, gasPrice *big.Int, now time.Time) Decision {
	if balance.Cmp(intent.RequiredBalance()) < 0 {
		return delay(ReasonInsufficientBalance)
	}

	if intent.MaxGasPrice != nil && gasPrice != nil && gasPrice.Cmp(intent.MaxGasPrice) > 0 {
		return delay(ReasonGasPriceAboveLimit)
	}

	if intent.HasTimeWindow() {
		// "HH:MM" strings are zero-padded, so lexicographic comparison is
		// chronological. The window is half-open: [start, end).
		current := now.Format("15:04")
		if current < intent.TimeWindowStart || current >= intent.TimeWindowEnd {
			return delay(ReasonOutsideTimeWindow)
		}
	}

	return proceed()
}
