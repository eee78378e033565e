package models

import (
	"math/big"
	"time"
)

// ExecutionStatus is the outcome of one evaluation attempt.
type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"
	ExecutionStatusFailed  ExecutionStatus = "FAILED"
	ExecutionStatusDelayed ExecutionStatus = "DELAYED"
)

// Execution is an immutable audit record of one evaluation outcome for an
// intent. One row is written per attempt, including delays, and rows are
// never mutated after creation.
type Execution struct {
	ID       string          `json:"id"`
	IntentID string          `json:"intent_id"`
	Status   ExecutionStatus `json:"status"`
	Amount   *big.Int        `json:"amount"`

	// On-chain success payload.
	TxHash      string   `json:"tx_hash,omitempty"`
	GasUsed     *big.Int `json:"gas_used,omitempty"`
	GasPrice    *big.Int `json:"gas_price,omitempty"`
	BlockNumber uint64   `json:"block_number,omitempty"`

	// Off-ramp success payload.
	PayoutID     string `json:"payout_id,omitempty"`
	PayoutStatus string `json:"payout_status,omitempty"`

	// Failure / delay payloads.
	ErrorMessage string `json:"error_message,omitempty"`
	DelayReason  string `json:"delay_reason,omitempty"`

	ExecutedAt time.Time `json:"executed_at"`
}
