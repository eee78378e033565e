package engine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/streampay-hq/streampay-engine/pkg/logger"
	"github.com/streampay-hq/streampay-engine/pkg/metrics"
	"github.com/streampay-hq/streampay-engine/pkg/models"
	"github.com/streampay-hq/streampay-engine/pkg/payout"
)

// processIntent drives one due intent through evaluate, execute, record and
// notify, strictly in that order. The returned outcome label is for metrics.
//
// Outcome policy: a constraint miss is recorded as DELAYED and retried on a
// short backoff, while an actual execution error is recorded as FAILED and
// halts the intent until the user reactivates it. Failing closed on ambiguous
// errors avoids silently draining funds with repeated attempts.
func (s *Service) processIntent(ctx context.Context, intent models.Intent) string {
	now := s.clock()

	if !s.chainBreaker.Allow() {
		metrics.BreakerRejections.WithLabelValues("chain").Inc()
		s.delayIntent(ctx, intent, ReasonGatewayUnavailable, now)
		return "delayed"
	}
	if intent.IsOffRamp && !s.payoutBreaker.Allow() {
		metrics.BreakerRejections.WithLabelValues("payout").Inc()
		s.delayIntent(ctx, intent, ReasonGatewayUnavailable, now)
		return "delayed"
	}

	balanceCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	balance, err := s.chain.TokenBalance(balanceCtx, intent.TokenAddress, intent.WalletAddress)
	cancel()
	if err != nil {
		s.chainBreaker.RecordFailure()
		s.failIntent(ctx, intent, fmt.Errorf("balance check failed: %v", err))
		return "failed"
	}

	// The engine-wide ceiling applies when it is stricter than the intent's
	// own, or when the intent has none.
	if s.maxGasPrice != nil && (intent.MaxGasPrice == nil || s.maxGasPrice.Cmp(intent.MaxGasPrice) < 0) {
		intent.MaxGasPrice = s.maxGasPrice
	}

	// The gas price is only fetched when a ceiling applies, so a flaky gas
	// RPC cannot block intents that never asked about gas.
	var gasPrice *big.Int
	if intent.MaxGasPrice != nil {
		gasCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
		gasPrice, err = s.chain.GasPrice(gasCtx)
		cancel()
		if err != nil {
			s.chainBreaker.RecordFailure()
			s.failIntent(ctx, intent, fmt.Errorf("gas price check failed: %v", err))
			return "failed"
		}
	}

	decision := Evaluate(&intent, balance, gasPrice, now)
	if !decision.Proceed {
		s.logger.InfoWithScope(logger.Engine, "Delaying intent %s: %s", intent.ID, decision.Reason)
		s.delayIntent(ctx, intent, decision.Reason, now)
		return "delayed"
	}

	if intent.IsOffRamp {
		if s.executeOffRamp(ctx, intent) {
			return "success"
		}
	} else {
		if s.executeOnChain(ctx, intent) {
			return "success"
		}
	}
	return "failed"
}

// executeOnChain submits the ledger transfer and records the receipt.
func (s *Service) executeOnChain(ctx context.Context, intent models.Intent) bool {
	execCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	receipt, err := s.chain.ExecuteIntent(execCtx, intent.OnChainID)
	cancel()
	if err != nil {
		s.chainBreaker.RecordFailure()
		s.failIntent(ctx, intent, fmt.Errorf("on-chain execution failed: %v", err))
		return false
	}
	s.chainBreaker.RecordSuccess()

	now := s.clock()
	exec := models.Execution{
		IntentID:    intent.ID,
		Status:      models.ExecutionStatusSuccess,
		Amount:      intent.Amount,
		TxHash:      receipt.TxHash,
		GasUsed:     receipt.GasUsed,
		GasPrice:    receipt.GasPrice,
		BlockNumber: receipt.BlockNumber,
		ExecutedAt:  now,
	}

	metrics.GasUsed.Observe(float64(receipt.GasUsed.Uint64()))
	if receipt.GasPrice != nil {
		gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(receipt.GasPrice), big.NewFloat(1e9)).Float64()
		metrics.GasPrice.Set(gwei)
	}

	next := NextAfterSuccess(intent.Frequency, now, s.delayBackoff)
	s.writeOutcome(intent.ID, func(writeCtx context.Context) error {
		return s.store.RecordSuccess(writeCtx, intent.ID, exec, next)
	})

	s.logger.NoticeWithScope(logger.Engine, "Intent %s executed successfully, tx: %s (gas used: %s)",
		intent.ID, receipt.TxHash, receipt.GasUsed.String())

	s.notifier.Notify(ctx, intent.UserID, models.Notification{
		Type:    models.NotificationExecutionSuccess,
		Title:   "Payment Sent Successfully",
		Message: fmt.Sprintf("%s: %s %s sent to %s", intent.Name, intent.Amount.String(), intent.Token, intent.Recipient),
		Data:    map[string]string{"intentId": intent.ID, "txHash": receipt.TxHash},
	})
	return true
}

// executeOffRamp hands the payment to the mobile-money provider. Off-ramp
// intents are denominated in USD-pegged units.
func (s *Service) executeOffRamp(ctx context.Context, intent models.Intent) bool {
	amountUSD, _ := new(big.Float).SetInt(intent.Amount).Float64()

	payCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	result := s.payouts.Payout(payCtx, payout.Request{
		PhoneNumber: intent.OffRamp.PhoneNumber,
		Country:     intent.OffRamp.Country,
		AmountUSD:   amountUSD,
		UserID:      intent.UserID,
		IntentID:    intent.ID,
	})
	cancel()

	if !result.Success {
		metrics.PayoutRequests.WithLabelValues("failed").Inc()
		s.payoutBreaker.RecordFailure()
		s.failIntent(ctx, intent, fmt.Errorf("off-ramp execution failed: %s", result.Error))
		return false
	}
	metrics.PayoutRequests.WithLabelValues("success").Inc()
	s.payoutBreaker.RecordSuccess()

	now := s.clock()
	exec := models.Execution{
		IntentID:     intent.ID,
		Status:       models.ExecutionStatusSuccess,
		Amount:       intent.Amount,
		PayoutID:     result.PayoutID,
		PayoutStatus: result.ProviderStatus,
		ExecutedAt:   now,
	}

	next := NextAfterSuccess(intent.Frequency, now, s.delayBackoff)
	s.writeOutcome(intent.ID, func(writeCtx context.Context) error {
		return s.store.RecordSuccess(writeCtx, intent.ID, exec, next)
	})

	s.logger.NoticeWithScope(logger.Engine, "Off-ramp intent %s executed, payout id: %s", intent.ID, result.PayoutID)

	s.notifier.Notify(ctx, intent.UserID, models.Notification{
		Type:    models.NotificationExecutionSuccess,
		Title:   "Off-Ramp Successful",
		Message: fmt.Sprintf("%s: %s USD sent to %s", intent.Name, intent.Amount.String(), intent.OffRamp.PhoneNumber),
		Data:    map[string]string{"intentId": intent.ID, "payoutId": result.PayoutID},
	})
	return true
}

// delayIntent records a DELAYED execution and reschedules the intent on the
// short retry backoff, leaving it ACTIVE.
func (s *Service) delayIntent(ctx context.Context, intent models.Intent, reason string, now time.Time) {
	metrics.ExecutionsDelayed.WithLabelValues(reason).Inc()

	exec := models.Execution{
		IntentID:    intent.ID,
		Status:      models.ExecutionStatusDelayed,
		Amount:      big.NewInt(0),
		DelayReason: reason,
		ExecutedAt:  now,
	}

	s.writeOutcome(intent.ID, func(writeCtx context.Context) error {
		return s.store.RecordDelay(writeCtx, intent.ID, exec, now.Add(s.delayBackoff))
	})

	s.notifier.Notify(ctx, intent.UserID, models.Notification{
		Type:    models.NotificationExecutionDelayed,
		Title:   "Payment Delayed",
		Message: fmt.Sprintf("%s: %s", intent.Name, reason),
		Data:    map[string]string{"intentId": intent.ID, "reason": reason},
	})
}

// failIntent records a FAILED execution and halts the intent.
func (s *Service) failIntent(ctx context.Context, intent models.Intent, execErr error) {
	s.logger.ErrorWithScope(logger.Engine, "Error executing intent %s: %v", intent.ID, execErr)

	exec := models.Execution{
		IntentID:     intent.ID,
		Status:       models.ExecutionStatusFailed,
		Amount:       big.NewInt(0),
		ErrorMessage: execErr.Error(),
		ExecutedAt:   s.clock(),
	}

	s.writeOutcome(intent.ID, func(writeCtx context.Context) error {
		return s.store.RecordFailure(writeCtx, intent.ID, exec)
	})

	s.notifier.Notify(ctx, intent.UserID, models.Notification{
		Type:    models.NotificationExecutionFailed,
		Title:   "Payment Failed",
		Message: fmt.Sprintf("%s: %v", intent.Name, execErr),
		Data:    map[string]string{"intentId": intent.ID},
	})
}

// writeOutcome persists an execution outcome with bounded retries. The write
// runs on a detached context: once a payment has actually happened, shutdown
// or tick cancellation must not be what loses its record. An outcome that
// still cannot be written after all retries is the worst failure mode this
// engine has, so it is logged loudly and counted.
func (s *Service) writeOutcome(intentID string, write func(context.Context) error) bool {
	var err error
	for attempt := 0; attempt <= s.storeWriteRetries; attempt++ {
		if attempt > 0 {
			metrics.StoreWriteRetries.Inc()
			time.Sleep(time.Duration(attempt) * time.Second)
		}

		writeCtx, cancel := context.WithTimeout(context.Background(), s.gatewayTimeout)
		err = write(writeCtx)
		cancel()
		if err == nil {
			return true
		}
		s.logger.ErrorWithScope(logger.Engine, "Outcome write for intent %s failed (attempt %d/%d): %v",
			intentID, attempt+1, s.storeWriteRetries+1, err)
	}

	metrics.UnrecordedOutcomes.Inc()
	s.logger.ErrorWithScope(logger.Engine, "ALERT: giving up on recording outcome for intent %s: %v", intentID, err)
	return false
}
