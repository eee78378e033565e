package engine

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/streampay-hq/streampay-engine/pkg/chain"
	"github.com/streampay-hq/streampay-engine/pkg/circuitbreaker"
	"github.com/streampay-hq/streampay-engine/pkg/config"
	"github.com/streampay-hq/streampay-engine/pkg/logger"
	"github.com/streampay-hq/streampay-engine/pkg/metrics"
	"github.com/streampay-hq/streampay-engine/pkg/models"
	"github.com/streampay-hq/streampay-engine/pkg/payout"
)

// IntentStore is the slice of the store the engine depends on: the due-intent
// read path and the three atomic outcome writers.
type IntentStore interface {
	FindDueIntents(ctx context.Context, now time.Time) ([]models.Intent, error)
	RecordSuccess(ctx context.Context, intentID string, exec models.Execution, next *time.Time) error
	RecordDelay(ctx context.Context, intentID string, exec models.Execution, next time.Time) error
	RecordFailure(ctx context.Context, intentID string, exec models.Execution) error
}

// Notifier consumes execution outcomes. Delivery problems are the sink's to
// handle; the engine never blocks or fails on notification errors.
type Notifier interface {
	Notify(ctx context.Context, userID string, n models.Notification)
}

// Clock supplies the current time, injected so ticks are testable.
type Clock func() time.Time

// Service drives due intents through evaluation and execution. One periodic
// tick pulls due intents from the store and fans them out to a bounded worker
// pool; per-intent pipelines are independent and isolated from each other.
type Service struct {
	store    IntentStore
	chain    chain.Gateway
	payouts  payout.Gateway
	notifier Notifier
	logger   logger.Logger
	clock    Clock

	pollingInterval   time.Duration
	delayBackoff      time.Duration
	gatewayTimeout    time.Duration
	storeWriteRetries int
	workers           int
	maxGasPrice       *big.Int

	chainBreaker  *circuitbreaker.CircuitBreaker
	payoutBreaker *circuitbreaker.CircuitBreaker

	pendingJobs chan models.Intent
	wg          sync.WaitGroup

	// inFlight guards against overlapping executions of the same intent: a
	// due intent whose previous run has not finished is skipped for the tick.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewService creates the execution engine.
func NewService(cfg *config.Config, store IntentStore, chainGW chain.Gateway, payouts payout.Gateway, notifier Notifier, log logger.Logger) *Service {
	var maxGasPrice *big.Int
	if cfg.MaxGasPrice != nil && cfg.MaxGasPrice.Sign() > 0 {
		maxGasPrice = cfg.MaxGasPrice
	}

	return &Service{
		store:             store,
		chain:             chainGW,
		payouts:           payouts,
		notifier:          notifier,
		logger:            log,
		clock:             time.Now,
		maxGasPrice:       maxGasPrice,
		pollingInterval:   cfg.PollingInterval,
		delayBackoff:      cfg.DelayRetryBackoff,
		gatewayTimeout:    cfg.GatewayTimeout,
		storeWriteRetries: cfg.StoreWriteRetries,
		workers:           cfg.WorkerCount,
		chainBreaker: circuitbreaker.New("chain", cfg.CircuitBreaker.Enabled,
			cfg.CircuitBreaker.Threshold, cfg.CircuitBreaker.WindowDuration, cfg.CircuitBreaker.ResetTimeout, log),
		payoutBreaker: circuitbreaker.New("payout", cfg.CircuitBreaker.Enabled,
			cfg.CircuitBreaker.Threshold, cfg.CircuitBreaker.WindowDuration, cfg.CircuitBreaker.ResetTimeout, log),
		pendingJobs: make(chan models.Intent, 100),
		inFlight:    make(map[string]struct{}),
	}
}

// Start begins the scheduling loop and blocks until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.logger.InfoWithScope(logger.Engine, "Starting %d worker goroutines", s.workers)
	for i := 0; i < s.workers; i++ {
		go s.worker(ctx, i)
	}

	s.logger.InfoWithScope(logger.Engine, "Starting execution engine with polling interval %v", s.pollingInterval)
	ticker := time.NewTicker(s.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoWithScope(logger.Engine, "Context cancelled, shutting down engine")
			close(s.pendingJobs)
			s.wg.Wait()
			return
		case <-ticker.C:
			s.Tick(ctx, s.clock())
		}
	}
}

// Tick runs one due-intent scan: every ACTIVE intent whose next execution has
// arrived is queued for processing, unless a previous run is still in flight.
func (s *Service) Tick(ctx context.Context, now time.Time) {
	intents, err := s.store.FindDueIntents(ctx, now)
	if err != nil {
		s.logger.ErrorWithScope(logger.Engine, "Error fetching due intents: %v", err)
		return
	}

	metrics.DueIntents.Set(float64(len(intents)))
	if len(intents) > 0 {
		s.logger.InfoWithScope(logger.Engine, "Found %d intents ready for execution", len(intents))
	}

	for _, intent := range intents {
		if !s.markInFlight(intent.ID) {
			s.logger.DebugWithScope(logger.Engine, "Skipping intent %s: previous execution still in flight", intent.ID)
			metrics.InFlightSkips.Inc()
			continue
		}
		s.wg.Add(1)
		s.pendingJobs <- intent
	}
}

// worker processes intents from the job queue.
func (s *Service) worker(ctx context.Context, id int) {
	s.logger.DebugWithScope(logger.Engine, "Starting worker %d", id)
	for {
		select {
		case <-ctx.Done():
			s.logger.DebugWithScope(logger.Engine, "Worker %d shutting down", id)
			return
		case intent, ok := <-s.pendingJobs:
			if !ok {
				s.logger.DebugWithScope(logger.Engine, "Worker %d shutting down: channel closed", id)
				return
			}
			s.runOne(ctx, id, intent)
		}
	}
}

// runOne executes one intent pipeline and releases its in-flight slot. No
// error or panic inside a pipeline may escape and take down the worker.
func (s *Service) runOne(ctx context.Context, workerID int, intent models.Intent) {
	defer s.wg.Done()
	defer s.clearInFlight(intent.ID)
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorWithScope(logger.Engine, "Worker %d: panic processing intent %s: %v", workerID, intent.ID, r)
		}
	}()

	path := "onchain"
	if intent.IsOffRamp {
		path = "offramp"
	}

	s.logger.InfoWithScope(logger.Engine, "Worker %d processing intent %s (%s, amount: %s %s)",
		workerID, intent.ID, path, intent.Amount.String(), intent.Token)

	start := time.Now()
	outcome := s.processIntent(ctx, intent)
	metrics.IntentProcessingTime.WithLabelValues(path).Observe(time.Since(start).Seconds())
	metrics.IntentsProcessed.WithLabelValues(path, outcome).Inc()
}

func (s *Service) markInFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.inFlight[id]; exists {
		return false
	}
	s.inFlight[id] = struct{}{}
	metrics.InFlightIntents.Set(float64(len(s.inFlight)))
	return true
}

func (s *Service) clearInFlight(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
	metrics.InFlightIntents.Set(float64(len(s.inFlight)))
}

// QueueDepth reports how many intents are waiting for a worker.
func (s *Service) QueueDepth() int {
	return len(s.pendingJobs)
}

// InFlightCount reports how many intents are currently being processed.
func (s *Service) InFlightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// BreakerStates reports the gateway breaker states for the status endpoint.
func (s *Service) BreakerStates() map[string]bool {
	states := make(map[string]bool, 2)
	for _, cb := range []*circuitbreaker.CircuitBreaker{s.chainBreaker, s.payoutBreaker} {
		name, open, _ := cb.State()
		states[name] = open
	}
	return states
}
