package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streampay-hq/streampay-engine/pkg/logger"
	"github.com/streampay-hq/streampay-engine/pkg/models"
)

// ErrNotFound is returned when an intent does not exist or a status
// transition is not allowed from its current state.
var ErrNotFound = errors.New("intent not found or transition not allowed")

// PostgresStore is the system of record for intents, their execution history
// and user notifications.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS intents (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    recipient TEXT NOT NULL,
    amount NUMERIC(78,0) NOT NULL,
    token TEXT NOT NULL,
    token_address TEXT NOT NULL,
    wallet_address TEXT NOT NULL,
    frequency TEXT NOT NULL,
    safety_buffer NUMERIC(78,0) NOT NULL DEFAULT 0,
    max_gas_price NUMERIC(78,0),
    time_window_start TEXT,
    time_window_end TEXT,
    is_off_ramp BOOLEAN NOT NULL DEFAULT FALSE,
    off_ramp_phone TEXT,
    off_ramp_country TEXT,
    status TEXT NOT NULL DEFAULT 'ACTIVE',
    next_execution TIMESTAMPTZ,
    last_execution TIMESTAMPTZ,
    execution_count INT NOT NULL DEFAULT 0,
    failure_count INT NOT NULL DEFAULT 0,
    on_chain_id NUMERIC(78,0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_intents_due
    ON intents (next_execution) WHERE status = 'ACTIVE';

CREATE TABLE IF NOT EXISTS executions (
    id TEXT PRIMARY KEY,
    intent_id TEXT NOT NULL REFERENCES intents(id),
    status TEXT NOT NULL,
    amount NUMERIC(78,0) NOT NULL DEFAULT 0,
    tx_hash TEXT,
    gas_used NUMERIC(78,0),
    gas_price NUMERIC(78,0),
    block_number BIGINT,
    payout_id TEXT,
    payout_status TEXT,
    error_message TEXT,
    delay_reason TEXT,
    executed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_executions_intent
    ON executions (intent_id, executed_at DESC);

CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    data JSONB NOT NULL DEFAULT '{}',
    read BOOLEAN NOT NULL DEFAULT FALSE,
    sent_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS telegram_links (
    user_id TEXT PRIMARY KEY,
    chat_id TEXT NOT NULL
);
`

// NewPostgresStore connects to Postgres using the DSN and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, log logger.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, err
	}

	log.InfoWithScope(logger.Store, "Connected to Postgres, schema ensured")

	return &PostgresStore{pool: pool, logger: log}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks database connectivity, for readiness probes.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const intentColumns = `
id, user_id, name, recipient, amount::text, token, token_address,
wallet_address, frequency, safety_buffer::text, max_gas_price::text,
time_window_start, time_window_end, is_off_ramp, off_ramp_phone,
off_ramp_country, status, next_execution, last_execution, execution_count,
failure_count, on_chain_id::text, created_at, updated_at`

// FindDueIntents returns active intents whose next execution is due. A null
// next_execution means the intent is never due, which is how a ONCE intent
// retires after firing.
func (s *PostgresStore) FindDueIntents(ctx context.Context, now time.Time) ([]models.Intent, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+intentColumns+`
FROM intents
WHERE status = 'ACTIVE' AND next_execution IS NOT NULL AND next_execution <= $1
ORDER BY next_execution
`, now)
	if err != nil {
		return nil, fmt.Errorf("query due intents: %w", err)
	}
	defer rows.Close()

	var intents []models.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, rows.Err()
}

// GetIntent fetches a single intent by id.
func (s *PostgresStore) GetIntent(ctx context.Context, id string) (*models.Intent, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+intentColumns+` FROM intents WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	intent, err := scanIntent(rows)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// ListUserIntents returns a user's intents, newest first.
func (s *PostgresStore) ListUserIntents(ctx context.Context, userID string) ([]models.Intent, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+intentColumns+` FROM intents WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []models.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, rows.Err()
}

// CreateIntent validates and persists a new intent with its first scheduled
// execution. Intents are born ACTIVE.
func (s *PostgresStore) CreateIntent(ctx context.Context, p models.CreateIntentParams, firstExecution *time.Time) (*models.Intent, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	var phone, country *string
	if p.OffRamp != nil {
		phone, country = &p.OffRamp.PhoneNumber, &p.OffRamp.Country
	}
	var maxGasPrice *string
	if p.MaxGasPrice != "" {
		maxGasPrice = &p.MaxGasPrice
	}

	_, err := s.pool.Exec(ctx, `
INSERT INTO intents (
    id, user_id, name, recipient, amount, token, token_address, wallet_address,
    frequency, safety_buffer, max_gas_price, time_window_start, time_window_end,
    is_off_ramp, off_ramp_phone, off_ramp_country, status, next_execution
) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10::numeric,
          $11::numeric, NULLIF($12, ''), NULLIF($13, ''), $14, $15, $16, 'ACTIVE', $17)
`, id, p.UserID, p.Name, p.Recipient, p.Amount, p.Token, p.TokenAddress,
		p.WalletAddress, p.Frequency, p.SafetyBuffer, maxGasPrice,
		p.TimeWindowStart, p.TimeWindowEnd, p.IsOffRamp, phone, country, firstExecution)
	if err != nil {
		return nil, fmt.Errorf("insert intent: %w", err)
	}

	return s.GetIntent(ctx, id)
}

// allowedTransitions guards user-initiated status changes. FAILED is terminal
// until the user reactivates; CANCELLED is terminal for good.
var allowedTransitions = map[models.IntentStatus][]models.IntentStatus{
	models.IntentStatusPaused:    {models.IntentStatusActive},
	models.IntentStatusActive:    {models.IntentStatusPaused, models.IntentStatusFailed},
	models.IntentStatusCancelled: {models.IntentStatusActive, models.IntentStatusPaused},
}

// SetStatus applies a user-initiated status change. Cancellation is a status
// change, never a row delete.
func (s *PostgresStore) SetStatus(ctx context.Context, id, userID string, status models.IntentStatus) error {
	from, ok := allowedTransitions[status]
	if !ok {
		return fmt.Errorf("unsupported status transition to %s", status)
	}

	states := make([]string, len(from))
	for i, st := range from {
		states[i] = string(st)
	}

	tag, err := s.pool.Exec(ctx, `
UPDATE intents SET status = $1, updated_at = now()
WHERE id = $2 AND user_id = $3 AND status = ANY($4)
`, status, id, userID, states)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reactivate restores a FAILED or PAUSED intent to ACTIVE and schedules its
// next run.
func (s *PostgresStore) Reactivate(ctx context.Context, id, userID string, next time.Time) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE intents SET status = 'ACTIVE', failure_count = 0, next_execution = $1, updated_at = now()
WHERE id = $2 AND user_id = $3 AND status IN ('FAILED', 'PAUSED')
`, next, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordSuccess appends a SUCCESS execution and advances the intent in one
// transaction: last/next execution, the success counter, and the failure
// streak reset must all land together with the audit row.
func (s *PostgresStore) RecordSuccess(ctx context.Context, intentID string, exec models.Execution, next *time.Time) error {
	return s.recordOutcome(ctx, intentID, exec, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
UPDATE intents
SET last_execution = $1, next_execution = $2,
    execution_count = execution_count + 1, failure_count = 0, updated_at = now()
WHERE id = $3
`, exec.ExecutedAt, next, intentID)
		return err
	})
}

// RecordDelay appends a DELAYED execution and pushes the next attempt out by
// the retry backoff, leaving the intent ACTIVE.
func (s *PostgresStore) RecordDelay(ctx context.Context, intentID string, exec models.Execution, next time.Time) error {
	return s.recordOutcome(ctx, intentID, exec, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
UPDATE intents SET next_execution = $1, updated_at = now() WHERE id = $2
`, next, intentID)
		return err
	})
}

// RecordFailure appends a FAILED execution and halts the intent. Execution
// errors are fail-closed: the intent stays FAILED until the user reactivates
// it.
func (s *PostgresStore) RecordFailure(ctx context.Context, intentID string, exec models.Execution) error {
	return s.recordOutcome(ctx, intentID, exec, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
UPDATE intents SET failure_count = failure_count + 1, status = 'FAILED', updated_at = now()
WHERE id = $1
`, intentID)
		return err
	})
}

func (s *PostgresStore) recordOutcome(ctx context.Context, intentID string, exec models.Execution, update func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin outcome tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if exec.ID == "" {
		exec.ID = uuid.NewString()
	}

	_, err = tx.Exec(ctx, `
INSERT INTO executions (
    id, intent_id, status, amount, tx_hash, gas_used, gas_price, block_number,
    payout_id, payout_status, error_message, delay_reason, executed_at
) VALUES ($1, $2, $3, $4::numeric, NULLIF($5, ''), $6::numeric, $7::numeric,
          $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), $13)
`, exec.ID, intentID, exec.Status, bigString(exec.Amount),
		exec.TxHash, bigPtr(exec.GasUsed), bigPtr(exec.GasPrice), blockNumber(exec.BlockNumber),
		exec.PayoutID, exec.PayoutStatus, exec.ErrorMessage, exec.DelayReason, exec.ExecutedAt)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}

	if err := update(tx); err != nil {
		return fmt.Errorf("update intent: %w", err)
	}

	return tx.Commit(ctx)
}

// RecentExecutions returns an intent's latest execution records.
func (s *PostgresStore) RecentExecutions(ctx context.Context, intentID string, limit int) ([]models.Execution, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, intent_id, status, amount::text, COALESCE(tx_hash, ''),
       gas_used::text, gas_price::text, COALESCE(block_number, 0),
       COALESCE(payout_id, ''), COALESCE(payout_status, ''),
       COALESCE(error_message, ''), COALESCE(delay_reason, ''), executed_at
FROM executions WHERE intent_id = $1 ORDER BY executed_at DESC LIMIT $2
`, intentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []models.Execution
	for rows.Next() {
		var e models.Execution
		var amount string
		var gasUsed, gasPrice *string
		var blockNum int64
		if err := rows.Scan(&e.ID, &e.IntentID, &e.Status, &amount, &e.TxHash,
			&gasUsed, &gasPrice, &blockNum, &e.PayoutID, &e.PayoutStatus,
			&e.ErrorMessage, &e.DelayReason, &e.ExecutedAt); err != nil {
			return nil, err
		}
		e.Amount = mustBig(amount)
		e.GasUsed = maybeBig(gasUsed)
		e.GasPrice = maybeBig(gasPrice)
		e.BlockNumber = uint64(blockNum)
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

// InsertNotification persists an in-app notification row.
func (s *PostgresStore) InsertNotification(ctx context.Context, userID string, n models.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("encode notification data: %w", err)
	}
	if n.Data == nil {
		data = []byte("{}")
	}

	_, err = s.pool.Exec(ctx, `
INSERT INTO notifications (id, user_id, type, title, message, data)
VALUES ($1, $2, $3, $4, $5, $6)
`, uuid.NewString(), userID, n.Type, n.Title, n.Message, data)
	return err
}

// TelegramChatID returns the chat linked to a user, or "" when none is linked.
func (s *PostgresStore) TelegramChatID(ctx context.Context, userID string) (string, error) {
	var chatID string
	err := s.pool.QueryRow(ctx, `SELECT chat_id FROM telegram_links WHERE user_id = $1`, userID).Scan(&chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return chatID, nil
}

func scanIntent(rows pgx.Rows) (models.Intent, error) {
	var (
		i                       models.Intent
		amount, safetyBuffer    string
		maxGasPrice, onChainID  *string
		windowStart, windowEnd  *string
		offRampPhone, offRampCo *string
	)

	err := rows.Scan(&i.ID, &i.UserID, &i.Name, &i.Recipient, &amount, &i.Token,
		&i.TokenAddress, &i.WalletAddress, &i.Frequency, &safetyBuffer,
		&maxGasPrice, &windowStart, &windowEnd, &i.IsOffRamp, &offRampPhone,
		&offRampCo, &i.Status, &i.NextExecution, &i.LastExecution,
		&i.ExecutionCount, &i.FailureCount, &onChainID, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return models.Intent{}, fmt.Errorf("scan intent: %w", err)
	}

	i.Amount = mustBig(amount)
	i.SafetyBuffer = mustBig(safetyBuffer)
	i.MaxGasPrice = maybeBig(maxGasPrice)
	i.OnChainID = maybeBig(onChainID)
	if windowStart != nil {
		i.TimeWindowStart = *windowStart
	}
	if windowEnd != nil {
		i.TimeWindowEnd = *windowEnd
	}
	if i.IsOffRamp && offRampPhone != nil && offRampCo != nil {
		i.OffRamp = &models.OffRampDetails{PhoneNumber: *offRampPhone, Country: *offRampCo}
	}
	return i, nil
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

func maybeBig(s *string) *big.Int {
	if s == nil {
		return nil
	}
	return mustBig(*s)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func bigPtr(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func blockNumber(v uint64) *int64 {
	if v == 0 {
		return nil
	}
	n := int64(v)
	return &n
}
