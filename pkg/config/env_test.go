package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampay-hq/streampay-engine/pkg/logger"
)

func TestGetEnvPollingInterval(t *testing.T) {
	t.Setenv("POLLING_INTERVAL", "")
	interval, err := GetEnvPollingInterval()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, interval)

	t.Setenv("POLLING_INTERVAL", "15")
	interval, err = GetEnvPollingInterval()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, interval)

	t.Setenv("POLLING_INTERVAL", "abc")
	_, err = GetEnvPollingInterval()
	assert.Error(t, err)

	t.Setenv("POLLING_INTERVAL", "0")
	_, err = GetEnvPollingInterval()
	assert.Error(t, err)
}

func TestGetEnvDelayRetryBackoff(t *testing.T) {
	t.Setenv("DELAY_RETRY_BACKOFF", "")
	backoff, err := GetEnvDelayRetryBackoff()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, backoff)

	t.Setenv("DELAY_RETRY_BACKOFF", "90s")
	backoff, err = GetEnvDelayRetryBackoff()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, backoff)

	t.Setenv("DELAY_RETRY_BACKOFF", "-1m")
	_, err = GetEnvDelayRetryBackoff()
	assert.Error(t, err)
}

func TestGetEnvRPCURL(t *testing.T) {
	t.Setenv("RPC_URL", "")
	_, err := GetEnvRPCURL()
	assert.Error(t, err)

	t.Setenv("RPC_URL", "https://rpc.example.com")
	rpcURL, err := GetEnvRPCURL()
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example.com", rpcURL)

	t.Setenv("RPC_URL", "not a url")
	_, err = GetEnvRPCURL()
	assert.Error(t, err)
}

func TestGetEnvIntentContractAddress(t *testing.T) {
	t.Setenv("INTENT_CONTRACT_ADDRESS", "")
	_, err := GetEnvIntentContractAddress()
	assert.Error(t, err)

	t.Setenv("INTENT_CONTRACT_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	addr, err := GetEnvIntentContractAddress()
	require.NoError(t, err)
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", addr)

	t.Setenv("INTENT_CONTRACT_ADDRESS", "0x1234")
	_, err = GetEnvIntentContractAddress()
	assert.Error(t, err)
}

func TestGetEnvMaxGasPrice(t *testing.T) {
	t.Setenv("MAX_GAS_PRICE", "")
	maxGasPrice, err := GetEnvMaxGasPrice()
	require.NoError(t, err)
	assert.Zero(t, maxGasPrice.Sign())

	t.Setenv("MAX_GAS_PRICE", "50000000000")
	maxGasPrice, err = GetEnvMaxGasPrice()
	require.NoError(t, err)
	assert.Equal(t, "50000000000", maxGasPrice.String())

	t.Setenv("MAX_GAS_PRICE", "-1")
	_, err = GetEnvMaxGasPrice()
	assert.Error(t, err)

	t.Setenv("MAX_GAS_PRICE", "fast")
	_, err = GetEnvMaxGasPrice()
	assert.Error(t, err)
}

func TestGetEnvStoreWriteRetries(t *testing.T) {
	t.Setenv("STORE_WRITE_RETRIES", "")
	retries, err := GetEnvStoreWriteRetries()
	require.NoError(t, err)
	assert.Equal(t, DefaultStoreWriteRetries, retries)

	// Zero retries is a valid setting: write once, alert on failure.
	t.Setenv("STORE_WRITE_RETRIES", "0")
	retries, err = GetEnvStoreWriteRetries()
	require.NoError(t, err)
	assert.Zero(t, retries)

	t.Setenv("STORE_WRITE_RETRIES", "-1")
	_, err = GetEnvStoreWriteRetries()
	assert.Error(t, err)
}

func TestGetEnvLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	level, err := GetEnvLogLevel()
	require.NoError(t, err)
	assert.Equal(t, logger.InfoLevel, level)

	t.Setenv("LOG_LEVEL", "debug")
	level, err = GetEnvLogLevel()
	require.NoError(t, err)
	assert.Equal(t, logger.DebugLevel, level)

	t.Setenv("LOG_LEVEL", "verbose")
	_, err = GetEnvLogLevel()
	assert.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/streampay")
	t.Setenv("RPC_URL", "https://rpc.example.com")
	t.Setenv("INTENT_CONTRACT_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	t.Setenv("EXECUTION_PRIVATE_KEY", "")
	t.Setenv("PAYOUT_API_URL", "")
	t.Setenv("PAYOUT_API_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXECUTION_PRIVATE_KEY")

	t.Setenv("EXECUTION_PRIVATE_KEY", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.PollingInterval)
	assert.Equal(t, DefaultWorkerCount, cfg.WorkerCount)
	assert.True(t, cfg.CircuitBreaker.Enabled)

	// A payout URL without a key is a misconfiguration.
	t.Setenv("PAYOUT_API_URL", "https://payouts.example.com")
	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYOUT_API_KEY")

	t.Setenv("PAYOUT_API_KEY", "secret")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://payouts.example.com", cfg.Payout.APIURL)
}
