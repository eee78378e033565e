package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/streampay-hq/streampay-engine/pkg/logger"
)

const (
	// DefaultPollingInterval defines the default scheduler tick interval in seconds
	DefaultPollingInterval = 60

	// DefaultWorkerCount defines the default number of workers to process due intents
	DefaultWorkerCount = 5

	// DefaultDelayRetryBackoff defines the default reschedule backoff after a
	// constraint delay, in minutes
	DefaultDelayRetryBackoff = 5

	// DefaultGatewayTimeout defines the default timeout for gateway calls in seconds
	DefaultGatewayTimeout = 30

	// DefaultStoreWriteRetries defines how many times an outcome write is retried
	// before the engine gives up and alerts
	DefaultStoreWriteRetries = 3

	// DefaultMetricsPort defines the default port for the health/metrics server
	DefaultMetricsPort = "8080"

	// DefaultCircuitBreakerEnabled defines whether the gateway circuit breakers are enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before a breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the failure-counting window in seconds
	DefaultCircuitBreakerWindow = 60

	// DefaultCircuitBreakerReset defines the breaker reset timeout in seconds
	DefaultCircuitBreakerReset = 120
)

// GetEnvDatabaseURL returns the Postgres connection string
func GetEnvDatabaseURL() (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "", fmt.Errorf("DATABASE_URL environment variable is required")
	}
	return dsn, nil
}

// GetEnvRPCURL returns the chain RPC endpoint
func GetEnvRPCURL() (string, error) {
	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		return "", fmt.Errorf("RPC_URL environment variable is required")
	}
	if _, err := url.ParseRequestURI(rpcURL); err != nil {
		return "", fmt.Errorf("invalid RPC_URL value: %s, must be a valid URL", rpcURL)
	}
	return rpcURL, nil
}

// GetEnvIntentContractAddress returns the on-chain intent contract address
func GetEnvIntentContractAddress() (string, error) {
	addr := os.Getenv("INTENT_CONTRACT_ADDRESS")
	if addr == "" {
		return "", fmt.Errorf("INTENT_CONTRACT_ADDRESS environment variable is required")
	}
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("invalid INTENT_CONTRACT_ADDRESS value: %s, must be a valid address", addr)
	}
	return addr, nil
}

// GetEnvPollingInterval returns the scheduler tick interval from environment variables
func GetEnvPollingInterval() (time.Duration, error) {
	pollingInterval := os.Getenv("POLLING_INTERVAL")
	if pollingInterval == "" {
		return time.Duration(DefaultPollingInterval) * time.Second, nil
	}

	interval, err := strconv.Atoi(pollingInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid POLLING_INTERVAL value: %s, must be an integer", pollingInterval)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("POLLING_INTERVAL must be greater than 0")
	}
	return time.Duration(interval) * time.Second, nil
}

// GetEnvWorkerCount returns the number of workers from environment variables
func GetEnvWorkerCount() (int, error) {
	workerCount := os.Getenv("WORKER_COUNT")
	if workerCount == "" {
		return DefaultWorkerCount, nil
	}

	count, err := strconv.Atoi(workerCount)
	if err != nil {
		return 0, fmt.Errorf("invalid WORKER_COUNT value: %s, must be an integer", workerCount)
	}
	if count <= 0 {
		return 0, fmt.Errorf("WORKER_COUNT must be greater than 0")
	}
	return count, nil
}

// GetEnvDelayRetryBackoff returns the reschedule backoff applied after a constraint delay
func GetEnvDelayRetryBackoff() (time.Duration, error) {
	backoff := os.Getenv("DELAY_RETRY_BACKOFF")
	if backoff == "" {
		return DefaultDelayRetryBackoff * time.Minute, nil
	}

	parsed, err := time.ParseDuration(backoff)
	if err != nil {
		return 0, fmt.Errorf("invalid DELAY_RETRY_BACKOFF value: %s, must be a valid duration string", backoff)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("DELAY_RETRY_BACKOFF must be greater than 0")
	}
	return parsed, nil
}

// GetEnvGatewayTimeout returns the per-call timeout for gateway operations
func GetEnvGatewayTimeout() (time.Duration, error) {
	timeout := os.Getenv("GATEWAY_TIMEOUT")
	if timeout == "" {
		return DefaultGatewayTimeout * time.Second, nil
	}

	parsed, err := time.ParseDuration(timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid GATEWAY_TIMEOUT value: %s, must be a valid duration string", timeout)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("GATEWAY_TIMEOUT must be greater than 0")
	}
	return parsed, nil
}

// GetEnvStoreWriteRetries returns the number of retries for outcome writes
func GetEnvStoreWriteRetries() (int, error) {
	retries := os.Getenv("STORE_WRITE_RETRIES")
	if retries == "" {
		return DefaultStoreWriteRetries, nil
	}

	retriesInt, err := strconv.Atoi(retries)
	if err != nil {
		return 0, fmt.Errorf("invalid STORE_WRITE_RETRIES value: %s, must be an integer", retries)
	}
	if retriesInt < 0 {
		return 0, fmt.Errorf("STORE_WRITE_RETRIES must be greater than or equal to 0")
	}
	return retriesInt, nil
}

// GetEnvMetricsPort returns the health/metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvCircuitBreakerEnabled returns whether the gateway circuit breakers are enabled
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvMaxGasPrice returns the engine-wide gas price ceiling, zero meaning no ceiling.
// Individual intents may set a stricter ceiling of their own.
func GetEnvMaxGasPrice() (*big.Int, error) {
	maxGasPrice := os.Getenv("MAX_GAS_PRICE")
	if maxGasPrice == "" {
		return big.NewInt(0), nil
	}

	maxGasPriceBig := new(big.Int)
	if _, ok := maxGasPriceBig.SetString(maxGasPrice, 10); !ok {
		return nil, fmt.Errorf("invalid MAX_GAS_PRICE value: %s, must be a valid integer string", maxGasPrice)
	}

	if maxGasPriceBig.Sign() < 0 {
		return nil, fmt.Errorf("MAX_GAS_PRICE must be greater than or equal to 0")
	}
	return maxGasPriceBig, nil
}

// GetEnvPayoutAPIURL returns the off-ramp payout provider endpoint
func GetEnvPayoutAPIURL() (string, error) {
	apiURL := os.Getenv("PAYOUT_API_URL")
	if apiURL == "" {
		return "", nil
	}

	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return "", fmt.Errorf("invalid PAYOUT_API_URL value: %s, must be a valid URL", apiURL)
	}
	return apiURL, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return logger.InfoLevel, nil
	}

	switch level {
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of 'debug', 'info', 'notice', 'error'", level)
}

// GetEnvLogColoring returns whether log coloring is enabled
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}
