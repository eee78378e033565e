package config

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/streampay-hq/streampay-engine/pkg/logger"
)

// Config holds the configuration for the execution engine
type Config struct {
	DatabaseURL       string
	RPCURL            string
	IntentAddress     string
	PrivateKey        string
	PollingInterval   time.Duration
	WorkerCount       int
	DelayRetryBackoff time.Duration
	GatewayTimeout    time.Duration
	StoreWriteRetries int
	MaxGasPrice       *big.Int
	MetricsPort       string
	CircuitBreaker    CircuitBreakerConfig
	Payout            PayoutConfig
	Telegram          TelegramConfig
	LoggerConfig      LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// PayoutConfig holds the off-ramp payout provider configuration
type PayoutConfig struct {
	APIURL string
	APIKey string
}

// TelegramConfig holds the Telegram notification fan-out configuration
type TelegramConfig struct {
	BotToken string
	Enabled  bool
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	databaseURL, err := GetEnvDatabaseURL()
	if err != nil {
		return nil, err
	}

	rpcURL, err := GetEnvRPCURL()
	if err != nil {
		return nil, err
	}

	intentAddress, err := GetEnvIntentContractAddress()
	if err != nil {
		return nil, err
	}

	pollingInterval, err := GetEnvPollingInterval()
	if err != nil {
		return nil, err
	}

	workerCount, err := GetEnvWorkerCount()
	if err != nil {
		return nil, err
	}

	delayRetryBackoff, err := GetEnvDelayRetryBackoff()
	if err != nil {
		return nil, err
	}

	gatewayTimeout, err := GetEnvGatewayTimeout()
	if err != nil {
		return nil, err
	}

	storeWriteRetries, err := GetEnvStoreWriteRetries()
	if err != nil {
		return nil, err
	}

	maxGasPrice, err := GetEnvMaxGasPrice()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	payoutAPIURL, err := GetEnvPayoutAPIURL()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:       databaseURL,
		RPCURL:            rpcURL,
		IntentAddress:     intentAddress,
		PrivateKey:        os.Getenv("EXECUTION_PRIVATE_KEY"),
		PollingInterval:   pollingInterval,
		WorkerCount:       workerCount,
		DelayRetryBackoff: delayRetryBackoff,
		GatewayTimeout:    gatewayTimeout,
		StoreWriteRetries: storeWriteRetries,
		MaxGasPrice:       maxGasPrice,
		MetricsPort:       metricsPort,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		Payout: PayoutConfig{
			APIURL: payoutAPIURL,
			APIKey: os.Getenv("PAYOUT_API_KEY"),
		},
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			Enabled:  os.Getenv("ENABLE_TELEGRAM_NOTIFICATIONS") != "false",
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.PrivateKey == "" {
		return fmt.Errorf("EXECUTION_PRIVATE_KEY environment variable is required")
	}
	if cfg.Payout.APIURL != "" && cfg.Payout.APIKey == "" {
		return fmt.Errorf("PAYOUT_API_KEY is required when PAYOUT_API_URL is set")
	}
	return nil
}
