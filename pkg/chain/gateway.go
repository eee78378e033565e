package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/streampay-hq/streampay-engine/pkg/logger"
)

// Receipt summarizes a mined intent execution.
type Receipt struct {
	TxHash      string
	GasUsed     *big.Int
	GasPrice    *big.Int
	BlockNumber uint64
}

// Gateway is the engine-facing contract of the chain ledger: balance and gas
// reads plus intent execution.
type Gateway interface {
	TokenBalance(ctx context.Context, tokenAddress, walletAddress string) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	ExecuteIntent(ctx context.Context, onChainID *big.Int) (*Receipt, error)
}

// EthGateway submits transactions to the intent contract over JSON-RPC.
type EthGateway struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	address  common.Address
	erc20ABI abi.ABI
	auth     *bind.TransactOpts
	logger   logger.Logger
}

var _ Gateway = (*EthGateway)(nil)

// Config holds the connection parameters for the chain gateway
type Config struct {
	RPCURL        string
	IntentAddress string
	PrivateKeyHex string
}

// NewEthGateway connects to the RPC endpoint and binds the intent contract.
func NewEthGateway(ctx context.Context, cfg Config, log logger.Logger) (*EthGateway, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.IntentAddress == "" {
		return nil, fmt.Errorf("intent contract address is required")
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	intentABI, err := abi.JSON(strings.NewReader(intentABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse intent abi: %w", err)
	}

	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	address := common.HexToAddress(cfg.IntentAddress)
	contract := bind.NewBoundContract(address, intentABI, client, client, client)

	var auth *bind.TransactOpts
	if cfg.PrivateKeyHex != "" {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}

		chainID, err := client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch chain id: %w", err)
		}

		auth, err = bind.NewKeyedTransactorWithChainID(privateKey, chainID)
		if err != nil {
			return nil, fmt.Errorf("create transactor: %w", err)
		}
	}

	return &EthGateway{
		client:   client,
		contract: contract,
		address:  address,
		erc20ABI: erc20ABI,
		auth:     auth,
		logger:   log,
	}, nil
}

// TokenBalance reads the ERC20 balance of a wallet.
func (g *EthGateway) TokenBalance(ctx context.Context, tokenAddress, walletAddress string) (*big.Int, error) {
	token := bind.NewBoundContract(common.HexToAddress(tokenAddress), g.erc20ABI, g.client, g.client, g.client)

	var out []interface{}
	callOpts := &bind.CallOpts{Context: ctx}
	if err := token.Call(callOpts, &out, "balanceOf", common.HexToAddress(walletAddress)); err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}
	if len(out) == 0 || out[0] == nil {
		return nil, fmt.Errorf("empty result from balanceOf call")
	}

	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("invalid balanceOf result type")
	}
	return balance, nil
}

// GasPrice returns the node's suggested gas price.
func (g *EthGateway) GasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	return gasPrice, nil
}

// ExecuteIntent calls the intent contract's executeIntent and waits for the
// transaction to be mined. A revert surfaces as an error.
func (g *EthGateway) ExecuteIntent(ctx context.Context, onChainID *big.Int) (*Receipt, error) {
	if g.auth == nil {
		return nil, fmt.Errorf("no execution wallet configured")
	}
	if onChainID == nil {
		return nil, fmt.Errorf("intent has no on-chain id")
	}

	opts := *g.auth
	opts.Context = ctx

	tx, err := g.contract.Transact(&opts, "executeIntent", onChainID)
	if err != nil {
		return nil, fmt.Errorf("submit executeIntent: %w", err)
	}

	g.logger.InfoWithScope(logger.Chain, "Submitted executeIntent for on-chain id %s: %s", onChainID.String(), tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, g.client, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for executeIntent receipt: %w", err)
	}
	if receipt.Status == 0 {
		return nil, fmt.Errorf("executeIntent reverted: %s", tx.Hash().Hex())
	}

	gasPrice := receipt.EffectiveGasPrice
	if gasPrice == nil {
		gasPrice = tx.GasPrice()
	}

	return &Receipt{
		TxHash:      tx.Hash().Hex(),
		GasUsed:     new(big.Int).SetUint64(receipt.GasUsed),
		GasPrice:    gasPrice,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// CreateIntent mirrors a newly created intent on the ledger contract and
// returns the transaction hash. Used by the CRUD path for ledger-mirrored
// intents, not by the execution loop.
func (g *EthGateway) CreateIntent(ctx context.Context, recipient string, amount, frequency, safetyBuffer *big.Int) (string, error) {
	return g.transact(ctx, "createIntent", common.HexToAddress(recipient), amount, frequency, safetyBuffer)
}

// PauseIntent pauses a ledger-mirrored intent on chain.
func (g *EthGateway) PauseIntent(ctx context.Context, onChainID *big.Int) (string, error) {
	return g.transact(ctx, "pauseIntent", onChainID)
}

// ResumeIntent resumes a ledger-mirrored intent on chain.
func (g *EthGateway) ResumeIntent(ctx context.Context, onChainID *big.Int) (string, error) {
	return g.transact(ctx, "resumeIntent", onChainID)
}

// CancelIntent removes a ledger-mirrored intent on chain.
func (g *EthGateway) CancelIntent(ctx context.Context, onChainID *big.Int) (string, error) {
	return g.transact(ctx, "deleteIntent", onChainID)
}

func (g *EthGateway) transact(ctx context.Context, method string, args ...interface{}) (string, error) {
	if g.auth == nil {
		return "", fmt.Errorf("no execution wallet configured")
	}

	opts := *g.auth
	opts.Context = ctx

	tx, err := g.contract.Transact(&opts, method, args...)
	if err != nil {
		return "", fmt.Errorf("submit %s: %w", method, err)
	}

	receipt, err := bind.WaitMined(ctx, g.client, tx)
	if err != nil {
		return "", fmt.Errorf("wait for %s receipt: %w", method, err)
	}
	if receipt.Status == 0 {
		return "", fmt.Errorf("%s reverted: %s", method, tx.Hash().Hex())
	}

	return tx.Hash().Hex(), nil
}

// Connected reports whether the RPC client is usable, for readiness checks.
func (g *EthGateway) Connected(ctx context.Context) bool {
	if g.client == nil {
		return false
	}
	_, err := g.client.BlockNumber(ctx)
	return err == nil
}
