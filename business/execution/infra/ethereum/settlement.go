// Package ethereum submits flashloan transactions to the settlement
// contract and encodes the per-venue swap payloads it routes.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-bot/business/execution/app"
	"github.com/fd1az/flashloan-bot/business/execution/domain"
	"github.com/fd1az/flashloan-bot/internal/apperror"
	"github.com/fd1az/flashloan-bot/internal/circuitbreaker"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

const (
	tracerName = "github.com/fd1az/flashloan-bot/business/execution/infra/ethereum"

	receiptPollInterval = 2 * time.Second
)

// NodeClient abstracts the node operations the settlement client needs,
// so tests can stand in for a live endpoint.
type NodeClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Ensure SettlementClient implements the port.
var _ app.SettlementClient = (*SettlementClient)(nil)

// SettlementClientConfig holds the contract binding and signing identity.
type SettlementClientConfig struct {
	Contract common.Address
	Executor common.Address
	ChainID  uint64
	// PrivateKey is the executor's signing key in hex. Empty is allowed
	// in dry-run deployments; submission then fails fast.
	PrivateKey string
}

// SettlementClient talks to the settlement contract over a node.
type SettlementClient struct {
	node          NodeClient
	config        SettlementClientConfig
	settlementABI abi.ABI
	legArgs       abi.Arguments
	key           *ecdsa.PrivateKey
	chainID       *big.Int
	logger        logger.LoggerInterface
	cb            *circuitbreaker.CircuitBreaker[[]byte]
	tracer        trace.Tracer
}

// NewSettlementClient creates a client over a node connection.
func NewSettlementClient(node NodeClient, cfg SettlementClientConfig, log logger.LoggerInterface) (*SettlementClient, error) {
	settlementABI, err := abi.JSON(strings.NewReader(SettlementABI))
	if err != nil {
		return nil, fmt.Errorf("parse settlement ABI: %w", err)
	}

	addressSlice, err := abi.NewType("address[]", "", nil)
	if err != nil {
		return nil, fmt.Errorf("build leg argument types: %w", err)
	}
	bytesSlice, err := abi.NewType("bytes[]", "", nil)
	if err != nil {
		return nil, fmt.Errorf("build leg argument types: %w", err)
	}
	legArgs := abi.Arguments{
		{Name: "routers", Type: addressSlice},
		{Name: "tokensIn", Type: addressSlice},
		{Name: "calldatas", Type: bytesSlice},
	}

	var key *ecdsa.PrivateKey
	if cfg.PrivateKey != "" {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse executor private key: %w", err)
		}
	}

	return &SettlementClient{
		node:          node,
		config:        cfg,
		settlementABI: settlementABI,
		legArgs:       legArgs,
		key:           key,
		chainID:       new(big.Int).SetUint64(cfg.ChainID),
		logger:        log,
		cb:            circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("settlement")),
		tracer:        otel.Tracer(tracerName),
	}, nil
}

// RequestFlashLoan signs and submits the borrow-route-repay transaction.
func (c *SettlementClient) RequestFlashLoan(ctx context.Context, req *domain.FlashLoanRequest, gas *domain.GasSettings) (common.Hash, error) {
	ctx, span := c.tracer.Start(ctx, "settlement.request_flashloan",
		trace.WithAttributes(
			attribute.String("asset", req.Asset.Hex()),
			attribute.String("amount", req.Amount.String()),
			attribute.Int("legs", len(req.Legs)),
		),
	)
	defer span.End()

	if c.key == nil {
		return common.Hash{}, apperror.New(apperror.CodeConfigurationError,
			apperror.WithMessage("no executor private key configured"))
	}

	calldata, err := c.packRequest(req)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := c.node.PendingNonceAt(ctx, c.config.Executor)
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeSubmissionFailed,
			apperror.WithMessage("fetching executor nonce"),
			apperror.WithCause(err),
		)
	}

	tx := c.buildTx(nonce, calldata, gas)

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeSubmissionFailed,
			apperror.WithMessage("signing transaction"),
			apperror.WithCause(err),
		)
	}

	if err := c.node.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, apperror.New(apperror.CodeSubmissionFailed,
			apperror.WithMessage("broadcasting transaction"),
			apperror.WithCause(err),
		)
	}

	hash := signed.Hash()
	span.SetAttributes(attribute.String("tx", hash.Hex()))
	c.logger.Info(ctx, "flashloan transaction submitted",
		"tx", hash.Hex(),
		"nonce", nonce,
		"gas_limit", gas.GasLimit,
	)
	return hash, nil
}

func (c *SettlementClient) buildTx(nonce uint64, calldata []byte, gas *domain.GasSettings) *types.Transaction {
	to := c.config.Contract
	if gas.Legacy() {
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &to,
			Gas:      gas.GasLimit,
			GasPrice: gas.GasPrice,
			Data:     calldata,
		})
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		To:        &to,
		Gas:       gas.GasLimit,
		GasTipCap: gas.GasTipCap,
		GasFeeCap: gas.GasFeeCap,
		Data:      calldata,
	})
}

// WaitMined polls for the receipt until the context expires.
func (c *SettlementClient) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.node.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, apperror.New(apperror.CodeConfirmationTimeout,
				apperror.WithMessage(fmt.Sprintf("transaction %s not mined", txHash.Hex())),
				apperror.WithCause(ctx.Err()),
			)
		case <-ticker.C:
		}
	}
}

// EstimateGas dry-runs the flashloan request from the executor account.
func (c *SettlementClient) EstimateGas(ctx context.Context, req *domain.FlashLoanRequest) (uint64, error) {
	calldata, err := c.packRequest(req)
	if err != nil {
		return 0, err
	}

	to := c.config.Contract
	gas, err := c.node.EstimateGas(ctx, ethereum.CallMsg{
		From: c.config.Executor,
		To:   &to,
		Data: calldata,
	})
	if err != nil {
		return 0, apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithMessage("simulating flashloan"),
			apperror.WithCause(err),
		)
	}
	return gas, nil
}

// ActiveVenues lists the router addresses the contract will call.
func (c *SettlementClient) ActiveVenues(ctx context.Context) ([]common.Address, error) {
	calldata, err := c.settlementABI.Pack("getActiveVenues")
	if err != nil {
		return nil, fmt.Errorf("pack getActiveVenues: %w", err)
	}

	to := c.config.Contract
	output, err := c.cb.Execute(func() ([]byte, error) {
		return c.node.CallContract(ctx, ethereum.CallMsg{To: &to, Data: calldata}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithMessage("calling getActiveVenues"),
			apperror.WithCause(err),
		)
	}

	outputs, err := c.settlementABI.Unpack("getActiveVenues", output)
	if err != nil || len(outputs) == 0 {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithMessage("decoding getActiveVenues output"),
			apperror.WithCause(err),
		)
	}

	venues, ok := outputs[0].([]common.Address)
	if !ok {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithMessage("unexpected getActiveVenues output type"))
	}
	return venues, nil
}

// packRequest builds the requestFlashLoan calldata, encoding the legs into
// the callback params when the request does not carry them pre-encoded.
func (c *SettlementClient) packRequest(req *domain.FlashLoanRequest) ([]byte, error) {
	params := req.Params
	if len(params) == 0 {
		var err error
		params, err = c.encodeLegs(req.Legs)
		if err != nil {
			return nil, err
		}
	}

	calldata, err := c.settlementABI.Pack("requestFlashLoan", req.Asset, req.Amount, params)
	if err != nil {
		return nil, fmt.Errorf("pack requestFlashLoan: %w", err)
	}
	return calldata, nil
}

func (c *SettlementClient) encodeLegs(legs []domain.SwapLeg) ([]byte, error) {
	routers := make([]common.Address, len(legs))
	tokensIn := make([]common.Address, len(legs))
	calldatas := make([][]byte, len(legs))
	for i, leg := range legs {
		routers[i] = leg.Router
		tokensIn[i] = leg.TokenIn
		calldatas[i] = leg.Calldata
	}

	packed, err := c.legArgs.Pack(routers, tokensIn, calldatas)
	if err != nil {
		return nil, fmt.Errorf("encode flashloan legs: %w", err)
	}
	return packed, nil
}
