package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/flashloan-bot/business/blockchain/app"
	"github.com/fd1az/flashloan-bot/internal/apperror"
)

// BalanceReader reads native balances from the node.
type BalanceReader struct {
	client *ethclient.Client
}

var _ app.BalanceReader = (*BalanceReader)(nil)

// NewBalanceReader creates a balance reader over an existing node client.
func NewBalanceReader(client *ethclient.Client) *BalanceReader {
	return &BalanceReader{client: client}
}

// NativeBalance reads the current native currency balance of an account.
func (r *BalanceReader) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	balance, err := r.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, apperror.New(apperror.CodeBalanceCheckFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("balance of %s", addr.Hex())))
	}
	return balance, nil
}
