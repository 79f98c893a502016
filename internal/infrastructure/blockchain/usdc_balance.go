package blockchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// USDCDecimals is the token precision of USDC on every supported EVM chain
const USDCDecimals = 6

// USDCBalanceReader reads the treasury's USDC balance for deposit detection
type USDCBalanceReader struct {
	factory  *ClientFactory
	rpcURL   string
	token    string
	treasury string
}

// NewUSDCBalanceReader validates the contract and treasury addresses
func NewUSDCBalanceReader(factory *ClientFactory, rpcURL, tokenAddress, treasuryAddress string) (*USDCBalanceReader, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(tokenAddress) {
		return nil, fmt.Errorf("invalid usdc contract address: %q", tokenAddress)
	}
	if !common.IsHexAddress(treasuryAddress) {
		return nil, fmt.Errorf("invalid treasury address: %q", treasuryAddress)
	}
	return &USDCBalanceReader{
		factory:  factory,
		rpcURL:   rpcURL,
		token:    tokenAddress,
		treasury: treasuryAddress,
	}, nil
}

// USDCBalance returns the treasury balance in whole USDC
func (r *USDCBalanceReader) USDCBalance(ctx context.Context) (decimal.Decimal, error) {
	client, err := r.factory.GetEVMClient(r.rpcURL)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := client.TokenBalance(ctx, r.token, r.treasury)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read usdc balance: %w", err)
	}
	return decimal.NewFromBigInt(raw, -USDCDecimals), nil
}
