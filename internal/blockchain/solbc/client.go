// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/stakepool-price/internal/blockchain"
	bcrpc "github.com/rovshanmuradov/stakepool-price/internal/blockchain/solbc/rpc"
)

// MaxAccountsPerRequest лимит getMultipleAccounts на узлах Solana RPC
const MaxAccountsPerRequest = 100

// Client – тонкий адаптер для чтения аккаунтов Solana через пул RPC узлов.
type Client struct {
	pool       *bcrpc.Pool
	logger     *zap.Logger
	commitment rpc.CommitmentType
}

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrTooManyAccounts = fmt.Errorf("more than %d accounts requested", MaxAccountsPerRequest)
)

// IsAccountNotFoundError проверяет, является ли ошибка "not found"
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccountNotFound) || errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// NewClient создаёт клиент поверх пула RPC узлов.
func NewClient(rpcURLs []string, logger *zap.Logger, opts bcrpc.Options) (*Client, error) {
	pool, err := bcrpc.NewPool(rpcURLs, logger, opts)
	if err != nil {
		return nil, err
	}
	return &Client{
		pool:       pool,
		logger:     logger.Named("solbc-client"),
		commitment: rpc.CommitmentConfirmed,
	}, nil
}

// Pool возвращает пул узлов клиента.
func (c *Client) Pool() *bcrpc.Pool {
	return c.pool
}

// GetAccountInfo получает информацию об аккаунте.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	result, err := bcrpc.Execute(ctx, c.pool, "getAccountInfo",
		func(ctx context.Context, cl *rpc.Client) (*rpc.GetAccountInfoResult, error) {
			return cl.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
				Commitment: c.commitment,
				Encoding:   solana.EncodingBase64,
			})
		})
	if err != nil {
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		if IsAccountNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
		}
		return nil, err
	}
	if result == nil || result.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
	}
	return result, nil
}

// GetMultipleAccounts получает информацию о нескольких аккаунтах за один запрос
func (c *Client) GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error) {
	if len(pubkeys) == 0 {
		return &rpc.GetMultipleAccountsResult{}, nil
	}
	if len(pubkeys) > MaxAccountsPerRequest {
		return nil, ErrTooManyAccounts
	}

	opts := rpc.GetMultipleAccountsOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	}

	res, err := bcrpc.Execute(ctx, c.pool, "getMultipleAccounts",
		func(ctx context.Context, cl *rpc.Client) (*rpc.GetMultipleAccountsResult, error) {
			return cl.GetMultipleAccountsWithOpts(ctx, pubkeys, &opts)
		})
	if err != nil {
		c.logger.Debug("GetMultipleAccounts error",
			zap.Int("accounts", len(pubkeys)),
			zap.Error(err))
		return nil, err
	}
	if res == nil || len(res.Value) != len(pubkeys) {
		return nil, bcrpc.ErrInvalidResponse
	}
	return res, nil
}

// Гарантируем, что Client реализует интерфейс blockchain.AccountReader.
var _ blockchain.AccountReader = (*Client)(nil)
