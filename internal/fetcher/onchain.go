package fetcher

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	erc20ABIJSON = `[
		{"inputs":[],"name":"name","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`
)

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("failed to parse ERC-20 ABI: " + err.Error())
	}
	erc20ABI = parsed
}

// OnChainOptions parameterise the discovery fetcher.
type OnChainOptions struct {
	RPCURL  string
	Timeout time.Duration
}

// OnChain reads contract facts via Ethereum RPC.
type OnChain struct {
	opts      OnChainOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewOnChain builds a new on-chain discovery fetcher.
func NewOnChain(opts OnChainOptions, logger zerolog.Logger) *OnChain {
	return &OnChain{opts: opts, logger: logger.With().Str("component", "onchain_fetcher").Logger()}
}

// Discover reads deployed bytecode, native balance, and ERC-20 metadata for
// an address. Token calls failing is not an error: not every contract is a
// token.
func (o *OnChain) Discover(ctx context.Context, address string) (*ChainInfo, error) {
	if o.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}

	timeout := o.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := o.getClient(ctx)
	if err != nil {
		return nil, err
	}

	addr := common.HexToAddress(address)

	code, err := client.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, err
	}

	balance, err := client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, err
	}

	blockNumber, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	info := &ChainInfo{
		Address:      strings.ToLower(addr.Hex()),
		IsContract:   len(code) > 0,
		BytecodeSize: len(code),
		BalanceWei:   decimal.NewFromBigInt(balance, 0),
		BlockNumber:  blockNumber,
	}

	if info.IsContract {
		if token, err := o.readToken(ctx, client, addr); err == nil {
			info.Token = token
		} else {
			o.logger.Debug().Err(err).Str("address", info.Address).Msg("address does not expose ERC-20 metadata")
		}
	}

	return info, nil
}

func (o *OnChain) readToken(ctx context.Context, client *ethclient.Client, addr common.Address) (*TokenInfo, error) {
	name, err := o.callString(ctx, client, addr, "name")
	if err != nil {
		return nil, err
	}
	symbol, err := o.callString(ctx, client, addr, "symbol")
	if err != nil {
		return nil, err
	}

	payload, err := erc20ABI.Pack("decimals")
	if err != nil {
		return nil, err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, err
	}
	outputs, err := erc20ABI.Unpack("decimals", res)
	if err != nil || len(outputs) != 1 {
		return nil, errors.New("unexpected decimals response")
	}
	decimals, ok := outputs[0].(uint8)
	if !ok {
		return nil, errors.New("failed to decode decimals output")
	}

	payload, err = erc20ABI.Pack("totalSupply")
	if err != nil {
		return nil, err
	}
	res, err = client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, err
	}
	outputs, err = erc20ABI.Unpack("totalSupply", res)
	if err != nil || len(outputs) != 1 {
		return nil, errors.New("unexpected totalSupply response")
	}
	supply, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, errors.New("failed to decode totalSupply output")
	}

	return &TokenInfo{
		Name:        name,
		Symbol:      symbol,
		Decimals:    decimals,
		TotalSupply: decimal.NewFromBigInt(supply, -int32(decimals)),
	}, nil
}

func (o *OnChain) callString(ctx context.Context, client *ethclient.Client, addr common.Address, method string) (string, error) {
	payload, err := erc20ABI.Pack(method)
	if err != nil {
		return "", err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return "", err
	}
	outputs, err := erc20ABI.Unpack(method, res)
	if err != nil || len(outputs) != 1 {
		return "", errors.New("unexpected " + method + " response")
	}
	value, ok := outputs[0].(string)
	if !ok {
		return "", errors.New("failed to decode " + method + " output")
	}
	return value, nil
}

func (o *OnChain) getClient(ctx context.Context) (*ethclient.Client, error) {
	o.clientMux.Lock()
	defer o.clientMux.Unlock()

	if o.client != nil {
		return o.client, nil
	}

	client, err := ethclient.DialContext(ctx, o.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	o.client = client
	return client, nil
}

var _ ChainReader = (*OnChain)(nil)
