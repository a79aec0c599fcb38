package fetcher

import (
	"context"
	"errors"
	"fmt"
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
	aggregatorABIJSON = `[{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}]`
)

var (
	aggregatorABI abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse Chainlink aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// OracleOptions parameterise the on-chain price reader.
type OracleOptions struct {
	RPCURL string
	// Feeds maps asset ids to Chainlink <ASSET>/USD aggregator addresses.
	Feeds   map[string]string
	Timeout time.Duration
}

// Oracle reads USD prices from Chainlink aggregators over Ethereum RPC.
type Oracle struct {
	opts      OracleOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
	decimals  map[common.Address]uint8
}

// NewOracle builds a new on-chain price reader.
func NewOracle(opts OracleOptions, logger zerolog.Logger) *Oracle {
	return &Oracle{
		opts:     opts,
		logger:   logger.With().Str("component", "oracle_fetcher").Logger(),
		decimals: make(map[common.Address]uint8),
	}
}

// FetchPrice reads latestRoundData of the asset's feed.
func (o *Oracle) FetchPrice(ctx context.Context, asset string) (float64, error) {
	if o.opts.RPCURL == "" {
		return 0, errors.New("ethereum rpc url not configured")
	}
	feed, ok := o.opts.Feeds[asset]
	if !ok || feed == "" {
		return 0, fmt.Errorf("%w: no chainlink feed for %s", ErrAssetMissing, asset)
	}
	if !common.IsHexAddress(feed) {
		return 0, fmt.Errorf("invalid chainlink feed address for %s: %q", asset, feed)
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
		return 0, err
	}

	addr := common.HexToAddress(feed)
	dec, err := o.feedDecimals(ctx, client, addr)
	if err != nil {
		return 0, err
	}

	outputs, err := o.call(ctx, client, addr, "latestRoundData")
	if err != nil {
		return 0, err
	}
	if len(outputs) != 5 {
		return 0, fmt.Errorf("%w: unexpected latestRoundData response", ErrMalformedQuote)
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok || answer.Sign() <= 0 {
		return 0, fmt.Errorf("%w: non-positive answer from %s feed", ErrMalformedQuote, asset)
	}

	price := decimal.NewFromBigInt(answer, -int32(dec))
	if updatedAt, ok := outputs[3].(*big.Int); ok {
		o.logger.Debug().Str("asset", asset).
			Time("updated_at", time.Unix(updatedAt.Int64(), 0).UTC()).
			Str("price_usd", price.String()).
			Msg("oracle price read")
	}
	return price.InexactFloat64(), nil
}

func (o *Oracle) feedDecimals(ctx context.Context, client *ethclient.Client, addr common.Address) (uint8, error) {
	o.clientMux.Lock()
	dec, ok := o.decimals[addr]
	o.clientMux.Unlock()
	if ok {
		return dec, nil
	}

	outputs, err := o.call(ctx, client, addr, "decimals")
	if err != nil {
		return 0, err
	}
	if len(outputs) != 1 {
		return 0, fmt.Errorf("%w: unexpected decimals response", ErrMalformedQuote)
	}
	dec, ok = outputs[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: failed to decode decimals output", ErrMalformedQuote)
	}

	o.clientMux.Lock()
	o.decimals[addr] = dec
	o.clientMux.Unlock()
	return dec, nil
}

func (o *Oracle) call(ctx context.Context, client *ethclient.Client, addr common.Address, method string) ([]interface{}, error) {
	payload, err := aggregatorABI.Pack(method)
	if err != nil {
		return nil, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	return aggregatorABI.Unpack(method, res)
}

func (o *Oracle) getClient(ctx context.Context) (*ethclient.Client, error) {
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

// Close drops the RPC connection, if any.
func (o *Oracle) Close() {
	o.clientMux.Lock()
	defer o.clientMux.Unlock()
	if o.client != nil {
		o.client.Close()
		o.client = nil
	}
}

var _ PriceFetcher = (*Oracle)(nil)
