package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	btcFeed = "0xF4030086522a5bEEa4988F8cA5B36dbC97BeE88c"
	ethFeed = "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"
)

// aggregatorNode answers eth_call for Chainlink aggregators keyed by address.
type aggregatorNode struct {
	mu            sync.Mutex
	answers       map[common.Address]*big.Int
	decimals      uint8
	decimalsCalls int
}

func (n *aggregatorNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method != "eth_call" || len(req.Params) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var call struct {
		To    common.Address `json:"to"`
		Input hexutil.Bytes  `json:"input"`
	}
	if err := json.Unmarshal(req.Params[0], &call); err != nil || len(call.Input) < 4 {
		http.Error(w, "bad call", http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	var (
		out []byte
		err error
	)
	switch selector := call.Input[:4]; {
	case bytes.Equal(selector, aggregatorABI.Methods["decimals"].ID):
		n.decimalsCalls++
		out, err = aggregatorABI.Methods["decimals"].Outputs.Pack(n.decimals)
	case bytes.Equal(selector, aggregatorABI.Methods["latestRoundData"].ID):
		answer, ok := n.answers[call.To]
		if !ok {
			answer = big.NewInt(0)
		}
		updated := big.NewInt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Unix())
		out, err = aggregatorABI.Methods["latestRoundData"].Outputs.Pack(
			big.NewInt(110680464442257320), answer, updated, updated, big.NewInt(110680464442257320))
	default:
		http.Error(w, "unknown selector", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"result":  hexutil.Encode(out),
	})
}

func (n *aggregatorNode) decimalsCallCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.decimalsCalls
}

func TestOracleMissingConfig(t *testing.T) {
	off := NewOracle(OracleOptions{}, noopLogger())
	if _, err := off.FetchPrice(context.Background(), "bitcoin"); err == nil {
		t.Fatal("未配置 RPC 时应报错")
	}

	off = NewOracle(OracleOptions{RPCURL: "http://localhost"}, noopLogger())
	_, err := off.FetchPrice(context.Background(), "bitcoin")
	if !errors.Is(err, ErrAssetMissing) {
		t.Fatalf("缺少 feed 地址应返回 ErrAssetMissing, 实际 %v", err)
	}

	off = NewOracle(OracleOptions{RPCURL: "http://localhost", Feeds: map[string]string{"bitcoin": "not-an-address"}}, noopLogger())
	if _, err := off.FetchPrice(context.Background(), "bitcoin"); err == nil {
		t.Fatal("非法地址应报错")
	}
}

func TestOracleScalesAnswerByDecimals(t *testing.T) {
	node := &aggregatorNode{
		decimals: 8,
		answers: map[common.Address]*big.Int{
			common.HexToAddress(btcFeed): big.NewInt(5000012345678),
		},
	}
	srv := httptest.NewServer(node)
	defer srv.Close()

	oracle := NewOracle(OracleOptions{
		RPCURL:  srv.URL,
		Feeds:   map[string]string{"bitcoin": btcFeed},
		Timeout: time.Second,
	}, noopLogger())
	defer oracle.Close()

	for i := 0; i < 2; i++ {
		price, err := oracle.FetchPrice(context.Background(), "bitcoin")
		if err != nil {
			t.Fatalf("读取预言机价格失败: %v", err)
		}
		if price != 50000.12345678 {
			t.Fatalf("期望价格 50000.12345678, 实际 %v", price)
		}
	}
	if calls := node.decimalsCallCount(); calls != 1 {
		t.Fatalf("decimals 应只查询一次并缓存, 实际查询 %d 次", calls)
	}
}

func TestOracleRejectsNonPositiveAnswer(t *testing.T) {
	node := &aggregatorNode{
		decimals: 8,
		answers: map[common.Address]*big.Int{
			common.HexToAddress(btcFeed): big.NewInt(0),
			common.HexToAddress(ethFeed): big.NewInt(-300000000000),
		},
	}
	srv := httptest.NewServer(node)
	defer srv.Close()

	oracle := NewOracle(OracleOptions{
		RPCURL:  srv.URL,
		Feeds:   map[string]string{"bitcoin": btcFeed, "ethereum": ethFeed},
		Timeout: time.Second,
	}, noopLogger())
	defer oracle.Close()

	for _, asset := range []string{"bitcoin", "ethereum"} {
		if _, err := oracle.FetchPrice(context.Background(), asset); !errors.Is(err, ErrMalformedQuote) {
			t.Fatalf("%s 非正价格应返回 ErrMalformedQuote, 实际 %v", asset, err)
		}
	}
}
