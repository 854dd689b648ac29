package ankr

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/httpx"
	"github.com/ggonzalez94/agentkit/internal/registry"
)

// Client calls the Ankr advanced multichain API.
type Client struct {
	http     *httpx.Client
	endpoint string
}

func NewClient(http *httpx.Client, wallet string) *Client {
	return &Client{http: http, endpoint: registry.AnkrMultichainURL + "/" + strings.TrimSpace(wallet)}
}

// NewClientWithEndpoint targets a specific multichain URL.
func NewClientWithEndpoint(http *httpx.Client, endpoint string) *Client {
	return &Client{http: http, endpoint: endpoint}
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	if err := c.http.CallJSONRPC(ctx, c.endpoint, method, params, out); err != nil {
		if _, ok := clierr.As(err); ok {
			return err
		}
		return clierr.API("ankr "+method, err)
	}
	return nil
}

// Quantity accepts JSON numbers and strings (decimal or 0x-hex) and keeps the raw text.
type Quantity string

func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*q = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*q = Quantity(s)
		return nil
	}
	*q = Quantity(string(b))
	return nil
}

type Asset struct {
	Blockchain      string `json:"blockchain"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimals   int    `json:"tokenDecimals"`
	TokenType       string `json:"tokenType"`
	ContractAddress string `json:"contractAddress,omitempty"`
	HolderAddress   string `json:"holderAddress"`
	Balance         string `json:"balance"`
	BalanceRaw      string `json:"balanceRawInteger"`
	BalanceUSD      string `json:"balanceUsd"`
	TokenPrice      string `json:"tokenPrice"`
}

type AccountBalance struct {
	TotalBalanceUSD string  `json:"totalBalanceUsd"`
	Assets          []Asset `json:"assets"`
	NextPageToken   string  `json:"nextPageToken,omitempty"`
}

func (c *Client) GetAccountBalance(ctx context.Context, wallet string, blockchains []string) (AccountBalance, error) {
	params := map[string]any{"walletAddress": wallet}
	if len(blockchains) > 0 {
		params["blockchain"] = blockchains
	}
	var out AccountBalance
	return out, c.call(ctx, "ankr_getAccountBalance", params, &out)
}

type TokenPrice struct {
	Blockchain      string `json:"blockchain"`
	ContractAddress string `json:"contractAddress"`
	USDPrice        string `json:"usdPrice"`
}

// GetTokenPrice prices a token; an empty contract prices the chain's native coin.
func (c *Client) GetTokenPrice(ctx context.Context, blockchain, contract string) (TokenPrice, error) {
	params := map[string]any{"blockchain": blockchain}
	if contract != "" {
		params["contractAddress"] = contract
	}
	var out TokenPrice
	return out, c.call(ctx, "ankr_getTokenPrice", params, &out)
}

type Holder struct {
	HolderAddress string `json:"holderAddress"`
	Balance       string `json:"balance"`
	BalanceRaw    string `json:"balanceRawInteger"`
}

type TokenHolders struct {
	Blockchain      string   `json:"blockchain"`
	ContractAddress string   `json:"contractAddress"`
	TokenDecimals   int      `json:"tokenDecimals"`
	Holders         []Holder `json:"holders"`
	HoldersCount    int      `json:"holdersCount"`
	NextPageToken   string   `json:"nextPageToken,omitempty"`
}

func (c *Client) GetTokenHolders(ctx context.Context, blockchain, contract string, pageSize int) (TokenHolders, error) {
	var out TokenHolders
	return out, c.call(ctx, "ankr_getTokenHolders", map[string]any{
		"blockchain":      blockchain,
		"contractAddress": contract,
		"pageSize":        pageSize,
	}, &out)
}

type HolderCountPoint struct {
	HolderCount   int    `json:"holderCount"`
	TotalAmount   string `json:"totalAmount"`
	LastUpdatedAt string `json:"lastUpdatedAt"`
}

type TokenHoldersCount struct {
	Blockchain         string             `json:"blockchain"`
	ContractAddress    string             `json:"contractAddress"`
	TokenDecimals      int                `json:"tokenDecimals"`
	LatestHoldersCount int                `json:"latestHoldersCount"`
	History            []HolderCountPoint `json:"holderCountHistory"`
}

func (c *Client) GetTokenHoldersCount(ctx context.Context, blockchain, contract string, pageSize int) (TokenHoldersCount, error) {
	var out TokenHoldersCount
	return out, c.call(ctx, "ankr_getTokenHoldersCount", map[string]any{
		"blockchain":      blockchain,
		"contractAddress": contract,
		"pageSize":        pageSize,
	}, &out)
}

type Transfer struct {
	Blockchain      string   `json:"blockchain"`
	FromAddress     string   `json:"fromAddress"`
	ToAddress       string   `json:"toAddress"`
	ContractAddress string   `json:"contractAddress"`
	Value           string   `json:"value"`
	TokenName       string   `json:"tokenName"`
	TokenSymbol     string   `json:"tokenSymbol"`
	TokenDecimals   int      `json:"tokenDecimals"`
	TransactionHash string   `json:"transactionHash"`
	BlockHeight     Quantity `json:"blockHeight"`
	Timestamp       Quantity `json:"timestamp"`
}

type TokenTransfers struct {
	Transfers     []Transfer `json:"transfers"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
}

func (c *Client) GetTokenTransfers(ctx context.Context, blockchain, address string, pageSize int) (TokenTransfers, error) {
	params := map[string]any{"blockchain": []string{blockchain}, "pageSize": pageSize}
	if address != "" {
		params["address"] = []string{address}
	}
	var out TokenTransfers
	return out, c.call(ctx, "ankr_getTokenTransfers", params, &out)
}

type Transaction struct {
	Blockchain  string   `json:"blockchain"`
	Hash        string   `json:"hash"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Value       Quantity `json:"value"`
	Gas         Quantity `json:"gas"`
	GasPrice    Quantity `json:"gasPrice"`
	GasUsed     Quantity `json:"gasUsed"`
	BlockNumber Quantity `json:"blockNumber"`
	Timestamp   Quantity `json:"timestamp"`
	Status      Quantity `json:"status"`
}

type Transactions struct {
	Transactions  []Transaction `json:"transactions"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

func (c *Client) GetTransactionsByAddress(ctx context.Context, blockchain, address string, pageSize int) (Transactions, error) {
	var out Transactions
	return out, c.call(ctx, "ankr_getTransactionsByAddress", map[string]any{
		"blockchain": []string{blockchain},
		"address":    []string{address},
		"pageSize":   pageSize,
		"descOrder":  true,
	}, &out)
}

func (c *Client) GetTransactionByHash(ctx context.Context, blockchain, hash string) (Transactions, error) {
	params := map[string]any{"transactionHash": hash, "decodeTxData": true}
	if blockchain != "" {
		params["blockchain"] = blockchain
	}
	var out Transactions
	return out, c.call(ctx, "ankr_getTransactionsByHash", params, &out)
}

type NFT struct {
	Blockchain      string `json:"blockchain"`
	Name            string `json:"name"`
	TokenID         string `json:"tokenId"`
	TokenURL        string `json:"tokenUrl"`
	ImageURL        string `json:"imageUrl"`
	CollectionName  string `json:"collectionName"`
	Symbol          string `json:"symbol"`
	ContractType    string `json:"contractType"`
	ContractAddress string `json:"contractAddress"`
}

type NFTsByOwner struct {
	Owner         string `json:"owner"`
	Assets        []NFT  `json:"assets"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

func (c *Client) GetNFTsByOwner(ctx context.Context, blockchain, wallet string, pageSize int) (NFTsByOwner, error) {
	params := map[string]any{"walletAddress": wallet, "pageSize": pageSize}
	if blockchain != "" {
		params["blockchain"] = []string{blockchain}
	}
	var out NFTsByOwner
	return out, c.call(ctx, "ankr_getNFTsByOwner", params, &out)
}

type Trait struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type NFTMetadata struct {
	Metadata struct {
		Blockchain       string `json:"blockchain"`
		ContractAddress  string `json:"contractAddress"`
		TokenID          string `json:"tokenId"`
		ContractType     string `json:"contractType"`
		CollectionName   string `json:"collectionName"`
		CollectionSymbol string `json:"collectionSymbol"`
	} `json:"metadata"`
	Attributes struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		ImageURL    string  `json:"imageUrl"`
		TokenURL    string  `json:"tokenUrl"`
		Traits      []Trait `json:"traits"`
	} `json:"attributes"`
}

func (c *Client) GetNFTMetadata(ctx context.Context, blockchain, contract, tokenID string) (NFTMetadata, error) {
	var out NFTMetadata
	return out, c.call(ctx, "ankr_getNFTMetadata", map[string]any{
		"blockchain":      blockchain,
		"contractAddress": contract,
		"tokenId":         tokenID,
		"forceFetch":      false,
	}, &out)
}

type NFTHolders struct {
	Holders       []string `json:"holders"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

func (c *Client) GetNFTHolders(ctx context.Context, blockchain, contract string, pageSize int) (NFTHolders, error) {
	var out NFTHolders
	return out, c.call(ctx, "ankr_getNFTHolders", map[string]any{
		"blockchain":      blockchain,
		"contractAddress": contract,
		"pageSize":        pageSize,
	}, &out)
}

type ChainStats struct {
	Blockchain             string   `json:"blockchain"`
	TotalTransactionsCount Quantity `json:"totalTransactionsCount"`
	TotalEventsCount       Quantity `json:"totalEventsCount"`
	LatestBlockNumber      Quantity `json:"latestBlockNumber"`
	BlockTimeMs            Quantity `json:"blockTimeMs"`
	NativeCoinUSDPrice     string   `json:"nativeCoinUsdPrice"`
}

type BlockchainStats struct {
	Stats []ChainStats `json:"stats"`
}

func (c *Client) GetBlockchainStats(ctx context.Context, blockchain string) (BlockchainStats, error) {
	params := map[string]any{}
	if blockchain != "" {
		params["blockchain"] = blockchain
	}
	var out BlockchainStats
	return out, c.call(ctx, "ankr_getBlockchainStats", params, &out)
}

type Currency struct {
	Blockchain string `json:"blockchain"`
	Address    string `json:"address"`
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`
	Decimals   int    `json:"decimals"`
}

type Currencies struct {
	Currencies []Currency `json:"currencies"`
}

func (c *Client) GetCurrencies(ctx context.Context, blockchain string) (Currencies, error) {
	var out Currencies
	return out, c.call(ctx, "ankr_getCurrencies", map[string]any{"blockchain": blockchain}, &out)
}

type Interactions struct {
	Blockchains []string `json:"blockchains"`
}

func (c *Client) GetInteractions(ctx context.Context, address string) (Interactions, error) {
	var out Interactions
	return out, c.call(ctx, "ankr_getInteractions", map[string]any{"address": address}, &out)
}

type Block struct {
	Blockchain   string        `json:"blockchain"`
	Number       Quantity      `json:"number"`
	Hash         string        `json:"hash"`
	Timestamp    Quantity      `json:"timestamp"`
	GasUsed      Quantity      `json:"gasUsed"`
	Transactions []Transaction `json:"transactions"`
}

type Blocks struct {
	Blocks []Block `json:"blocks"`
}

func (c *Client) GetBlocks(ctx context.Context, blockchain string, from, to int64) (Blocks, error) {
	var out Blocks
	return out, c.call(ctx, "ankr_getBlocks", map[string]any{
		"blockchain":   blockchain,
		"fromBlock":    from,
		"toBlock":      to,
		"includeTxs":   false,
		"includeLogs":  false,
		"decodeTxData": false,
	}, &out)
}

type Log struct {
	Blockchain      string   `json:"blockchain"`
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     Quantity `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        Quantity `json:"logIndex"`
	Timestamp       Quantity `json:"timestamp"`
}

type Logs struct {
	Logs          []Log  `json:"logs"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

func (c *Client) GetLogs(ctx context.Context, blockchain, address string, from, to int64, pageSize int) (Logs, error) {
	params := map[string]any{
		"blockchain": []string{blockchain},
		"fromBlock":  from,
		"toBlock":    to,
		"decodeLogs": false,
		"pageSize":   pageSize,
	}
	if address != "" {
		params["address"] = []string{address}
	}
	var out Logs
	return out, c.call(ctx, "ankr_getLogs", params, &out)
}
