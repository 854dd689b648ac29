package cosmos

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/httpx"
	"github.com/sethvargo/go-retry"
)

// restClient talks to a chain's LCD REST endpoint.
type restClient struct {
	http    *httpx.Client
	baseURL string
}

type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

func (c *restClient) get(ctx context.Context, path string, out any) error {
	_, err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, c.baseURL+path, nil, nil, out)
	return err
}

func (c *restClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "encode request", err)
	}
	_, err = httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+path, buf, nil, out)
	return err
}

// Account returns the account number and sequence used for signing.
func (c *restClient) Account(ctx context.Context, addr string) (number uint64, sequence uint64, err error) {
	var resp struct {
		Account struct {
			AccountNumber string `json:"account_number"`
			Sequence      string `json:"sequence"`
		} `json:"account"`
	}
	if err := c.get(ctx, "/cosmos/auth/v1beta1/accounts/"+addr, &resp); err != nil {
		return 0, 0, err
	}
	number, err = strconv.ParseUint(resp.Account.AccountNumber, 10, 64)
	if err != nil {
		return 0, 0, clierr.Wrap(clierr.CodeUnavailable, "parse account number", err)
	}
	sequence, err = strconv.ParseUint(orZero(resp.Account.Sequence), 10, 64)
	if err != nil {
		return 0, 0, clierr.Wrap(clierr.CodeUnavailable, "parse account sequence", err)
	}
	return number, sequence, nil
}

func (c *restClient) Balances(ctx context.Context, addr string) ([]Coin, error) {
	var resp struct {
		Balances []Coin `json:"balances"`
	}
	if err := c.get(ctx, "/cosmos/bank/v1beta1/balances/"+addr, &resp); err != nil {
		return nil, err
	}
	return resp.Balances, nil
}

// Simulate returns the gas the transaction would use.
func (c *restClient) Simulate(ctx context.Context, txBytes []byte) (uint64, error) {
	var resp struct {
		GasInfo struct {
			GasUsed string `json:"gas_used"`
		} `json:"gas_info"`
	}
	if err := c.post(ctx, "/cosmos/tx/v1beta1/simulate", map[string]string{"tx_bytes": base64.StdEncoding.EncodeToString(txBytes)}, &resp); err != nil {
		return 0, clierr.Wrap(clierr.CodeSimulation, "simulate cosmos tx", err)
	}
	gas, err := strconv.ParseUint(resp.GasInfo.GasUsed, 10, 64)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeSimulation, "parse simulated gas", err)
	}
	return gas, nil
}

type TxResponse struct {
	TxHash  string `json:"txhash"`
	Height  string `json:"height"`
	Code    uint32 `json:"code"`
	RawLog  string `json:"raw_log"`
	GasUsed string `json:"gas_used"`
}

// Broadcast submits the transaction in sync mode and fails on a non-zero CheckTx code.
func (c *restClient) Broadcast(ctx context.Context, txBytes []byte) (TxResponse, error) {
	var resp struct {
		TxResponse TxResponse `json:"tx_response"`
	}
	body := map[string]string{"tx_bytes": base64.StdEncoding.EncodeToString(txBytes), "mode": "BROADCAST_MODE_SYNC"}
	if err := c.post(ctx, "/cosmos/tx/v1beta1/txs", body, &resp); err != nil {
		return TxResponse{}, err
	}
	if resp.TxResponse.Code != 0 {
		return resp.TxResponse, clierr.New(clierr.CodeSimulation, fmt.Sprintf("broadcast rejected (code %d): %s", resp.TxResponse.Code, resp.TxResponse.RawLog))
	}
	return resp.TxResponse, nil
}

// WaitTx polls until hash is included in a block or timeout elapses.
func (c *restClient) WaitTx(ctx context.Context, hash string, interval, timeout time.Duration) (TxResponse, error) {
	var included TxResponse
	backoff := retry.WithMaxDuration(timeout, retry.NewConstant(interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var resp struct {
			TxResponse TxResponse `json:"tx_response"`
		}
		if err := c.get(ctx, "/cosmos/tx/v1beta1/txs/"+hash, &resp); err != nil {
			return retry.RetryableError(err)
		}
		if resp.TxResponse.Height == "" || resp.TxResponse.Height == "0" {
			return retry.RetryableError(fmt.Errorf("tx %s not yet included", hash))
		}
		included = resp.TxResponse
		return nil
	})
	if err != nil {
		return TxResponse{}, clierr.Wrap(clierr.CodeTimeout, "wait for tx "+hash, err)
	}
	if included.Code != 0 {
		return included, clierr.New(clierr.CodeSimulation, fmt.Sprintf("tx %s failed (code %d): %s", hash, included.Code, included.RawLog))
	}
	return included, nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
