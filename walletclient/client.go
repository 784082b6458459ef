// Package walletclient talks to the custody provider that holds the
// platform's server-side wallets. The provider owns all key material; this
// client only ever handles wallet ids and signed results.
package walletclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"math/big"
	"net/http"
	"time"

	"github.com/plutus-market/plutus-server/constdef"
	"github.com/plutus-market/plutus-server/errcode"
	"github.com/plutus-market/plutus-server/model"

	"github.com/shopspring/decimal"
)

const (
	defaultRequestTimeout = 15 * time.Second

	defaultChainType = "ethereum"
)

// WalletResolver maps an owner identity to their custodial wallet id.
// Injected by the caller so this package stays free of storage concerns.
type WalletResolver func(ctx context.Context, owner string) (walletID string, err error)

// ConnConfig describes how to reach the custody provider.
type ConnConfig struct {
	BaseURL   string
	AppID     string
	AppSecret string
	// Caip2 identifies the target chain on send requests, e.g.
	// "eip155:84532".
	Caip2 string

	RequestTimeout time.Duration
}

// Client is an HTTP client for the custody provider's wallet API. All
// methods are safe for concurrent use.
type Client struct {
	cfg        *ConnConfig
	httpClient *http.Client
	resolver   WalletResolver
}

func New(cfg *ConnConfig, resolver WalletResolver) (*Client, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, errors.New("missing custody provider config")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		resolver:   resolver,
	}, nil
}

type createWalletRequest struct {
	ChainType string `json:"chain_type"`
}

type walletResponse struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	ChainType string `json:"chain_type"`
}

type rpcRequest struct {
	Method string      `json:"method"`
	Caip2  string      `json:"caip2,omitempty"`
	Params interface{} `json:"params"`
}

type signParams struct {
	Message string `json:"message"`
}

type sendParams struct {
	Transaction txFields `json:"transaction"`
}

type txFields struct {
	To    string `json:"to"`
	Value string `json:"value"`
}

type rpcResponse struct {
	Data struct {
		Signature string `json:"signature"`
		Hash      string `json:"hash"`
	} `json:"data"`
}

// CreateWallet provisions a new custodial wallet at the provider.
func (c *Client) CreateWallet(ctx context.Context) (*model.CustodialWallet, error) {
	var res walletResponse
	err := c.do(ctx, http.MethodPost, "/v1/wallets", "", &createWalletRequest{ChainType: defaultChainType}, &res)
	if err != nil {
		return nil, err
	}
	log.Debugf("Created custodial wallet %v with address %v", res.ID, res.Address)
	return &model.CustodialWallet{
		ID:        res.ID,
		Address:   res.Address,
		ChainType: res.ChainType,
	}, nil
}

// FetchWallet returns the provider's record of an existing wallet.
func (c *Client) FetchWallet(ctx context.Context, walletID string) (*model.CustodialWallet, error) {
	if walletID == "" {
		return nil, errcode.ErrNoCustodialWallet
	}
	var res walletResponse
	err := c.do(ctx, http.MethodGet, "/v1/wallets/"+walletID, "", nil, &res)
	if err != nil {
		return nil, err
	}
	return &model.CustodialWallet{
		ID:        res.ID,
		Address:   res.Address,
		ChainType: res.ChainType,
	}, nil
}

// SignMessage asks the provider to sign an arbitrary message with the
// owner's custodial key.
func (c *Client) SignMessage(ctx context.Context, owner string, message string) (string, error) {
	walletID, err := c.resolveWallet(ctx, owner)
	if err != nil {
		return "", err
	}

	req := rpcRequest{
		Method: "personal_sign",
		Params: &signParams{Message: message},
	}
	var res rpcResponse
	err = c.do(ctx, http.MethodPost, "/v1/wallets/"+walletID+"/rpc", "", &req, &res)
	if err != nil {
		return "", err
	}
	return res.Data.Signature, nil
}

// Transfer dispatches amount (in the chain's display unit) from the
// owner's custodial wallet to the given address and returns the resulting
// transaction hash. idempotencyKey deduplicates retries of the same
// logical transfer at the provider, so a retried dispatch cannot double
// pay.
func (c *Client) Transfer(ctx context.Context, owner string, to string, amount decimal.Decimal, idempotencyKey string) (string, error) {
	walletID, err := c.resolveWallet(ctx, owner)
	if err != nil {
		return "", err
	}

	value, err := toHexWei(amount)
	if err != nil {
		return "", err
	}

	req := rpcRequest{
		Method: "eth_sendTransaction",
		Caip2:  c.cfg.Caip2,
		Params: &sendParams{
			Transaction: txFields{To: to, Value: value},
		},
	}
	var res rpcResponse
	err = c.do(ctx, http.MethodPost, "/v1/wallets/"+walletID+"/rpc", idempotencyKey, &req, &res)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errcode.ErrTransferFailed, err)
	}
	log.Infof("Dispatched transfer of %v from wallet %v to %v: %v", amount, walletID, to, res.Data.Hash)
	return res.Data.Hash, nil
}

func (c *Client) resolveWallet(ctx context.Context, owner string) (string, error) {
	if c.resolver == nil {
		return "", errors.New("no wallet resolver configured")
	}
	walletID, err := c.resolver(ctx, owner)
	if err != nil {
		return "", err
	}
	if walletID == "" {
		return "", errcode.ErrNoCustodialWallet
	}
	return walletID, nil
}

func (c *Client) do(ctx context.Context, method string, path string, idempotencyKey string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.AppID, c.cfg.AppSecret)
	if c.cfg.AppID != "" {
		req.Header.Set("privy-app-id", c.cfg.AppID)
	}
	if idempotencyKey != "" {
		req.Header.Set("privy-idempotency-key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("custody provider returned %v: %s", resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// toHexWei converts a display-unit decimal amount to a 0x-prefixed hex
// string of base units. Amounts with more precision than the chain's base
// unit are rejected rather than silently truncated.
func toHexWei(amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("transfer amount must be positive, got %v", amount)
	}
	wei := amount.Shift(constdef.WeiDecimals)
	if !wei.IsInteger() {
		return "", fmt.Errorf("amount %v has sub-wei precision", amount)
	}
	return "0x" + new(big.Int).Set(wei.BigInt()).Text(16), nil
}
